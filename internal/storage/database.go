// Package storage persists cards and documents in SQLite.
//
// WAL mode with a bounded busy timeout gives single-writer transactions;
// a review's read-modify-write runs inside one immediate transaction, so
// concurrent reviews of the same card serialize at the database and
// contention past the retry bound surfaces as domain.ErrConflict.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkeogan/mnemo/internal/domain"
	"github.com/pkeogan/mnemo/internal/fingerprint"
	"github.com/pkeogan/mnemo/internal/sm2"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to
// date. _txlock=immediate makes every transaction take the write lock up
// front so a review's read-modify-write cannot deadlock against another
// writer.
func Open(path string) (*DB, error) {
	dsn := path + "?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(2000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

const cardColumns = `id, owner_id, document_id, question, answer,
	efactor, repetitions, interval_days, next_review, last_reviewed, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*domain.Card, error) {
	var (
		c            domain.Card
		documentID   sql.NullString
		nextReview   int64
		lastReviewed sql.NullInt64
		createdAt    int64
	)
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&documentID,
		&c.Question,
		&c.Answer,
		&c.Efactor,
		&c.Repetitions,
		&c.Interval,
		&nextReview,
		&lastReviewed,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	c.DocumentID = documentID.String
	c.NextReview = fromNanos(nextReview)
	c.CreatedAt = fromNanos(createdAt)
	if lastReviewed.Valid {
		t := fromNanos(lastReviewed.Int64)
		c.LastReview = &t
	}
	return &c, nil
}

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(ns int64) time.Time { return time.Unix(0, ns).UTC() }

// CreateCard inserts a new card with default SM-2 state, immediately due.
// When documentID is non-empty it must name a document the same owner
// already registered. A second card with the same normalized content for
// the same owner fails with ErrDuplicateCard.
func (db *DB) CreateCard(ctx context.Context, ownerID, documentID, question, answer string, now time.Time) (*domain.Card, error) {
	if documentID != "" {
		if _, err := db.GetDocument(ctx, ownerID, documentID); err != nil {
			return nil, err
		}
	}

	state := sm2.NewCardState()
	card := &domain.Card{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		DocumentID:  documentID,
		Question:    question,
		Answer:      answer,
		Efactor:     state.Efactor,
		Repetitions: state.Repetitions,
		Interval:    state.Interval,
		NextReview:  now.UTC(),
		CreatedAt:   now.UTC(),
	}

	err := retryOnContention(func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT INTO flashcards (id, owner_id, document_id, question, answer, content_hash,
				efactor, repetitions, interval_days, next_review, last_reviewed, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)
		`,
			card.ID,
			card.OwnerID,
			nullString(card.DocumentID),
			card.Question,
			card.Answer,
			fingerprint.Hash(question, answer),
			card.Efactor,
			card.Repetitions,
			card.Interval,
			toNanos(card.NextReview),
			toNanos(card.CreatedAt),
		)
		return err
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, domain.ErrDuplicateCard
		}
		return nil, mapStoreErr("failed to insert card", err)
	}
	return card, nil
}

// GetCard retrieves one card scoped to its owner. An id that does not
// exist and an id owned by someone else both return ErrNotFound.
func (db *DB) GetCard(ctx context.Context, ownerID, cardID string) (*domain.Card, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+cardColumns+`
		FROM flashcards WHERE id = ? AND owner_id = ?
	`, cardID, ownerID)

	card, err := scanCard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, mapStoreErr(fmt.Sprintf("failed to get card %s", cardID), err)
	}
	return card, nil
}

// ListCards returns every card in the scope ordered by next_review
// ascending (due-first), unfiltered by due-ness.
func (db *DB) ListCards(ctx context.Context, scope domain.Scope) ([]domain.Card, error) {
	return db.queryCards(ctx, scope, time.Time{})
}

// DueCards returns the cards in the scope whose next_review is at or
// before now, most overdue first, tie-broken by created_at then id for a
// fully deterministic order.
func (db *DB) DueCards(ctx context.Context, scope domain.Scope, now time.Time) ([]domain.Card, error) {
	return db.queryCards(ctx, scope, now)
}

func (db *DB) queryCards(ctx context.Context, scope domain.Scope, due time.Time) ([]domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM flashcards WHERE owner_id = ?`
	args := []any{scope.OwnerID}
	if scope.Narrowed() {
		query += ` AND document_id = ?`
		args = append(args, scope.DocumentID)
	}
	if !due.IsZero() {
		query += ` AND next_review <= ?`
		args = append(args, toNanos(due))
	}
	query += ` ORDER BY next_review ASC, created_at ASC, id ASC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapStoreErr("failed to query cards", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, mapStoreErr("failed to scan card row", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreErr("failed to iterate card rows", err)
	}
	return cards, nil
}

// UpdateCardSchedule runs one atomic read-modify-write against a single
// card row. The card is loaded inside an immediate transaction, apply
// computes the updated card, and the five scheduling fields are written
// back together; any failure leaves the stored row untouched. Lock
// contention past the retry bound returns ErrConflict.
func (db *DB) UpdateCardSchedule(ctx context.Context, ownerID, cardID string, apply func(domain.Card) (domain.Card, error)) (*domain.Card, error) {
	var updated *domain.Card
	err := retryOnContention(func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		row := tx.QueryRowContext(ctx, `
			SELECT `+cardColumns+`
			FROM flashcards WHERE id = ? AND owner_id = ?
		`, cardID, ownerID)
		current, err := scanCard(row)
		if err != nil {
			if err == sql.ErrNoRows {
				return domain.ErrNotFound
			}
			return err
		}

		next, err := apply(*current)
		if err != nil {
			return err
		}

		var lastReviewed sql.NullInt64
		if next.LastReview != nil {
			lastReviewed = sql.NullInt64{Int64: toNanos(*next.LastReview), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE flashcards
			SET efactor = ?, repetitions = ?, interval_days = ?, next_review = ?, last_reviewed = ?
			WHERE id = ?
		`,
			next.Efactor,
			next.Repetitions,
			next.Interval,
			toNanos(next.NextReview),
			lastReviewed,
			next.ID,
		); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidQuality) {
			return nil, err
		}
		return nil, mapStoreErr(fmt.Sprintf("failed to update schedule for card %s", cardID), err)
	}
	return updated, nil
}

// DeleteCard removes one card scoped to its owner.
func (db *DB) DeleteCard(ctx context.Context, ownerID, cardID string) error {
	var affected int64
	err := retryOnContention(func() error {
		res, err := db.conn.ExecContext(ctx, `
			DELETE FROM flashcards WHERE id = ? AND owner_id = ?
		`, cardID, ownerID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return mapStoreErr(fmt.Sprintf("failed to delete card %s", cardID), err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateDocument registers a source document for an owner.
func (db *DB) CreateDocument(ctx context.Context, ownerID, filename string, now time.Time) (*domain.Document, error) {
	doc := &domain.Document{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Filename:  filename,
		CreatedAt: now.UTC(),
	}
	err := retryOnContention(func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT INTO documents (id, owner_id, filename, created_at)
			VALUES (?, ?, ?, ?)
		`, doc.ID, doc.OwnerID, doc.Filename, toNanos(doc.CreatedAt))
		return err
	})
	if err != nil {
		return nil, mapStoreErr(fmt.Sprintf("failed to insert document %s", filename), err)
	}
	return doc, nil
}

// GetDocument retrieves one document scoped to its owner.
func (db *DB) GetDocument(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	var (
		doc       domain.Document
		createdAt int64
	)
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, owner_id, filename, created_at
		FROM documents WHERE id = ? AND owner_id = ?
	`, documentID, ownerID)
	if err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Filename, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, mapStoreErr(fmt.Sprintf("failed to get document %s", documentID), err)
	}
	doc.CreatedAt = fromNanos(createdAt)
	return &doc, nil
}

// ListDocuments returns all of an owner's documents, newest first.
func (db *DB) ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, owner_id, filename, created_at
		FROM documents WHERE owner_id = ?
		ORDER BY created_at DESC, id ASC
	`, ownerID)
	if err != nil {
		return nil, mapStoreErr("failed to query documents", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			doc       domain.Document
			createdAt int64
		)
		if err := rows.Scan(&doc.ID, &doc.OwnerID, &doc.Filename, &createdAt); err != nil {
			return nil, mapStoreErr("failed to scan document row", err)
		}
		doc.CreatedAt = fromNanos(createdAt)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreErr("failed to iterate document rows", err)
	}
	return docs, nil
}

// DeleteDocument removes a document and, through the cascading foreign
// key, every card that references it. Deletion is total: no card is left
// with a dangling document reference.
func (db *DB) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	var affected int64
	err := retryOnContention(func() error {
		res, err := db.conn.ExecContext(ctx, `
			DELETE FROM documents WHERE id = ? AND owner_id = ?
		`, documentID, ownerID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return mapStoreErr(fmt.Sprintf("failed to delete document %s", documentID), err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// mapStoreErr classifies a database error: exhausted contention becomes
// the retryable ErrConflict, everything else is an ErrStorage
// infrastructure failure. Domain errors pass through unchanged.
func mapStoreErr(op string, err error) error {
	if isContentionErr(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	return fmt.Errorf("%s: %w: %s", op, domain.ErrStorage, err)
}
