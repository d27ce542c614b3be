// Package review orchestrates the review transaction: validate the
// rating, apply the SM-2 transition atomically against the stored card,
// then recompute the due queue for the card's scope.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkeogan/mnemo/internal/domain"
	"github.com/pkeogan/mnemo/internal/sm2"
)

// Store is the persistence surface the coordinator needs.
type Store interface {
	// UpdateCardSchedule performs an atomic single-row read-modify-write;
	// on any failure the stored card is left unchanged.
	UpdateCardSchedule(ctx context.Context, ownerID, cardID string, apply func(domain.Card) (domain.Card, error)) (*domain.Card, error)
	// DueCards returns the due set for a scope, most overdue first, in a
	// deterministic order.
	DueCards(ctx context.Context, scope domain.Scope, now time.Time) ([]domain.Card, error)
}

// Result is the outcome of one review: the updated card, the
// authoritative next card to show (nil when the queue is empty), the
// remaining due count, and a human-readable message.
type Result struct {
	Reviewed *domain.Card
	Next     *domain.Card
	DueCount int
	Message  string
}

// Service coordinates review transactions. Reviewing is not idempotent:
// submitting the same rating twice applies the transition twice.
type Service struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a coordinator reading UTC wall-clock time.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Review applies the quality rating to the owner's card.
//
// Quality is validated before any storage read. The card's scope for the
// follow-up due query is its source document when it has one, otherwise
// all of the owner's cards.
func (s *Service) Review(ctx context.Context, ownerID, cardID string, quality int) (*Result, error) {
	if quality < sm2.MinQuality || quality > sm2.MaxQuality {
		return nil, fmt.Errorf("quality %d: %w", quality, domain.ErrInvalidQuality)
	}

	now := s.now()
	updated, err := s.store.UpdateCardSchedule(ctx, ownerID, cardID, func(cur domain.Card) (domain.Card, error) {
		res, err := sm2.Review(sm2.State{
			Efactor:     cur.Efactor,
			Repetitions: cur.Repetitions,
			Interval:    cur.Interval,
		}, quality, now)
		if err != nil {
			return domain.Card{}, err
		}
		cur.Efactor = res.Efactor
		cur.Repetitions = res.Repetitions
		cur.Interval = res.Interval
		cur.NextReview = res.NextReview
		cur.LastReview = &res.LastReview
		return cur, nil
	})
	if err != nil {
		return nil, err
	}

	scope := domain.Scope{OwnerID: ownerID, DocumentID: updated.DocumentID}
	dueSet, err := s.store.DueCards(ctx, scope, now)
	if err != nil {
		// The schedule write is already committed; report the review
		// with an empty queue rather than failing the request.
		s.logger.Warn("failed to fetch due cards after review", "card_id", cardID, "error", err)
		dueSet = nil
	}

	result := &Result{
		Reviewed: updated,
		DueCount: len(dueSet),
		Message:  "No more flashcards due",
	}
	if len(dueSet) > 0 {
		result.Next = &dueSet[0]
		result.Message = fmt.Sprintf("Review again in %s", sm2.DescribeInterval(updated.Interval))
	}

	s.logger.Info("reviewed card",
		"card_id", cardID,
		"quality", quality,
		"interval_days", updated.Interval,
		"due_count", result.DueCount,
	)
	return result, nil
}
