package storage

// Timestamps are stored as INTEGER Unix nanoseconds (UTC) so that the
// due predicate and ordering compare numerically and reload round-trips
// the exact instant.
const schema = `
-- The 'documents' table tracks source documents cards may reference.
CREATE TABLE IF NOT EXISTS documents (
    id         TEXT PRIMARY KEY,
    owner_id   TEXT NOT NULL,
    filename   TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

-- The 'flashcards' table stores each card and its SM-2 scheduling state.
-- Deleting a document deletes its cards; a card row never outlives its
-- document reference.
CREATE TABLE IF NOT EXISTS flashcards (
    id            TEXT PRIMARY KEY,
    owner_id      TEXT NOT NULL,
    document_id   TEXT REFERENCES documents(id) ON DELETE CASCADE,
    question      TEXT NOT NULL,
    answer        TEXT NOT NULL,
    content_hash  TEXT NOT NULL,
    efactor       REAL NOT NULL,
    repetitions   INTEGER NOT NULL,
    interval_days INTEGER NOT NULL,
    next_review   INTEGER NOT NULL,
    last_reviewed INTEGER,
    created_at    INTEGER NOT NULL,

    UNIQUE (owner_id, content_hash)
);

CREATE INDEX IF NOT EXISTS idx_flashcards_due ON flashcards(owner_id, next_review);
CREATE INDEX IF NOT EXISTS idx_flashcards_document ON flashcards(document_id);
CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id);
`
