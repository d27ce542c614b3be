package domain

import "errors"

// Sentinel errors for the scheduling core.
// Use errors.Is to check: errors.Is(err, domain.ErrNotFound)
var (
	// ErrInvalidQuality means a quality rating outside [0, 5]. Checked
	// before any persisted state is touched.
	ErrInvalidQuality = errors.New("mnemo: quality must be between 0 and 5")

	// ErrNotFound covers both an unknown id and an id owned by someone
	// else; the two are deliberately indistinguishable.
	ErrNotFound = errors.New("mnemo: not found")

	// ErrConflict is transient lock contention past the retry bound.
	// The caller may retry the whole operation.
	ErrConflict = errors.New("mnemo: conflict, retry")

	// ErrDuplicateCard means the owner already has a card with the same
	// normalized content.
	ErrDuplicateCard = errors.New("mnemo: duplicate card content")

	// ErrStorage is an infrastructure failure, surfaced as-is.
	ErrStorage = errors.New("mnemo: storage failure")
)
