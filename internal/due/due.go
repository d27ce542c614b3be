// Package due computes advisory due-ness for display surfaces.
//
// These helpers let a client show due badges and counts without another
// round trip. They are never authoritative: the client's clock and cached
// card list can be stale, so the card submitted for review is always the
// next_flashcard returned by the review endpoint, not a card picked here.
package due

import (
	"time"

	"github.com/pkeogan/mnemo/internal/domain"
)

// IsDue reports whether a card scheduled for nextReview is due at now.
func IsDue(nextReview, now time.Time) bool {
	return !nextReview.After(now)
}

// CountDue returns how many of the cards are due at now.
func CountDue(cards []domain.Card, now time.Time) int {
	n := 0
	for _, c := range cards {
		if IsDue(c.NextReview, now) {
			n++
		}
	}
	return n
}

// FilterDue returns the cards that are due at now, preserving order.
func FilterDue(cards []domain.Card, now time.Time) []domain.Card {
	var out []domain.Card
	for _, c := range cards {
		if IsDue(c.NextReview, now) {
			out = append(out, c)
		}
	}
	return out
}
