// Package sm2 implements the SM-2 spaced-repetition algorithm
// (Wozniak, 1987) for scheduling flashcard reviews.
//
// Quality ratings run 0-5: 0 is a complete blackout, 5 is perfect recall.
// A rating below 3 is a failed recall and resets the schedule; 3 and above
// grows it. The easiness factor is clamped to a floor of 1.3 and has no
// ceiling: reliably easy cards keep compounding toward longer intervals.
package sm2

import (
	"fmt"
	"math"
	"time"

	"github.com/pkeogan/mnemo/internal/domain"
)

// Algorithm constants.
const (
	MinEfactor         = 1.3
	DefaultEfactor     = 2.5
	DefaultRepetitions = 0
	DefaultInterval    = 1
	MinQuality         = 0
	MaxQuality         = 5
	PassingQuality     = 3

	// MaxIntervalDays caps the computed interval (~10 years) to avoid
	// impractically distant reviews.
	MaxIntervalDays = 3650
)

// State is the scheduling state a card carries into a review.
type State struct {
	Efactor     float64
	Repetitions int
	Interval    int
}

// Result holds the updated scheduling parameters after a review.
type Result struct {
	Efactor     float64
	Repetitions int
	Interval    int
	NextReview  time.Time
	LastReview  time.Time
}

// Review applies one SM-2 transition to cur for the given quality rating.
// It is pure and deterministic: no I/O, no clock reads, now is supplied by
// the caller and is taken as the review time in UTC.
//
// Quality outside [0, 5] returns domain.ErrInvalidQuality. Out-of-range
// persisted state (efactor below the floor, repetitions below zero,
// interval below one day) is clamped rather than rejected.
func Review(cur State, quality int, now time.Time) (Result, error) {
	if quality < MinQuality || quality > MaxQuality {
		return Result{}, fmt.Errorf("quality %d: %w", quality, domain.ErrInvalidQuality)
	}

	ef := math.Max(cur.Efactor, MinEfactor)
	reps := cur.Repetitions
	if reps < 0 {
		reps = 0
	}
	interval := cur.Interval
	if interval < 1 {
		interval = 1
	}

	// E' = E + (0.1 - (5-q) * (0.08 + (5-q) * 0.02)), floored at 1.3.
	q := float64(MaxQuality - quality)
	ef = math.Max(MinEfactor, ef+(0.1-q*(0.08+q*0.02)))

	if quality < PassingQuality {
		// Failure resets the schedule to the shortest interval
		// regardless of prior progress.
		reps = 0
		interval = 1
	} else {
		reps++
		switch reps {
		case 1:
			interval = 1
		case 2:
			interval = 6
		default:
			// Halves round away from zero. An exact .5 product never
			// occurs here: the efactor is a sum of binary fractions
			// that is never a clean multiple of 0.5.
			interval = int(math.Round(float64(interval) * ef))
		}
		if interval < 1 {
			interval = 1
		}
	}
	if interval > MaxIntervalDays {
		interval = MaxIntervalDays
	}

	now = now.UTC()
	return Result{
		Efactor:     ef,
		Repetitions: reps,
		Interval:    interval,
		NextReview:  now.Add(time.Duration(interval) * 24 * time.Hour),
		LastReview:  now,
	}, nil
}

// NewCardState returns the scheduling state for a freshly created card.
func NewCardState() State {
	return State{
		Efactor:     DefaultEfactor,
		Repetitions: DefaultRepetitions,
		Interval:    DefaultInterval,
	}
}

// DescribeInterval renders an interval in days as a human-readable phrase
// for review messages: "1 day", "4 days", "2 weeks", "3 months", "1 year".
func DescribeInterval(days int) string {
	switch {
	case days <= 1:
		return "1 day"
	case days < 7:
		return fmt.Sprintf("%d days", days)
	case days < 30:
		return plural(int(math.Round(float64(days)/7)), "week")
	case days < 365:
		return plural(int(math.Round(float64(days)/30)), "month")
	default:
		return plural(int(math.Round(float64(days)/365)), "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
