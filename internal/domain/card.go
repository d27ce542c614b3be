package domain

import "time"

// Card is a single question-answer flashcard together with its SM-2
// scheduling state. Scheduling fields are only ever written by the review
// coordinator; due-ness is never stored, it is recomputed from NextReview
// against wall-clock time on every read.
type Card struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"-"`
	DocumentID  string     `json:"document_id,omitempty"`
	Question    string     `json:"question"`
	Answer      string     `json:"answer"`
	Efactor     float64    `json:"easiness_factor"`
	Repetitions int        `json:"repetitions"`
	Interval    int        `json:"interval"`
	NextReview  time.Time  `json:"next_review"`
	LastReview  *time.Time `json:"last_reviewed,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Document is a source document that cards may reference. Deleting a
// document deletes its cards; a card is never left with a dangling
// document reference.
type Document struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"-"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

// Scope selects the set of cards an operation works over: all cards of one
// owner, optionally narrowed to a single source document.
type Scope struct {
	OwnerID    string
	DocumentID string // empty means owner-wide
}

// Narrowed reports whether the scope is restricted to one document.
func (s Scope) Narrowed() bool { return s.DocumentID != "" }
