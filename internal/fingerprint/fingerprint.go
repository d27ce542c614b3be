// Package fingerprint derives a stable content hash for a card so that the
// same question/answer pair is not stored twice for one owner.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize concatenates the card's content after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each
// field before joining them.
func Normalize(question, answer string) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	// Joined with a newline so fields stay separated and "question" +
	// "answer" cannot collide with "questionanswer".
	return strings.Join([]string{normalizePart(question), normalizePart(answer)}, "\n")
}

// Hash normalizes the card content and returns its SHA-256 hash as a hex
// string.
func Hash(question, answer string) string {
	normalized := Normalize(question, answer)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
