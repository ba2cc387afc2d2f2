package reward

import (
	"strings"

	"golang.org/x/text/cases"
)

// Policy maps a peer's answer and the expected answer to a score in [0, 1].
// Implementations may return any float; the engine sanitizes the result.
type Policy func(answer, expected string) float64

// ExactMatch scores 1 when both strings are equal after trimming surrounding
// Unicode whitespace and applying Unicode case folding, otherwise 0.
func ExactMatch(answer, expected string) float64 {
	if Normalize(answer) == Normalize(expected) {
		return 1
	}
	return 0
}

// Normalize trims surrounding whitespace and case-folds s.
func Normalize(s string) string {
	// Casers carry state and are not safe to share across goroutines.
	return cases.Fold().String(strings.TrimSpace(s))
}
