// Package classify scores rendered sigils against the fixed spell label set.
package classify

import (
	"github.com/jmfall/sortilege/internal/sigil"
)

// NoSpellLabel is the designated background label. The classifier emits it
// for strokes that match no spell; it never dispatches an effect.
const NoSpellLabel = "background"

// Result maps each label to an independent score in [0, 1]. Scores need
// not sum to 1; the highest-scoring label is the dispatch candidate.
type Result map[string]float64

// Classifier scores a sigil against a fixed, closed label set.
type Classifier interface {
	// Classify returns a score per label for the given sigil.
	Classify(s *sigil.Sigil) (Result, error)

	// Labels returns the label set, in model output order.
	Labels() []string

	// Close releases model resources.
	Close() error
}

// Best returns the highest-scoring label. Ties break toward the
// lexicographically smaller label so results are stable.
func Best(r Result) (string, float64) {
	best := ""
	bestScore := -1.0

	for label, score := range r {
		if score > bestScore || (score == bestScore && label < best) {
			best = label
			bestScore = score
		}
	}

	return best, bestScore
}
