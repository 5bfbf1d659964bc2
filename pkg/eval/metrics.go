// Package eval turns match statistics into precision, recall and F1 and
// aggregates them over a corpus.
package eval

import (
	"github.com/gilchrisn/graph-match-service/pkg/models"
)

const epsilon = 1e-8

// Scores holds F1, precision and recall as fractions
type Scores struct {
	F1        float64
	Precision float64
	Recall    float64
}

func (s Scores) vector() [3]float64 { return [3]float64{s.F1, s.Precision, s.Recall} }

// Precision is matched G1 triples over |G1|. A pair of empty graphs scores
// 1 and an empty G1 next to a non-empty G2 scores 0.
func Precision(m models.MatchStatistic) float64 {
	if m.Sum() == 0 {
		return 1
	}
	if m.SizeX < epsilon {
		return 0
	}
	return m.MatchedX / m.SizeX
}

// Recall is matched G2 triples over |G2|, with the same special cases
func Recall(m models.MatchStatistic) float64 {
	if m.Sum() == 0 {
		return 1
	}
	if m.SizeY < epsilon {
		return 0
	}
	return m.MatchedY / m.SizeY
}

// F1 is the harmonic mean of precision and recall
func F1(m models.MatchStatistic) float64 {
	if m.Sum() == 0 {
		return 1
	}
	p, r := Precision(m), Recall(m)
	if p+r < epsilon {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Score computes all three metrics
func Score(m models.MatchStatistic) Scores {
	return Scores{F1: F1(m), Precision: Precision(m), Recall: Recall(m)}
}
