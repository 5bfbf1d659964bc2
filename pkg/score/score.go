// Package score turns an alignment into match statistics.
package score

import (
	"github.com/gilchrisn/graph-match-service/pkg/align"
	"github.com/gilchrisn/graph-match-service/pkg/matcher"
	"github.com/gilchrisn/graph-match-service/pkg/models"
)

// Variable names are rewritten into tagged tokens so that a variable can
// only ever match its aligned counterpart, never a constant or an unaligned
// variable of the other graph that happens to share its name.
const (
	tagG1 = "\x00g1:"
	tagG2 = "\x00g2:"
)

// Scorer computes match statistics for aligned graph pairs
type Scorer struct {
	matcher matcher.TripleMatcher
	exact   bool
}

// NewScorer creates a scorer; nil uses the identity matcher
func NewScorer(m matcher.TripleMatcher) *Scorer {
	if m == nil {
		m = matcher.NewIdentity()
	}
	return &Scorer{matcher: m, exact: matcher.IsExact(m)}
}

// Score returns (matched G1 triples, matched G2 triples, |G1|, |G2|) under
// the alignment. Each triple counts its best match on the other side.
// Exact matchers count the multiset intersection instead. Sizes are always
// triple counts, so a matcher weighing triples above 1 can push precision
// and recall past 1.
func (s *Scorer) Score(triples1, triples2 models.Graph, a align.Alignment) models.MatchStatistic {
	r1, r2 := Relabel(triples1, triples2, a)
	if s.exact {
		n := float64(intersection(r1, r2))
		return models.MatchStatistic{
			MatchedX: n,
			MatchedY: n,
			SizeX:    float64(len(triples1)),
			SizeY:    float64(len(triples2)),
		}
	}
	return models.MatchStatistic{
		MatchedX: s.bestMatchSum(r1, r2),
		MatchedY: s.bestMatchSum(r2, r1),
		SizeX:    float64(len(triples1)),
		SizeY:    float64(len(triples2)),
	}
}

func (s *Scorer) bestMatchSum(from, to models.Graph) float64 {
	sum := 0.0
	for _, t := range from {
		best := 0.0
		for _, u := range to {
			if w := s.matcher.Match(t, u); w > best {
				best = w
			}
		}
		sum += best
	}
	return sum
}

// Relabel rewrites the variables of both graphs: an aligned G1 variable takes
// the token of its G2 counterpart, everything else keeps a side-specific
// token. Constants are untouched.
func Relabel(triples1, triples2 models.Graph, a align.Alignment) (models.Graph, models.Graph) {
	counterparts := a.Counterparts()
	vars1 := triples1.Variables()
	vars2 := triples2.Variables()

	name1 := func(n string) string {
		if !vars1.Has(n) {
			return n
		}
		if c, ok := counterparts[n]; ok {
			return tagG2 + c
		}
		return tagG1 + n
	}
	name2 := func(n string) string {
		if !vars2.Has(n) {
			return n
		}
		return tagG2 + n
	}

	return rewrite(triples1, name1), rewrite(triples2, name2)
}

func rewrite(g models.Graph, name func(string) string) models.Graph {
	out := make(models.Graph, len(g))
	for n, t := range g {
		out[n] = models.NewTriple(name(t.Source), t.Relation, name(t.Target))
	}
	return out
}

// intersection is the size of the multiset intersection
func intersection(g1, g2 models.Graph) int {
	counts := make(map[models.Triple]int, len(g2))
	for _, t := range g2 {
		counts[t]++
	}
	n := 0
	for _, t := range g1 {
		if counts[t] > 0 {
			counts[t]--
			n++
		}
	}
	return n
}
