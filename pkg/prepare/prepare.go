// Package prepare readies a standardized graph pair for alignment.
package prepare

import (
	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-match-service/pkg/config"
	"github.com/gilchrisn/graph-match-service/pkg/models"
)

// Variable prefixes used when AffixVars is set
const (
	AffixG1 = "aa_"
	AffixG2 = "bb_"
)

// Options controls pair preparation
type Options struct {
	// LosslessCompression replaces variables whose concept occurs at most
	// once per graph (and once in total, or once on each side) by the concept
	// itself. Those variables then need no alignment.
	LosslessCompression bool
	// AffixVars prefixes variables with aa_ / bb_ so the two graphs never
	// share a variable name.
	AffixVars bool
}

// OptionsFromConfig reads the graph.* keys
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		LosslessCompression: cfg.LosslessCompression(),
		AffixVars:           cfg.AffixVars(),
	}
}

// Pair is a prepared graph pair together with the variables to align
type Pair struct {
	G1, G2 models.Graph
	Vars1  models.VarSet
	Vars2  models.VarSet
}

// Preparer applies pair-level rewrites
type Preparer struct {
	opts   Options
	logger zerolog.Logger
}

// NewPreparer creates a preparer
func NewPreparer(opts Options, logger zerolog.Logger) *Preparer {
	return &Preparer{opts: opts, logger: logger}
}

// Prepare returns rewritten copies of both graphs and their variable sets.
// The inputs are not modified.
func (p *Preparer) Prepare(triples1, triples2 models.Graph) Pair {
	g1, g2 := triples1.Clone(), triples2.Clone()

	if p.opts.LosslessCompression {
		before1, before2 := len(g1.Variables()), len(g2.Variables())
		g1, g2 = Compress(g1, g2)
		p.logger.Debug().
			Int("vars1_before", before1).Int("vars1_after", len(g1.Variables())).
			Int("vars2_before", before2).Int("vars2_after", len(g2.Variables())).
			Msg("Lossless compression applied")
	}

	if p.opts.AffixVars {
		g1 = Affix(g1, AffixG1)
		g2 = Affix(g2, AffixG2)
	}

	return Pair{G1: g1, G2: g2, Vars1: g1.Variables(), Vars2: g2.Variables()}
}

// Affix prefixes every variable of g
func Affix(g models.Graph, prefix string) models.Graph {
	vars := g.Variables()
	out := make(models.Graph, len(g))
	for i, t := range g {
		src, tgt := t.Source, t.Target
		if vars.Has(src) {
			src = prefix + src
		}
		if vars.Has(tgt) && !t.IsInstance() {
			tgt = prefix + tgt
		}
		out[i] = models.NewTriple(src, t.Relation, tgt)
	}
	return out
}

// Compress collapses variables into their concept label wherever that is
// lossless for the pair: the concept is used by exactly one variable across
// both graphs, or by exactly one variable on each side. Concepts that cover
// every triple of a graph are left alone so no graph becomes empty.
func Compress(triples1, triples2 models.Graph) (models.Graph, models.Graph) {
	vc1, vc2 := triples1.VarConcepts(), triples2.VarConcepts()
	count1, count2 := conceptCounts(vc1), conceptCounts(vc2)

	single := make(map[string]bool)
	for _, counts := range []map[string]int{count1, count2} {
		for c := range counts {
			n1, n2 := count1[c], count2[c]
			if n1 == len(triples1) || n2 == len(triples2) {
				continue
			}
			if n1+n2 == 1 || (n1 == 1 && n2 == 1) {
				single[c] = true
			}
		}
	}

	return collapse(triples1, vc1, single), collapse(triples2, vc2, single)
}

func conceptCounts(vc map[string]string) map[string]int {
	counts := make(map[string]int, len(vc))
	for _, c := range vc {
		counts[c]++
	}
	return counts
}

func collapse(g models.Graph, vc map[string]string, single map[string]bool) models.Graph {
	out := make(models.Graph, 0, len(g))
	for _, t := range g {
		src, tgt := t.Source, t.Target
		concept, isVar := vc[src]
		if isVar && single[concept] {
			if t.IsInstance() {
				continue
			}
			src = concept
		}
		if c, ok := vc[tgt]; ok && single[c] && !t.IsInstance() {
			tgt = c
		}
		out = append(out, models.NewTriple(src, t.Relation, tgt))
	}
	return out
}
