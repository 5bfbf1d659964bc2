// Package weights builds the unary and binary match-weight tables that the
// alignment solvers optimize over.
package weights

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gilchrisn/graph-match-service/pkg/matcher"
	"github.com/gilchrisn/graph-match-service/pkg/models"
)

// minChunk is the smallest number of G1 triples handed to one worker
const minChunk = 64

// Builder compares the triples of two graphs and accumulates match weights
type Builder struct {
	matcher matcher.TripleMatcher
	workers int
	logger  zerolog.Logger
}

// NewBuilder creates a table builder. workers <= 1 builds sequentially.
func NewBuilder(m matcher.TripleMatcher, workers int, logger zerolog.Logger) *Builder {
	if m == nil {
		m = matcher.NewIdentity()
	}
	if workers < 1 {
		workers = 1
	}
	return &Builder{matcher: m, workers: workers, logger: logger}
}

// Build returns the match-weight tables for a graph pair. index1 and index2
// map each side's variables to dense indices in [0, v).
func (b *Builder) Build(ctx context.Context, triples1, triples2 models.Graph, index1, index2 map[string]int, v int) (*Problem, error) {
	for name, i := range index1 {
		if i < 0 || i >= v {
			return nil, fmt.Errorf("index of G1 variable %q out of range [0, %d): %d", name, v, i)
		}
	}
	for name, i := range index2 {
		if i < 0 || i >= v {
			return nil, fmt.Errorf("index of G2 variable %q out of range [0, %d): %d", name, v, i)
		}
	}

	pendant1, edges1 := split(triples1, index1)
	pendant2, edges2 := split(triples2, index2)

	chunks := b.chunks(len(pendant1), len(edges1))
	partials := make([]*Problem, chunks)

	g, gctx := errgroup.WithContext(ctx)
	for c := 0; c < chunks; c++ {
		c := c
		g.Go(func() error {
			part := NewProblem(v)
			lo, hi := bounds(len(pendant1), chunks, c)
			for _, t1 := range pendant1[lo:hi] {
				if err := gctx.Err(); err != nil {
					return err
				}
				b.addUnary(part.Unary, t1, pendant2, index1, index2)
			}
			lo, hi = bounds(len(edges1), chunks, c)
			for _, t1 := range edges1[lo:hi] {
				if err := gctx.Err(); err != nil {
					return err
				}
				b.addBinary(part.Binary, t1, edges2, index1, index2)
			}
			partials[c] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building match tables: %w", err)
	}

	problem := partials[0]
	for _, part := range partials[1:] {
		problem.merge(part)
	}

	b.logger.Debug().
		Int("v", v).
		Int("pendant_g1", len(pendant1)).
		Int("pendant_g2", len(pendant2)).
		Int("edges_g1", len(edges1)).
		Int("edges_g2", len(edges2)).
		Int("unary_cells", len(problem.Unary)).
		Int("binary_cells", problem.Binary.Cells()).
		Int("chunks", chunks).
		Msg("Match tables built")

	return problem, nil
}

// addUnary compares one pendant triple of G1 against all pendant triples of
// G2, with the variable endpoint replaced by a wildcard on both sides
func (b *Builder) addUnary(table Unary, t1 models.Triple, pendant2 []models.Triple, index1, index2 map[string]int) {
	i, srcVar := index1[t1.Source]
	j, tgtVar := index1[t1.Target]
	for _, t2 := range pendant2 {
		if i2, ok := index2[t2.Source]; ok {
			if !srcVar {
				continue
			}
			w := b.matcher.Match(
				models.NewTriple(matcher.WildcardSource, t1.Relation, t1.Target),
				models.NewTriple(matcher.WildcardSource, t2.Relation, t2.Target),
			)
			if w > 0 {
				table.Add(i, i2, w)
			}
			continue
		}
		if j2, ok := index2[t2.Target]; ok && tgtVar {
			w := b.matcher.Match(
				models.NewTriple(t1.Source, t1.Relation, matcher.WildcardTarget),
				models.NewTriple(t2.Source, t2.Relation, matcher.WildcardTarget),
			)
			if w > 0 {
				table.Add(j, j2, w)
			}
		}
	}
}

// addBinary compares the relation of one variable-to-variable triple of G1
// against all such triples of G2
func (b *Builder) addBinary(table Binary, t1 models.Triple, edges2 []models.Triple, index1, index2 map[string]int) {
	src := index1[t1.Source]
	tgt := index1[t1.Target]
	probe := models.NewTriple(matcher.WildcardSource, t1.Relation, matcher.WildcardTarget)
	for _, t2 := range edges2 {
		w := b.matcher.Match(probe, models.NewTriple(matcher.WildcardSource, t2.Relation, matcher.WildcardTarget))
		if w > 0 {
			table.AddSymmetric(
				Pair{I: src, J: index2[t2.Source]},
				Pair{I: tgt, J: index2[t2.Target]},
				w,
			)
		}
	}
}

// split separates pendant triples (exactly one endpoint is a variable) from
// variable-to-variable triples. Triples between two constants are dropped.
func split(triples models.Graph, index map[string]int) (pendant, edges []models.Triple) {
	for _, t := range triples {
		_, src := index[t.Source]
		_, tgt := index[t.Target]
		switch {
		case src && tgt:
			edges = append(edges, t)
		case src != tgt:
			pendant = append(pendant, t)
		}
	}
	return pendant, edges
}

func (b *Builder) chunks(n1, n2 int) int {
	n := n1
	if n2 > n {
		n = n2
	}
	chunks := n / minChunk
	if chunks > b.workers {
		chunks = b.workers
	}
	if chunks < 1 {
		chunks = 1
	}
	return chunks
}

func bounds(n, chunks, c int) (int, int) {
	return n * c / chunks, n * (c + 1) / chunks
}

func (p *Problem) merge(other *Problem) {
	for c, w := range other.Unary {
		p.Unary[c] += w
	}
	for a, row := range other.Binary {
		for c, w := range row {
			p.Binary.Add(a, c, w)
		}
	}
}
