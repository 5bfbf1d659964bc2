// Package align maps the variables of one graph onto the variables of another
// so that as many triples as possible match.
package align

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-match-service/pkg/matcher"
	"github.com/gilchrisn/graph-match-service/pkg/models"
	"github.com/gilchrisn/graph-match-service/pkg/solver"
	"github.com/gilchrisn/graph-match-service/pkg/validation"
	"github.com/gilchrisn/graph-match-service/pkg/weights"
)

// Alignment is the outcome of aligning one graph pair
type Alignment struct {
	Mapping    []int   `json:"mapping"`
	Index      *Index  `json:"-"`
	Objective  float64 `json:"objective"`
	UpperBound float64 `json:"upper_bound"`
}

// VarPair is one aligned variable pair
type VarPair struct {
	G1 string `json:"g1"`
	G2 string `json:"g2"`
}

// Pairs lists the aligned variable pairs in G1 index order. Indices without a
// real variable on either side are skipped.
func (a Alignment) Pairs() []VarPair {
	if a.Index == nil {
		return nil
	}
	var out []VarPair
	for i, j := range a.Mapping {
		v1, ok1 := a.Index.Var(models.SideG1, i)
		v2, ok2 := a.Index.Var(models.SideG2, j)
		if ok1 && ok2 {
			out = append(out, VarPair{G1: v1.Name, G2: v2.Name})
		}
	}
	return out
}

// Counterparts maps each aligned G1 variable to its G2 variable
func (a Alignment) Counterparts() map[string]string {
	pairs := a.Pairs()
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p.G1] = p.G2
	}
	return out
}

// Interpretable annotates each aligned pair with its concepts, e.g. a_dog
func (a Alignment) Interpretable(triples1, triples2 models.Graph) []VarPair {
	c1 := triples1.VarConcepts()
	c2 := triples2.VarConcepts()
	pairs := a.Pairs()
	out := make([]VarPair, len(pairs))
	for n, p := range pairs {
		out[n] = VarPair{
			G1: fmt.Sprintf("%s_%s", p.G1, c1[p.G1]),
			G2: fmt.Sprintf("%s_%s", p.G2, c2[p.G2]),
		}
	}
	return out
}

// Aligner builds match tables for a graph pair and hands them to a solver
type Aligner struct {
	builder *weights.Builder
	solver  solver.Solver
	logger  zerolog.Logger
}

// NewAligner creates an aligner; workers parallelizes table building
func NewAligner(m matcher.TripleMatcher, s solver.Solver, workers int, logger zerolog.Logger) *Aligner {
	return &Aligner{
		builder: weights.NewBuilder(m, workers, logger),
		solver:  s,
		logger:  logger,
	}
}

// Solver returns the configured solver
func (a *Aligner) Solver() solver.Solver { return a.solver }

// Align finds a variable alignment for the pair. If either side has no
// variables the alignment is empty and both bounds are zero.
func (a *Aligner) Align(ctx context.Context, triples1, triples2 models.Graph, vars1, vars2 models.VarSet) (Alignment, error) {
	if err := validation.ValidatePair(triples1, triples2, vars1, vars2); err != nil {
		return Alignment{}, fmt.Errorf("invalid alignment input: %w", err)
	}

	index := NewIndex(vars1, vars2)
	if len(vars1) == 0 || len(vars2) == 0 {
		return Alignment{Mapping: []int{}, Index: index}, nil
	}

	start := time.Now()
	v := index.Size()
	problem, err := a.builder.Build(ctx, triples1, triples2,
		index.Positions(models.SideG1), index.Positions(models.SideG2), v)
	if err != nil {
		return Alignment{}, err
	}

	res, err := a.solver.Solve(ctx, problem)
	if err != nil {
		return Alignment{}, fmt.Errorf("%s solver failed: %w", a.solver.Name(), err)
	}

	alignment := Alignment{
		Mapping:    res.Alignment,
		Index:      index,
		Objective:  res.LowerBound,
		UpperBound: res.UpperBound,
	}

	if e := a.logger.Debug(); e.Enabled() {
		e.Int("vars1", len(vars1)).
			Int("vars2", len(vars2)).
			Float64("objective", res.LowerBound).
			Float64("upper_bound", res.UpperBound).
			Interface("mapping", alignment.Interpretable(triples1, triples2)).
			Dur("elapsed", time.Since(start)).
			Msg("Graph pair aligned")
	}

	return alignment, nil
}
