package solver

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-match-service/pkg/weights"
)

const (
	staleLimit   = 50
	muDecay      = 1.8
	minStep      = 0.0005
	minGradNorm2 = 1e-6
)

// Relaxation bounds the problem from above with a Lagrangian relaxation of
// the symmetry y[i,j,k,l] == y[k,l,i,j] and from below with the candidates
// it produces, optionally polished by hill climbing.
type Relaxation struct {
	maxTime       time.Duration
	maxIterations int
	polish        bool
	climber       *HillClimber
	logger        zerolog.Logger
}

// NewRelaxation creates the Lagrangian solver
func NewRelaxation(opts Options, logger zerolog.Logger) *Relaxation {
	opts = opts.withDefaults()
	return &Relaxation{
		maxTime:       opts.RILPMaxTime,
		maxIterations: opts.RILPMaxIterations,
		polish:        opts.RILPPolish,
		climber:       NewHillClimber(opts, logger),
		logger:        logger.With().Str("solver", string(KindRILP)).Logger(),
	}
}

func (s *Relaxation) Name() Kind { return KindRILP }

// prices are the multipliers; prices[p][q] == -prices[q][p]
type prices map[weights.Pair]map[weights.Pair]float64

func (pr prices) get(p, q weights.Pair) float64 {
	if row, ok := pr[p]; ok {
		return row[q]
	}
	return 0
}

func (pr prices) add(p, q weights.Pair, d float64) {
	row, ok := pr[p]
	if !ok {
		row = make(map[weights.Pair]float64)
		pr[p] = row
	}
	row[q] += d
}

// Solve iterates subgradient steps until the bound gap drops below 1, the
// iteration cap is hit, or the time limit expires
func (s *Relaxation) Solve(ctx context.Context, problem *weights.Problem) (Result, error) {
	if err := validate(problem); err != nil {
		return Result{}, err
	}
	if problem.V == 0 {
		return Result{Alignment: []int{}}, nil
	}

	start := time.Now()
	deadline := start.Add(s.maxTime)
	lambda := make(prices)

	var best []int
	lower, simpleLower := 0.0, 0.0
	upper := Unbounded
	mu := 1.0
	lastReduce := -1
	iterations := 0

	for {
		candidate, relaxed, selected := s.relaxedSolve(problem, lambda)
		if relaxed < upper {
			upper = relaxed
			lastReduce = iterations
		}
		if iterations-lastReduce > staleLimit {
			mu /= muDecay
			lastReduce = iterations
		}

		step := math.Max(mu*(upper-lower), minStep)
		s.updatePrices(problem, lambda, selected, step)

		value := problem.Objective(candidate)
		if s.polish {
			if best == nil || value > simpleLower {
				simpleLower = math.Max(simpleLower, value)
				climbed := s.climber.Climb(ctx, problem, candidate)
				if best == nil || climbed.Score > lower {
					lower, best = climbed.Score, climbed.Alignment
				}
			}
		} else if best == nil || value > lower {
			lower, best = value, candidate
		}

		iterations++
		if iterations >= s.maxIterations || upper-lower < OptimalityGap ||
			time.Now().After(deadline) || ctx.Err() != nil {
			break
		}
	}

	s.logger.Debug().
		Int("iterations", iterations).
		Float64("lower_bound", lower).
		Float64("upper_bound", upper).
		Float64("mu", mu).
		Dur("elapsed", time.Since(start)).
		Msg("Lagrangian relaxation finished")

	return Result{
		Alignment:  best,
		LowerBound: lower,
		UpperBound: math.Max(upper, lower),
	}, nil
}

// relaxedSolve evaluates the dual function. Each pair (i,j) collects its
// unary weight plus the best matching of its priced binary cells, then an
// outer assignment over these profits yields the candidate. The optimum of
// the outer assignment bounds the problem from above.
func (s *Relaxation) relaxedSolve(problem *weights.Problem, lambda prices) ([]int, float64, map[weights.Pair][]weights.Pair) {
	v := problem.V
	profit := mat.NewDense(v, v, nil)
	inner := make(map[weights.Pair][]weights.Pair, len(problem.Binary))

	for p, row := range problem.Binary {
		value, chosen := innerMatching(p, row, lambda)
		profit.Set(p.I, p.J, profit.At(p.I, p.J)+value)
		inner[p] = chosen
	}
	for c, w := range problem.Unary {
		profit.Set(c.I, c.J, profit.At(c.I, c.J)+w)
	}

	assignment, total := MaxAssignment(profit)
	selected := make(map[weights.Pair][]weights.Pair)
	for i, j := range assignment {
		p := weights.Pair{I: i, J: j}
		if chosen, ok := inner[p]; ok && len(chosen) > 0 {
			selected[p] = chosen
		}
	}
	return assignment, total, selected
}

// innerMatching matches the cells (k,l) of pair p with positive priced
// weight. Cells sharing exactly one index with p cannot coexist with p.
func innerMatching(p weights.Pair, row map[weights.Pair]float64, lambda prices) (float64, []weights.Pair) {
	type cell struct {
		q weights.Pair
		w float64
	}
	cells := make([]cell, 0, len(row))
	for q, w := range row {
		if (q.I == p.I) != (q.J == p.J) {
			continue
		}
		if w += lambda.get(p, q); w > 0 {
			cells = append(cells, cell{q: q, w: w})
		}
	}
	if len(cells) == 0 {
		return 0, nil
	}
	sort.Slice(cells, func(a, b int) bool {
		if cells[a].q.I != cells[b].q.I {
			return cells[a].q.I < cells[b].q.I
		}
		return cells[a].q.J < cells[b].q.J
	})

	rowOf := make(map[int]int)
	colOf := make(map[int]int)
	var rowKeys, colKeys []int
	for _, c := range cells {
		if _, ok := rowOf[c.q.I]; !ok {
			rowOf[c.q.I] = len(rowKeys)
			rowKeys = append(rowKeys, c.q.I)
		}
		if _, ok := colOf[c.q.J]; !ok {
			colOf[c.q.J] = len(colKeys)
			colKeys = append(colKeys, c.q.J)
		}
	}
	reduced := mat.NewDense(len(rowKeys), len(colKeys), nil)
	for _, c := range cells {
		reduced.Set(rowOf[c.q.I], colOf[c.q.J], c.w)
	}

	assignment, total := MaxAssignment(reduced)
	var chosen []weights.Pair
	for r, c := range assignment {
		if c < 0 || reduced.At(r, c) <= 0 {
			continue
		}
		chosen = append(chosen, weights.Pair{I: rowKeys[r], J: colKeys[c]})
	}
	return total, chosen
}

// updatePrices takes a subgradient step against the asymmetry of the
// selected cells. Only cells whose reflection exists carry a price.
func (s *Relaxation) updatePrices(problem *weights.Problem, lambda prices, selected map[weights.Pair][]weights.Pair, step float64) {
	isSelected := func(p, q weights.Pair) bool {
		for _, c := range selected[p] {
			if c == q {
				return true
			}
		}
		return false
	}

	type grad struct {
		p, q weights.Pair
		g    float64
	}
	var grads []grad
	norm2 := 0.0
	for p := range selected {
		for _, q := range selected[p] {
			if _, ok := problem.Binary[q][p]; !ok || p == q {
				continue
			}
			if isSelected(q, p) {
				continue
			}
			// y[p,q] = 1 and y[q,p] = 0: gradient +1 on (p,q), -1 on (q,p)
			grads = append(grads, grad{p: p, q: q, g: 1})
			norm2 += 2
		}
	}
	if norm2 > minGradNorm2 {
		step /= norm2
	}
	for _, gr := range grads {
		lambda.add(gr.p, gr.q, -step*gr.g)
		lambda.add(gr.q, gr.p, step*gr.g)
	}
}
