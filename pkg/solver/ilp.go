package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/gilchrisn/graph-match-service/pkg/weights"
)

const (
	// maxLPEntries caps the dense constraint matrix handed to the simplex
	maxLPEntries = 8_000_000
	pruneTol     = 1e-6
	fracTol      = 1e-6
	simplexTol   = 1e-10
)

// ILP solves the alignment problem as a 0/1 integer program by branch and
// bound over LP relaxations. Variables are created only for pairs that carry
// weight. The time limit is checked between LP solves.
type ILP struct {
	maxTime time.Duration
	backup  Solver
	logger  zerolog.Logger
}

// NewILP creates an exact solver. backup may be nil.
func NewILP(opts Options, backup Solver, logger zerolog.Logger) *ILP {
	opts = opts.withDefaults()
	return &ILP{
		maxTime: opts.ILPMaxTime,
		backup:  backup,
		logger:  logger.With().Str("solver", string(KindILP)).Logger(),
	}
}

func (s *ILP) Name() Kind { return KindILP }

// Solve returns the best incumbent and the best proven bound. If the time
// limit is hit before any incumbent exists, the backup solver supplies the
// alignment and the relaxation keeps providing the upper bound.
func (s *ILP) Solve(ctx context.Context, problem *weights.Problem) (Result, error) {
	if err := validate(problem); err != nil {
		return Result{}, err
	}
	unmatched := make([]int, problem.V)
	for i := range unmatched {
		unmatched[i] = -1
	}

	model := newILPModel(problem)
	if len(model.pairs) == 0 {
		return Result{Alignment: unmatched, LowerBound: 0, UpperBound: 0}, nil
	}

	start := time.Now()
	searchCtx, cancel := context.WithTimeout(ctx, s.maxTime)
	defer cancel()

	out := model.branchAndBound(searchCtx, s.logger)
	upper := math.Min(out.upper, rowBound(problem))

	s.logger.Debug().
		Int("x_vars", len(model.pairs)).
		Int("y_vars", len(model.edges)).
		Int("nodes", out.nodes).
		Bool("timed_out", out.timedOut).
		Float64("incumbent", out.value).
		Float64("upper_bound", upper).
		Dur("elapsed", time.Since(start)).
		Msg("Branch and bound finished")

	if out.timedOut {
		s.logger.Warn().
			Dur("max_time", s.maxTime).
			Bool("has_incumbent", out.incumbent != nil).
			Msg("ILP time limit reached, alignment may be suboptimal")
	}

	result := Result{Alignment: unmatched, LowerBound: 0, UpperBound: upper}
	if out.incumbent != nil {
		result.Alignment = out.incumbent
		result.LowerBound = problem.Objective(out.incumbent)
	}

	if s.backup != nil && (out.incumbent == nil || upper-result.LowerBound > OptimalityGap) {
		if out.incumbent == nil {
			s.logger.Warn().Str("backup", string(s.backup.Name())).Msg("No ILP incumbent, using backup solver")
		}
		fallback, err := s.backup.Solve(ctx, problem)
		if err != nil {
			return Result{}, fmt.Errorf("ilp backup solver: %w", err)
		}
		if out.incumbent == nil || fallback.LowerBound > result.LowerBound {
			result.Alignment = fallback.Alignment
			result.LowerBound = fallback.LowerBound
		}
	}

	result.UpperBound = math.Max(result.UpperBound, result.LowerBound)
	return result, nil
}

type ilpEdge struct {
	p, q int // x columns
	w    float64
}

type lpTerm struct {
	col  int
	coef float64
}

// ilpModel is the relaxation in standard form: inequality rows get one
// slack column each, branching decisions are added as equality rows.
type ilpModel struct {
	problem *weights.Problem
	pairs   []weights.Pair
	edges   []ilpEdge
	rows    [][]lpTerm
	rhs     []float64

	// solve computes one relaxation; relax unless a test swaps it
	solve func(fixed map[int]float64) (float64, []float64, error)
}

func newILPModel(problem *weights.Problem) *ilpModel {
	m := &ilpModel{problem: problem, pairs: problem.RelevantPairs()}
	index := make(map[weights.Pair]int, len(m.pairs))
	for x, p := range m.pairs {
		index[p] = x
	}

	// y[p,q] and y[q,p] share constraints, so one column carries both weights
	edgeIndex := make(map[[2]int]int)
	for _, p := range m.pairs {
		row := problem.Binary[p]
		qs := make([]weights.Pair, 0, len(row))
		for q, w := range row {
			if w > 0 {
				qs = append(qs, q)
			}
		}
		sort.Slice(qs, func(a, b int) bool {
			if qs[a].I != qs[b].I {
				return qs[a].I < qs[b].I
			}
			return qs[a].J < qs[b].J
		})
		for _, q := range qs {
			a, b := index[p], index[q]
			if a > b {
				a, b = b, a
			}
			key := [2]int{a, b}
			if e, ok := edgeIndex[key]; ok {
				m.edges[e].w += row[q]
				continue
			}
			edgeIndex[key] = len(m.edges)
			m.edges = append(m.edges, ilpEdge{p: a, q: b, w: row[q]})
		}
	}

	byRow := make(map[int][]lpTerm)
	byCol := make(map[int][]lpTerm)
	for x, p := range m.pairs {
		byRow[p.I] = append(byRow[p.I], lpTerm{col: x, coef: 1})
		byCol[p.J] = append(byCol[p.J], lpTerm{col: x, coef: 1})
	}
	for _, group := range []map[int][]lpTerm{byRow, byCol} {
		keys := make([]int, 0, len(group))
		for k := range group {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		for _, k := range keys {
			m.rows = append(m.rows, group[k])
			m.rhs = append(m.rhs, 1)
		}
	}

	nx := len(m.pairs)
	for e, edge := range m.edges {
		y := nx + e
		m.rows = append(m.rows, []lpTerm{{col: y, coef: 1}, {col: edge.p, coef: -1}})
		m.rhs = append(m.rhs, 0)
		if edge.q != edge.p {
			m.rows = append(m.rows, []lpTerm{{col: y, coef: 1}, {col: edge.q, coef: -1}})
			m.rhs = append(m.rhs, 0)
		}
	}
	m.solve = m.relax
	return m
}

var errLPTooLarge = errors.New("relaxation too large for dense simplex")

// relax solves the LP relaxation with the given x columns fixed and returns
// its optimal value and the x part of the solution
func (m *ilpModel) relax(fixed map[int]float64) (float64, []float64, error) {
	nx, ny, nr := len(m.pairs), len(m.edges), len(m.rows)
	rows := nr + len(fixed)
	cols := nx + ny + nr
	if rows*cols > maxLPEntries {
		return 0, nil, errLPTooLarge
	}

	c := make([]float64, cols)
	for x, p := range m.pairs {
		c[x] = -m.problem.Unary[p]
	}
	for e, edge := range m.edges {
		c[nx+e] = -edge.w
	}

	A := mat.NewDense(rows, cols, nil)
	b := make([]float64, rows)
	for r, terms := range m.rows {
		for _, t := range terms {
			A.Set(r, t.col, t.coef)
		}
		A.Set(r, nx+ny+r, 1)
		b[r] = m.rhs[r]
	}

	fixedCols := make([]int, 0, len(fixed))
	for x := range fixed {
		fixedCols = append(fixedCols, x)
	}
	sort.Ints(fixedCols)
	for n, x := range fixedCols {
		A.Set(nr+n, x, 1)
		b[nr+n] = fixed[x]
	}

	var basic []int
	if len(fixed) == 0 {
		basic = make([]int, nr)
		for r := range basic {
			basic[r] = nx + ny + r
		}
	}

	optF, optX, err := lp.Simplex(c, A, b, simplexTol, basic)
	if err != nil {
		return 0, nil, err
	}
	return -optF, optX[:nx], nil
}

// round greedily picks pairs by descending LP value while keeping rows and
// columns exclusive. Rows without a pair stay -1.
func (m *ilpModel) round(x []float64) []int {
	order := make([]int, len(x))
	for n := range order {
		order[n] = n
	}
	sort.SliceStable(order, func(a, b int) bool { return x[order[a]] > x[order[b]] })

	alignment := make([]int, m.problem.V)
	for i := range alignment {
		alignment[i] = -1
	}
	takenCol := make(map[int]bool)
	for _, n := range order {
		p := m.pairs[n]
		if alignment[p.I] >= 0 || takenCol[p.J] {
			continue
		}
		alignment[p.I] = p.J
		takenCol[p.J] = true
	}
	return alignment
}

// fractional returns the x column closest to 0.5, -1 if x is integral
func fractional(x []float64) int {
	best, bestDist := -1, 1.0
	for n, v := range x {
		frac := v - math.Floor(v)
		if frac < fracTol || frac > 1-fracTol {
			continue
		}
		if d := math.Abs(v - 0.5); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}

type bbNode struct {
	fixed map[int]float64
	bound float64
}

type bbOutcome struct {
	incumbent []int
	value     float64
	upper     float64
	nodes     int
	timedOut  bool
}

type lpOutcome struct {
	value float64
	x     []float64
	err   error
}

// relaxWithin runs one relaxation but returns ctx's error as soon as ctx is
// done. A dense simplex cannot be interrupted, so an abandoned solve finishes
// in the background and its result is dropped.
func (m *ilpModel) relaxWithin(ctx context.Context, fixed map[int]float64) (float64, []float64, error) {
	done := make(chan lpOutcome, 1)
	go func() {
		value, x, err := m.solve(fixed)
		done <- lpOutcome{value: value, x: x, err: err}
	}()
	select {
	case r := <-done:
		return r.value, r.x, r.err
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (m *ilpModel) branchAndBound(ctx context.Context, logger zerolog.Logger) bbOutcome {
	out := bbOutcome{value: math.Inf(-1)}
	abandoned := math.Inf(-1)
	stack := []bbNode{{fixed: map[int]float64{}, bound: math.Inf(1)}}

	for len(stack) > 0 {
		if ctx.Err() != nil {
			out.timedOut = true
			break
		}
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node.bound <= out.value+pruneTol {
			continue
		}

		out.nodes++
		value, x, err := m.relaxWithin(ctx, node.fixed)
		if err != nil {
			if ctx.Err() != nil {
				// unsolved node keeps its parent bound
				stack = append(stack, node)
				out.timedOut = true
				break
			}
			if errors.Is(err, lp.ErrInfeasible) {
				continue
			}
			logger.Debug().Err(err).Int("fixed", len(node.fixed)).Msg("LP relaxation failed, keeping parent bound")
			abandoned = math.Max(abandoned, node.bound)
			continue
		}

		candidate := m.round(x)
		if v := m.problem.Objective(candidate); v > out.value {
			out.incumbent, out.value = candidate, v
		}
		if value <= out.value+pruneTol {
			continue
		}

		branch := fractional(x)
		if branch < 0 {
			// integral x already scored through rounding
			continue
		}
		down := cloneFixed(node.fixed)
		down[branch] = 0
		up := cloneFixed(node.fixed)
		up[branch] = 1
		stack = append(stack, bbNode{fixed: down, bound: value}, bbNode{fixed: up, bound: value})
	}

	out.upper = math.Max(out.value, abandoned)
	if out.timedOut {
		for _, node := range stack {
			out.upper = math.Max(out.upper, node.bound)
		}
	}
	if out.incumbent == nil {
		out.value = 0
	}
	return out
}

func cloneFixed(fixed map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(fixed)+1)
	for k, v := range fixed {
		out[k] = v
	}
	return out
}
