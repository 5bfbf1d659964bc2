package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/gilchrisn/graph-match-service/pkg/weights"
)

// dogBarks is the problem of (a :instance dog) (b :instance bark) (b :arg0 a)
// against the same graph with renamed variables
func dogBarks() *weights.Problem {
	p := weights.NewProblem(2)
	p.Unary.Add(0, 0, 1)
	p.Unary.Add(1, 1, 1)
	p.Binary.AddSymmetric(weights.Pair{I: 1, J: 1}, weights.Pair{I: 0, J: 0}, 1)
	return p
}

// randomProblem creates symmetric tables with integer weights, self cells included
func randomProblem(rng *rand.Rand, v int) *weights.Problem {
	p := weights.NewProblem(v)
	for n := 0; n < v*2; n++ {
		p.Unary.Add(rng.Intn(v), rng.Intn(v), float64(1+rng.Intn(3)))
	}
	for n := 0; n < v*3; n++ {
		a := weights.Pair{I: rng.Intn(v), J: rng.Intn(v)}
		b := weights.Pair{I: rng.Intn(v), J: rng.Intn(v)}
		if rng.Intn(8) == 0 {
			b = a
		}
		p.Binary.AddSymmetric(a, b, float64(1+rng.Intn(2)))
	}
	return p
}

// bruteForce returns the best objective over all permutations
func bruteForce(p *weights.Problem) float64 {
	perm := identity(p.V)
	best := math.Inf(-1)
	var rec func(n int)
	rec = func(n int) {
		if n == len(perm) {
			best = math.Max(best, p.Objective(perm))
			return
		}
		for m := n; m < len(perm); m++ {
			perm[n], perm[m] = perm[m], perm[n]
			rec(n + 1)
			perm[n], perm[m] = perm[m], perm[n]
		}
	}
	rec(0)
	return best
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.ILPMaxTime = 20 * time.Second
	opts.RILPMaxTime = 5 * time.Second
	return opts
}

func allSolvers(t *testing.T) []Solver {
	t.Helper()
	var out []Solver
	for _, kind := range Kinds() {
		s, err := New(kind, testOptions(), zerolog.Nop())
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func assertValidAlignment(t *testing.T, alignment []int, v int) {
	t.Helper()
	require.Len(t, alignment, v)
	seen := make(map[int]bool)
	for _, j := range alignment {
		if j < 0 {
			continue
		}
		assert.Less(t, j, v)
		assert.False(t, seen[j], "column %d aligned twice", j)
		seen[j] = true
	}
}

func TestBoundOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 8; round++ {
		p := randomProblem(rng, 2+rng.Intn(4))
		for _, s := range allSolvers(t) {
			res, err := s.Solve(context.Background(), p)
			require.NoError(t, err, s.Name())
			assertValidAlignment(t, res.Alignment, p.V)

			objective := p.Objective(res.Alignment)
			assert.LessOrEqual(t, res.LowerBound, objective+1e-9, s.Name())
			assert.LessOrEqual(t, objective, res.UpperBound+1e-9, s.Name())
			if s.Name() != KindDummy {
				assert.InDelta(t, objective, res.LowerBound, 1e-9, s.Name())
			}
		}
	}
}

func TestUpperBoundsAreValid(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for round := 0; round < 10; round++ {
		p := randomProblem(rng, 2+rng.Intn(4))
		opt := bruteForce(p)
		for _, kind := range []Kind{KindILP, KindRILP} {
			s, err := New(kind, testOptions(), zerolog.Nop())
			require.NoError(t, err)
			res, err := s.Solve(context.Background(), p)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, res.UpperBound, opt-1e-6, "%s round %d", kind, round)
			assert.LessOrEqual(t, res.LowerBound, opt+1e-6, "%s round %d", kind, round)
		}
	}
}

func TestILPIsExact(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for round := 0; round < 10; round++ {
		p := randomProblem(rng, 2+rng.Intn(4))
		s := NewILP(testOptions(), nil, zerolog.Nop())
		res, err := s.Solve(context.Background(), p)
		require.NoError(t, err)
		assert.InDelta(t, bruteForce(p), res.LowerBound, 1e-6, "round %d", round)
		assert.True(t, res.Optimal(), "round %d gap %v", round, res.Gap())
	}
}

func TestDummyLowerBoundIsNotObjective(t *testing.T) {
	p := dogBarks()
	res, err := NewDummy().Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 3.0, p.Objective(res.Alignment))
	assert.Equal(t, 0.0, res.LowerBound)
	assert.False(t, res.Optimal())
}

func TestDogBarks(t *testing.T) {
	for _, s := range allSolvers(t) {
		res, err := s.Solve(context.Background(), dogBarks())
		require.NoError(t, err)
		if s.Name() == KindDummy {
			assert.Equal(t, []int{0, 1}, res.Alignment)
			assert.Equal(t, 0.0, res.LowerBound)
			assert.Equal(t, Unbounded, res.UpperBound)
			continue
		}
		assert.Equal(t, []int{0, 1}, res.Alignment, s.Name())
		assert.Equal(t, 3.0, res.LowerBound, s.Name())
	}
}

func TestEmptyProblem(t *testing.T) {
	for _, s := range allSolvers(t) {
		res, err := s.Solve(context.Background(), weights.NewProblem(0))
		require.NoError(t, err)
		assert.Empty(t, res.Alignment, s.Name())
		assert.Equal(t, 0.0, res.LowerBound, s.Name())
	}
}

func TestInvalidProblemIsRejected(t *testing.T) {
	p := weights.NewProblem(2)
	p.Unary.Add(0, 5, 1)
	for _, s := range allSolvers(t) {
		_, err := s.Solve(context.Background(), p)
		assert.Error(t, err, s.Name())
	}
}

func TestSolveDoesNotModifyProblem(t *testing.T) {
	p := randomProblem(rand.New(rand.NewSource(5)), 4)
	unary := len(p.Unary)
	cells := p.Binary.Cells()
	for _, s := range allSolvers(t) {
		_, err := s.Solve(context.Background(), p)
		require.NoError(t, err)
	}
	assert.Equal(t, unary, len(p.Unary))
	assert.Equal(t, cells, p.Binary.Cells())
}

func TestSwapGainIsExact(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	for round := 0; round < 30; round++ {
		p := randomProblem(rng, 3+rng.Intn(4))
		current := rng.Perm(p.V)
		before := p.Objective(current)
		for i := 0; i < p.V; i++ {
			for k := 0; k < i; k++ {
				gain := swapGain(p, current, i, k)
				swapped := append([]int(nil), current...)
				swapped[i], swapped[k] = swapped[k], swapped[i]
				assert.InDelta(t, p.Objective(swapped)-before, gain, 1e-9)
			}
		}
	}
}

func TestBatchGainsAreAdditive(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	h := NewHillClimber(DefaultOptions(), zerolog.Nop())
	for round := 0; round < 30; round++ {
		p := randomProblem(rng, 4+rng.Intn(5))
		current := rng.Perm(p.V)
		candidates := h.positiveSwaps(p, current, map[[4]int]struct{}{})
		if len(candidates) == 0 {
			continue
		}
		batch := selectBatch(p, current, candidates)
		assert.Equal(t, candidates[0], batch[0])

		before := p.Objective(current)
		sum := 0.0
		next := append([]int(nil), current...)
		for _, s := range batch {
			next[s.i], next[s.k] = next[s.k], next[s.i]
			sum += s.gain
		}
		assert.InDelta(t, before+sum, p.Objective(next), 1e-9)
	}
}

func TestClimbIsIdempotentAtLocalOptimum(t *testing.T) {
	rng := rand.New(rand.NewSource(19))
	h := NewHillClimber(DefaultOptions(), zerolog.Nop())
	for round := 0; round < 10; round++ {
		p := randomProblem(rng, 3+rng.Intn(5))
		first := h.Climb(context.Background(), p, rng.Perm(p.V))
		again := h.Climb(context.Background(), p, first.Alignment)
		assert.Equal(t, first.Alignment, again.Alignment)
		assert.Equal(t, 0.0, again.Gain)
		assert.Equal(t, 0, again.Swaps)
	}
}

func TestClimbDoesNotModifyStart(t *testing.T) {
	h := NewHillClimber(DefaultOptions(), zerolog.Nop())
	start := []int{1, 0}
	res := h.Climb(context.Background(), dogBarks(), start)
	assert.Equal(t, []int{1, 0}, start)
	assert.Equal(t, []int{0, 1}, res.Alignment)
	assert.Equal(t, 3.0, res.Gain)
}

func TestClimbIterationCap(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxIterations = 1
	opts.BatchSwaps = false
	h := NewHillClimber(opts, zerolog.Nop())

	p := weights.NewProblem(3)
	p.Unary.Add(0, 0, 1)
	p.Unary.Add(1, 1, 2)
	p.Unary.Add(2, 2, 3)
	res := h.Climb(context.Background(), p, []int{2, 0, 1})
	assert.True(t, res.Capped)
	assert.Equal(t, 1, res.Iterations)
}

func TestParallelRestartsMatchSequential(t *testing.T) {
	p := randomProblem(rand.New(rand.NewSource(23)), 7)
	opts := DefaultOptions()
	opts.Restarts = 6
	seq, err := NewHillClimber(opts, zerolog.Nop()).Solve(context.Background(), p)
	require.NoError(t, err)
	opts.ParallelRestarts = true
	par, err := NewHillClimber(opts, zerolog.Nop()).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, seq, par)
}

func TestMaxAssignmentMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(29))
	for round := 0; round < 20; round++ {
		n := 1 + rng.Intn(5)
		m := mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				m.Set(i, j, float64(rng.Intn(10)))
			}
		}
		assignment, total := MaxAssignment(m)

		p := weights.NewProblem(n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				p.Unary.Add(i, j, m.At(i, j))
			}
		}
		assert.InDelta(t, bruteForce(p), total, 1e-9)
		assert.InDelta(t, p.Objective(assignment), total, 1e-9)
	}
}

func TestMaxAssignmentRectangular(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{
		1, 5, 0,
		4, 6, 0,
	})
	assignment, total := MaxAssignment(m)
	assert.Equal(t, []int{1, 0}, assignment)
	assert.Equal(t, 9.0, total)

	tall := mat.NewDense(3, 1, []float64{1, 7, 2})
	assignment, total = MaxAssignment(tall)
	assert.Equal(t, []int{-1, 0, -1}, assignment)
	assert.Equal(t, 7.0, total)

	assignment, total = MaxAssignment(&mat.Dense{})
	assert.Empty(t, assignment)
	assert.Equal(t, 0.0, total)
}

func TestILPShortTimeLimit(t *testing.T) {
	opts := testOptions()
	opts.ILPMaxTime = time.Nanosecond
	s, err := New(KindILP, opts, zerolog.Nop())
	require.NoError(t, err)

	res, err := s.Solve(context.Background(), dogBarks())
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.LowerBound)
	assert.GreaterOrEqual(t, res.UpperBound, 3.0)
	assert.Less(t, res.UpperBound, Unbounded)
}

func TestBranchAndBoundTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := newILPModel(dogBarks()).branchAndBound(ctx, zerolog.Nop())
	assert.True(t, out.timedOut)
	assert.Nil(t, out.incumbent)
	assert.True(t, math.IsInf(out.upper, 1))
	assert.Equal(t, 3.0, rowBound(dogBarks()))
}

func TestBranchAndBoundAbandonsSlowRelaxation(t *testing.T) {
	model := newILPModel(dogBarks())
	release := make(chan struct{})
	defer close(release)
	model.solve = func(map[int]float64) (float64, []float64, error) {
		<-release
		return 0, nil, lp.ErrInfeasible
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	out := model.branchAndBound(ctx, zerolog.Nop())

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, out.timedOut)
	assert.Equal(t, 1, out.nodes)
	assert.Nil(t, out.incumbent)
	assert.True(t, math.IsInf(out.upper, 1))
}

// denseProblem gives every pair of the same class a unary weight and joins
// many of them with binary weights, so each relaxation is a large dense LP.
func denseProblem(rng *rand.Rand, v int) *weights.Problem {
	p := weights.NewProblem(v)
	var pairs []weights.Pair
	for i := 0; i < v; i++ {
		for j := 0; j < v; j++ {
			if i%3 == j%3 {
				pairs = append(pairs, weights.Pair{I: i, J: j})
				p.Unary.Add(i, j, float64(1+rng.Intn(3)))
			}
		}
	}
	for n := 0; n < v*30; n++ {
		a, b := pairs[rng.Intn(len(pairs))], pairs[rng.Intn(len(pairs))]
		p.Binary.AddSymmetric(a, b, float64(1+rng.Intn(2)))
	}
	return p
}

func TestILPTimeLimitOnLargeModel(t *testing.T) {
	if testing.Short() {
		t.Skip("solves a dense LP")
	}
	problem := denseProblem(rand.New(rand.NewSource(3)), 20)
	opts := testOptions()
	opts.ILPMaxTime = 300 * time.Millisecond
	s, err := New(KindILP, opts, zerolog.Nop())
	require.NoError(t, err)

	start := time.Now()
	res, err := s.Solve(context.Background(), problem)
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Less(t, elapsed, opts.ILPMaxTime+5*time.Second)
	assertValidAlignment(t, res.Alignment, problem.V)
	assert.InDelta(t, problem.Objective(res.Alignment), res.LowerBound, 1e-9)
	assert.GreaterOrEqual(t, res.UpperBound, res.LowerBound)
}

func TestILPWithoutBackupOnTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewILP(testOptions(), nil, zerolog.Nop()).Solve(ctx, dogBarks())
	require.NoError(t, err)
	assert.Equal(t, []int{-1, -1}, res.Alignment)
	assert.Equal(t, 0.0, res.LowerBound)
	assert.Equal(t, 3.0, res.UpperBound)
}

func TestRegistry(t *testing.T) {
	for _, kind := range Kinds() {
		s, err := New(kind, Options{}, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, kind, s.Name())
	}

	_, err := New("simulated-annealing", Options{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnknownKind)

	opts := DefaultOptions()
	opts.ILPBackup = KindILP
	_, err = New(KindILP, opts, zerolog.Nop())
	assert.Error(t, err)

	opts.ILPBackup = "nope"
	_, err = New(KindILP, opts, zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestResultOptimal(t *testing.T) {
	assert.True(t, Result{LowerBound: 3, UpperBound: 4}.Optimal())
	assert.False(t, Result{LowerBound: 3, UpperBound: 4.5}.Optimal())
	assert.False(t, Result{UpperBound: Unbounded}.Optimal())
}

func TestSwapTracker(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Restarts = 1
	opts.Tracker = NewSwapTracker(&buf)
	h := NewHillClimber(opts, zerolog.Nop())

	res := h.Climb(context.Background(), dogBarks(), []int{1, 0})
	require.Equal(t, 1, res.Swaps)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var ev SwapEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev))
	assert.Equal(t, -1, ev.Restart)
	assert.Equal(t, 1, ev.I)
	assert.Equal(t, 0, ev.K)
	assert.Equal(t, 3.0, ev.Gain)
	assert.Equal(t, 3.0, ev.Score)

	var nilTracker *SwapTracker
	nilTracker.LogSwap(0, 0, 0, 0, 0, 0, 0, 0)
	assert.NoError(t, nilTracker.Close())
}
