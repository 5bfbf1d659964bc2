package solver

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gilchrisn/graph-match-service/pkg/weights"
)

// minGain is the smallest swap gain that counts as an improvement.
// Rounding noise below it would otherwise let graded weights cycle.
const minGain = 1e-9

// HillClimber searches for a good alignment with pairwise swaps from several
// random starting permutations. It proves no upper bound.
type HillClimber struct {
	restarts      int
	maxIterations int
	batch         bool
	parallel      bool
	seed          int64
	tracker       *SwapTracker
	logger        zerolog.Logger
}

// NewHillClimber creates a local search solver
func NewHillClimber(opts Options, logger zerolog.Logger) *HillClimber {
	opts = opts.withDefaults()
	return &HillClimber{
		restarts:      opts.Restarts,
		maxIterations: opts.MaxIterations,
		batch:         opts.BatchSwaps,
		parallel:      opts.ParallelRestarts,
		seed:          opts.Seed,
		tracker:       opts.Tracker,
		logger:        logger.With().Str("solver", string(KindHillClimber)).Logger(),
	}
}

func (h *HillClimber) Name() Kind { return KindHillClimber }

// ClimbResult describes one climb from a start alignment to a local optimum
type ClimbResult struct {
	Alignment  []int   `json:"alignment"`
	Score      float64 `json:"score"`
	Gain       float64 `json:"gain"`
	Iterations int     `json:"iterations"`
	Swaps      int     `json:"swaps"`
	Capped     bool    `json:"capped"`
}

// Solve climbs from every restart and keeps the best final alignment.
// Ties go to the lowest restart index.
func (h *HillClimber) Solve(ctx context.Context, problem *weights.Problem) (Result, error) {
	if err := validate(problem); err != nil {
		return Result{}, err
	}
	if problem.V == 0 {
		return Result{Alignment: []int{}, UpperBound: Unbounded}, nil
	}

	start := time.Now()
	climbs := make([]ClimbResult, h.restarts)
	run := func(r int) {
		rng := rand.New(rand.NewSource(h.seed + int64(r)))
		climbs[r] = h.climb(ctx, problem, rng.Perm(problem.V), r)
	}

	if h.parallel && h.restarts > 1 {
		var g errgroup.Group
		for r := 0; r < h.restarts; r++ {
			r := r
			g.Go(func() error {
				run(r)
				return nil
			})
		}
		g.Wait()
	} else {
		for r := 0; r < h.restarts; r++ {
			run(r)
		}
	}

	best := 0
	for r := 1; r < len(climbs); r++ {
		if climbs[r].Score > climbs[best].Score {
			best = r
		}
	}

	h.logger.Debug().
		Int("v", problem.V).
		Int("restarts", h.restarts).
		Int("best_restart", best).
		Float64("score", climbs[best].Score).
		Dur("elapsed", time.Since(start)).
		Msg("Hill climbing finished")

	return Result{
		Alignment:  climbs[best].Alignment,
		LowerBound: problem.Objective(climbs[best].Alignment),
		UpperBound: Unbounded,
	}, nil
}

// Climb runs a single climb phase from alignment, which is not modified.
// On a local optimum it returns the same alignment with zero gain.
func (h *HillClimber) Climb(ctx context.Context, problem *weights.Problem, alignment []int) ClimbResult {
	current := make([]int, len(alignment))
	copy(current, alignment)
	return h.climb(ctx, problem, current, -1)
}

type swap struct {
	i, k int
	gain float64
}

// climb improves current in place
func (h *HillClimber) climb(ctx context.Context, problem *weights.Problem, current []int, restart int) ClimbResult {
	initial := problem.Objective(current)
	score := initial
	nogain := make(map[[4]int]struct{})
	res := ClimbResult{}

	for {
		if ctx.Err() != nil {
			h.logger.Warn().Err(ctx.Err()).Int("restart", restart).Msg("Hill climbing interrupted")
			break
		}

		candidates := h.positiveSwaps(problem, current, nogain)
		if len(candidates) == 0 {
			break
		}
		if res.Iterations >= h.maxIterations {
			h.logger.Warn().
				Int("max_iterations", h.maxIterations).
				Int("restart", restart).
				Msg("Hill climbing stopped at iteration cap")
			res.Capped = true
			break
		}

		chosen := candidates[:1]
		if h.batch {
			chosen = selectBatch(problem, current, candidates)
		}

		for _, s := range chosen {
			j, l := current[s.i], current[s.k]
			current[s.i], current[s.k] = l, j
			score += s.gain
			res.Swaps++
			h.tracker.LogSwap(restart, res.Iterations, s.i, s.k, j, l, s.gain, score)
		}
		res.Iterations++
	}

	res.Alignment = current
	res.Score = problem.Objective(current)
	res.Gain = res.Score - initial
	return res
}

// positiveSwaps scans all index pairs k < i and returns every swap with
// positive gain, best first. Equal gains keep scan order.
func (h *HillClimber) positiveSwaps(problem *weights.Problem, current []int, nogain map[[4]int]struct{}) []swap {
	var out []swap
	for i := range current {
		j := current[i]
		for k := 0; k < i; k++ {
			l := current[k]
			key := [4]int{i, j, k, l}
			if _, ok := nogain[key]; ok {
				continue
			}
			il, kj := weights.Pair{I: i, J: l}, weights.Pair{I: k, J: j}
			_, uil := problem.Unary[il]
			_, ukj := problem.Unary[kj]
			if !uil && !ukj && len(problem.Binary[il]) == 0 && len(problem.Binary[kj]) == 0 {
				nogain[key] = struct{}{}
				continue
			}
			if g := swapGain(problem, current, i, k); g > minGain {
				out = append(out, swap{i: i, k: k, gain: g})
			}
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].gain > out[b].gain })
	return out
}

// swapGain is the exact objective change of reassigning i->l and k->j.
// Binary tables are symmetric, so cells to untouched indices count twice.
func swapGain(problem *weights.Problem, current []int, i, k int) float64 {
	j, l := current[i], current[k]
	ij, kl := weights.Pair{I: i, J: j}, weights.Pair{I: k, J: l}
	il, kj := weights.Pair{I: i, J: l}, weights.Pair{I: k, J: j}

	gain := problem.Unary[il] + problem.Unary[kj] - problem.Unary[ij] - problem.Unary[kl]

	others := func(c weights.Pair) float64 {
		sum := 0.0
		for q, w := range problem.Binary[c] {
			if q.I == i || q.I == k || q.I >= len(current) {
				continue
			}
			if current[q.I] == q.J {
				sum += w
			}
		}
		return sum
	}
	gain += 2 * (others(il) + others(kj) - others(ij) - others(kl))

	b := problem.Binary
	gain += b.Get(il, il) + b.Get(il, kj) + b.Get(kj, il) + b.Get(kj, kj)
	gain -= b.Get(ij, ij) + b.Get(ij, kl) + b.Get(kl, ij) + b.Get(kl, kl)
	return gain
}

// selectBatch greedily adds swaps, best first, that share no index and no
// binary cell with an already selected swap. Gains of such swaps add up.
func selectBatch(problem *weights.Problem, current []int, candidates []swap) []swap {
	chosen := []swap{candidates[0]}
	used := map[int]struct{}{candidates[0].i: {}, candidates[0].k: {}}
	for _, c := range candidates[1:] {
		if _, ok := used[c.i]; ok {
			continue
		}
		if _, ok := used[c.k]; ok {
			continue
		}
		conflict := false
		for _, s := range chosen {
			if linked(problem, swapPairs(current, c), swapPairs(current, s)) {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		chosen = append(chosen, c)
		used[c.i] = struct{}{}
		used[c.k] = struct{}{}
	}
	return chosen
}

// swapPairs lists the pairs a swap removes and creates
func swapPairs(current []int, s swap) [4]weights.Pair {
	j, l := current[s.i], current[s.k]
	return [4]weights.Pair{
		{I: s.i, J: j}, {I: s.k, J: l},
		{I: s.i, J: l}, {I: s.k, J: j},
	}
}

func linked(problem *weights.Problem, a, b [4]weights.Pair) bool {
	for _, p := range a {
		for _, q := range b {
			if problem.Binary.Get(p, q) > 0 || problem.Binary.Get(q, p) > 0 {
				return true
			}
		}
	}
	return false
}
