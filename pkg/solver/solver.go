// Package solver finds variable alignments that maximize the total match
// weight of a weights.Problem, together with lower and upper bounds on the
// optimum.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-match-service/pkg/config"
	"github.com/gilchrisn/graph-match-service/pkg/weights"
)

// Unbounded is the upper bound reported when no bound has been proven
const Unbounded = 10_000_000.0

// OptimalityGap is the largest bound gap still reported as optimal
const OptimalityGap = 1.0

// ErrUnknownKind is returned by New for an unregistered solver name
var ErrUnknownKind = errors.New("unknown solver")

// Result is a feasible alignment plus bounds on the optimum.
// Alignment[i] is the G2 index aligned to G1 index i, -1 if unmatched.
type Result struct {
	Alignment  []int   `json:"alignment"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
}

// Gap between the bounds
func (r Result) Gap() float64 {
	return r.UpperBound - r.LowerBound
}

// Optimal reports whether the alignment is proven optimal up to OptimalityGap
func (r Result) Optimal() bool {
	return r.Gap() <= OptimalityGap
}

// Solver computes an alignment for a problem. Implementations never modify
// the problem and return a freshly allocated alignment.
type Solver interface {
	Name() Kind
	Solve(ctx context.Context, problem *weights.Problem) (Result, error)
}

// Kind names a solver implementation
type Kind string

const (
	KindHillClimber Kind = "hillclimber"
	KindILP         Kind = "ilp"
	KindDummy       Kind = "dummy"
	KindRILP        Kind = "rilp"
)

// Kinds lists the registered solvers in a stable order
func Kinds() []Kind {
	kinds := []Kind{KindHillClimber, KindILP, KindDummy, KindRILP}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Options carries the construction parameters of all solvers
type Options struct {
	Restarts         int
	MaxIterations    int
	BatchSwaps       bool
	ParallelRestarts bool
	Seed             int64

	ILPMaxTime time.Duration
	ILPBackup  Kind // empty disables the backup solver

	RILPMaxTime       time.Duration
	RILPMaxIterations int
	RILPPolish        bool

	Tracker *SwapTracker
}

// DefaultOptions returns the documented defaults
func DefaultOptions() Options {
	return Options{
		Restarts:          4,
		MaxIterations:     1000,
		BatchSwaps:        true,
		Seed:              42,
		ILPMaxTime:        240 * time.Second,
		ILPBackup:         KindHillClimber,
		RILPMaxTime:       15 * time.Second,
		RILPMaxIterations: 250,
		RILPPolish:        true,
	}
}

// OptionsFromConfig reads the solver.* keys
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Restarts:          cfg.Restarts(),
		MaxIterations:     cfg.MaxIterations(),
		BatchSwaps:        cfg.BatchSwaps(),
		ParallelRestarts:  cfg.ParallelRestarts(),
		Seed:              cfg.RandomSeed(),
		ILPMaxTime:        time.Duration(cfg.ILPMaxSeconds()) * time.Second,
		ILPBackup:         Kind(cfg.ILPBackup()),
		RILPMaxTime:       time.Duration(cfg.RILPMaxSeconds()) * time.Second,
		RILPMaxIterations: cfg.RILPMaxIterations(),
		RILPPolish:        cfg.RILPPolish(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Restarts <= 0 {
		o.Restarts = d.Restarts
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.ILPMaxTime <= 0 {
		o.ILPMaxTime = d.ILPMaxTime
	}
	if o.RILPMaxTime <= 0 {
		o.RILPMaxTime = d.RILPMaxTime
	}
	if o.RILPMaxIterations <= 0 {
		o.RILPMaxIterations = d.RILPMaxIterations
	}
	return o
}

// New returns the solver registered under kind
func New(kind Kind, opts Options, logger zerolog.Logger) (Solver, error) {
	opts = opts.withDefaults()
	switch kind {
	case KindHillClimber:
		return NewHillClimber(opts, logger), nil
	case KindDummy:
		return NewDummy(), nil
	case KindRILP:
		return NewRelaxation(opts, logger), nil
	case KindILP:
		var backup Solver
		if opts.ILPBackup != "" {
			if opts.ILPBackup == KindILP {
				return nil, fmt.Errorf("ilp cannot be its own backup solver")
			}
			b, err := New(opts.ILPBackup, opts, logger)
			if err != nil {
				return nil, fmt.Errorf("creating ilp backup solver: %w", err)
			}
			backup = b
		}
		return NewILP(opts, backup, logger), nil
	default:
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownKind, kind, Kinds())
	}
}

func validate(problem *weights.Problem) error {
	if err := problem.Validate(); err != nil {
		return fmt.Errorf("invalid alignment problem: %w", err)
	}
	return nil
}

// rowBound is a cheap valid upper bound: every aligned row collects at most
// its best unary weight plus all binary cells leaving that pair.
func rowBound(problem *weights.Problem) float64 {
	best := make(map[int]float64)
	consider := func(c weights.Pair) {
		w := problem.Unary[c]
		for _, bw := range problem.Binary[c] {
			w += bw
		}
		best[c.I] = math.Max(best[c.I], w)
	}
	for c := range problem.Unary {
		consider(c)
	}
	for c := range problem.Binary {
		consider(c)
	}
	total := 0.0
	for _, w := range best {
		total += w
	}
	return total
}

func identity(v int) []int {
	a := make([]int, v)
	for i := range a {
		a[i] = i
	}
	return a
}
