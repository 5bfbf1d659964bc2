package solver

import (
	"context"

	"github.com/gilchrisn/graph-match-service/pkg/weights"
)

// Dummy aligns every index to itself. It serves as a baseline.
type Dummy struct{}

// NewDummy creates the baseline solver
func NewDummy() *Dummy { return &Dummy{} }

func (d *Dummy) Name() Kind { return KindDummy }

// Solve returns the identity alignment with bounds (0, Unbounded). The
// alignment is never evaluated, so unlike the other solvers the lower bound
// is not its objective.
func (d *Dummy) Solve(_ context.Context, problem *weights.Problem) (Result, error) {
	if err := validate(problem); err != nil {
		return Result{}, err
	}
	return Result{
		Alignment:  identity(problem.V),
		LowerBound: 0,
		UpperBound: Unbounded,
	}, nil
}
