package optimization

import (
	"context"
)

// Optimizer defines the interface for derivative-free search algorithms
type Optimizer interface {
	// Optimize runs one search over the problem and returns its outcome.
	// A result with Success == false is a normal outcome; a non-nil error
	// means the run was aborted (observer failure, ErrAbort, cancellation).
	Optimize(ctx context.Context, problem Problem) (*OptimizationResult, error)

	// Name returns the algorithm identifier, e.g. "pattern" or "walk"
	Name() string
}

// Problem describes what to minimize. Extra arguments of the objective,
// constraints and observer are captured by closure.
type Problem struct {
	// Objective function to minimize
	Objective ObjectiveFunction

	// Initial point. Required by pattern search, optional for the walk.
	Initial []float64

	// Bounds for each dimension. Optional for pattern search, required for the walk.
	Bounds []Bound

	// Constraints that every evaluated point must satisfy
	Constraints []Constraint

	// Observer is called once per accepted improvement
	Observer Observer
}

// ObjectiveFunction defines the function to be minimized.
// Returning an error marks the evaluation as failed; the run continues
// unless the error wraps ErrAbort.
type ObjectiveFunction func([]float64) (float64, error)

// Constraint reports whether x is feasible.
type Constraint func(x []float64) (bool, error)

// Observer receives every accepted improvement. Its error aborts the run.
type Observer func(value float64, x []float64) error

// Solution represents a point in the search space and its objective value
type Solution struct {
	Parameters []float64
	Value      float64
}

// Evaluation is a history entry: an accepted solution and the evaluation
// count at which it was accepted.
type Evaluation struct {
	Iteration int
	Solution  *Solution
}

// Dim returns the dimension implied by the problem, preferring the initial
// point over the bounds.
func (p Problem) Dim() int {
	if len(p.Initial) > 0 {
		return len(p.Initial)
	}
	return len(p.Bounds)
}

// Validate checks the parts of the problem both variants rely on.
func (p Problem) Validate() error {
	if p.Objective == nil {
		return ErrNoObjective
	}
	if p.Dim() == 0 {
		return NewError("problem has zero dimensions").WithOperation("Problem.Validate")
	}
	if len(p.Initial) > 0 && len(p.Bounds) > 0 && len(p.Initial) != len(p.Bounds) {
		return WrapErrorf(ErrDimensionMismatch, "initial point has %d coordinates, bounds have %d",
			len(p.Initial), len(p.Bounds)).WithOperation("Problem.Validate")
	}
	for i, b := range p.Bounds {
		if err := b.Validate(); err != nil {
			return WrapErrorf(err, "bound %d", i).WithOperation("Problem.Validate")
		}
	}
	return nil
}
