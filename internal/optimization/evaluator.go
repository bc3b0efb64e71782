package optimization

import (
	"errors"
)

// Evaluator routes candidates through the feasibility gate and the objective
// and keeps the run's evaluation tallies. It is owned by a single run.
type Evaluator struct {
	objective   ObjectiveFunction
	bounds      []Bound
	constraints []Constraint

	evaluations int
	failures    int
}

// NewEvaluator creates an evaluator. Pass nil bounds when bounds are enforced
// structurally by the caller.
func NewEvaluator(objective ObjectiveFunction, bounds []Bound, constraints []Constraint) *Evaluator {
	return &Evaluator{
		objective:   objective,
		bounds:      bounds,
		constraints: constraints,
	}
}

// Evaluate gates x and, if feasible, evaluates the objective.
//
// The returned error is ErrInfeasible for rejected candidates (not counted),
// an *EvaluationError for failed evaluations (counted as an evaluation and an
// evaluation error), or an error wrapping ErrAbort, which callers must return.
func (e *Evaluator) Evaluate(x []float64) (float64, error) {
	if !CheckBounds(x, e.bounds) {
		return 0, ErrInfeasible
	}

	ok, err := CheckConstraints(x, e.constraints)
	if err != nil {
		return 0, e.fail(x, err)
	}
	if !ok {
		return 0, ErrInfeasible
	}

	value, err := e.objective(x)
	if err != nil {
		return 0, e.fail(x, err)
	}
	e.evaluations++
	return value, nil
}

func (e *Evaluator) fail(x []float64, err error) error {
	e.evaluations++
	if errors.Is(err, ErrAbort) {
		return err
	}
	e.failures++
	return &EvaluationError{
		Point: append([]float64(nil), x...),
		Err:   err,
	}
}

// Evaluations returns the number of attempted evaluations, failed ones included.
func (e *Evaluator) Evaluations() int {
	return e.evaluations
}

// Failures returns the number of evaluations that returned an error.
func (e *Evaluator) Failures() int {
	return e.failures
}

// IsFatal reports whether an error returned by Evaluate must end the run.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrInfeasible) && !IsEvaluationFailure(err)
}
