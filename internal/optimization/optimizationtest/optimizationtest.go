// Package optimizationtest provides objectives and result checks shared by
// the optimizer tests.
package optimizationtest

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/stochopt/internal/optimization"
)

// ErrBoom is returned by failing test objectives
var ErrBoom = errors.New("boom")

// Sphere is a simple quadratic objective with its minimum at the origin
func Sphere(x []float64) (float64, error) {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum, nil
}

// ShiftedSphere returns a quadratic with its minimum at center
func ShiftedSphere(center []float64) optimization.ObjectiveFunction {
	return func(x []float64) (float64, error) {
		sum := 0.0
		for i, v := range x {
			d := v - center[i]
			sum += d * d
		}
		return sum, nil
	}
}

// AlwaysFails is an objective that never returns a value
func AlwaysFails(x []float64) (float64, error) {
	return 0, ErrBoom
}

// Flaky fails the objective with probability p, using its own seeded stream.
func Flaky(objective optimization.ObjectiveFunction, p float64, seed uint64) optimization.ObjectiveFunction {
	rng := rand.New(rand.NewPCG(seed, seed))
	return func(x []float64) (float64, error) {
		if rng.Float64() < p {
			return 0, ErrBoom
		}
		return objective(x)
	}
}

// Never is a constraint that rejects every point
func Never(x []float64) (bool, error) {
	return false, nil
}

// Counting wraps an objective and counts its calls
type Counting struct {
	Objective optimization.ObjectiveFunction
	Calls     int
}

// Func returns the counting objective
func (c *Counting) Func() optimization.ObjectiveFunction {
	return func(x []float64) (float64, error) {
		c.Calls++
		return c.Objective(x)
	}
}

// RequireValidResult checks the invariants every run outcome must satisfy:
// history values are non-increasing, the last entry equals the result value,
// counters are consistent and history points are not aliased to the result.
func RequireValidResult(t *testing.T, result *optimization.OptimizationResult) {
	t.Helper()

	require.NotNil(t, result)
	require.NotNil(t, result.BestSolution)

	assert.GreaterOrEqual(t, result.Evaluations, len(result.History), "evaluations should cover history")
	assert.LessOrEqual(t, result.EvaluationErrors, result.Evaluations, "errors should not exceed evaluations")
	assert.NotEmpty(t, result.Message)

	prev := math.Inf(1)
	prevIter := 0
	for i, eval := range result.History {
		require.NotNil(t, eval.Solution, "history entry %d", i)
		assert.LessOrEqual(t, eval.Solution.Value, prev, "history must be non-increasing at %d", i)
		assert.GreaterOrEqual(t, eval.Iteration, prevIter, "history iterations must be ordered at %d", i)
		prev = eval.Solution.Value
		prevIter = eval.Iteration
	}

	if n := len(result.History); n > 0 {
		last := result.History[n-1].Solution
		assert.Equal(t, last.Value, result.BestSolution.Value, "last history value should equal result value")
		assert.Equal(t, last.Parameters, result.BestSolution.Parameters, "last history point should equal result point")
		if len(last.Parameters) > 0 {
			assert.NotSame(t, &last.Parameters[0], &result.BestSolution.Parameters[0], "result point must not alias history")
		}
	}
}
