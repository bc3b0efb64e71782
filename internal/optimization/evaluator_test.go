package optimization

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluator(t *testing.T) {
	sum := func(x []float64) (float64, error) {
		return x[0] + x[1], nil
	}
	failing := func(x []float64) (float64, error) {
		return 0, errors.New("diverged")
	}
	aborting := func(x []float64) (float64, error) {
		return 0, fmt.Errorf("user stop: %w", ErrAbort)
	}
	positive := func(x []float64) (bool, error) { return x[0] > 0, nil }
	brokenConstraint := func(x []float64) (bool, error) { return false, errors.New("broken") }

	tests := []struct {
		name            string
		objective       ObjectiveFunction
		bounds          []Bound
		constraints     []Constraint
		x               []float64
		wantValue       float64
		wantErr         error
		wantEvalFailure bool
		wantFatal       bool
		wantEvaluations int
		wantFailures    int
	}{
		{
			name:            "feasible",
			objective:       sum,
			x:               []float64{1, 2},
			wantValue:       3,
			wantEvaluations: 1,
		},
		{
			name:      "out of bounds",
			objective: sum,
			bounds:    []Bound{{Min: 0, Max: 1}, {Min: 0, Max: 1}},
			x:         []float64{1, 2},
			wantErr:   ErrInfeasible,
		},
		{
			name:        "constraint rejects",
			objective:   sum,
			constraints: []Constraint{positive},
			x:           []float64{-1, 2},
			wantErr:     ErrInfeasible,
		},
		{
			name:            "objective fails",
			objective:       failing,
			x:               []float64{1, 2},
			wantEvalFailure: true,
			wantEvaluations: 1,
			wantFailures:    1,
		},
		{
			name:            "constraint fails",
			objective:       sum,
			constraints:     []Constraint{brokenConstraint},
			x:               []float64{1, 2},
			wantEvalFailure: true,
			wantEvaluations: 1,
			wantFailures:    1,
		},
		{
			name:            "objective aborts",
			objective:       aborting,
			x:               []float64{1, 2},
			wantErr:         ErrAbort,
			wantFatal:       true,
			wantEvaluations: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvaluator(tt.objective, tt.bounds, tt.constraints)
			value, err := e.Evaluate(tt.x)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantEvalFailure:
				require.Error(t, err)
				assert.True(t, IsEvaluationFailure(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantValue, value)
			}

			assert.Equal(t, tt.wantFatal, IsFatal(err))
			assert.Equal(t, tt.wantEvaluations, e.Evaluations())
			assert.Equal(t, tt.wantFailures, e.Failures())
		})
	}
}

func TestEvaluationErrorCopiesPoint(t *testing.T) {
	e := NewEvaluator(func(x []float64) (float64, error) {
		return 0, errors.New("nope")
	}, nil, nil)

	x := []float64{1, 2}
	_, err := e.Evaluate(x)
	require.Error(t, err)

	var ee *EvaluationError
	require.True(t, errors.As(err, &ee))
	x[0] = 42
	assert.Equal(t, []float64{1, 2}, ee.Point, "error should keep its own copy of the point")
	assert.Contains(t, ee.Error(), "nope")
}

func TestError(t *testing.T) {
	base := errors.New("root cause")

	err := WrapError(base, "search aborted").WithOperation("Optimize").WithComponent("pattern_search")
	assert.Equal(t, "pattern_search: Optimize: search aborted: root cause", err.Error())
	assert.ErrorIs(t, err, base)

	got, ok := IsOptimizationError(fmt.Errorf("outer: %w", err))
	require.True(t, ok)
	assert.Equal(t, "Optimize", got.Op)

	assert.Nil(t, WrapError(nil, "nothing"))
	assert.Equal(t, "plain", NewError("plain").Error())
	assert.ErrorIs(t, InvalidConfigf("walk", "bad %d", 1), ErrInvalidConfig)
}

func TestHistoryRecordCopies(t *testing.T) {
	h := NewHistory(2)
	x := []float64{1, 2}
	h.Record(1, x, 5)
	x[0] = 100

	require.Equal(t, 1, h.Len())
	assert.Equal(t, []float64{1, 2}, h.Entries()[0].Solution.Parameters)
	assert.Equal(t, 1, h.Entries()[0].Iteration)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "MinimumStepReached", MinimumStepReached.String())
	assert.Equal(t, "FailureBudgetExhausted", FailureBudgetExhausted.String())
	assert.Equal(t, "UnknownStatus", Status(99).String())
}

func TestNewSourceReproducible(t *testing.T) {
	a := NewSource(7)
	b := NewSource(7)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
}
