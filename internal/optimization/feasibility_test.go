package optimization

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundMapEndpointsExact(t *testing.T) {
	bounds := []Bound{
		{Min: -5, Max: 5},
		{Min: 0.1, Max: 0.3},
		{Min: -1e-9, Max: 7.77},
		{Min: 2, Max: 2},
	}

	for _, b := range bounds {
		assert.Equal(t, b.Min, b.Map(0), "Map(0) should be Min for %v", b)
		assert.Equal(t, b.Max, b.Map(1), "Map(1) should be Max for %v", b)
	}
}

func TestBoundValidate(t *testing.T) {
	tests := []struct {
		name    string
		bound   Bound
		wantErr bool
	}{
		{"valid", Bound{Min: -1, Max: 1}, false},
		{"degenerate", Bound{Min: 1, Max: 1}, false},
		{"reversed", Bound{Min: 1, Max: -1}, true},
		{"infinite", Bound{Min: math.Inf(-1), Max: 1}, true},
		{"nan", Bound{Min: 0, Max: math.NaN()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bound.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckBounds(t *testing.T) {
	bounds := []Bound{{Min: -1, Max: 1}, {Min: 0, Max: 2}}

	assert.True(t, CheckBounds([]float64{0, 1}, bounds))
	assert.True(t, CheckBounds([]float64{-1, 2}, bounds), "endpoints are inside")
	assert.False(t, CheckBounds([]float64{1.5, 1}, bounds))
	assert.False(t, CheckBounds([]float64{0}, bounds), "dimension mismatch is infeasible")
	assert.True(t, CheckBounds([]float64{100, -100}, nil), "no bounds accept everything")
}

func TestCheckConstraints(t *testing.T) {
	positive := func(x []float64) (bool, error) { return x[0] > 0, nil }
	broken := func(x []float64) (bool, error) { return false, errors.New("broken") }

	calls := 0
	counting := func(x []float64) (bool, error) {
		calls++
		return true, nil
	}

	ok, err := CheckConstraints([]float64{1}, []Constraint{positive, counting})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)

	ok, err = CheckConstraints([]float64{-1}, []Constraint{positive, counting})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, calls, "should stop at the first rejecting constraint")

	_, err = CheckConstraints([]float64{1}, []Constraint{broken})
	assert.Error(t, err)

	ok, err = Feasible([]float64{5}, []Bound{{Min: 0, Max: 1}}, []Constraint{positive})
	require.NoError(t, err)
	assert.False(t, ok, "bounds are checked before constraints")
}

func TestProblemValidate(t *testing.T) {
	objective := func(x []float64) (float64, error) { return 0, nil }

	tests := []struct {
		name    string
		problem Problem
		wantErr error
	}{
		{
			name:    "valid",
			problem: Problem{Objective: objective, Initial: []float64{1, 2}},
		},
		{
			name:    "no objective",
			problem: Problem{Initial: []float64{1}},
			wantErr: ErrNoObjective,
		},
		{
			name:    "dimension mismatch",
			problem: Problem{Objective: objective, Initial: []float64{1, 2}, Bounds: []Bound{{Min: 0, Max: 1}}},
			wantErr: ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.problem.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	err := Problem{Objective: objective}.Validate()
	assert.Error(t, err, "zero dimensions")

	err = Problem{Objective: objective, Bounds: []Bound{{Min: 1, Max: 0}}}.Validate()
	assert.Error(t, err, "reversed bound")
}
