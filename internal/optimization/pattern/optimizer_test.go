package pattern

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/copyleftdev/stochopt/internal/optimization"
	"github.com/copyleftdev/stochopt/internal/optimization/optimizationtest"
	"github.com/copyleftdev/stochopt/internal/optimization/perturb"
)

func testConfig(seed int64) Config {
	return Config{
		MaxSuccessfulSteps: 50,
		MaxFailures:        5,
		InitialStep:        1,
		MinStep:            0.01,
		Expansion:          1.618,
		Contraction:        0.618,
		RandomSeed:         seed,
	}
}

func newTestOptimizer(t *testing.T, config Config) *Optimizer {
	t.Helper()
	opt, err := NewOptimizer(config)
	require.NoError(t, err)
	return opt
}

func TestOptimizeSphere(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			opt := newTestOptimizer(t, testConfig(seed))

			result, err := opt.Optimize(context.Background(), optimization.Problem{
				Objective: optimizationtest.Sphere,
				Initial:   []float64{3, -2},
			})
			require.NoError(t, err)
			optimizationtest.RequireValidResult(t, result)

			assert.True(t, result.Success, result.Message)
			assert.Equal(t, optimization.MinimumStepReached, result.Status)
			assert.Equal(t, Name, result.Algorithm)
			assert.Less(t, result.BestSolution.Value, 0.1)
			for _, v := range result.BestSolution.Parameters {
				assert.Less(t, math.Abs(v), 0.5)
			}

			require.NotEmpty(t, result.History)
			first := result.History[0]
			assert.Equal(t, 1, first.Iteration)
			assert.Equal(t, []float64{3, -2}, first.Solution.Parameters)
			assert.Equal(t, 13.0, first.Solution.Value)
			assert.Equal(t, len(result.History)-1, result.SuccessfulSteps)
			assert.Less(t, result.SuccessfulSteps, 50)
		})
	}
}

func TestOptimizeReproducible(t *testing.T) {
	problem := optimization.Problem{
		Objective: optimizationtest.ShiftedSphere([]float64{1, 2, 3}),
		Initial:   []float64{2, 1, 1},
	}

	first, err := newTestOptimizer(t, testConfig(7)).Optimize(context.Background(), problem)
	require.NoError(t, err)
	second, err := newTestOptimizer(t, testConfig(7)).Optimize(context.Background(), problem)
	require.NoError(t, err)

	assert.Equal(t, first.BestSolution, second.BestSolution)
	assert.Equal(t, first.Evaluations, second.Evaluations)
	assert.Equal(t, first.History, second.History)
}

func TestOptimizeAlwaysFailingObjective(t *testing.T) {
	opt := newTestOptimizer(t, testConfig(3))

	result, err := opt.Optimize(context.Background(), optimization.Problem{
		Objective: optimizationtest.AlwaysFails,
		Initial:   []float64{3, -2},
	})
	require.NoError(t, err)
	optimizationtest.RequireValidResult(t, result)

	assert.False(t, result.Success)
	assert.Empty(t, result.History)
	assert.True(t, math.IsInf(result.BestSolution.Value, 1))
	assert.Equal(t, []float64{3, -2}, result.BestSolution.Parameters)
	// one initial evaluation, then ten contracted rounds of five attempts
	assert.Equal(t, 51, result.Evaluations)
	assert.Equal(t, result.Evaluations, result.EvaluationErrors)
	assert.Equal(t, msgMinStepFailure, result.Message)
}

func TestOptimizeDropoutEverything(t *testing.T) {
	config := testConfig(3)
	config.Dropout = perturb.Dropout{Enabled: true, Rate: 1}
	opt := newTestOptimizer(t, config)

	result, err := opt.Optimize(context.Background(), optimization.Problem{
		Objective: optimizationtest.Sphere,
		Initial:   []float64{3, -2},
	})
	require.NoError(t, err)
	optimizationtest.RequireValidResult(t, result)

	assert.False(t, result.Success)
	assert.Equal(t, optimization.MinimumStepReached, result.Status)
	assert.Equal(t, 13.0, result.BestSolution.Value)
	assert.Equal(t, 51, result.Evaluations)
	assert.Zero(t, result.EvaluationErrors)
}

func TestOptimizeMinDeltaF(t *testing.T) {
	problem := optimization.Problem{
		Objective: optimizationtest.Sphere,
		Initial:   []float64{3, -2},
	}

	t.Run("small improvements are rejected", func(t *testing.T) {
		config := testConfig(4)
		config.MinDeltaF = 1
		result, err := newTestOptimizer(t, config).Optimize(context.Background(), problem)
		require.NoError(t, err)
		optimizationtest.RequireValidResult(t, result)

		for i := 1; i < len(result.History); i++ {
			prev := result.History[i-1].Solution.Value
			cur := result.History[i].Solution.Value
			assert.Greater(t, prev-cur, 1.0)
		}
	})

	t.Run("no improvement is large enough", func(t *testing.T) {
		config := testConfig(4)
		config.MinDeltaF = 100
		result, err := newTestOptimizer(t, config).Optimize(context.Background(), problem)
		require.NoError(t, err)
		optimizationtest.RequireValidResult(t, result)

		assert.False(t, result.Success)
		assert.Equal(t, msgMinStepFailure, result.Message)
		assert.Zero(t, result.SuccessfulSteps)
		assert.Len(t, result.History, 1)
		assert.Equal(t, 13.0, result.BestSolution.Value)
		assert.Equal(t, 51, result.Evaluations)
	})
}

func TestOptimizeInfeasibleStart(t *testing.T) {
	counting := &optimizationtest.Counting{Objective: optimizationtest.Sphere}
	opt := newTestOptimizer(t, testConfig(3))

	result, err := opt.Optimize(context.Background(), optimization.Problem{
		Objective:   counting.Func(),
		Initial:     []float64{3, -2},
		Constraints: []optimization.Constraint{optimizationtest.Never},
	})
	require.NoError(t, err)
	optimizationtest.RequireValidResult(t, result)

	assert.False(t, result.Success)
	assert.True(t, math.IsInf(result.BestSolution.Value, 1))
	assert.Zero(t, counting.Calls, "infeasible points must never reach the objective")
	assert.Zero(t, result.Evaluations)
}

func TestOptimizeRespectsBounds(t *testing.T) {
	bounds := []optimization.Bound{{Min: 0.5, Max: 4}, {Min: -3, Max: -0.5}}
	opt := newTestOptimizer(t, testConfig(11))

	var observed [][]float64
	result, err := opt.Optimize(context.Background(), optimization.Problem{
		Objective: optimizationtest.Sphere,
		Initial:   []float64{3, -2},
		Bounds:    bounds,
		Observer: func(value float64, x []float64) error {
			observed = append(observed, x)
			return nil
		},
	})
	require.NoError(t, err)
	optimizationtest.RequireValidResult(t, result)

	for _, eval := range result.History {
		assert.True(t, optimization.CheckBounds(eval.Solution.Parameters, bounds), "%v", eval.Solution.Parameters)
	}
	assert.Len(t, observed, result.SuccessfulSteps)
	assert.Equal(t, bounds, result.Bounds)
}

func TestOptimizeZeroCoordinateStaysFixed(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	config := testConfig(5)
	config.Logger = zap.New(core)
	opt := newTestOptimizer(t, config)

	result, err := opt.Optimize(context.Background(), optimization.Problem{
		Objective: optimizationtest.ShiftedSphere([]float64{1, 1}),
		Initial:   []float64{0, 3},
	})
	require.NoError(t, err)
	optimizationtest.RequireValidResult(t, result)

	for _, eval := range result.History {
		assert.Equal(t, 0.0, eval.Solution.Parameters[0])
	}
	assert.Equal(t, 1, logs.FilterMessage("initial coordinate is zero and will stay fixed").Len())
}

func TestOptimizeFlakyObjective(t *testing.T) {
	opt := newTestOptimizer(t, testConfig(13))

	result, err := opt.Optimize(context.Background(), optimization.Problem{
		Objective: optimizationtest.Flaky(optimizationtest.Sphere, 0.3, 99),
		Initial:   []float64{3, -2},
	})
	require.NoError(t, err)
	optimizationtest.RequireValidResult(t, result)

	assert.Positive(t, result.EvaluationErrors)
	assert.Less(t, result.EvaluationErrors, result.Evaluations)
}

func TestOptimizeSuccessBudget(t *testing.T) {
	config := testConfig(17)
	config.MaxSuccessfulSteps = 1
	config.MaxFailures = 50
	config.InitialStep = 0.5
	opt := newTestOptimizer(t, config)

	result, err := opt.Optimize(context.Background(), optimization.Problem{
		Objective: optimizationtest.Sphere,
		Initial:   []float64{3, -2},
	})
	require.NoError(t, err)
	optimizationtest.RequireValidResult(t, result)

	assert.False(t, result.Success)
	assert.Equal(t, optimization.SuccessBudgetExhausted, result.Status)
	assert.Equal(t, 1, result.SuccessfulSteps)
	assert.Less(t, result.BestSolution.Value, 13.0)
	assert.Equal(t, msgBudgetFailure, result.Message)
}

func TestOptimizeObserverErrorAborts(t *testing.T) {
	opt := newTestOptimizer(t, testConfig(3))

	result, err := opt.Optimize(context.Background(), optimization.Problem{
		Objective: optimizationtest.Sphere,
		Initial:   []float64{3, -2},
		Observer: func(value float64, x []float64) error {
			return optimizationtest.ErrBoom
		},
	})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, optimizationtest.ErrBoom)
}

func TestOptimizeObjectiveAbort(t *testing.T) {
	calls := 0
	objective := func(x []float64) (float64, error) {
		calls++
		if calls > 10 {
			return 0, fmt.Errorf("enough: %w", optimization.ErrAbort)
		}
		return optimizationtest.Sphere(x)
	}

	result, err := newTestOptimizer(t, testConfig(3)).Optimize(context.Background(), optimization.Problem{
		Objective: objective,
		Initial:   []float64{3, -2},
	})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, optimization.ErrAbort)
	assert.Equal(t, 11, calls)
}

func TestOptimizeCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestOptimizer(t, testConfig(3)).Optimize(ctx, optimization.Problem{
		Objective: optimizationtest.Sphere,
		Initial:   []float64{3, -2},
	})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptimizeInvalidProblem(t *testing.T) {
	opt := newTestOptimizer(t, testConfig(3))

	_, err := opt.Optimize(context.Background(), optimization.Problem{
		Objective: optimizationtest.Sphere,
		Bounds:    []optimization.Bound{{Min: -1, Max: 1}},
	})
	assert.Error(t, err, "initial point is required")

	_, err = opt.Optimize(context.Background(), optimization.Problem{Initial: []float64{1}})
	assert.ErrorIs(t, err, optimization.ErrNoObjective)

	_, err = opt.Optimize(context.Background(), optimization.Problem{
		Objective: optimizationtest.Sphere,
		Initial:   []float64{1, 2},
		Bounds:    []optimization.Bound{{Min: -1, Max: 1}},
	})
	assert.ErrorIs(t, err, optimization.ErrDimensionMismatch)
}

func TestNewOptimizerDefaults(t *testing.T) {
	opt := newTestOptimizer(t, Config{})
	config := opt.Config()
	def := DefaultConfig()

	assert.Equal(t, def.MaxSuccessfulSteps, config.MaxSuccessfulSteps)
	assert.Equal(t, def.MaxFailures, config.MaxFailures)
	assert.Equal(t, def.InitialStep, config.InitialStep)
	assert.Equal(t, def.MinStep, config.MinStep)
	assert.Equal(t, def.Expansion, config.Expansion)
	assert.Equal(t, def.Contraction, config.Contraction)
	assert.False(t, config.Dropout.Enabled)
	assert.NotNil(t, config.Logger)
	assert.Equal(t, Name, opt.Name())

	opt = newTestOptimizer(t, Config{Dropout: perturb.Dropout{Enabled: true}})
	assert.Equal(t, perturb.DefaultDropoutRate, opt.Config().Dropout.Rate)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative successes", func(c *Config) { c.MaxSuccessfulSteps = -1 }},
		{"negative failures", func(c *Config) { c.MaxFailures = -3 }},
		{"negative step", func(c *Config) { c.InitialStep = -1 }},
		{"negative min step", func(c *Config) { c.MinStep = -0.1 }},
		{"expansion not above one", func(c *Config) { c.Expansion = 0.9 }},
		{"contraction above one", func(c *Config) { c.Contraction = 1.5 }},
		{"negative min delta", func(c *Config) { c.MinDeltaF = -1 }},
		{"infinite min delta", func(c *Config) { c.MinDeltaF = math.Inf(1) }},
		{"dropout rate above one", func(c *Config) { c.Dropout = perturb.Dropout{Enabled: true, Rate: 2} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig(1)
			tt.modify(&config)
			_, err := NewOptimizer(config)
			require.Error(t, err)
			if tt.name != "dropout rate above one" {
				assert.True(t, errors.Is(err, optimization.ErrInvalidConfig))
			}
		})
	}
}

func TestConfigString(t *testing.T) {
	config := testConfig(1)
	config.Dropout = perturb.Dropout{Enabled: true, Rate: 0.25}
	s := config.String()

	assert.Contains(t, s, "N = 50\n")
	assert.Contains(t, s, "alpha = 1.618\n")
	assert.Contains(t, s, "dropout_rate = 0.25\n")
	assert.Len(t, config.Fields(), 10)
}
