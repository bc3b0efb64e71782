// Package walk implements a random walk over the unit hypercube mapped onto
// box bounds. The walk starts at the centre of the box and moves on every
// trial, accepted or not; only improving points are remembered. The
// perturbation magnitude cools as the current failure streak and the longest
// streak ever recovered from grow.
package walk

import (
	"context"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/copyleftdev/stochopt/internal/optimization"
	"github.com/copyleftdev/stochopt/internal/optimization/acceptance"
	"github.com/copyleftdev/stochopt/internal/optimization/perturb"
)

// Name is the algorithm identifier reported in results.
const Name = "walk"

const (
	msgSuccess = "optimization succeeded: consecutive-failure budget exhausted"
	msgFailure = "optimization failed: consecutive-failure budget exhausted without improvement"
)

// Optimizer implements the normalized-coordinate random walk
type Optimizer struct {
	config     Config
	acceptance *acceptance.Threshold
	logger     *zap.Logger
}

// NewOptimizer creates a random walk optimizer. Zero-valued settings take
// their defaults.
func NewOptimizer(config Config) (*Optimizer, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Optimizer{
		config:     config,
		acceptance: acceptance.NewThreshold(config.MinDeltaF),
		logger:     config.Logger.Named(component),
	}, nil
}

// Name returns the algorithm identifier
func (o *Optimizer) Name() string {
	return Name
}

// Config returns the effective settings
func (o *Optimizer) Config() Config {
	return o.config
}

// magnitude is the per-dimension perturbation scale
//
//	m = 1/(10*sqrt(K)) * exp(-1e-3 * (bad²/N² + maxBad²/N²))
func magnitude(k, bad, maxBad, n int) float64 {
	nn := float64(n) * float64(n)
	b := float64(bad)
	mb := float64(maxBad)
	return 1 / (10 * math.Sqrt(float64(k))) * math.Exp(-1e-3*(b*b/nn+mb*mb/nn))
}

// run is the search state of a single Optimize call.
type run struct {
	*Optimizer

	problem optimization.Problem
	src     rand.Source
	eval    *optimization.Evaluator
	history *optimization.History

	z      []float64 // walking z, moved by every trial
	bestZ  []float64 // z of the last accepted trial
	x      []float64 // accepted point in true coordinates
	value  float64
	bad    int
	maxBad int
	steps  int

	// scratch buffers, reused across trials
	noise  []float64
	trialX []float64
}

// Optimize runs the random walk
func (o *Optimizer) Optimize(ctx context.Context, problem optimization.Problem) (*optimization.OptimizationResult, error) {
	const op = "Optimize"

	if err := problem.Validate(); err != nil {
		return nil, optimization.WrapError(err, "invalid problem").WithOperation(op).WithComponent(component)
	}
	if len(problem.Bounds) == 0 {
		return nil, optimization.NewError("bounds are required").WithOperation(op).WithComponent(component)
	}

	r := o.newRun(problem)
	if err := r.initialize(); err != nil {
		return nil, optimization.WrapError(err, "initial evaluation aborted").WithOperation(op).WithComponent(component)
	}

	for r.bad <= o.config.MaxFailures {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := r.trial(); err != nil {
			return nil, optimization.WrapError(err, "search aborted").WithOperation(op).WithComponent(component)
		}
	}

	return r.finish(), nil
}

func (o *Optimizer) newRun(problem optimization.Problem) *run {
	k := len(problem.Bounds)
	r := &run{
		Optimizer: o,
		problem:   problem,
		src:       optimization.NewSource(o.config.RandomSeed),
		// bounds hold structurally through clipping and mapping
		eval:    optimization.NewEvaluator(problem.Objective, nil, problem.Constraints),
		history: optimization.NewHistory(16),
		z:       make([]float64, k),
		bestZ:   make([]float64, k),
		value:   math.Inf(1),
		noise:   make([]float64, k),
		trialX:  make([]float64, k),
	}

	for i := range r.z {
		r.z[i] = 0.5
		r.bestZ[i] = 0.5
	}
	if len(problem.Initial) > 0 {
		// the initial point is only the baseline to beat, clipped into the box
		r.x = make([]float64, k)
		for i, b := range problem.Bounds {
			r.x[i] = optimization.Clip(problem.Initial[i], b.Min, b.Max)
		}
	} else {
		r.x = optimization.MapToBounds(nil, r.z, problem.Bounds)
	}
	return r
}

// initialize evaluates the baseline point. An infeasible or failing baseline
// leaves the best value at +Inf.
func (r *run) initialize() error {
	r.logger.Info("starting random walk", append(r.config.Fields(), zap.Int("dimensions", len(r.z)))...)

	value, err := r.eval.Evaluate(r.x)
	switch {
	case err == nil && math.IsNaN(value):
		r.logger.Warn("initial objective value is NaN, starting from +Inf")
	case err == nil:
		r.value = value
		r.history.Record(r.eval.Evaluations(), r.x, value)
	case optimization.IsFatal(err):
		return err
	default:
		r.logger.Warn("starting point rejected, starting from +Inf", zap.Error(err))
	}
	return nil
}

// trial moves the walking z, evaluates the mapped candidate and updates the
// failure streaks. A rejected trial does not undo the move. The error is
// non-nil only when the run must stop.
func (r *run) trial() error {
	k := len(r.z)
	m := magnitude(k, r.bad, r.maxBad, r.config.MaxFailures)

	perturb.Gaussian(r.noise, r.src)
	r.config.Dropout.Apply(r.noise, r.src)
	for i := range r.z {
		r.z[i] = optimization.Clip(r.z[i]+m*r.noise[i], 0, 1)
	}
	optimization.MapToBounds(r.trialX, r.z, r.problem.Bounds)

	value, err := r.eval.Evaluate(r.trialX)
	if err != nil {
		if optimization.IsFatal(err) {
			return err
		}
		if optimization.IsEvaluationFailure(err) {
			r.logger.Debug("evaluation failed", zap.Error(err))
		}
		r.bad++
		return nil
	}

	if !r.acceptance.Improves(value, r.value) {
		r.bad++
		return nil
	}

	copy(r.bestZ, r.z)
	copy(r.x, r.trialX)
	r.value = value
	if r.bad > r.maxBad {
		r.maxBad = r.bad
	}
	r.bad = 0
	r.steps++
	r.history.Record(r.eval.Evaluations(), r.x, value)

	r.logger.Debug("step accepted",
		zap.Float64("value", value),
		zap.Float64("magnitude", m),
		zap.Int("max_bad", r.maxBad),
	)

	if r.problem.Observer != nil {
		if err := r.problem.Observer(value, append([]float64(nil), r.x...)); err != nil {
			return optimization.WrapError(err, "observer failed").WithOperation("Observer")
		}
	}
	return nil
}

func (r *run) finish() *optimization.OptimizationResult {
	success := false
	for _, v := range r.bestZ {
		if v != 0.5 {
			success = true
			break
		}
	}
	message := msgFailure
	if success {
		message = msgSuccess
	}

	r.logger.Info("random walk finished",
		zap.Bool("success", success),
		zap.Float64("value", r.value),
		zap.Int("evaluations", r.eval.Evaluations()),
		zap.Int("evaluation_errors", r.eval.Failures()),
		zap.Int("accepted_steps", r.steps),
		zap.Int("max_bad", r.maxBad),
	)

	return optimization.NewResult(optimization.Outcome{
		Algorithm:       Name,
		X:               r.x,
		Value:           r.value,
		SuccessfulSteps: r.steps,
		Success:         success,
		Status:          optimization.FailureBudgetExhausted,
		Message:         message,
	}, r.eval, r.history, r.problem)
}
