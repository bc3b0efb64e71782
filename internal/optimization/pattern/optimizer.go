// Package pattern implements an adaptive random pattern search: random unit
// probes around the current point, an accelerated overshoot along every
// successful probe, and a step length that grows on success and contracts
// after a run of failures.
//
// The search works in coordinates normalized by the initial point, so the
// initial point is the all-ones vector and a unit step moves every
// coordinate on its own scale.
package pattern

import (
	"context"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/stochopt/internal/optimization"
	"github.com/copyleftdev/stochopt/internal/optimization/acceptance"
	"github.com/copyleftdev/stochopt/internal/optimization/perturb"
)

// Name is the algorithm identifier reported in results.
const Name = "pattern"

const (
	msgMinStepSuccess = "optimization succeeded: minimum step length reached"
	msgMinStepFailure = "optimization failed: minimum step length reached without improvement"
	msgBudgetFailure  = "optimization failed: successful-step budget exhausted"
)

// Optimizer implements the pattern search
type Optimizer struct {
	config     Config
	acceptance *acceptance.Threshold
	logger     *zap.Logger
}

// NewOptimizer creates a pattern search optimizer. Zero-valued settings take
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

// stepController adapts the step length.
type stepController struct {
	length      float64
	expansion   float64
	contraction float64
	min         float64
}

func (s *stepController) grow()           { s.length *= s.expansion }
func (s *stepController) shrink()         { s.length *= s.contraction }
func (s *stepController) exhausted() bool { return s.length <= s.min }

// run is the search state of a single Optimize call.
type run struct {
	*Optimizer

	problem optimization.Problem
	src     rand.Source
	eval    *optimization.Evaluator
	history *optimization.History
	logger  *zap.Logger

	scale []float64 // initial point; true = normalized ⊙ scale
	x     []float64 // current best, normalized
	value float64
	step  stepController
	steps int

	// scratch buffers, reused across attempts
	direction []float64
	mask      []float64
	probe     []float64
	accel     []float64
	trueProbe []float64
	trueAccel []float64
}

// Optimize runs the pattern search
func (o *Optimizer) Optimize(ctx context.Context, problem optimization.Problem) (*optimization.OptimizationResult, error) {
	const op = "Optimize"

	if err := problem.Validate(); err != nil {
		return nil, optimization.WrapError(err, "invalid problem").WithOperation(op).WithComponent(component)
	}
	if len(problem.Initial) == 0 {
		return nil, optimization.NewError("initial point is required").WithOperation(op).WithComponent(component)
	}

	r := o.newRun(problem)
	if err := r.initialize(); err != nil {
		return nil, optimization.WrapError(err, "initial evaluation aborted").WithOperation(op).WithComponent(component)
	}

	origin := make([]float64, len(r.x))
	for i := range origin {
		origin[i] = 1
	}

	for {
		if r.steps >= o.config.MaxSuccessfulSteps {
			return r.finish(optimization.SuccessBudgetExhausted, false, msgBudgetFailure), nil
		}
		if r.step.exhausted() {
			if floats.Equal(r.x, origin) {
				return r.finish(optimization.MinimumStepReached, false, msgMinStepFailure), nil
			}
			return r.finish(optimization.MinimumStepReached, true, msgMinStepSuccess), nil
		}

		accepted := false
		for failures := 0; failures < o.config.MaxFailures; failures++ {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			ok, err := r.attempt()
			if err != nil {
				return nil, optimization.WrapError(err, "search aborted").WithOperation(op).WithComponent(component)
			}
			if ok {
				accepted = true
				break
			}
		}

		if !accepted {
			r.step.shrink()
			r.logger.Debug("step contracted", zap.Float64("step", r.step.length))
		}
	}
}

func (o *Optimizer) newRun(problem optimization.Problem) *run {
	k := len(problem.Initial)
	r := &run{
		Optimizer: o,
		problem:   problem,
		src:       optimization.NewSource(o.config.RandomSeed),
		eval:      optimization.NewEvaluator(problem.Objective, problem.Bounds, problem.Constraints),
		history:   optimization.NewHistory(o.config.MaxSuccessfulSteps + 1),
		logger:    o.logger,
		scale:     append([]float64(nil), problem.Initial...),
		x:         make([]float64, k),
		value:     math.Inf(1),
		step: stepController{
			length:      o.config.InitialStep,
			expansion:   o.config.Expansion,
			contraction: o.config.Contraction,
			min:         o.config.MinStep,
		},
		direction: make([]float64, k),
		mask:      make([]float64, k),
		probe:     make([]float64, k),
		accel:     make([]float64, k),
		trueProbe: make([]float64, k),
		trueAccel: make([]float64, k),
	}
	for i := range r.x {
		r.x[i] = 1
	}
	return r
}

// initialize evaluates the initial point. An infeasible or failing start
// leaves the best value at +Inf.
func (r *run) initialize() error {
	r.logger.Info("starting pattern search", append(r.config.Fields(), zap.Int("dimensions", len(r.x)))...)
	for i, s := range r.scale {
		if s == 0 {
			r.logger.Warn("initial coordinate is zero and will stay fixed", zap.Int("dimension", i))
		}
	}

	value, err := r.eval.Evaluate(r.scale)
	switch {
	case err == nil && math.IsNaN(value):
		r.logger.Warn("initial objective value is NaN, starting from +Inf")
	case err == nil:
		r.value = value
		r.history.Record(r.eval.Evaluations(), r.scale, value)
	case optimization.IsFatal(err):
		return err
	default:
		r.logger.Warn("initial point rejected, starting from +Inf", zap.Error(err))
	}
	return nil
}

// attempt runs one probe and, if the probe improves, the accelerated step.
// It reports whether the accelerated point was accepted. Only the
// accelerated point can be accepted; an improving probe whose acceleration
// fails counts as a failure. The error is non-nil only when the run must stop.
func (r *run) attempt() (bool, error) {
	perturb.UnitDirection(r.direction, r.src)
	r.config.Dropout.Mask(r.mask, r.src)
	for i := range r.probe {
		r.probe[i] = r.x[i] + r.mask[i]*r.step.length*r.direction[i]
	}
	floats.MulTo(r.trueProbe, r.probe, r.scale)

	improved, _, err := r.try(r.trueProbe)
	if err != nil || !improved {
		return false, err
	}

	// z = x + alpha*(y - x)
	floats.SubTo(r.accel, r.probe, r.x)
	floats.Scale(r.config.Expansion, r.accel)
	floats.Add(r.accel, r.x)
	floats.MulTo(r.trueAccel, r.accel, r.scale)

	improved, value, err := r.try(r.trueAccel)
	if err != nil || !improved {
		return false, err
	}

	copy(r.x, r.accel)
	r.value = value
	r.step.grow()
	r.steps++
	r.history.Record(r.eval.Evaluations(), r.trueAccel, value)

	r.logger.Debug("accelerated step accepted",
		zap.Float64("value", value),
		zap.Float64("step", r.step.length),
		zap.Int("steps", r.steps),
	)

	if r.problem.Observer != nil {
		if err := r.problem.Observer(value, append([]float64(nil), r.trueAccel...)); err != nil {
			return false, optimization.WrapError(err, "observer failed").WithOperation("Observer")
		}
	}
	return true, nil
}

// try evaluates a true-coordinate candidate against the current best.
// Infeasible candidates and failed evaluations are reported as not improved.
func (r *run) try(x []float64) (bool, float64, error) {
	value, err := r.eval.Evaluate(x)
	if err != nil {
		if optimization.IsFatal(err) {
			return false, 0, err
		}
		if optimization.IsEvaluationFailure(err) {
			r.logger.Debug("evaluation failed", zap.Error(err))
		}
		return false, 0, nil
	}
	return r.acceptance.Improves(value, r.value), value, nil
}

func (r *run) finish(status optimization.Status, success bool, message string) *optimization.OptimizationResult {
	x := make([]float64, len(r.x))
	floats.MulTo(x, r.x, r.scale)

	r.logger.Info("pattern search finished",
		zap.Stringer("status", status),
		zap.Bool("success", success),
		zap.Float64("value", r.value),
		zap.Int("evaluations", r.eval.Evaluations()),
		zap.Int("evaluation_errors", r.eval.Failures()),
		zap.Int("successful_steps", r.steps),
		zap.Float64("step", r.step.length),
	)

	return optimization.NewResult(optimization.Outcome{
		Algorithm:       Name,
		X:               x,
		Value:           r.value,
		SuccessfulSteps: r.steps,
		Success:         success,
		Status:          status,
		Message:         message,
	}, r.eval, r.history, r.problem)
}
