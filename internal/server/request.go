package server

import (
	"go.uber.org/zap"

	"github.com/copyleftdev/stochopt/internal/config"
	apierrors "github.com/copyleftdev/stochopt/internal/errors"
	"github.com/copyleftdev/stochopt/internal/optimization"
	"github.com/copyleftdev/stochopt/internal/optimization/benchmarks"
	"github.com/copyleftdev/stochopt/internal/optimization/pattern"
	"github.com/copyleftdev/stochopt/internal/optimization/perturb"
	"github.com/copyleftdev/stochopt/internal/optimization/walk"
	"github.com/copyleftdev/stochopt/internal/store"
)

// OptimizeRequest starts a run of a named benchmark function.
//
// Omitted settings take the server defaults. Pattern search starts from the
// function's default point unless Initial is given; the random walk searches
// the function's default box unless Bounds is given.
type OptimizeRequest struct {
	Algorithm string       `json:"algorithm"`
	Function  string       `json:"function"`
	Dim       int          `json:"dim,omitempty"`
	Initial   []float64    `json:"initial,omitempty"`
	Bounds    [][2]float64 `json:"bounds,omitempty"`
	Seed      *int64       `json:"seed,omitempty"`
	Options   *Options     `json:"options,omitempty"`
}

// Options overrides optimizer settings for one run.
type Options struct {
	MaxSuccessfulSteps *int     `json:"max_successful_steps,omitempty"`
	MaxFailures        *int     `json:"max_failures,omitempty"`
	InitialStep        *float64 `json:"initial_step,omitempty"`
	MinStep            *float64 `json:"min_step,omitempty"`
	Expansion          *float64 `json:"expansion,omitempty"`
	Contraction        *float64 `json:"contraction,omitempty"`
	MinDeltaF          *float64 `json:"min_delta_f,omitempty"`
	Dropout            *bool    `json:"dropout,omitempty"`
	DropoutRate        *float64 `json:"dropout_rate,omitempty"`
}

// Plan is a validated request, ready to run.
type Plan struct {
	Spec      store.RunSpec
	Optimizer optimization.Optimizer
	Problem   optimization.Problem
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func (o *Options) applyDropout(d *perturb.Dropout) {
	if o.Dropout != nil {
		d.Enabled = *o.Dropout
	}
	setFloat(&d.Rate, o.DropoutRate)
}

// dimension resolves the run dimension from the request and the function.
func (req *OptimizeRequest) dimension(fn benchmarks.Function, maxDim int) (int, error) {
	dim := req.Dim
	for _, n := range []int{len(req.Initial), len(req.Bounds)} {
		if n == 0 {
			continue
		}
		if dim != 0 && dim != n {
			return 0, apierrors.BadRequest("inconsistent dimensions: %d and %d", dim, n)
		}
		dim = n
	}
	if dim == 0 {
		dim = fn.DefaultDim()
	}
	if dim > maxDim {
		return 0, apierrors.BadRequest("dimension %d exceeds the limit of %d", dim, maxDim)
	}
	if err := fn.CheckDim(dim); err != nil {
		return 0, apierrors.BadRequest("%v", err)
	}
	return dim, nil
}

// NewPlan validates req against the defaults in cfg.
func NewPlan(cfg *config.Config, req OptimizeRequest, logger *zap.Logger) (*Plan, error) {
	if req.Algorithm == "" {
		req.Algorithm = pattern.Name
	}
	fn, err := benchmarks.Get(req.Function)
	if err != nil {
		return nil, apierrors.BadRequest("%v", err)
	}
	dim, err := req.dimension(fn, cfg.Optimization.MaxDimensions)
	if err != nil {
		return nil, err
	}

	seed := cfg.Optimization.RandomSeed
	if req.Seed != nil {
		seed = *req.Seed
	}
	opts := req.Options
	if opts == nil {
		opts = &Options{}
	}

	p := &Plan{
		Problem: optimization.Problem{
			Objective: fn.Objective(),
			Initial:   req.Initial,
			Bounds:    optimization.BoundsFromPairs(req.Bounds),
		},
	}

	switch req.Algorithm {
	case pattern.Name:
		c := cfg.PatternConfig(logger)
		c.RandomSeed = seed
		setInt(&c.MaxSuccessfulSteps, opts.MaxSuccessfulSteps)
		setInt(&c.MaxFailures, opts.MaxFailures)
		setFloat(&c.InitialStep, opts.InitialStep)
		setFloat(&c.MinStep, opts.MinStep)
		setFloat(&c.Expansion, opts.Expansion)
		setFloat(&c.Contraction, opts.Contraction)
		setFloat(&c.MinDeltaF, opts.MinDeltaF)
		opts.applyDropout(&c.Dropout)
		if p.Optimizer, err = pattern.NewOptimizer(c); err != nil {
			return nil, apierrors.BadRequest("%v", err)
		}
		if p.Problem.Initial == nil {
			p.Problem.Initial = fn.Initial(dim)
		}

	case walk.Name:
		c := cfg.WalkConfig(logger)
		c.RandomSeed = seed
		setInt(&c.MaxFailures, opts.MaxFailures)
		setFloat(&c.MinDeltaF, opts.MinDeltaF)
		opts.applyDropout(&c.Dropout)
		if p.Optimizer, err = walk.NewOptimizer(c); err != nil {
			return nil, apierrors.BadRequest("%v", err)
		}
		if p.Problem.Bounds == nil {
			p.Problem.Bounds = fn.Bounds(dim)
		}

	default:
		return nil, apierrors.BadRequest("unknown algorithm %q, expected %q or %q", req.Algorithm, pattern.Name, walk.Name)
	}

	if err := p.Problem.Validate(); err != nil {
		return nil, apierrors.BadRequest("%v", err)
	}

	p.Spec = store.RunSpec{
		Algorithm: req.Algorithm,
		Function:  fn.Name,
		Initial:   p.Problem.Initial,
		Bounds:    req.Bounds,
		Seed:      seed,
	}
	if req.Bounds == nil && req.Algorithm == walk.Name {
		for _, b := range p.Problem.Bounds {
			p.Spec.Bounds = append(p.Spec.Bounds, [2]float64{b.Min, b.Max})
		}
	}
	return p, nil
}
