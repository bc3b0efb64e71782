package pattern

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/copyleftdev/stochopt/internal/optimization"
	"github.com/copyleftdev/stochopt/internal/optimization/acceptance"
	"github.com/copyleftdev/stochopt/internal/optimization/perturb"
)

const component = "pattern_search"

// Config holds the constructor-time settings of a pattern search.
type Config struct {
	// MaxSuccessfulSteps (N) ends the run, as a failure, once this many
	// accelerated steps have been accepted.
	MaxSuccessfulSteps int

	// MaxFailures (M) is the number of consecutive failed attempts after
	// which the step length is contracted.
	MaxFailures int

	// InitialStep (t0) is the starting step length in normalized units.
	InitialStep float64

	// MinStep (R) ends the run once the step length falls to or below it.
	MinStep float64

	// Expansion (alpha > 1) is both the overshoot factor of the accelerated
	// step and the step growth rate after an accepted step.
	Expansion float64

	// Contraction (0 < beta < 1) shrinks the step after MaxFailures failures.
	// Expansion and Contraction are independent; their product need not be 1.
	Contraction float64

	// MinDeltaF is the minimum improvement required to accept a point.
	MinDeltaF float64

	// RandomSeed seeds the per-run random stream; 0 seeds from the clock.
	RandomSeed int64

	// Dropout masks random coordinates of each probe direction.
	Dropout perturb.Dropout

	// Logger receives run progress; nil disables logging.
	Logger *zap.Logger
}

// DefaultConfig returns the default pattern search settings.
func DefaultConfig() Config {
	return Config{
		MaxSuccessfulSteps: 100,
		MaxFailures:        10,
		InitialStep:        1.0,
		MinStep:            0.1,
		Expansion:          1.618,
		Contraction:        0.618,
		MinDeltaF:          0,
		RandomSeed:         42,
		Dropout:            perturb.Dropout{Rate: perturb.DefaultDropoutRate},
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxSuccessfulSteps == 0 {
		c.MaxSuccessfulSteps = def.MaxSuccessfulSteps
	}
	if c.MaxFailures == 0 {
		c.MaxFailures = def.MaxFailures
	}
	if c.InitialStep == 0 {
		c.InitialStep = def.InitialStep
	}
	if c.MinStep == 0 {
		c.MinStep = def.MinStep
	}
	if c.Expansion == 0 {
		c.Expansion = def.Expansion
	}
	if c.Contraction == 0 {
		c.Contraction = def.Contraction
	}
	if c.Dropout.Enabled && c.Dropout.Rate == 0 {
		c.Dropout.Rate = def.Dropout.Rate
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Validate checks the settings after defaults have been applied.
func (c Config) Validate() error {
	switch {
	case c.MaxSuccessfulSteps < 1:
		return optimization.InvalidConfigf(component, "max successful steps must be positive, got %d", c.MaxSuccessfulSteps)
	case c.MaxFailures < 1:
		return optimization.InvalidConfigf(component, "max failures must be positive, got %d", c.MaxFailures)
	case c.InitialStep <= 0:
		return optimization.InvalidConfigf(component, "initial step must be positive, got %v", c.InitialStep)
	case c.MinStep <= 0:
		return optimization.InvalidConfigf(component, "min step must be positive, got %v", c.MinStep)
	case c.Expansion <= 1:
		return optimization.InvalidConfigf(component, "expansion must be greater than 1, got %v", c.Expansion)
	case c.Contraction <= 0 || c.Contraction >= 1:
		return optimization.InvalidConfigf(component, "contraction must be in (0, 1), got %v", c.Contraction)
	}
	if err := acceptance.NewThreshold(c.MinDeltaF).Validate(); err != nil {
		return optimization.InvalidConfigf(component, "invalid min delta f: %v", err)
	}
	if err := c.Dropout.Validate(); err != nil {
		return optimization.WrapError(err, "invalid dropout").WithComponent(component)
	}
	return nil
}

// Fields returns the settings as log fields.
func (c Config) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("N", c.MaxSuccessfulSteps),
		zap.Int("M", c.MaxFailures),
		zap.Float64("t0", c.InitialStep),
		zap.Float64("R", c.MinStep),
		zap.Float64("alpha", c.Expansion),
		zap.Float64("beta", c.Contraction),
		zap.Float64("min_delta_f", c.MinDeltaF),
		zap.Int64("random_seed", c.RandomSeed),
		zap.Bool("dropout", c.Dropout.Enabled),
		zap.Float64("dropout_rate", c.Dropout.Rate),
	}
}

// String renders the settings one per line.
func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "N = %d\n", c.MaxSuccessfulSteps)
	fmt.Fprintf(&b, "M = %d\n", c.MaxFailures)
	fmt.Fprintf(&b, "t0 = %v\n", c.InitialStep)
	fmt.Fprintf(&b, "R = %v\n", c.MinStep)
	fmt.Fprintf(&b, "alpha = %v\n", c.Expansion)
	fmt.Fprintf(&b, "beta = %v\n", c.Contraction)
	fmt.Fprintf(&b, "min_delta_f = %v\n", c.MinDeltaF)
	if c.Dropout.Enabled {
		fmt.Fprintf(&b, "dropout_rate = %v\n", c.Dropout.Rate)
	}
	return b.String()
}
