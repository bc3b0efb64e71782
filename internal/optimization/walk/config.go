package walk

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/copyleftdev/stochopt/internal/optimization"
	"github.com/copyleftdev/stochopt/internal/optimization/acceptance"
	"github.com/copyleftdev/stochopt/internal/optimization/perturb"
)

const component = "random_walk"

// Config holds the constructor-time settings of a random walk.
type Config struct {
	// MaxFailures (N) ends the run after N+1 consecutive failed trials. It
	// also normalizes the failure streaks in the magnitude schedule.
	MaxFailures int

	// MinDeltaF is the minimum improvement required to accept a point.
	MinDeltaF float64

	// RandomSeed seeds the per-run random stream; 0 seeds from the clock.
	RandomSeed int64

	// Dropout masks random coordinates of each perturbation.
	Dropout perturb.Dropout

	// Logger receives run progress; nil disables logging.
	Logger *zap.Logger
}

// DefaultConfig returns the default random walk settings.
func DefaultConfig() Config {
	return Config{
		MaxFailures: 50,
		MinDeltaF:   0,
		RandomSeed:  42,
		Dropout:     perturb.Dropout{Rate: perturb.DefaultDropoutRate},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxFailures == 0 {
		c.MaxFailures = def.MaxFailures
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
	if c.MaxFailures < 1 {
		return optimization.InvalidConfigf(component, "max failures must be positive, got %d", c.MaxFailures)
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
		zap.Int("N", c.MaxFailures),
		zap.Float64("min_delta_f", c.MinDeltaF),
		zap.Int64("random_seed", c.RandomSeed),
		zap.Bool("dropout", c.Dropout.Enabled),
		zap.Float64("dropout_rate", c.Dropout.Rate),
	}
}

// String renders the settings one per line.
func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "N = %d\n", c.MaxFailures)
	fmt.Fprintf(&b, "min_delta_f = %v\n", c.MinDeltaF)
	if c.Dropout.Enabled {
		fmt.Fprintf(&b, "dropout_rate = %v\n", c.Dropout.Rate)
	}
	return b.String()
}
