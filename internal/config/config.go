package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"go.uber.org/zap"

	"github.com/copyleftdev/stochopt/internal/optimization/pattern"
	"github.com/copyleftdev/stochopt/internal/optimization/perturb"
	"github.com/copyleftdev/stochopt/internal/optimization/walk"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Store struct {
		Enabled bool   `env:"STORE_ENABLED" envDefault:"true"`
		Dir     string `env:"STORE_DIR" envDefault:"data"`
	}
	Optimization struct {
		WorkerCount   int           `env:"OPT_WORKER_COUNT" envDefault:"4"`
		MaxDimensions int           `env:"OPT_MAX_DIMENSIONS" envDefault:"100"`
		RunTimeout    time.Duration `env:"OPT_RUN_TIMEOUT" envDefault:"10m"`
		RetainedRuns  int           `env:"OPT_RETAINED_RUNS" envDefault:"1000"`
		RandomSeed    int64         `env:"OPT_RANDOM_SEED" envDefault:"42"`
		MinDeltaF     float64       `env:"OPT_MIN_DELTA_F" envDefault:"0"`
		Dropout       bool          `env:"OPT_DROPOUT" envDefault:"false"`
		DropoutRate   float64       `env:"OPT_DROPOUT_RATE" envDefault:"0.5"`
		Pattern       struct {
			MaxSuccessfulSteps int     `env:"OPT_PATTERN_MAX_SUCCESSES" envDefault:"100"`
			MaxFailures        int     `env:"OPT_PATTERN_MAX_FAILURES" envDefault:"10"`
			InitialStep        float64 `env:"OPT_PATTERN_INITIAL_STEP" envDefault:"1.0"`
			MinStep            float64 `env:"OPT_PATTERN_MIN_STEP" envDefault:"0.1"`
			Expansion          float64 `env:"OPT_PATTERN_EXPANSION" envDefault:"1.618"`
			Contraction        float64 `env:"OPT_PATTERN_CONTRACTION" envDefault:"0.618"`
		}
		Walk struct {
			MaxFailures int `env:"OPT_WALK_MAX_FAILURES" envDefault:"50"`
		}
	}
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom reads the configuration from the given variables only.
func LoadFrom(vars map[string]string) (*Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks service settings and the optimizer defaults.
func (c *Config) Validate() error {
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP_PORT %d", c.HTTP.Port)
	}
	if c.Optimization.WorkerCount < 1 {
		return fmt.Errorf("OPT_WORKER_COUNT must be positive, got %d", c.Optimization.WorkerCount)
	}
	if c.Optimization.MaxDimensions < 1 {
		return fmt.Errorf("OPT_MAX_DIMENSIONS must be positive, got %d", c.Optimization.MaxDimensions)
	}
	if c.Optimization.RetainedRuns < 1 {
		return fmt.Errorf("OPT_RETAINED_RUNS must be positive, got %d", c.Optimization.RetainedRuns)
	}
	if c.Store.Enabled && c.Store.Dir == "" {
		return fmt.Errorf("STORE_DIR is required when the store is enabled")
	}
	if _, err := pattern.NewOptimizer(c.PatternConfig(nil)); err != nil {
		return err
	}
	if _, err := walk.NewOptimizer(c.WalkConfig(nil)); err != nil {
		return err
	}
	return nil
}

func (c *Config) dropout() perturb.Dropout {
	return perturb.Dropout{
		Enabled: c.Optimization.Dropout,
		Rate:    c.Optimization.DropoutRate,
	}
}

// PatternConfig returns the pattern search defaults.
func (c *Config) PatternConfig(logger *zap.Logger) pattern.Config {
	p := c.Optimization.Pattern
	return pattern.Config{
		MaxSuccessfulSteps: p.MaxSuccessfulSteps,
		MaxFailures:        p.MaxFailures,
		InitialStep:        p.InitialStep,
		MinStep:            p.MinStep,
		Expansion:          p.Expansion,
		Contraction:        p.Contraction,
		MinDeltaF:          c.Optimization.MinDeltaF,
		RandomSeed:         c.Optimization.RandomSeed,
		Dropout:            c.dropout(),
		Logger:             logger,
	}
}

// WalkConfig returns the random walk defaults.
func (c *Config) WalkConfig(logger *zap.Logger) walk.Config {
	return walk.Config{
		MaxFailures: c.Optimization.Walk.MaxFailures,
		MinDeltaF:   c.Optimization.MinDeltaF,
		RandomSeed:  c.Optimization.RandomSeed,
		Dropout:     c.dropout(),
		Logger:      logger,
	}
}
