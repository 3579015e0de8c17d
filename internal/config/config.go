package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/intervalbb/internal/optimization/bnb"
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
	Optimization struct {
		WorkerCount       int           `env:"OPT_WORKER_COUNT" envDefault:"4"`
		MaxWorkers        int           `env:"OPT_MAX_WORKERS"`
		Precision         float64       `env:"OPT_PRECISION" envDefault:"1e-6"`
		MaxIterations     int           `env:"OPT_MAX_ITERATIONS" envDefault:"0"`
		Gap               float64       `env:"OPT_GAP" envDefault:"0"`
		Variants          []string      `env:"OPT_VARIANTS" envSeparator:"," envDefault:"best-first"`
		RebalanceInterval time.Duration `env:"OPT_REBALANCE_INTERVAL" envDefault:"2ms"`
		Refine            bool          `env:"OPT_REFINE" envDefault:"true"`
		LocalSearchEvery  int           `env:"OPT_LOCAL_SEARCH_EVERY" envDefault:"0"`
		MaxJobs           int           `env:"OPT_MAX_JOBS" envDefault:"16"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		}
	}

	// Cap per-request parallelism relative to the host
	if cfg.Optimization.MaxWorkers == 0 {
		cfg.Optimization.MaxWorkers = runtime.NumCPU() * 4
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the solver settings.
func (c *Config) Validate() error {
	opt := c.Optimization
	switch {
	case opt.WorkerCount < 1:
		return fmt.Errorf("OPT_WORKER_COUNT must be at least 1, got %d", opt.WorkerCount)
	case opt.MaxWorkers < 1:
		return fmt.Errorf("OPT_MAX_WORKERS must be at least 1, got %d", opt.MaxWorkers)
	case opt.WorkerCount > opt.MaxWorkers:
		return fmt.Errorf("OPT_WORKER_COUNT %d exceeds OPT_MAX_WORKERS %d", opt.WorkerCount, opt.MaxWorkers)
	case !(opt.Precision > 0):
		return fmt.Errorf("OPT_PRECISION must be positive, got %v", opt.Precision)
	case opt.MaxIterations < 0:
		return fmt.Errorf("OPT_MAX_ITERATIONS must not be negative, got %d", opt.MaxIterations)
	case opt.Gap < 0:
		return fmt.Errorf("OPT_GAP must not be negative, got %v", opt.Gap)
	case opt.LocalSearchEvery < 0:
		return fmt.Errorf("OPT_LOCAL_SEARCH_EVERY must not be negative, got %d", opt.LocalSearchEvery)
	case opt.MaxJobs < 1:
		return fmt.Errorf("OPT_MAX_JOBS must be at least 1, got %d", opt.MaxJobs)
	}
	if _, err := c.Templates(); err != nil {
		return err
	}
	return nil
}

// Templates returns the algorithm options named by OPT_VARIANTS with the
// refinement and local search settings applied.
func (c *Config) Templates() ([]bnb.Options, error) {
	out := make([]bnb.Options, 0, len(c.Optimization.Variants))
	for _, name := range c.Optimization.Variants {
		opts, err := bnb.Variant(name)
		if err != nil {
			return nil, fmt.Errorf("OPT_VARIANTS: %w", err)
		}
		opts.Refine = c.Optimization.Refine
		opts.LocalSearchEvery = c.Optimization.LocalSearchEvery
		out = append(out, opts)
	}
	return out, nil
}
