package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "TDOA_"
	envFileVar = "TDOA_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if TDOA_CONFIG is set
//  3. env (prefix TDOA_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: file %s: %w", ErrLoadConfig, path, err)
		}
	}

	// TDOA_QUEUE_SIZE -> queue_size. Keys are flat, so underscores are kept.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.SolverMaxIterations <= 0:
		return fmt.Errorf("%w: solver_max_iterations must be positive", ErrInvalidConfig)
	case c.SolverGradientTolerance < 0, c.SolverStepTolerance < 0, c.SolverCostTolerance < 0:
		return fmt.Errorf("%w: solver tolerances must not be negative", ErrInvalidConfig)
	case c.SolverInitialDamping < 0:
		return fmt.Errorf("%w: solver_initial_damping must not be negative", ErrInvalidConfig)
	case c.CollinearityTolerance < 0:
		return fmt.Errorf("%w: collinearity_tolerance must not be negative", ErrInvalidConfig)
	case c.MaxBatchEvents < 0:
		return fmt.Errorf("%w: max_batch_events must not be negative", ErrInvalidConfig)
	}
	return nil
}
