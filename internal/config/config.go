// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Loading layers defaults, an optional YAML file and TDOA_* env vars.
// - Errors returned by Load wrap this package's sentinel kinds.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// NodeFile is the JSON node table loaded at startup by the service.
	NodeFile string `koanf:"node_file"`

	// EventQueueSize bounds the in-memory job queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of fitting workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many client batch ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxBatchEvents caps the events accepted in one batch submission.
	MaxBatchEvents int `koanf:"max_batch_events"`

	// Solver settings for the Levenberg–Marquardt fit.
	SolverMaxIterations     int     `koanf:"solver_max_iterations"`
	SolverGradientTolerance float64 `koanf:"solver_gradient_tolerance"`
	SolverStepTolerance     float64 `koanf:"solver_step_tolerance"`
	SolverCostTolerance     float64 `koanf:"solver_cost_tolerance"`
	SolverInitialDamping    float64 `koanf:"solver_initial_damping"`

	// CollinearityTolerance rejects node layouts flatter than this ratio.
	CollinearityTolerance float64 `koanf:"collinearity_tolerance"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		NodeFile:                "node_locations.json",
		EventQueueSize:          100_000,
		WorkerCount:             runtime.NumCPU(),
		DedupeSize:              10_000,
		MaxBatchEvents:          50_000,
		SolverMaxIterations:     200,
		SolverGradientTolerance: 1e-8,
		SolverStepTolerance:     1e-8,
		SolverCostTolerance:     1e-8,
		SolverInitialDamping:    1e-3,
		CollinearityTolerance:   1e-9,
	}
}
