// Command tdoa locates signal origins from node arrival times. It generates
// synthetic datasets, fits a dataset offline, or serves the batch API.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/okian/tdoa/internal/config"
	"github.com/okian/tdoa/internal/domain/estimator"
	"github.com/okian/tdoa/internal/domain/lsq"
	"github.com/okian/tdoa/pkg/logger"
)

// Dataset file defaults.
const (
	defaultNodeFile  = "node_locations.json"
	defaultEventFile = "transaction_data.json"
	defaultNodes     = 5
	defaultEvents    = 20
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		os.Stderr.WriteString("tdoa: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "tdoa",
		Usage:     "estimate signal origins from time differences of arrival",
		Writer:    stdout,
		ErrWriter: stderr,
		Commands: []*cli.Command{
			generateCommand(),
			locateCommand(),
			serveCommand(),
			submitCommand(),
		},
	}
}

// setup loads configuration and points the logger at the error stream so
// exported results on stdout stay clean.
func setup(c *cli.Context) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(c.Context)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(c.App.ErrWriter)); err != nil {
		return nil, nil, err
	}
	log := logger.Get()

	// Fall back to info on an unknown level.
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(c.Context, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, log, nil
}

// newEstimator builds the origin estimator from the solver settings.
func newEstimator(cfg *config.Config) *estimator.Estimator {
	return estimator.New(
		estimator.WithSolverSettings(lsq.Settings{
			MaxIterations:     cfg.SolverMaxIterations,
			GradientTolerance: cfg.SolverGradientTolerance,
			StepTolerance:     cfg.SolverStepTolerance,
			CostTolerance:     cfg.SolverCostTolerance,
			InitialDamping:    cfg.SolverInitialDamping,
		}),
		estimator.WithCollinearityTolerance(cfg.CollinearityTolerance),
	)
}
