package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/okian/tdoa/internal/dataset"
	"github.com/okian/tdoa/internal/domain/locate"
	"github.com/okian/tdoa/pkg/logger"
)

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "write a synthetic node file and event file",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "nodes", Value: defaultNodes, Usage: "number of nodes"},
			&cli.IntFlag{Name: "events", Value: defaultEvents, Usage: "number of events"},
			&cli.StringFlag{Name: "node-file", Value: defaultNodeFile, Usage: "node file to write"},
			&cli.StringFlag{Name: "event-file", Value: defaultEventFile, Usage: "event file to write"},
			&cli.Uint64Flag{Name: "seed", Usage: "random seed; defaults to the current time"},
		},
		Action: generate,
	}
}

func generate(c *cli.Context) error {
	_, log, err := setup(c)
	if err != nil {
		return err
	}

	seed := c.Uint64("seed")
	if !c.IsSet("seed") {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed))

	nodes, err := dataset.GenerateNodes(c.Int("nodes"), rng)
	if err != nil {
		return err
	}
	events, err := dataset.GenerateEvents(c.Int("events"), len(nodes), time.Now(), rng)
	if err != nil {
		return err
	}
	if err := dataset.SaveNodes(c.String("node-file"), nodes); err != nil {
		return err
	}
	if err := dataset.SaveEvents(c.String("event-file"), events); err != nil {
		return err
	}

	log.Info(c.Context, "dataset generated",
		logger.Int("nodes", len(nodes)),
		logger.Int("events", len(events)),
		logger.String("node_file", c.String("node-file")),
		logger.String("event_file", c.String("event-file")),
	)
	return nil
}

func locateCommand() *cli.Command {
	return &cli.Command{
		Name:  "locate",
		Usage: "estimate the origin of every event in a dataset",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "node-file", Value: defaultNodeFile, Usage: "node file to read"},
			&cli.StringFlag{Name: "event-file", Value: defaultEventFile, Usage: "event file to read"},
			&cli.StringFlag{Name: "format", Value: dataset.FormatJSON, Usage: "output format: json or csv"},
			&cli.StringFlag{Name: "output", Usage: "output file; defaults to stdout"},
		},
		Action: locateDataset,
	}
}

func locateDataset(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	format := c.String("format")
	if err := checkFormat(format); err != nil {
		return err
	}

	nodes, err := dataset.LoadNodes(c.String("node-file"))
	if err != nil {
		return err
	}
	events, err := dataset.LoadEvents(c.String("event-file"))
	if err != nil {
		return err
	}

	start := time.Now()
	loc := locate.New(newEstimator(cfg), locate.WithConcurrency(cfg.WorkerCount))
	outcomes := loc.LocateAll(c.Context, nodes, events)

	located := 0
	for _, o := range outcomes {
		if o.OK() {
			located++
			continue
		}
		log.Debug(c.Context, "event not located", logger.String("event_id", string(o.EventID)), logger.Error(o.Err))
	}
	log.Info(c.Context, "dataset located",
		logger.Int("events", len(outcomes)),
		logger.Int("located", located),
		logger.Int("failed", len(outcomes)-located),
		logger.Duration("elapsed", time.Since(start)),
	)

	return export(c, func(w io.Writer) error { return dataset.Export(w, format, outcomes) })
}

func checkFormat(format string) error {
	if format != dataset.FormatJSON && format != dataset.FormatCSV {
		return fmt.Errorf("%w: %q", dataset.ErrFormat, format)
	}
	return nil
}

// export writes to --output, or to stdout when it is unset.
func export(c *cli.Context, write func(io.Writer) error) error {
	path := c.String("output")
	if path == "" {
		return write(c.App.Writer)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", dataset.ErrWriteDataset, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
