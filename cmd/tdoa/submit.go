package main

import (
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/okian/tdoa/internal/adapters/http/client"
	"github.com/okian/tdoa/internal/dataset"
	"github.com/okian/tdoa/internal/domain/types"
	"github.com/okian/tdoa/pkg/logger"
)

func submitCommand() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "send an event file to a running service and export its results",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:9080", Usage: "service base URL"},
			&cli.StringFlag{Name: "event-file", Value: defaultEventFile, Usage: "event file to read"},
			&cli.StringFlag{Name: "batch-id", Usage: "client batch id; resubmitting it is a no-op"},
			&cli.StringFlag{Name: "format", Value: dataset.FormatJSON, Usage: "output format: json or csv"},
			&cli.StringFlag{Name: "output", Usage: "output file; defaults to stdout"},
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Minute, Usage: "how long to wait for results"},
		},
		Action: submit,
	}
}

func submit(c *cli.Context) error {
	_, log, err := setup(c)
	if err != nil {
		return err
	}
	format := c.String("format")
	if err := checkFormat(format); err != nil {
		return err
	}
	events, err := dataset.LoadEvents(c.String("event-file"))
	if err != nil {
		return err
	}

	cl := client.New(c.String("server"), client.WithLogger(log), client.WithMaxElapsed(c.Duration("timeout")))
	receipt, err := cl.Submit(c.Context, c.String("batch-id"), events)
	if err != nil {
		return err
	}
	log.Info(c.Context, "batch submitted",
		logger.String("batch_id", receipt.BatchID),
		logger.Int("events", receipt.Events),
		logger.Bool("duplicate", receipt.Duplicate),
	)

	status, err := cl.Wait(c.Context, receipt.BatchID)
	if err != nil {
		return err
	}
	log.Info(c.Context, "batch done",
		logger.String("batch_id", status.BatchID),
		logger.Int("events", status.Total),
		logger.Int("located", status.Located),
	)

	return export(c, func(w io.Writer) error {
		return writeRecords(w, format, status.Results)
	})
}

func writeRecords(w io.Writer, format string, records []types.OriginRecord) error {
	if format == dataset.FormatCSV {
		return dataset.WriteCSV(w, records)
	}
	return dataset.WriteJSON(w, records)
}
