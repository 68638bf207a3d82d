package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/okian/tdoa/internal/adapters/http/api"
	"github.com/okian/tdoa/internal/adapters/http/swagger"
	service "github.com/okian/tdoa/internal/app"
	"github.com/okian/tdoa/internal/config"
	"github.com/okian/tdoa/internal/dataset"
	"github.com/okian/tdoa/internal/domain/locate"
	"github.com/okian/tdoa/internal/domain/model"
	"github.com/okian/tdoa/pkg/logger"
	"github.com/okian/tdoa/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 30 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
	maxRequestBytes        = 64 << 20
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the batch HTTP service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address; overrides addr from config"},
			&cli.StringFlag{Name: "node-file", Usage: "node file; overrides node_file from config"},
		},
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.IsSet("node-file") {
		cfg.NodeFile = c.String("node-file")
	}
	ctx := c.Context

	nodes, err := dataset.LoadNodes(cfg.NodeFile)
	if err != nil {
		return err
	}
	log.Info(ctx, "node table loaded", logger.String("node_file", cfg.NodeFile), logger.Int("nodes", len(nodes)))

	svc := newService(cfg, nodes, log)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	go startServiceMetricsUpdater(ctx, svc)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, maxRequestBytes).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

func newService(cfg *config.Config, nodes model.NodeTable, log logger.Logger) *service.Service {
	return service.New(nodes,
		service.WithLogger(log),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithMaxBatchEvents(cfg.MaxBatchEvents),
		service.WithLocator(locate.New(newEstimator(cfg))),
	)
}

// startServiceMetricsUpdater keeps the queue gauges current between
// requests; GetStats refreshes them.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()
	if n, ok := stats["nodes"].(int); ok {
		metrics.UpdateNodeCount(n)
	}
}
