// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/tdoa/internal/adapters/repository"
	"github.com/okian/tdoa/internal/domain/model"
	"github.com/okian/tdoa/internal/domain/types"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	// SubmitBatch queues events for fitting. A non-empty clientID is
	// deduplicated.
	SubmitBatch(ctx context.Context, clientID string, events []model.Event) (types.BatchReceipt, error)

	// Batch returns the state and outcomes of a batch.
	Batch(ctx context.Context, id string) (repository.Batch, error)

	// Nodes returns the node table ordered by id.
	Nodes() []model.Node
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	batchesHandler *BatchesHandler
	nodesHandler   *NodesHandler
}

// NewServer creates a new API server with all handlers. maxBodyBytes caps
// the size of a batch submission.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxBodyBytes int64) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		batchesHandler: NewBatchesHandler(deps, maxBodyBytes),
		nodesHandler:   NewNodesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleHealth, "metrics"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /nodes", MetricsMiddleware(s.nodesHandler.HandleGetNodes, "nodes"))
	mux.HandleFunc("POST /batches", MetricsMiddleware(s.batchesHandler.HandlePostBatch, "batches"))
	mux.HandleFunc("GET /batches/{id}", MetricsMiddleware(s.batchesHandler.HandleGetBatch, "batch"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
