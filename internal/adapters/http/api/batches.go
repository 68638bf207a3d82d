package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/tdoa/internal/adapters/repository"
	service "github.com/okian/tdoa/internal/app"
	"github.com/okian/tdoa/internal/domain/model"
	"github.com/okian/tdoa/internal/domain/types"
)

const defaultMaxBodyBytes = 32 << 20

// toEvents parses a submission body. Node keys are "nodeN" or "N"; an event
// with a malformed key is kept and fails on its own.
func toEvents(b types.BatchRequest) ([]model.Event, error) {
	if b.Events == nil {
		return nil, errors.New("missing events")
	}
	out := make([]model.Event, 0, len(b.Events))
	for id, stamps := range b.Events {
		if strings.TrimSpace(id) == "" {
			return nil, errors.New("empty event id")
		}
		out = append(out, types.ParseEvent(id, stamps))
	}
	model.SortEvents(out)
	return out, nil
}

func newBatchStatus(b repository.Batch) types.BatchStatus {
	resp := types.BatchStatus{
		BatchID:   b.ID,
		Status:    b.Status(),
		Total:     b.Total,
		Completed: len(b.Outcomes),
		Located:   b.Succeeded(),
		CreatedAt: b.CreatedAt,
		Results:   types.NewOriginRecords(b.Outcomes),
	}
	if !b.CompletedAt.IsZero() {
		t := b.CompletedAt
		resp.CompletedAt = &t
	}
	return resp
}

// BatchesHandler handles batch submission and retrieval.
type BatchesHandler struct {
	deps         Dependencies
	maxBodyBytes int64
}

// NewBatchesHandler creates a new batches handler.
func NewBatchesHandler(deps Dependencies, maxBodyBytes int64) *BatchesHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &BatchesHandler{deps: deps, maxBodyBytes: maxBodyBytes}
}

// HandlePostBatch handles POST /batches.
func (h *BatchesHandler) HandlePostBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_batch"

	var req types.BatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	events, err := toEvents(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	receipt, err := h.deps.SubmitBatch(r.Context(), strings.TrimSpace(req.BatchID), events)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
		return
	case errors.Is(err, service.ErrBatchTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", WrapKind(op, ErrBadRequest, err))
		return
	case errors.Is(err, service.ErrInvalidBatch):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	status := http.StatusAccepted
	if receipt.Duplicate {
		status = http.StatusOK
	}
	w.Header().Set("Location", "/batches/"+receipt.BatchID)
	writeJSON(w, status, receipt)
}

// HandleGetBatch handles GET /batches/{id}.
func (h *BatchesHandler) HandleGetBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_batch"

	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	b, err := h.deps.Batch(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, newBatchStatus(b))
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
