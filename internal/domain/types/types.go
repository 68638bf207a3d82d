// Package types contains wire-level records shared by the API and exporters.
package types

import (
	"time"

	"github.com/okian/tdoa/internal/domain/model"
)

// OriginRecord is one flattened estimation outcome.
type OriginRecord struct {
	EventID      string   `json:"event_id" csv:"event_id"`
	Latitude     *float64 `json:"latitude,omitempty" csv:"latitude"`
	Longitude    *float64 `json:"longitude,omitempty" csv:"longitude"`
	Scale        *float64 `json:"scale,omitempty" csv:"scale"`
	Iterations   int      `json:"iterations,omitempty" csv:"iterations"`
	ResidualNorm *float64 `json:"residual_norm,omitempty" csv:"residual_norm"`
	Observations int      `json:"observations,omitempty" csv:"observations"`
	Error        string   `json:"error,omitempty" csv:"error"`
	ErrorKind    string   `json:"error_kind,omitempty" csv:"error_kind"`
}

// NewOriginRecord flattens an outcome. Failed outcomes carry only the error
// fields.
func NewOriginRecord(o model.Outcome) OriginRecord {
	rec := OriginRecord{EventID: string(o.EventID)}
	if !o.OK() {
		if o.Err != nil {
			rec.Error = o.Err.Error()
		}
		rec.ErrorKind = model.ErrorKind(o.Err)
		return rec
	}
	r := o.Result
	lat, lon, scale, norm := r.Origin.Latitude, r.Origin.Longitude, r.Scale, r.ResidualNorm
	rec.Latitude = &lat
	rec.Longitude = &lon
	rec.Scale = &scale
	rec.ResidualNorm = &norm
	rec.Iterations = r.Iterations
	rec.Observations = r.Observations
	return rec
}

// NewOriginRecords flattens outcomes, keeping their order.
func NewOriginRecords(outcomes []model.Outcome) []OriginRecord {
	out := make([]OriginRecord, len(outcomes))
	for i, o := range outcomes {
		out[i] = NewOriginRecord(o)
	}
	return out
}

// BatchReceipt acknowledges a batch submission.
type BatchReceipt struct {
	BatchID   string `json:"batch_id"`
	Events    int    `json:"events"`
	Duplicate bool   `json:"duplicate"`
}

// BatchRequest is the body of a batch submission. Events map an event id to
// its node arrival timestamps in milliseconds, keyed "nodeN".
type BatchRequest struct {
	BatchID string                      `json:"batch_id,omitempty"`
	Events  map[string]map[string]int64 `json:"events"`
}

// NewBatchRequest renders events in wire form. An event that failed to
// decode is sent without timestamps, so it still comes back as invalid.
func NewBatchRequest(batchID string, events []model.Event) BatchRequest {
	req := BatchRequest{BatchID: batchID, Events: make(map[string]map[string]int64, len(events))}
	for _, ev := range events {
		if ev.Err != nil {
			req.Events[string(ev.ID)] = map[string]int64{}
			continue
		}
		stamps := make(map[string]int64, len(ev.Timestamps))
		for id, ts := range ev.Timestamps {
			stamps[NodeKey(id)] = ts
		}
		req.Events[string(ev.ID)] = stamps
	}
	return req
}

// BatchStatus reports the progress and results of a batch.
type BatchStatus struct {
	BatchID     string         `json:"batch_id"`
	Status      string         `json:"status"`
	Total       int            `json:"total"`
	Completed   int            `json:"completed"`
	Located     int            `json:"located"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Results     []OriginRecord `json:"results"`
}

// Done reports whether every event of the batch has an outcome.
func (s BatchStatus) Done() bool { return s.Completed >= s.Total }
