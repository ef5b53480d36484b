package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// SyncResponse is returned by the sync trigger endpoint. Queued is false when
// a manual run was already waiting.
type SyncResponse struct {
	Queued bool `json:"queued"`
}

// RunResponse is the JSON representation of a sync run.
type RunResponse struct {
	ID               string        `json:"id"`
	Trigger          string        `json:"trigger"`
	Status           string        `json:"status"`
	Error            string        `json:"error,omitempty"`
	PackageItemID    string        `json:"package_item_id,omitempty"`
	ServiceItemID    string        `json:"service_item_id,omitempty"`
	CollectionItemID string        `json:"collection_item_id,omitempty"`
	ExportJobID      string        `json:"export_job_id,omitempty"`
	StartedAt        string        `json:"started_at"`
	FinishedAt       string        `json:"finished_at,omitempty"`
	DurationSeconds  float64       `json:"duration_seconds"`
	Jobs             []JobResponse `json:"jobs,omitempty"`
}

// JobResponse is the JSON representation of the last observation of a job.
// Payload is the portal's status response, embedded verbatim.
type JobResponse struct {
	JobID     string          `json:"job_id"`
	Type      string          `json:"type"`
	ItemID    string          `json:"item_id"`
	Status    string          `json:"status"`
	Attempts  int             `json:"attempts"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	UpdatedAt string          `json:"updated_at"`
}

// toRunResponse converts a domain SyncRun to its JSON response representation.
func toRunResponse(run model.SyncRun) RunResponse {
	resp := RunResponse{
		ID:               run.ID,
		Trigger:          run.Trigger,
		Status:           string(run.Status),
		Error:            run.Error,
		PackageItemID:    run.PackageItemID,
		ServiceItemID:    run.ServiceItemID,
		CollectionItemID: run.CollectionItemID,
		ExportJobID:      run.ExportJobID,
		StartedAt:        run.StartedAt.UTC().Format(time.RFC3339),
		DurationSeconds:  run.Duration().Seconds(),
	}
	if !run.FinishedAt.IsZero() {
		resp.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// toJobResponse converts a domain JobRecord to its JSON representation.
func toJobResponse(rec model.JobRecord) JobResponse {
	return JobResponse{
		JobID:     rec.JobID,
		Type:      string(rec.Type),
		ItemID:    rec.ItemID,
		Status:    rec.Status,
		Attempts:  rec.Attempts,
		Payload:   rec.Payload,
		UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
