// Package httphandler serves the JSON API of serve mode: health, sync run
// history and manual sync triggers.
package httphandler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/travelerpub/internal/domain/port/driven"
)

// maxRunListLimit caps the limit query parameter of ListRuns.
const maxRunListLimit = 200

// SyncTrigger queues a manual sync run.
type SyncTrigger interface {
	Trigger() bool
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	runStore driven.RunStore
	jobStore driven.JobStore
	syncer   SyncTrigger
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	runStore driven.RunStore,
	jobStore driven.JobStore,
	syncer SyncTrigger,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		runStore: runStore,
		jobStore: jobStore,
		syncer:   syncer,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.GetRun)
	mux.HandleFunc("POST /api/v1/sync", h.TriggerSync)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListRuns returns the most recent sync runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunListLimit {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 200")
			return
		}
		limit = n
	}

	runs, err := h.runStore.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetRun returns a single run together with its jobs.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	run, err := h.runStore.Get(r.Context(), id)
	if errors.Is(err, driven.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "sync run not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	jobs, err := h.jobStore.ListByRun(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list jobs", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := toRunResponse(*run)
	resp.Jobs = make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}

	writeJSON(w, http.StatusOK, resp)
}

// TriggerSync queues a manual sync run and returns 202 immediately.
func (h *Handler) TriggerSync(w http.ResponseWriter, _ *http.Request) {
	queued := h.syncer.Trigger()
	if queued {
		h.logger.Info("manual sync queued")
	}
	writeJSON(w, http.StatusAccepted, SyncResponse{Queued: queued})
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
