package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
)

// ErrRunNotFound indicates the requested sync run does not exist.
var ErrRunNotFound = errors.New("sync run not found")

// RunStore defines the driven port for sync run history.
// Finish and Get return ErrRunNotFound for unknown run ids.
type RunStore interface {
	Create(ctx context.Context, run model.SyncRun) error
	Finish(ctx context.Context, run model.SyncRun) error
	Get(ctx context.Context, id string) (*model.SyncRun, error)
	ListRecent(ctx context.Context, limit int) ([]model.SyncRun, error)
}

// JobStore defines the driven port for the last observed state of portal jobs.
type JobStore interface {
	// Record inserts or replaces the record identified by (JobID, Type).
	Record(ctx context.Context, rec model.JobRecord) error
	ListByRun(ctx context.Context, runID string) ([]model.JobRecord, error)
}
