package model

import "time"

// RunStatus represents the state of a sync run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// SyncRun is one execution of the publish workflow.
type SyncRun struct {
	ID               string
	Trigger          string // "cli", "schedule" or "api".
	Status           RunStatus
	Error            string
	PackageItemID    string
	ServiceItemID    string
	CollectionItemID string
	ExportJobID      string
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Duration returns how long the run took, or zero while it is still running.
func (r SyncRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FeedResult summarizes one downloaded traveler information feed.
type FeedResult struct {
	Name    string
	URL     string
	Path    string
	Records int
}
