package model

import (
	"encoding/json"
	"strings"
	"time"
)

// JobType is the jobType value the portal status endpoint expects.
type JobType string

const (
	JobTypeExport  JobType = "export"
	JobTypePublish JobType = "publish"
)

// Terminal status values. Matching is case-insensitive on the whole string.
const (
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job polling defaults.
const (
	DefaultJobPollInterval = 2 * time.Second
	DefaultJobTimeout      = 30 * time.Minute
)

// DefaultExportFormat is the export format used when none is configured.
const DefaultExportFormat = "Feature Collection"

// ExportRequest is the input of an export item submission.
type ExportRequest struct {
	ItemID       string
	ExportFormat string
	ResultItemID string // Empty lets the portal create a new result item.
	Overwrite    bool
}

// ExportJob identifies a submitted export: the job and the item it writes to.
type ExportJob struct {
	JobID  string
	ItemID string
}

// Ref returns the reference used to poll the export job.
func (j ExportJob) Ref() JobRef {
	return JobRef{ItemID: j.ItemID, JobID: j.JobID, Type: JobTypeExport}
}

// JobRef is everything needed to poll an asynchronous portal job.
type JobRef struct {
	ItemID string
	JobID  string
	Type   JobType
}

// JobStatus is one observation of a job. Raw is the full response body as
// returned by the portal.
type JobStatus struct {
	Ref     JobRef
	Status  string
	Message string
	Raw     json.RawMessage
}

// IsCompleted reports whether the job finished successfully.
func (s JobStatus) IsCompleted() bool {
	return strings.EqualFold(s.Status, JobStatusCompleted)
}

// IsFailed reports whether the job reached the failed state.
func (s JobStatus) IsFailed() bool {
	return strings.EqualFold(s.Status, JobStatusFailed)
}

// IsTerminal reports whether polling can stop.
func (s JobStatus) IsTerminal() bool {
	return s.IsCompleted() || s.IsFailed()
}

// IsKnown reports whether the status is one of processing, completed or failed.
func (s JobStatus) IsKnown() bool {
	return s.IsTerminal() || strings.EqualFold(s.Status, JobStatusProcessing)
}

// JobRecord is the persisted last observation of a job within a sync run.
type JobRecord struct {
	ID        int64
	RunID     string
	JobID     string
	ItemID    string
	Type      JobType
	Status    string
	Attempts  int
	Payload   json.RawMessage
	UpdatedAt time.Time
}
