package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
	"github.com/ericfisherdev/travelerpub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.JobStore = (*JobRepo)(nil)

// JobRepo is the SQLite implementation of the JobStore port interface.
type JobRepo struct {
	db *DB
}

// NewJobRepo creates a new JobRepo backed by the given DB.
func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

// Record inserts a job observation or replaces the previous one for the same
// job id and type.
func (r *JobRepo) Record(ctx context.Context, rec model.JobRecord) error {
	const query = `
		INSERT INTO jobs (run_id, job_id, job_type, item_id, status, attempts, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id, job_type) DO UPDATE SET
			run_id = excluded.run_id,
			item_id = excluded.item_id,
			status = excluded.status,
			attempts = excluded.attempts,
			payload = excluded.payload,
			updated_at = excluded.updated_at`

	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		rec.RunID, rec.JobID, string(rec.Type), rec.ItemID, rec.Status,
		rec.Attempts, string(rec.Payload), formatTime(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("record %s job %s: %w", rec.Type, rec.JobID, err)
	}
	return nil
}

// ListByRun returns the jobs of a run in the order they were first recorded.
func (r *JobRepo) ListByRun(ctx context.Context, runID string) ([]model.JobRecord, error) {
	const query = `
		SELECT id, run_id, job_id, job_type, item_id, status, attempts, payload, updated_at
		FROM jobs WHERE run_id = ? ORDER BY id`

	rows, err := r.db.Reader.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list jobs of run %s: %w", runID, err)
	}
	defer rows.Close()

	jobs := []model.JobRecord{}
	for rows.Next() {
		var rec model.JobRecord
		var jobType, payload, updatedAt string

		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.JobID, &jobType, &rec.ItemID,
			&rec.Status, &rec.Attempts, &payload, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		rec.Type = model.JobType(jobType)
		if payload != "" {
			rec.Payload = json.RawMessage(payload)
		}
		rec.UpdatedAt, err = parseTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at for job %s: %w", rec.JobID, err)
		}

		jobs = append(jobs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, nil
}
