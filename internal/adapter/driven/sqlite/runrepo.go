package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
	"github.com/ericfisherdev/travelerpub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunStore = (*RunRepo)(nil)

// DefaultRunListLimit caps ListRecent when the caller passes a non-positive limit.
const DefaultRunListLimit = 20

// RunRepo is the SQLite implementation of the RunStore port interface.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new RunRepo backed by the given DB.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

const runColumns = `id, triggered_by, status, error_message, package_item_id, service_item_id,
	collection_item_id, export_job_id, started_at, finished_at`

// Create inserts a new run.
func (r *RunRepo) Create(ctx context.Context, run model.SyncRun) error {
	const query = `INSERT INTO sync_runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		run.ID, run.Trigger, string(run.Status), run.Error,
		run.PackageItemID, run.ServiceItemID, run.CollectionItemID, run.ExportJobID,
		formatTime(startedAt), formatTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("create sync run %s: %w", run.ID, err)
	}
	return nil
}

// Finish stores the final state of a run. Returns driven.ErrRunNotFound if the
// run was never created.
func (r *RunRepo) Finish(ctx context.Context, run model.SyncRun) error {
	const query = `UPDATE sync_runs SET
		status = ?, error_message = ?, package_item_id = ?, service_item_id = ?,
		collection_item_id = ?, export_job_id = ?, finished_at = ?
		WHERE id = ?`

	finishedAt := run.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		string(run.Status), run.Error, run.PackageItemID, run.ServiceItemID,
		run.CollectionItemID, run.ExportJobID, formatTime(finishedAt), run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish sync run %s: %w", run.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("finish sync run %s: %w", run.ID, driven.ErrRunNotFound)
	}
	return nil
}

// Get retrieves a run by id. Returns driven.ErrRunNotFound if it does not exist.
func (r *RunRepo) Get(ctx context.Context, id string) (*model.SyncRun, error) {
	const query = `SELECT ` + runColumns + ` FROM sync_runs WHERE id = ?`

	run, err := scanRun(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get sync run %s: %w", id, driven.ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get sync run %s: %w", id, err)
	}
	return run, nil
}

// ListRecent returns up to limit runs, newest first.
func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]model.SyncRun, error) {
	if limit <= 0 {
		limit = DefaultRunListLimit
	}

	const query = `SELECT ` + runColumns + ` FROM sync_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer rows.Close()

	runs := []model.SyncRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync runs: %w", err)
	}

	return runs, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*model.SyncRun, error) {
	var run model.SyncRun
	var status, startedAt, finishedAt string

	err := s.Scan(&run.ID, &run.Trigger, &status, &run.Error,
		&run.PackageItemID, &run.ServiceItemID, &run.CollectionItemID, &run.ExportJobID,
		&startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)

	run.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if finishedAt != "" {
		run.FinishedAt, err = parseTime(finishedAt)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
	}

	return &run, nil
}

// formatTime stores instants as UTC RFC 3339 text so they sort lexically.
// The zero time is stored as an empty string.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05.000000000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
