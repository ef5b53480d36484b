package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
	"github.com/ericfisherdev/travelerpub/internal/domain/port/driven"
)

func newRun(id string, startedAt time.Time) model.SyncRun {
	return model.SyncRun{
		ID:        id,
		Trigger:   "cli",
		Status:    model.RunStatusRunning,
		StartedAt: startedAt,
	}
}

func TestRunRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepo(db)
	ctx := context.Background()
	started := time.Date(2026, 2, 3, 4, 5, 6, 789, time.UTC)

	require.NoError(t, repo.Create(ctx, newRun("run-1", started)))

	got, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, "cli", got.Trigger)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.True(t, started.Equal(got.StartedAt))
	assert.True(t, got.FinishedAt.IsZero())
	assert.Zero(t, got.Duration())
}

func TestRunRepo_Finish(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepo(db)
	ctx := context.Background()
	started := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	run := newRun("run-1", started)
	require.NoError(t, repo.Create(ctx, run))

	run.Status = model.RunStatusFailed
	run.Error = "publish item gdb-1: portal error 409: exists"
	run.PackageItemID = "gdb-1"
	run.ServiceItemID = "svc-1"
	run.CollectionItemID = "fc-1"
	run.ExportJobID = "job-1"
	run.FinishedAt = started.Add(90 * time.Second)
	require.NoError(t, repo.Finish(ctx, run))

	got, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, run.Error, got.Error)
	assert.Equal(t, "gdb-1", got.PackageItemID)
	assert.Equal(t, "svc-1", got.ServiceItemID)
	assert.Equal(t, "fc-1", got.CollectionItemID)
	assert.Equal(t, "job-1", got.ExportJobID)
	assert.Equal(t, 90*time.Second, got.Duration())
}

func TestRunRepo_FinishUnknown(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepo(db)

	err := repo.Finish(context.Background(), model.SyncRun{ID: "missing", Status: model.RunStatusSucceeded})

	require.ErrorIs(t, err, driven.ErrRunNotFound)
}

func TestRunRepo_GetUnknown(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepo(db)

	got, err := repo.Get(context.Background(), "missing")

	require.ErrorIs(t, err, driven.ErrRunNotFound)
	assert.Nil(t, got)
}

func TestRunRepo_CreateDuplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRun("run-1", time.Now())))
	require.Error(t, repo.Create(ctx, newRun("run-1", time.Now())))
}

func TestRunRepo_ListRecent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepo(db)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 5 {
		require.NoError(t, repo.Create(ctx, newRun(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := repo.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-4", runs[0].ID)
	assert.Equal(t, "run-3", runs[1].ID)
	assert.Equal(t, "run-2", runs[2].ID)

	all, err := repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestRunRepo_ListRecentEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepo(db)

	runs, err := repo.ListRecent(context.Background(), 10)

	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestJobRepo_RecordUpserts(t *testing.T) {
	db := setupTestDB(t)
	runs := NewRunRepo(db)
	jobs := NewJobRepo(db)
	ctx := context.Background()
	require.NoError(t, runs.Create(ctx, newRun("run-1", time.Now())))

	rec := model.JobRecord{
		RunID:    "run-1",
		JobID:    "job-1",
		ItemID:   "fc-1",
		Type:     model.JobTypeExport,
		Status:   "processing",
		Attempts: 1,
		Payload:  json.RawMessage(`{"status":"processing"}`),
	}
	require.NoError(t, jobs.Record(ctx, rec))

	rec.Status = "completed"
	rec.Attempts = 3
	rec.Payload = json.RawMessage(`{"status":"completed","itemId":"fc-1"}`)
	require.NoError(t, jobs.Record(ctx, rec))

	got, err := jobs.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "completed", got[0].Status)
	assert.Equal(t, 3, got[0].Attempts)
	assert.Equal(t, model.JobTypeExport, got[0].Type)
	assert.Equal(t, "fc-1", got[0].ItemID)
	assert.JSONEq(t, `{"status":"completed","itemId":"fc-1"}`, string(got[0].Payload))
	assert.False(t, got[0].UpdatedAt.IsZero())
}

func TestJobRepo_SameJobIDDifferentType(t *testing.T) {
	db := setupTestDB(t)
	runs := NewRunRepo(db)
	jobs := NewJobRepo(db)
	ctx := context.Background()
	require.NoError(t, runs.Create(ctx, newRun("run-1", time.Now())))

	require.NoError(t, jobs.Record(ctx, model.JobRecord{RunID: "run-1", JobID: "job-1", ItemID: "svc-1", Type: model.JobTypePublish, Status: "completed"}))
	require.NoError(t, jobs.Record(ctx, model.JobRecord{RunID: "run-1", JobID: "job-1", ItemID: "fc-1", Type: model.JobTypeExport, Status: "processing"}))

	got, err := jobs.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.JobTypePublish, got[0].Type)
	assert.Equal(t, model.JobTypeExport, got[1].Type)
	assert.Nil(t, got[0].Payload)
}

func TestJobRepo_ListByRunFiltersRuns(t *testing.T) {
	db := setupTestDB(t)
	runs := NewRunRepo(db)
	jobs := NewJobRepo(db)
	ctx := context.Background()
	require.NoError(t, runs.Create(ctx, newRun("run-1", time.Now())))
	require.NoError(t, runs.Create(ctx, newRun("run-2", time.Now())))

	require.NoError(t, jobs.Record(ctx, model.JobRecord{RunID: "run-1", JobID: "a", Type: model.JobTypeExport, Status: "completed"}))
	require.NoError(t, jobs.Record(ctx, model.JobRecord{RunID: "run-2", JobID: "b", Type: model.JobTypeExport, Status: "failed"}))

	got, err := jobs.ListByRun(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].JobID)

	none, err := jobs.ListByRun(ctx, "run-9")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestJobRepo_RequiresRun(t *testing.T) {
	db := setupTestDB(t)
	jobs := NewJobRepo(db)

	err := jobs.Record(context.Background(), model.JobRecord{RunID: "missing", JobID: "a", Type: model.JobTypeExport, Status: "completed"})

	require.Error(t, err, "foreign keys are enforced")
}
