// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
	"github.com/ericfisherdev/travelerpub/internal/domain/port/driven"
)

// Run triggers recorded on SyncRun.Trigger.
const (
	TriggerCLI      = "cli"
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
)

// DefaultSyncInterval is the schedule used when SyncConfig.Interval is unset.
const DefaultSyncInterval = time.Hour

// SyncConfig holds the paths and item settings of the publish workflow.
type SyncConfig struct {
	StagingDir  string
	PackagePath string
	Settings    model.PublishSettings
	Interval    time.Duration
}

// SyncService orchestrates one publish cycle: fetch feeds, build the
// geodatabase package, upload and publish it, then export the feature
// collection. Runs are persisted and never overlap.
type SyncService struct {
	content  driven.ContentClient
	jobs     *JobRunner
	fetcher  driven.FeedFetcher
	builder  driven.PackageBuilder
	runStore driven.RunStore
	jobStore driven.JobStore
	cfg      SyncConfig
	now      func() time.Time

	runMu     sync.Mutex
	triggerCh chan string
}

// NewSyncService creates a SyncService. fetcher and builder may be nil, in
// which case the package at cfg.PackagePath is published as is.
func NewSyncService(
	content driven.ContentClient,
	jobs *JobRunner,
	fetcher driven.FeedFetcher,
	builder driven.PackageBuilder,
	runStore driven.RunStore,
	jobStore driven.JobStore,
	cfg SyncConfig,
) *SyncService {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSyncInterval
	}
	if cfg.Settings.ServiceName == "" {
		cfg.Settings.ServiceName = cfg.Settings.Title
	}
	return &SyncService{
		content:   content,
		jobs:      jobs,
		fetcher:   fetcher,
		builder:   builder,
		runStore:  runStore,
		jobStore:  jobStore,
		cfg:       cfg,
		now:       time.Now,
		triggerCh: make(chan string, 1),
	}
}

// Start runs a sync immediately, then on the configured interval. It also
// serves manual runs queued with Trigger. Start blocks until the context is
// canceled.
func (s *SyncService) Start(ctx context.Context) {
	if _, err := s.RunOnce(ctx, TriggerSchedule); err != nil {
		slog.Error("initial sync failed", "error", err)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync service stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx, TriggerSchedule); err != nil {
				slog.Error("scheduled sync failed", "error", err)
			}
		case trigger := <-s.triggerCh:
			if _, err := s.RunOnce(ctx, trigger); err != nil {
				slog.Error("manual sync failed", "trigger", trigger, "error", err)
			}
		}
	}
}

// Trigger queues a manual run for the Start loop. It returns false when a
// manual run is already queued.
func (s *SyncService) Trigger() bool {
	select {
	case s.triggerCh <- TriggerAPI:
		return true
	default:
		return false
	}
}

// RunOnce executes a full sync and records it. The returned run reflects the
// persisted state, including the error message of a failed run.
func (s *SyncService) RunOnce(ctx context.Context, trigger string) (model.SyncRun, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	run := model.SyncRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Status:    model.RunStatusRunning,
		StartedAt: s.now().UTC(),
	}
	if err := s.runStore.Create(ctx, run); err != nil {
		return run, fmt.Errorf("create sync run: %w", err)
	}
	slog.Info("sync started", "run_id", run.ID, "trigger", trigger)

	runErr := s.execute(ctx, &run)

	run.FinishedAt = s.now().UTC()
	run.Status = model.RunStatusSucceeded
	if runErr != nil {
		run.Status = model.RunStatusFailed
		run.Error = runErr.Error()
	}

	// A canceled run is still recorded.
	if err := s.runStore.Finish(context.WithoutCancel(ctx), run); err != nil {
		slog.Error("finish sync run failed", "run_id", run.ID, "error", err)
	}

	if runErr != nil {
		slog.Error("sync failed", "run_id", run.ID, "duration", run.Duration().Round(time.Millisecond), "error", runErr)
		return run, runErr
	}

	slog.Info("sync complete",
		"run_id", run.ID,
		"package_item_id", run.PackageItemID,
		"service_item_id", run.ServiceItemID,
		"collection_item_id", run.CollectionItemID,
		"duration", run.Duration().Round(time.Millisecond),
	)
	return run, nil
}

// execute runs the workflow steps, recording item and job ids on run as they
// become known.
func (s *SyncService) execute(ctx context.Context, run *model.SyncRun) error {
	if s.fetcher != nil {
		feeds, err := s.fetcher.Fetch(ctx, s.cfg.StagingDir)
		if err != nil {
			return fmt.Errorf("fetch traveler feeds: %w", err)
		}
		for _, f := range feeds {
			slog.Info("feed staged", "run_id", run.ID, "feed", f.Name, "records", f.Records, "path", f.Path)
		}
	}

	if s.builder != nil {
		if err := s.builder.Build(ctx, s.cfg.StagingDir, s.cfg.PackagePath); err != nil {
			return fmt.Errorf("build package: %w", err)
		}
	}

	settings := s.cfg.Settings

	gdb, err := s.findOne(ctx, settings.Title, model.ItemTypeFileGeodatabase)
	if err != nil {
		return err
	}
	added := false
	if gdb == nil {
		gdb, err = s.addPackage(ctx, settings)
		if err != nil {
			return err
		}
		added = true
	}
	run.PackageItemID = gdb.ID

	service, err := s.findOne(ctx, settings.Title, model.ItemTypeFeatureService)
	if err != nil {
		return err
	}

	req := model.PublishRequest{ItemID: gdb.ID, ServiceName: settings.ServiceName}
	if service != nil {
		if !added {
			slog.Info("updating package item", "item_id", gdb.ID, "path", s.cfg.PackagePath)
			if err := s.content.UpdateItemData(ctx, gdb.ID, s.cfg.PackagePath); err != nil {
				return err
			}
		}
		req.Overwrite = true
	}

	published, err := s.publish(ctx, run, req)
	if err != nil {
		return err
	}
	run.ServiceItemID = published.ServiceItemID

	collection, err := s.findOne(ctx, settings.Title, model.ItemTypeFeatureCollection)
	if err != nil {
		return err
	}

	exportReq := model.ExportRequest{
		ItemID:       published.ServiceItemID,
		ExportFormat: settings.ExportFormat,
	}
	if collection != nil {
		exportReq.ResultItemID = collection.ID
		exportReq.Overwrite = true
	}

	job, err := s.jobs.Submit(ctx, exportReq)
	if err != nil {
		return fmt.Errorf("export service %s: %w", published.ServiceItemID, err)
	}
	run.CollectionItemID = job.ItemID
	run.ExportJobID = job.JobID

	if _, err := s.jobs.Watch(ctx, job.Ref(), s.recordPoll(ctx, run.ID)); err != nil {
		return fmt.Errorf("export service %s: %w", published.ServiceItemID, err)
	}
	return nil
}

// findOne returns the single item owned by the portal user with the given
// title and type, or nil when there is none.
func (s *SyncService) findOne(ctx context.Context, title string, itemType model.ItemType) (*model.Item, error) {
	query := model.ItemQuery{Title: title, Type: itemType}
	items, err := s.content.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	switch len(items) {
	case 0:
		return nil, nil
	case 1:
		return &items[0], nil
	default:
		return nil, &model.MultipleResultsError{Query: query, Results: items}
	}
}

// addPackage uploads the package as a new file geodatabase item.
func (s *SyncService) addPackage(ctx context.Context, settings model.PublishSettings) (*model.Item, error) {
	newItem := model.NewItem{
		Title:       settings.Title,
		Type:        model.ItemTypeFileGeodatabase,
		Tags:        settings.Tags,
		Description: settings.Description,
		Culture:     settings.Culture,
		Folder:      settings.Folder,
	}

	folderID, err := s.content.EnsureFolder(ctx, settings.Folder)
	if err != nil {
		return nil, &model.ItemAddFailError{Item: newItem, Err: err}
	}

	item, err := s.content.AddItem(ctx, newItem, folderID, s.cfg.PackagePath)
	if err != nil {
		return nil, &model.ItemAddFailError{Item: newItem, Err: err}
	}
	return &item, nil
}

// publish starts publishing and waits for the publish job when the portal
// returns one.
func (s *SyncService) publish(ctx context.Context, run *model.SyncRun, req model.PublishRequest) (model.PublishResult, error) {
	result, err := s.content.Publish(ctx, req)
	if err != nil {
		return model.PublishResult{}, classifyPublishError(req.ItemID, err)
	}
	if result.JobID == "" {
		return result, nil
	}

	ref := model.JobRef{ItemID: result.ServiceItemID, JobID: result.JobID, Type: model.JobTypePublish}
	if _, err := s.jobs.Watch(ctx, ref, s.recordPoll(ctx, run.ID)); err != nil {
		return model.PublishResult{}, classifyPublishError(req.ItemID, err)
	}
	return result, nil
}

// recordPoll returns a PollFunc persisting each observation of a job.
// Persistence failures are logged and do not fail the run.
func (s *SyncService) recordPoll(ctx context.Context, runID string) PollFunc {
	return func(status model.JobStatus, attempt int) {
		rec := model.JobRecord{
			RunID:    runID,
			JobID:    status.Ref.JobID,
			ItemID:   status.Ref.ItemID,
			Type:     status.Ref.Type,
			Status:   status.Status,
			Attempts: attempt,
			Payload:  status.Raw,
		}
		if err := s.jobStore.Record(context.WithoutCancel(ctx), rec); err != nil {
			slog.Warn("record job status failed", "run_id", runID, "job_id", rec.JobID, "error", err)
		}
	}
}

// classifyPublishError wraps the failures of the publish step that the portal
// reported in a *model.PublishError. Cancellation and transport errors pass
// through unchanged.
func classifyPublishError(itemID string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var (
		apiErr     *model.APIError
		failureErr *model.JobFailureError
		timeoutErr *model.JobTimeoutError
	)
	if errors.As(err, &apiErr) || errors.As(err, &failureErr) || errors.As(err, &timeoutErr) {
		return &model.PublishError{ItemID: itemID, Err: err}
	}
	return err
}
