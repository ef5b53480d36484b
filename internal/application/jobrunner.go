package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
	"github.com/ericfisherdev/travelerpub/internal/domain/port/driven"
)

// JobRunnerConfig bounds how a job is polled. A zero Timeout or MaxAttempts
// means no limit of that kind; a zero Interval uses model.DefaultJobPollInterval.
type JobRunnerConfig struct {
	Interval    time.Duration
	Timeout     time.Duration
	MaxAttempts int
}

// PollFunc observes every status returned while waiting. attempt starts at 1.
type PollFunc func(status model.JobStatus, attempt int)

// JobRunnerOption customizes JobRunner creation.
type JobRunnerOption func(*JobRunner)

// WithSleep replaces the context-aware sleep between polls. Intended for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) JobRunnerOption {
	return func(r *JobRunner) {
		r.sleep = sleep
	}
}

// WithRunnerClock replaces the clock used for the timeout. Intended for tests.
func WithRunnerClock(now func() time.Time) JobRunnerOption {
	return func(r *JobRunner) {
		r.now = now
	}
}

// JobRunner submits export jobs and polls asynchronous portal jobs until they
// complete or fail.
type JobRunner struct {
	client      driven.JobClient
	interval    time.Duration
	timeout     time.Duration
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

// NewJobRunner creates a JobRunner polling through client.
func NewJobRunner(client driven.JobClient, cfg JobRunnerConfig, opts ...JobRunnerOption) *JobRunner {
	r := &JobRunner{
		client:      client,
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		sleep:       sleepContext,
		now:         time.Now,
	}
	if r.interval <= 0 {
		r.interval = model.DefaultJobPollInterval
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Export submits an export and waits for it. The returned job identifies the
// result item even when waiting fails.
func (r *JobRunner) Export(ctx context.Context, req model.ExportRequest) (model.ExportJob, model.JobStatus, error) {
	job, err := r.Submit(ctx, req)
	if err != nil {
		return model.ExportJob{}, model.JobStatus{}, err
	}

	status, err := r.Wait(ctx, job.Ref())
	return job, status, err
}

// Submit submits an export without waiting for it.
func (r *JobRunner) Submit(ctx context.Context, req model.ExportRequest) (model.ExportJob, error) {
	return r.client.SubmitExport(ctx, req)
}

// Wait polls the job until its status is completed or failed.
func (r *JobRunner) Wait(ctx context.Context, ref model.JobRef) (model.JobStatus, error) {
	return r.Watch(ctx, ref, nil)
}

// Watch is Wait with a callback invoked after every status call.
//
// A completed status is returned as is. A failed status returns a
// *model.JobFailureError carrying it. Any other status keeps polling, sleeping
// the configured interval between calls, until the attempt or time limit is
// exceeded (*model.JobTimeoutError) or ctx is done. Status call errors are
// returned immediately.
func (r *JobRunner) Watch(ctx context.Context, ref model.JobRef, onPoll PollFunc) (model.JobStatus, error) {
	if ref.Type == "" {
		ref.Type = model.JobTypeExport
	}

	start := r.now()
	warned := make(map[string]bool)
	var last *model.JobStatus

	for attempt := 1; ; attempt++ {
		status, err := r.client.JobStatus(ctx, ref)
		if err != nil {
			return model.JobStatus{}, err
		}
		last = &status

		slog.Info("job status",
			"job_type", ref.Type,
			"job_id", ref.JobID,
			"item_id", ref.ItemID,
			"attempt", attempt,
			"status", status.Status,
			"response", string(status.Raw),
		)
		if onPoll != nil {
			onPoll(status, attempt)
		}

		switch {
		case status.IsCompleted():
			return status, nil
		case status.IsFailed():
			return status, &model.JobFailureError{Status: status}
		case !status.IsKnown():
			key := strings.ToLower(status.Status)
			if !warned[key] {
				warned[key] = true
				slog.Warn("unknown job status, continuing to poll",
					"job_type", ref.Type,
					"job_id", ref.JobID,
					"status", status.Status,
				)
			}
		}

		elapsed := r.now().Sub(start)
		if (r.maxAttempts > 0 && attempt >= r.maxAttempts) || (r.timeout > 0 && elapsed >= r.timeout) {
			return status, &model.JobTimeoutError{
				Ref:      ref,
				Attempts: attempt,
				Elapsed:  elapsed,
				Last:     last,
			}
		}

		if err := r.sleep(ctx, r.interval); err != nil {
			return status, err
		}
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
