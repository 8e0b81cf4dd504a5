package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"podcompanion/internal/logging"
	"podcompanion/internal/podsync"
	"podcompanion/internal/services"
	"podcompanion/internal/statuscache"
	"podcompanion/internal/store"
)

// Recover fails jobs a crashed process left running, then rebuilds the
// status projection from storage.
func (w *Worker) Recover(ctx context.Context) error {
	orphaned, err := w.store.FailOrphanedRunning(ctx, OrphanMessage)
	if err != nil {
		return services.Wrap(services.ErrStorage, "worker", "recover", "Failed to fail orphaned jobs", err)
	}
	for _, job := range orphaned {
		logging.WarnWithContext(w.logger, "orphaned job failed", "job_orphaned",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldJobKind, string(job.Kind)),
			logging.String(logging.FieldErrorHint, "re-enqueue the work if it is still wanted"),
			logging.String(logging.FieldImpact, "job will not be retried automatically"),
		)
	}
	if err := statuscache.Rebuild(ctx, w.store, w.cache); err != nil {
		logging.WarnWithContext(w.logger, "status cache rebuild failed", "status_cache_rebuild_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status output may be stale until jobs run"),
		)
	}
	return nil
}

// Start launches the loop in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.status.Running = true
	w.wg.Add(1)
	w.mu.Unlock()

	if w.watch && w.syncer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := podsync.Watch(runCtx, w.cfg.Podsync.ConfigPath, podsync.DefaultDebounce, w.logger, w.TriggerSync); err != nil {
				logging.WarnWithContext(w.logger, "podsync config watcher unavailable", "podsync_watch_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check that podsync.config_path's directory exists"),
					logging.String(logging.FieldImpact, "config changes are picked up on the periodic sync only"),
				)
			}
		}()
	}

	go func() {
		defer w.wg.Done()
		w.loop(runCtx)
	}()
	return nil
}

// Stop cancels the loop and waits for the current job to return.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.status.Running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	if w.syncer != nil && w.syncInterval > 0 {
		w.nextSync = w.clock()
	}
	for {
		if ctx.Err() != nil {
			return
		}
		w.maybeSync(ctx)

		processed, err := w.RunOnce(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			logging.ErrorWithContext(w.logger, "worker tick failed", "worker_tick_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
			w.wait(ctx, w.retryInterval)
		case !processed:
			w.wait(ctx, w.pollInterval)
		}
	}
}

func (w *Worker) wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-w.syncRequests:
		w.runSync(ctx, "config_change")
	}
}

func (w *Worker) maybeSync(ctx context.Context) {
	select {
	case <-w.syncRequests:
		w.runSync(ctx, "config_change")
		return
	default:
	}
	if w.nextSync.IsZero() || w.clock().Before(w.nextSync) {
		return
	}
	w.runSync(ctx, "periodic")
}

func (w *Worker) runSync(ctx context.Context, trigger string) {
	if w.syncer == nil {
		return
	}
	started := w.clock()
	if w.syncInterval > 0 {
		w.nextSync = started.Add(w.syncInterval)
	}
	result, err := w.syncer.SyncExternal(ctx)
	w.recordSync(started, err)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.WarnWithContext(w.logger, "external sync failed", "external_sync_failed",
			logging.Error(err),
			logging.String("trigger", trigger),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldImpact, "merged feeds keep their previous contents"),
		)
		return
	}
	w.logger.Info("external sync finished",
		logging.String(logging.FieldEventType, "external_sync_finished"),
		logging.String("trigger", trigger),
		logging.Int("sources", result.Sources),
		logging.Int("imported", result.Imported),
		logging.Int("merged_written", len(result.Merged.Written)),
	)
}

// RunOnce claims and executes at most one job. It reports whether a job was
// processed. A returned error means storage failed and the tick should be
// retried later.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextPending(ctx)
	if err != nil {
		return false, services.Wrap(services.ErrStorage, "worker", "claim", "Failed to claim next job", err)
	}
	if job == nil {
		return false, nil
	}
	return true, w.execute(ctx, job)
}

func (w *Worker) execute(ctx context.Context, job *store.Job) error {
	jobCtx := services.WithJobID(ctx, job.ID)
	jobCtx = services.WithJobKind(jobCtx, string(job.Kind))
	jobCtx = services.WithRequestID(jobCtx, uuid.NewString())
	logger := logging.WithContext(jobCtx, w.logger)

	started := time.Now()
	logger.Info("job started", logging.String(logging.FieldEventType, "job_start"))
	runErr := w.dispatch(jobCtx, job)

	finishCtx := context.WithoutCancel(jobCtx)
	var finishErr error
	if runErr != nil {
		message := services.Redact(runErr)
		finishErr = w.store.Fail(finishCtx, job.ID, message)
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.String("error", message),
			logging.String(logging.FieldErrorKind, services.Kind(runErr)),
			logging.Duration("duration", time.Since(started)),
		)
	} else {
		finishErr = w.store.Complete(finishCtx, job.ID)
		logger.Info("job completed",
			logging.String(logging.FieldEventType, "job_complete"),
			logging.Duration("duration", time.Since(started)),
		)
	}
	w.recordJob(job, runErr)

	if finishErr != nil {
		if errors.Is(finishErr, store.ErrNotRunning) {
			logging.WarnWithContext(logger, "job finished after leaving running state", "job_not_running",
				logging.Error(finishErr),
				logging.String(logging.FieldImpact, "outcome not recorded on the job row"),
			)
		} else {
			return services.Wrap(services.ErrStorage, "worker", "finish", fmt.Sprintf("Failed to record outcome of job %d", job.ID), finishErr)
		}
	}

	w.notifyOutcome(finishCtx, logger, job, runErr)

	if err := statuscache.RecordJob(finishCtx, w.store, w.cache, job); err != nil {
		logging.WarnWithContext(logger, "status cache update failed", "status_cache_update_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status output may be stale"),
		)
	}
	return nil
}

func (w *Worker) dispatch(ctx context.Context, job *store.Job) (err error) {
	runner, ok := w.runners[job.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrUnknownKind, job.Kind)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: runner panic: %v", services.ErrInternal, r)
			logging.ErrorWithContext(logging.WithContext(ctx, w.logger), "runner panicked", "runner_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
			)
			w.failPanickedDownload(ctx, job, err)
		}
	}()
	return runner.Run(ctx, job)
}

func (w *Worker) failPanickedDownload(ctx context.Context, job *store.Job, cause error) {
	if job.Kind != store.KindDownloadVideo {
		return
	}
	var payload store.DownloadVideoPayload
	if err := job.DecodePayload(&payload); err != nil || payload.VideoID == "" {
		return
	}
	err := w.store.MarkDownloadFailed(context.WithoutCancel(ctx), payload.VideoID, services.Redact(cause))
	if err != nil && !errors.Is(err, store.ErrInvalidTransition) {
		logging.ErrorWithContext(w.logger, "failed to record download failure", "download_record_failed",
			logging.Error(err),
			logging.String(logging.FieldVideoID, payload.VideoID),
		)
	}
}
