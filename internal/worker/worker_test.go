package worker_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"podcompanion/internal/feeds"
	"podcompanion/internal/services"
	"podcompanion/internal/statuscache"
	"podcompanion/internal/store"
	"podcompanion/internal/testsupport"
	"podcompanion/internal/worker"
)

type recordingRunner struct {
	mu       sync.Mutex
	calls    int
	err      error
	panicMsg string
	jobIDs   []int64
	requests []string
}

func (r *recordingRunner) Run(ctx context.Context, job *store.Job) error {
	r.mu.Lock()
	r.calls++
	id, _ := services.JobIDFromContext(ctx)
	r.jobIDs = append(r.jobIDs, id)
	rid, _ := services.RequestIDFromContext(ctx)
	r.requests = append(r.requests, rid)
	r.mu.Unlock()
	if r.panicMsg != "" {
		panic(r.panicMsg)
	}
	return r.err
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeSyncer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSyncer) SyncExternal(context.Context) (feeds.SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return feeds.SyncResult{Sources: 1}, f.err
}

func (f *fakeSyncer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func loadJob(t *testing.T, st *store.Store, id int64) *store.Job {
	t.Helper()
	job, err := st.JobByID(context.Background(), id)
	if err != nil || job == nil {
		t.Fatalf("JobByID failed: job=%v err=%v", job, err)
	}
	return job
}

func TestRunOnceEmptyQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	w := worker.New(cfg, st, nil)

	processed, err := w.RunOnce(context.Background())
	if err != nil || processed {
		t.Fatalf("expected idle tick, processed=%v err=%v", processed, err)
	}
}

func TestRunOnceCompletesJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	runner := &recordingRunner{}
	cache := statuscache.NewMemory()
	w := worker.New(cfg, st, nil,
		worker.WithRunner(store.KindRegenerateFeeds, runner),
		worker.WithStatusCache(cache),
	)

	job, err := st.Enqueue(ctx, store.KindRegenerateFeeds, nil)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	processed, err := w.RunOnce(ctx)
	if err != nil || !processed {
		t.Fatalf("RunOnce failed: processed=%v err=%v", processed, err)
	}
	if got := loadJob(t, st, job.ID); got.Status != store.JobDone {
		t.Fatalf("expected done job, got %+v", got)
	}
	if runner.jobIDs[0] != job.ID || runner.requests[0] == "" {
		t.Fatalf("expected job context, got ids=%v requests=%v", runner.jobIDs, runner.requests)
	}
	snap, _ := cache.Snapshot(ctx)
	if snap.Jobs[store.JobDone] != 1 {
		t.Fatalf("expected cache refreshed, got %+v", snap.Jobs)
	}
	if status := w.Status(); status.Processed != 1 || status.LastJobID != job.ID {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestRunOnceRecordsRedactedFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	runner := &recordingRunner{err: errors.New("open /srv/private/media/file.mp3: permission denied")}
	w := worker.New(cfg, st, nil, worker.WithRunner(store.KindRegenerateFeeds, runner))

	job, _ := st.Enqueue(ctx, store.KindRegenerateFeeds, nil)
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	got := loadJob(t, st, job.ID)
	if got.Status != store.JobFailed {
		t.Fatalf("expected failed job, got %+v", got)
	}
	if strings.Contains(got.Error, "/srv/private") || !strings.Contains(got.Error, "permission denied") {
		t.Fatalf("expected redacted error, got %q", got.Error)
	}
}

func TestRunOnceFailsUnregisteredKind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	w := worker.New(cfg, st, nil)

	job, _ := st.Enqueue(ctx, store.KindSyncExternalFeeds, nil)
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	got := loadJob(t, st, job.ID)
	if got.Status != store.JobFailed || !strings.Contains(got.Error, "unknown job kind") {
		t.Fatalf("expected unknown kind failure, got %+v", got)
	}
}

func TestRunOnceRecoversPanicAndFailsDownload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	ch := testsupport.AddChannel(t, st, "https://www.youtube.com/@chan", "chan")
	testsupport.AddVideo(t, st, ch.ID, "dQw4w9WgXcQ", "One", testsupport.Day(1))
	job, err := st.QueueDownload(ctx, "dQw4w9WgXcQ")
	if err != nil || job == nil {
		t.Fatalf("QueueDownload failed: job=%v err=%v", job, err)
	}

	runner := &recordingRunner{panicMsg: "boom"}
	w := worker.New(cfg, st, nil, worker.WithRunner(store.KindDownloadVideo, runner))
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	got := loadJob(t, st, job.ID)
	if got.Status != store.JobFailed || !strings.Contains(got.Error, "boom") {
		t.Fatalf("expected panic recorded as failure, got %+v", got)
	}
	rec, err := st.DownloadByVideoID(ctx, "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("DownloadByVideoID failed: %v", err)
	}
	if rec.Status != store.DownloadFailed {
		t.Fatalf("expected download record failed, got %+v", rec)
	}
}

func TestRecoverFailsOrphanedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	ch := testsupport.AddChannel(t, st, "https://www.youtube.com/@chan", "chan")
	testsupport.AddVideo(t, st, ch.ID, "dQw4w9WgXcQ", "One", testsupport.Day(1))
	job, _ := st.QueueDownload(ctx, "dQw4w9WgXcQ")
	if _, err := st.ClaimNextPending(ctx); err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if err := st.MarkDownloadRunning(ctx, "dQw4w9WgXcQ"); err != nil {
		t.Fatalf("MarkDownloadRunning failed: %v", err)
	}

	cache := statuscache.NewMemory()
	w := worker.New(cfg, st, nil, worker.WithStatusCache(cache))
	if err := w.Recover(ctx); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	got := loadJob(t, st, job.ID)
	if got.Status != store.JobFailed || got.Error != worker.OrphanMessage {
		t.Fatalf("expected orphan failure, got %+v", got)
	}
	state, ok, _ := cache.Download(ctx, "dQw4w9WgXcQ")
	if !ok || state.Status != store.DownloadFailed {
		t.Fatalf("expected rebuilt cache to show failed download, got %+v ok=%v", state, ok)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestLoopProcessesJobsAndSyncsImmediately(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Podsync.SyncInterval = 3600
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	runner := &recordingRunner{}
	syncer := &fakeSyncer{}
	w := worker.New(cfg, st, nil,
		worker.WithRunner(store.KindRegenerateFeeds, runner),
		worker.WithSyncer(syncer),
		worker.WithIntervals(10*time.Millisecond, 10*time.Millisecond),
	)

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()
	if err := w.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	waitFor(t, "initial sync", func() bool { return syncer.count() == 1 })
	if _, err := st.Enqueue(ctx, store.KindRegenerateFeeds, nil); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	waitFor(t, "job processed", func() bool { return runner.count() == 1 })
	waitFor(t, "status recorded", func() bool { return w.Status().Processed == 1 })

	if syncer.count() != 1 {
		t.Fatalf("expected a single sync within the interval, got %d", syncer.count())
	}
	w.Stop()
	if w.Status().Running {
		t.Fatal("expected worker stopped")
	}
}

func TestTriggerSyncRunsWithoutInterval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Podsync.SyncInterval = 0
	st := testsupport.MustOpenStore(t, cfg)
	syncer := &fakeSyncer{err: errors.New("podsync unreachable")}
	w := worker.New(cfg, st, nil,
		worker.WithSyncer(syncer),
		worker.WithIntervals(time.Hour, time.Hour),
	)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	time.Sleep(30 * time.Millisecond)
	if syncer.count() != 0 {
		t.Fatalf("expected no periodic sync when disabled, got %d", syncer.count())
	}
	w.TriggerSync()
	waitFor(t, "triggered sync", func() bool { return syncer.count() == 1 })
	waitFor(t, "sync error recorded", func() bool { return w.Status().LastSyncError != "" })
}
