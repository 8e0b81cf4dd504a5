package daemon_test

import (
	"context"
	"errors"
	"testing"

	"podcompanion/internal/daemon"
	"podcompanion/internal/store"
	"podcompanion/internal/testsupport"
	"podcompanion/internal/worker"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Podsync.SyncInterval = 0
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := st.Enqueue(ctx, store.KindRegenerateFeeds, nil); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	orphan, err := st.ClaimNextPending(ctx)
	if err != nil || orphan == nil {
		t.Fatalf("ClaimNextPending failed: job=%v err=%v", orphan, err)
	}

	d, err := daemon.New(cfg, st, nil, worker.New(cfg, st, nil))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Status().Running {
		t.Fatal("expected daemon to report running")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	job, err := st.JobByID(ctx, orphan.ID)
	if err != nil {
		t.Fatalf("JobByID failed: %v", err)
	}
	if job.Status != store.JobFailed || job.Error != worker.OrphanMessage {
		t.Fatalf("expected orphaned job failed at start, got %+v", job)
	}

	d.Stop()
	if status := d.Status(); status.Running || status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected status after stop: %+v", status)
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Podsync.SyncInterval = 0
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, err := daemon.New(cfg, st, nil, worker.New(cfg, st, nil))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer first.Stop()

	second, err := daemon.New(cfg, st, nil, worker.New(cfg, st, nil))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected lock contention, got %v", err)
	}
}
