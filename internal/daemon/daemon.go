package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"podcompanion/internal/config"
	"podcompanion/internal/logging"
	"podcompanion/internal/staging"
	"podcompanion/internal/store"
	"podcompanion/internal/worker"
)

// ErrAlreadyRunning reports that another daemon holds the lock for this data directory.
var ErrAlreadyRunning = errors.New("another podcompanion daemon instance is already running")

// Daemon owns the worker lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	worker *worker.Worker

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Worker       worker.Status
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, wk *worker.Worker) (*Daemon, error) {
	if cfg == nil || st == nil || wk == nil {
		return nil, errors.New("daemon requires config, store, and worker")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		worker:   wk,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the lock, recovers jobs a previous process left running,
// and launches the worker.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	if err := d.worker.Recover(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover jobs: %w", err)
	}
	if swept := staging.CleanStale(ctx, d.cfg.Paths.StagingDir, staging.DefaultMaxAge, d.logger); len(swept.Removed) > 0 {
		d.logger.Info("staging leftovers removed",
			logging.String(logging.FieldEventType, "staging_swept"),
			logging.Int("removed", len(swept.Removed)),
		)
	}
	if err := d.worker.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start worker: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("podcompanion daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop stops the worker and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.worker.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
		)
	}
	d.running.Store(false)
	status := d.worker.Status()
	d.logger.Info("podcompanion daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
		logging.Int("jobs_processed", status.Processed),
	)
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Worker:       d.worker.Status(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
