// Package worker drives the job queue: a single goroutine claims one pending
// job per tick, dispatches it to the runner registered for its kind, and
// records the outcome. The same loop runs the periodic Podsync sync.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"podcompanion/internal/config"
	"podcompanion/internal/feeds"
	"podcompanion/internal/logging"
	"podcompanion/internal/notifications"
	"podcompanion/internal/statuscache"
	"podcompanion/internal/store"
)

// OrphanMessage is recorded on jobs a previous process left running.
const OrphanMessage = "interrupted by daemon restart"

// Runner executes one claimed job.
type Runner interface {
	Run(ctx context.Context, job *store.Job) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, job *store.Job) error

func (f RunnerFunc) Run(ctx context.Context, job *store.Job) error { return f(ctx, job) }

// Syncer performs the external feed sync.
type Syncer interface {
	SyncExternal(ctx context.Context) (feeds.SyncResult, error)
}

// Worker owns the polling loop.
type Worker struct {
	cfg     *config.Config
	store   *store.Store
	logger  *slog.Logger
	cache   statuscache.Cache
	runners map[store.JobKind]Runner
	syncer  Syncer
	notify  notifications.Service

	pollInterval  time.Duration
	retryInterval time.Duration
	syncInterval  time.Duration
	watch         bool
	clock         func() time.Time

	syncRequests chan struct{}

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	status   Status
	nextSync time.Time
}

// Status is a point-in-time summary of the loop.
type Status struct {
	Running       bool
	Processed     int
	LastJobID     int64
	LastJobKind   store.JobKind
	LastError     string
	LastSyncAt    time.Time
	LastSyncError string
}

// Option customizes a Worker.
type Option func(*Worker)

// WithRunner registers the runner for a job kind.
func WithRunner(kind store.JobKind, runner Runner) Option {
	return func(w *Worker) {
		if runner != nil {
			w.runners[kind] = runner
		}
	}
}

// WithStatusCache sets the projection refreshed after each job.
func WithStatusCache(cache statuscache.Cache) Option {
	return func(w *Worker) {
		if cache != nil {
			w.cache = cache
		}
	}
}

// WithSyncer enables the periodic external sync.
func WithSyncer(syncer Syncer) Option {
	return func(w *Worker) {
		w.syncer = syncer
	}
}

// WithNotifier overrides the configured notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(w *Worker) {
		if notifier != nil {
			w.notify = notifier
		}
	}
}

// WithClock overrides time.Now for sync scheduling.
func WithClock(clock func() time.Time) Option {
	return func(w *Worker) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// WithIntervals overrides the configured poll and retry intervals.
func WithIntervals(poll, retry time.Duration) Option {
	return func(w *Worker) {
		if poll > 0 {
			w.pollInterval = poll
		}
		if retry > 0 {
			w.retryInterval = retry
		}
	}
}

// New constructs a worker. Runners are registered through options.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) *Worker {
	w := &Worker{
		cfg:           cfg,
		store:         st,
		logger:        logging.NewComponentLogger(logger, "worker"),
		cache:         statuscache.NewMemory(),
		runners:       map[store.JobKind]Runner{},
		notify:        notifications.NewService(cfg),
		pollInterval:  cfg.PollInterval(),
		retryInterval: cfg.ErrorRetryInterval(),
		syncInterval:  cfg.SyncInterval(),
		watch:         cfg.Podsync.WatchConfig,
		clock:         time.Now,
		syncRequests:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Status reports the loop state.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// TriggerSync asks the loop to run an external sync at the next tick.
func (w *Worker) TriggerSync() {
	select {
	case w.syncRequests <- struct{}{}:
	default:
	}
}

func (w *Worker) recordJob(job *store.Job, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.Processed++
	w.status.LastJobID = job.ID
	w.status.LastJobKind = job.Kind
	w.status.LastError = ""
	if err != nil {
		w.status.LastError = err.Error()
	}
}

func (w *Worker) recordSync(at time.Time, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.LastSyncAt = at
	w.status.LastSyncError = ""
	if err != nil {
		w.status.LastSyncError = err.Error()
	}
}
