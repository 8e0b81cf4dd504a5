package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"podcompanion/internal/config"
	"podcompanion/internal/logging"
	"podcompanion/internal/services"
	"podcompanion/internal/store"
	"podcompanion/internal/ytdlp"
)

// Lister is the catalog source used by the runner.
type Lister interface {
	ListChannel(ctx context.Context, url string, limit int, onEntry func(ytdlp.Entry) error) error
	Metadata(ctx context.Context, url string) (ytdlp.Entry, error)
}

// Summary reports what one index run did.
type Summary struct {
	ChannelID   int64
	Seen        int
	Inserted    int
	Unavailable int
	Hydrated    int
	StartedAt   time.Time
	Duration    time.Duration
}

// Runner executes index_channel jobs.
type Runner struct {
	cfg    *config.Config
	store  *store.Store
	lister Lister
	logger *slog.Logger
	clock  func() time.Time
}

// Option configures the runner.
type Option func(*Runner)

// WithClock overrides the time source used for the run start.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// New constructs an index runner.
func New(cfg *config.Config, st *store.Store, lister Lister, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		store:  st,
		lister: lister,
		logger: logging.NewComponentLogger(logger, "indexer"),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes an index_channel job.
func (r *Runner) Run(ctx context.Context, job *store.Job) error {
	var payload store.IndexChannelPayload
	if err := job.DecodePayload(&payload); err != nil {
		return services.Wrap(services.ErrValidation, "indexer", "decode payload", "Invalid index job payload", err)
	}
	if payload.ChannelID <= 0 {
		return services.Wrap(services.ErrValidation, "indexer", "decode payload", "Index job is missing channel_id", nil)
	}
	_, err := r.IndexChannel(ctx, payload.ChannelID)
	return err
}

// IndexChannel lists and upserts one channel's catalog.
func (r *Runner) IndexChannel(ctx context.Context, channelID int64) (Summary, error) {
	summary := Summary{ChannelID: channelID}
	channel, err := r.store.ChannelByID(ctx, channelID)
	if err != nil {
		return summary, services.Wrap(services.ErrStorage, "indexer", "load channel", "Failed to load channel", err)
	}
	if channel == nil {
		return summary, services.Wrap(services.ErrNotFound, "indexer", "load channel", fmt.Sprintf("Channel %d not found", channelID), nil)
	}

	logger := logging.WithContext(ctx, r.logger).With(logging.Int64(logging.FieldChannelID, channel.ID))
	summary.StartedAt = r.clock().UTC()
	timeout := r.cfg.IndexTimeout()
	listCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Info("channel index started",
		logging.String("url", channel.URL),
		logging.Int("scan_limit", r.cfg.Indexing.ScanLimit),
		logging.Duration("timeout", timeout),
	)

	state := &indexRun{runner: r, channelID: channel.ID, summary: &summary, logger: logger}
	listErr := r.lister.ListChannel(listCtx, channel.URL, r.cfg.Indexing.ScanLimit, func(entry ytdlp.Entry) error {
		return state.ingest(listCtx, entry)
	})
	summary.Duration = r.clock().Sub(summary.StartedAt)

	if listErr != nil {
		return summary, r.classify(ctx, listCtx, listErr, timeout, summary, logger)
	}

	if err := r.store.SetLastIndexed(ctx, channel.ID, summary.StartedAt); err != nil {
		return summary, services.Wrap(services.ErrStorage, "indexer", "set last indexed", "Failed to record index time", err)
	}
	logger.Info("channel index completed",
		logging.String(logging.FieldEventType, "index_completed"),
		logging.Int("seen", summary.Seen),
		logging.Int("inserted", summary.Inserted),
		logging.Int("unavailable", summary.Unavailable),
		logging.Int("hydrated", summary.Hydrated),
		logging.Duration("elapsed", summary.Duration),
	)
	return summary, nil
}

func (r *Runner) classify(ctx, listCtx context.Context, err error, timeout time.Duration, summary Summary, logger *slog.Logger) error {
	if errors.Is(err, services.ErrStorage) {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("index interrupted: %w", ctx.Err())
	}
	if errors.Is(listCtx.Err(), context.DeadlineExceeded) {
		logging.WarnWithContext(logger, "channel index timed out", "index_timeout",
			logging.Duration("timeout", timeout),
			logging.Int("kept_entries", summary.Seen),
			logging.String(logging.FieldErrorHint, "raise indexing.index_timeout or set indexing.scan_limit"),
			logging.String(logging.FieldImpact, "partial catalog kept; last_indexed_at unchanged"),
		)
		return services.Wrap(services.ErrTimeout, "indexer", "list channel",
			fmt.Sprintf("Catalog listing timed out after %s", timeout), err)
	}
	return services.Wrap(services.ErrExternalTool, "indexer", "list channel", "Catalog listing failed", err)
}

type indexRun struct {
	runner    *Runner
	channelID int64
	summary   *Summary
	attempts  int
	logger    *slog.Logger
}

func (run *indexRun) ingest(ctx context.Context, entry ytdlp.Entry) error {
	summary := run.summary
	summary.Seen++
	if entry.Unavailable {
		summary.Unavailable++
	}
	if entry.PublishedAt == nil && !entry.Unavailable && run.hydrationAllowed() {
		run.attempts++
		if run.runner.hydrate(ctx, run.channelID, &entry, run.logger) {
			summary.Hydrated++
		}
	}
	inserted, err := run.runner.store.UpsertVideo(ctx, store.Video{
		ChannelID:       run.channelID,
		VideoID:         entry.VideoID,
		Title:           entry.Title,
		Description:     entry.Description,
		WebpageURL:      entry.WebpageURL,
		PublishedAt:     entry.PublishedAt,
		DurationSeconds: entry.DurationSeconds,
		ThumbnailURL:    entry.ThumbnailURL,
		Uploader:        entry.Uploader,
		Unavailable:     entry.Unavailable,
	})
	if err != nil {
		return services.Wrap(services.ErrStorage, "indexer", "upsert video", "Failed to store catalog entry", err)
	}
	if inserted {
		summary.Inserted++
	}
	return nil
}

func (run *indexRun) hydrationAllowed() bool {
	idx := run.runner.cfg.Indexing
	return idx.HydrateMissingDates && run.attempts < idx.HydrateBudget
}
