// Package intake validates client requests and turns them into job rows.
// Nothing here runs work; the worker picks the rows up.
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"podcompanion/internal/logging"
	"podcompanion/internal/reconcile"
	"podcompanion/internal/services"
	"podcompanion/internal/store"
)

var allowedChannelHosts = map[string]struct{}{
	"youtube.com":       {},
	"www.youtube.com":   {},
	"m.youtube.com":     {},
	"music.youtube.com": {},
	"youtu.be":          {},
}

// ValidateChannelURL accepts http(s) URLs on a YouTube host.
func ValidateChannelURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return services.Wrap(services.ErrValidation, "intake", "validate channel", "channel url is required", nil)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return services.Wrap(services.ErrValidation, "intake", "validate channel", "channel url is not a valid URL", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return services.Wrap(services.ErrValidation, "intake", "validate channel", "channel url must use http or https", nil)
	}
	if _, ok := allowedChannelHosts[strings.ToLower(parsed.Hostname())]; !ok {
		return services.Wrap(services.ErrValidation, "intake", "validate channel",
			fmt.Sprintf("only YouTube channel or playlist URLs are allowed (got host %q)", parsed.Hostname()), nil)
	}
	return nil
}

// Service is the enqueue surface shared by the CLI and any future transport.
type Service struct {
	store      *store.Store
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
}

// New builds an intake service.
func New(st *store.Store, reconciler *reconcile.Reconciler, logger *slog.Logger) *Service {
	return &Service{
		store:      st,
		reconciler: reconciler,
		logger:     logging.NewComponentLogger(logger, "intake"),
	}
}

// AddChannel registers a channel. A newly created channel schedules a feed
// regeneration so its merged document appears without waiting for a sync.
func (s *Service) AddChannel(ctx context.Context, rawURL, name string) (*store.Channel, bool, error) {
	if err := ValidateChannelURL(rawURL); err != nil {
		return nil, false, err
	}
	ch, created, err := s.store.AddChannel(ctx, rawURL, name)
	if err != nil {
		return nil, false, services.Wrap(services.ErrStorage, "intake", "add channel", "Failed to add channel", err)
	}
	if created {
		s.logger.Info("channel added",
			logging.String(logging.FieldEventType, "channel_added"),
			logging.Int64(logging.FieldChannelID, ch.ID),
			logging.String("url", ch.URL),
		)
		if _, err := s.RegenerateFeeds(ctx); err != nil {
			return ch, created, err
		}
	}
	return ch, created, nil
}

// EnqueueIndex schedules a catalog listing for an existing channel.
func (s *Service) EnqueueIndex(ctx context.Context, channelID int64) (*store.Job, error) {
	ch, err := s.store.ChannelByID(ctx, channelID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "intake", "lookup channel", "Failed to load channel", err)
	}
	if ch == nil {
		return nil, services.Wrap(services.ErrNotFound, "intake", "enqueue index", fmt.Sprintf("Channel %d not found", channelID), nil)
	}
	return s.enqueue(ctx, store.KindIndexChannel, store.IndexChannelPayload{ChannelID: ch.ID})
}

// EnqueueDownloads reconciles the requested ids against existing records and
// the external probe, queueing only what still needs fetching.
func (s *Service) EnqueueDownloads(ctx context.Context, videoIDs []string) (reconcile.Result, error) {
	if len(videoIDs) == 0 {
		return reconcile.Result{}, services.Wrap(services.ErrValidation, "intake", "enqueue downloads", "at least one video id is required", nil)
	}
	return s.reconciler.EnqueueDownloads(ctx, videoIDs)
}

// RegenerateFeeds schedules a rewrite of the manual and merged feeds.
func (s *Service) RegenerateFeeds(ctx context.Context) (*store.Job, error) {
	return s.enqueue(ctx, store.KindRegenerateFeeds, nil)
}

// SyncExternal schedules a Podsync channel import and merged feed rewrite.
func (s *Service) SyncExternal(ctx context.Context) (*store.Job, error) {
	return s.enqueue(ctx, store.KindSyncExternalFeeds, nil)
}

func (s *Service) enqueue(ctx context.Context, kind store.JobKind, payload any) (*store.Job, error) {
	job, err := s.store.Enqueue(ctx, kind, payload)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "intake", "enqueue", fmt.Sprintf("Failed to enqueue %s", kind), err)
	}
	s.logger.Debug("job enqueued",
		logging.String(logging.FieldEventType, "job_enqueued"),
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("kind", string(kind)),
	)
	return job, nil
}
