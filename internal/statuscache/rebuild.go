package statuscache

import (
	"context"
	"fmt"
	"log/slog"

	"podcompanion/internal/config"
	"podcompanion/internal/logging"
	"podcompanion/internal/services"
	"podcompanion/internal/store"
)

// Open returns the configured cache. Without a redis URL the projection lives
// in memory. An unreachable Redis degrades to memory with a warning.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) Cache {
	if cfg == nil || cfg.Cache.RedisURL == "" {
		return NewMemory()
	}
	cache, err := DialRedis(ctx, cfg.Cache.RedisURL, cfg.Cache.KeyPrefix)
	if err != nil {
		if logger != nil {
			logging.WarnWithContext(logger, "status cache redis unavailable", "status_cache_degraded",
				logging.String(logging.FieldErrorKind, "degraded"),
				logging.String("error", services.Redact(err)),
				logging.String(logging.FieldErrorHint, "check cache.redis_url"),
				logging.String(logging.FieldImpact, "status projection kept in memory"),
			)
		}
		return NewMemory()
	}
	return cache
}

// Rebuild replaces the projection with the current store contents.
func Rebuild(ctx context.Context, st *store.Store, cache Cache) error {
	if err := cache.Reset(ctx); err != nil {
		return fmt.Errorf("reset status cache: %w", err)
	}
	stats, err := st.JobStats(ctx)
	if err != nil {
		return fmt.Errorf("load job stats: %w", err)
	}
	if err := cache.SetJobStats(ctx, stats); err != nil {
		return fmt.Errorf("cache job stats: %w", err)
	}
	downloads, err := st.ListDownloads(ctx, 0)
	if err != nil {
		return fmt.Errorf("load downloads: %w", err)
	}
	for _, rec := range downloads {
		if err := cache.PutDownload(ctx, downloadState(rec)); err != nil {
			return fmt.Errorf("cache download %s: %w", rec.VideoID, err)
		}
	}
	indexes, err := st.LatestIndexStates(ctx)
	if err != nil {
		return fmt.Errorf("load index states: %w", err)
	}
	for _, state := range indexes {
		if err := cache.PutIndex(ctx, indexState(state)); err != nil {
			return fmt.Errorf("cache index state %d: %w", state.ChannelID, err)
		}
	}
	return nil
}

// RecordJob refreshes the entries a finished job may have changed.
func RecordJob(ctx context.Context, st *store.Store, cache Cache, job *store.Job) error {
	if job == nil {
		return nil
	}
	switch job.Kind {
	case store.KindDownloadVideo:
		var payload store.DownloadVideoPayload
		if err := job.DecodePayload(&payload); err == nil && payload.VideoID != "" {
			rec, err := st.DownloadByVideoID(ctx, payload.VideoID)
			if err != nil {
				return fmt.Errorf("load download %s: %w", payload.VideoID, err)
			}
			if rec != nil {
				if err := cache.PutDownload(ctx, downloadState(*rec)); err != nil {
					return err
				}
			}
		}
	case store.KindIndexChannel:
		var payload store.IndexChannelPayload
		if err := job.DecodePayload(&payload); err == nil {
			refreshed, err := st.JobByID(ctx, job.ID)
			if err != nil {
				return fmt.Errorf("load job %d: %w", job.ID, err)
			}
			if refreshed != nil {
				if err := cache.PutIndex(ctx, IndexState{
					ChannelID: payload.ChannelID,
					JobID:     refreshed.ID,
					Status:    refreshed.Status,
					Error:     refreshed.Error,
					UpdatedAt: refreshed.UpdatedAt,
				}); err != nil {
					return err
				}
			}
		}
	}
	stats, err := st.JobStats(ctx)
	if err != nil {
		return fmt.Errorf("load job stats: %w", err)
	}
	return cache.SetJobStats(ctx, stats)
}
