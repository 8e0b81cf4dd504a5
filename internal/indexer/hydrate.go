package indexer

import (
	"context"
	"log/slog"

	"podcompanion/internal/logging"
	"podcompanion/internal/ytdlp"
)

// hydrate fills entry.PublishedAt from a single-video metadata lookup. Rows
// that already carry a date are left alone. Failures are logged and ignored.
func (r *Runner) hydrate(ctx context.Context, channelID int64, entry *ytdlp.Entry, logger *slog.Logger) bool {
	existing, err := r.store.VideoInChannel(ctx, channelID, entry.VideoID)
	if err == nil && existing != nil && existing.PublishedAt != nil {
		return false
	}
	metaCtx, cancel := context.WithTimeout(ctx, r.cfg.MetadataTimeout())
	defer cancel()

	meta, err := r.lister.Metadata(metaCtx, entry.WebpageURL)
	if err != nil {
		logger.Debug("publish date hydration failed",
			logging.String(logging.FieldVideoID, entry.VideoID),
			logging.Error(err),
		)
		return false
	}
	if meta.PublishedAt == nil {
		return false
	}
	entry.PublishedAt = meta.PublishedAt
	if entry.Description == "" {
		entry.Description = meta.Description
	}
	if entry.DurationSeconds == nil {
		entry.DurationSeconds = meta.DurationSeconds
	}
	return true
}
