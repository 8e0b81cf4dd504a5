package feeds

import (
	"context"

	"podcompanion/internal/logging"
	"podcompanion/internal/podsync"
	"podcompanion/internal/services"
)

// SyncResult summarizes one external sync pass.
type SyncResult struct {
	Sources  int
	Imported int
	Merged   MergedResult
}

// ImportChannels creates a channel for every Podsync feed URL not yet known,
// named after the feed id. Existing channels are never removed; an unnamed
// existing channel takes the feed id as its name.
func (e *Engine) ImportChannels(ctx context.Context) (int, int, error) {
	sources, err := podsync.ReadConfig(e.cfg.Podsync.ConfigPath)
	if err != nil {
		logging.WarnWithContext(e.logger, "podsync config unreadable", "podsync_config_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, "degraded"),
			logging.String(logging.FieldErrorHint, "fix podsync.config_path TOML"),
			logging.String(logging.FieldImpact, "no channels imported this pass"),
		)
		return 0, 0, nil
	}
	imported := 0
	for _, src := range sources {
		ch, created, err := e.store.AddChannel(ctx, src.URL, src.ID)
		if err != nil {
			return len(sources), imported, services.Wrap(services.ErrStorage, "feeds", "import channel", "Failed to import podsync channel", err)
		}
		if created {
			imported++
			e.logger.Info("channel imported from podsync",
				logging.String(logging.FieldEventType, "channel_imported"),
				logging.Int64(logging.FieldChannelID, ch.ID),
				logging.String("feed_id", src.ID),
			)
		}
	}
	return len(sources), imported, nil
}

// SyncExternal imports Podsync channels and then rewrites merged feeds.
func (e *Engine) SyncExternal(ctx context.Context) (SyncResult, error) {
	var result SyncResult
	sources, imported, err := e.ImportChannels(ctx)
	result.Sources, result.Imported = sources, imported
	if err != nil {
		return result, err
	}
	merged, err := e.RegenerateMerged(ctx)
	result.Merged = merged
	if err != nil {
		return result, err
	}
	return result, nil
}
