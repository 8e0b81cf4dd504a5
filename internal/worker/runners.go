package worker

import (
	"context"

	"podcompanion/internal/feeds"
	"podcompanion/internal/store"
)

// RegenerateRunner rewrites the manual feed and every merged feed.
func RegenerateRunner(engine *feeds.Engine) Runner {
	return RunnerFunc(func(ctx context.Context, _ *store.Job) error {
		return engine.RegenerateAll(ctx)
	})
}

// SyncRunner runs an external sync on demand.
func SyncRunner(syncer Syncer) Runner {
	return RunnerFunc(func(ctx context.Context, _ *store.Job) error {
		_, err := syncer.SyncExternal(ctx)
		return err
	})
}
