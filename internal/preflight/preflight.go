package preflight

import (
	"context"

	"podcompanion/internal/config"
)

// Result reports the outcome of a single preflight check. A failing optional
// check degrades a feature without blocking the daemon.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Blocking reports whether the result should stop the daemon from starting.
func (r Result) Blocking() bool {
	return !r.Passed && !r.Optional
}

// RunAll executes every check that applies to the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Media directory", cfg.Paths.MediaDir),
		CheckDirectoryAccess("Feed directory", feedDir(cfg)),
		CheckDirectoryAccess("Merged feed directory", cfg.Paths.MergedFeedDir),
		CheckFreeSpace("Media free space", cfg.Paths.MediaDir, MinFreeBytes),
	}
	results = append(results, CheckBinaries(cfg)...)
	results = append(results,
		CheckReadable("Podsync config", cfg.Podsync.ConfigPath, true),
		CheckReadable("Podsync data", cfg.Podsync.DataDir, true),
	)
	if cfg.Cache.RedisURL != "" {
		results = append(results, CheckRedis(ctx, cfg.Cache.RedisURL, cfg.Cache.KeyPrefix))
	}
	return results
}

// Blocking returns the results that should stop the daemon.
func Blocking(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Blocking() {
			out = append(out, r)
		}
	}
	return out
}
