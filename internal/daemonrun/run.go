// Package daemonrun assembles the daemon process: logging, storage, runners,
// the worker, and signal handling.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"podcompanion/internal/config"
	"podcompanion/internal/daemon"
	"podcompanion/internal/deps"
	"podcompanion/internal/downloader"
	"podcompanion/internal/feeds"
	"podcompanion/internal/indexer"
	"podcompanion/internal/logging"
	"podcompanion/internal/preflight"
	"podcompanion/internal/statuscache"
	"podcompanion/internal/store"
	"podcompanion/internal/worker"
	"podcompanion/internal/ytdlp"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel      string
	SkipPreflight bool
}

// Run starts the daemon and blocks until SIGINT/SIGTERM or ctx is done.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if !opts.SkipPreflight {
		if err := runPreflight(signalCtx, logger, cfg); err != nil {
			return err
		}
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "podcompanion.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}

	cache := statuscache.Open(signalCtx, cfg, logger)
	defer cache.Close()

	wk, err := buildWorker(cfg, st, cache, logger)
	if err != nil {
		_ = st.Close()
		return err
	}
	d, err := daemon.New(cfg, st, logger, wk)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running daemon and database access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("podcompanion daemon shutting down")
	return nil
}

func buildWorker(cfg *config.Config, st *store.Store, cache statuscache.Cache, logger *slog.Logger) (*worker.Worker, error) {
	client, err := ytdlp.New(cfg.YTDLPBinary())
	if err != nil {
		return nil, fmt.Errorf("init yt-dlp client: %w", err)
	}
	engine := feeds.New(cfg, st, logger)
	return worker.New(cfg, st, logger,
		worker.WithStatusCache(cache),
		worker.WithSyncer(engine),
		worker.WithRunner(store.KindIndexChannel, indexer.New(cfg, st, client, logger)),
		worker.WithRunner(store.KindDownloadVideo, downloader.New(cfg, st, client, logger)),
		worker.WithRunner(store.KindRegenerateFeeds, worker.RegenerateRunner(engine)),
		worker.WithRunner(store.KindSyncExternalFeeds, worker.SyncRunner(engine)),
	), nil
}

func runPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	results := preflight.RunAll(ctx, cfg)
	for _, r := range results {
		if r.Passed {
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.Bool("optional", r.Optional),
			logging.String(logging.FieldErrorHint, "run podcompanion doctor for details"),
		)
	}
	if blocking := preflight.Blocking(results); len(blocking) > 0 {
		names := make([]string, 0, len(blocking))
		for _, r := range blocking {
			names = append(names, r.Name)
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(names, ", "))
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range deps.Check(cfg) {
		key := strings.ReplaceAll(strings.ToLower(status.Name), "-", "")
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	attrs = append(attrs,
		logging.Bool("audio_only", cfg.Downloads.AudioOnly),
		logging.Bool("podsync_watch", cfg.Podsync.WatchConfig),
		logging.Bool("redis_cache", cfg.Cache.RedisURL != ""),
	)
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
