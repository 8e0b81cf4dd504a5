package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"podcompanion/internal/config"
	"podcompanion/internal/fileutil"
	"podcompanion/internal/logging"
	"podcompanion/internal/services"
	"podcompanion/internal/store"
	"podcompanion/internal/ytdlp"
)

// Fetcher retrieves media and single-video metadata.
type Fetcher interface {
	Download(ctx context.Context, req ytdlp.DownloadRequest) (string, error)
	Metadata(ctx context.Context, url string) (ytdlp.Entry, error)
}

// Runner executes download_video jobs.
type Runner struct {
	cfg     *config.Config
	store   *store.Store
	fetcher Fetcher
	logger  *slog.Logger
	clock   func() time.Time
}

// Option configures the runner.
type Option func(*Runner)

// WithClock overrides the time source used for undated filenames.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// New constructs a download runner.
func New(cfg *config.Config, st *store.Store, fetcher Fetcher, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		store:   st,
		fetcher: fetcher,
		logger:  logging.NewComponentLogger(logger, "downloader"),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result describes a completed download.
type Result struct {
	VideoID   string
	Filename  string
	MediaPath string
	FeedJobID int64
}

// Run executes a download_video job. Any failure after the payload is
// decoded leaves the record failed with a redacted error.
func (r *Runner) Run(ctx context.Context, job *store.Job) error {
	var payload store.DownloadVideoPayload
	if err := job.DecodePayload(&payload); err != nil {
		return services.Wrap(services.ErrValidation, "downloader", "decode payload", "Invalid download job payload", err)
	}
	videoID := strings.TrimSpace(payload.VideoID)
	if videoID == "" {
		return services.Wrap(services.ErrValidation, "downloader", "decode payload", "Download job is missing video_id", nil)
	}
	_, err := r.Download(ctx, videoID)
	return err
}

// Download fetches one video and records the outcome.
func (r *Runner) Download(ctx context.Context, videoID string) (Result, error) {
	logger := logging.WithContext(ctx, r.logger).With(logging.String(logging.FieldVideoID, videoID))
	result, err := r.download(ctx, videoID, logger)
	if err != nil {
		r.recordFailure(ctx, videoID, err, logger)
		return Result{}, err
	}
	return result, nil
}

func (r *Runner) download(ctx context.Context, videoID string, logger *slog.Logger) (Result, error) {
	result := Result{VideoID: videoID}
	video, err := r.store.VideoByVideoID(ctx, videoID)
	if err != nil {
		return result, services.Wrap(services.ErrStorage, "downloader", "load video", "Failed to load video", err)
	}
	if video == nil {
		return result, services.Wrap(services.ErrNotFound, "downloader", "load video", fmt.Sprintf("video %s not found in index", videoID), nil)
	}

	if err := r.store.MarkDownloadRunning(ctx, videoID); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			return result, services.Wrap(services.ErrValidation, "downloader", "mark running", "Download is not eligible to run", err)
		}
		return result, services.Wrap(services.ErrStorage, "downloader", "mark running", "Failed to update download record", err)
	}

	if r.cfg.Downloads.RefreshMetadata {
		video = r.refreshMetadata(ctx, video, logger)
	}

	source, err := r.fetch(ctx, video, logger)
	if err != nil {
		return result, err
	}

	mediaPath, err := r.place(source, video)
	if err != nil {
		_ = os.Remove(source)
		return result, err
	}
	result.MediaPath = mediaPath
	result.Filename = filepath.Base(mediaPath)

	if err := r.store.MarkDownloadDone(ctx, videoID, result.Filename, mediaPath); err != nil {
		// No record points at the file once the update fails.
		if rmErr := os.Remove(mediaPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logging.WarnWithContext(logger, "unrecorded media file left in place", "media_cleanup_failed",
				logging.Error(rmErr),
				logging.String(logging.FieldErrorHint, "remove the file from the media directory"),
			)
		}
		result.MediaPath, result.Filename = "", ""
		return result, services.Wrap(services.ErrStorage, "downloader", "mark done", "Failed to record finished download", err)
	}

	job, err := r.store.Enqueue(ctx, store.KindRegenerateFeeds, nil)
	if err != nil {
		logging.WarnWithContext(logger, "feed regeneration not queued", "feed_enqueue_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `podcompanion feed regenerate`"),
			logging.String(logging.FieldImpact, "feeds omit this episode until the next regeneration"),
		)
	} else {
		result.FeedJobID = job.ID
	}

	logger.Info("download completed",
		logging.String(logging.FieldEventType, "download_completed"),
		logging.String("filename", result.Filename),
	)
	return result, nil
}

func (r *Runner) fetch(ctx context.Context, video *store.Video, logger *slog.Logger) (string, error) {
	timeout := r.cfg.DownloadTimeout()
	dlCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Info("download started",
		logging.Bool("audio_only", r.cfg.Downloads.AudioOnly),
		logging.Duration("timeout", timeout),
	)
	source, err := r.fetcher.Download(dlCtx, ytdlp.DownloadRequest{
		URL:       video.WebpageURL,
		VideoID:   video.VideoID,
		OutputDir: r.cfg.Paths.StagingDir,
		AudioOnly: r.cfg.Downloads.AudioOnly,
	})
	if err == nil {
		return source, nil
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("download interrupted: %w", ctx.Err())
	}
	if errors.Is(dlCtx.Err(), context.DeadlineExceeded) {
		return "", services.Wrap(services.ErrTimeout, "downloader", "fetch",
			fmt.Sprintf("Download timed out after %s", timeout), err)
	}
	return "", services.Wrap(services.ErrExternalTool, "downloader", "fetch", "Download failed", err)
}

func (r *Runner) place(source string, video *store.Video) (string, error) {
	mediaDir := r.cfg.Paths.MediaDir
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrStorage, "downloader", "prepare media dir", "Failed to create media directory", err)
	}
	now := r.clock()
	ext := strings.TrimPrefix(filepath.Ext(source), ".")
	name := BuildFilename(video.PublishedAt, now, video.Title, ext, video.VideoID)
	dest := ResolveDestination(mediaDir, name, now)
	if err := fileutil.MoveFile(source, dest); err != nil {
		return "", services.Wrap(services.ErrStorage, "downloader", "move media", "Failed to move download into media directory", err)
	}
	return dest, nil
}

func (r *Runner) refreshMetadata(ctx context.Context, video *store.Video, logger *slog.Logger) *store.Video {
	metaCtx, cancel := context.WithTimeout(ctx, r.cfg.MetadataTimeout())
	defer cancel()

	meta, err := r.fetcher.Metadata(metaCtx, video.WebpageURL)
	if err != nil {
		logging.WarnWithContext(logger, "metadata refresh failed", "metadata_refresh_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "download continues with indexed metadata"),
		)
		return video
	}
	updated := *video
	updated.Title = meta.Title
	updated.Description = meta.Description
	updated.PublishedAt = meta.PublishedAt
	updated.DurationSeconds = meta.DurationSeconds
	updated.ThumbnailURL = meta.ThumbnailURL
	updated.Uploader = meta.Uploader
	updated.Unavailable = meta.Unavailable
	if _, err := r.store.UpsertVideo(ctx, updated); err != nil {
		logging.WarnWithContext(logger, "metadata refresh not stored", "metadata_refresh_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "download continues with indexed metadata"),
		)
		return video
	}
	fresh, err := r.store.VideoInChannel(ctx, video.ChannelID, video.VideoID)
	if err != nil || fresh == nil {
		return video
	}
	return fresh
}

func (r *Runner) recordFailure(ctx context.Context, videoID string, cause error, logger *slog.Logger) {
	err := r.store.MarkDownloadFailed(context.WithoutCancel(ctx), videoID, services.Redact(cause))
	if err == nil || errors.Is(err, store.ErrInvalidTransition) {
		return
	}
	logging.ErrorWithContext(logger, "failed to record download failure", "download_record_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "inspect the downloads table"),
	)
}
