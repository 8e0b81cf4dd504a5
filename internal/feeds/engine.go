package feeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"podcompanion/internal/config"
	"podcompanion/internal/fileutil"
	"podcompanion/internal/logging"
	"podcompanion/internal/podsync"
	"podcompanion/internal/services"
	"podcompanion/internal/store"
)

// writeMu serializes every feed write in the process.
var writeMu sync.Mutex

// Engine regenerates feed documents from the store and Podsync's files.
type Engine struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
	clock  func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithClock overrides the time source for lastBuildDate and undated items.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// New constructs a feed engine.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, "feeds"),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ManualResult summarizes a manual feed write.
type ManualResult struct {
	Path  string
	Items int
}

// MergedResult summarizes a merged feed pass.
type MergedResult struct {
	Written  []int64
	Removed  []string
	Degraded []int64
}

// RegenerateAll rewrites the manual feed and then every merged feed.
func (e *Engine) RegenerateAll(ctx context.Context) error {
	if _, err := e.RegenerateManual(ctx); err != nil {
		return err
	}
	if _, err := e.RegenerateMerged(ctx); err != nil {
		return err
	}
	return nil
}

// RegenerateManual writes the manual feed document.
func (e *Engine) RegenerateManual(ctx context.Context) (ManualResult, error) {
	result := ManualResult{Path: e.cfg.Paths.ManualFeedFile}
	episodes, err := e.store.DoneDownloadsWithVideos(ctx)
	if err != nil {
		return result, services.Wrap(services.ErrStorage, "feeds", "load downloads", "Failed to load finished downloads", err)
	}
	items, err := e.manualItems(episodes)
	if err != nil {
		return result, err
	}
	sortItems(items)

	doc := document{
		Title:       e.cfg.Feeds.ManualTitle,
		Description: e.cfg.Feeds.ManualDescription,
		Link:        e.cfg.ManualFeedURL(),
		Items:       items,
	}
	if err := e.write(result.Path, doc); err != nil {
		return result, err
	}
	result.Items = len(items)
	e.logger.Info("manual feed written",
		logging.String(logging.FieldEventType, "manual_feed_written"),
		logging.Int("items", result.Items),
	)
	return result, nil
}

// RegenerateMerged writes one document per channel that has at least one
// Podsync or manual item and removes documents for channels that no longer
// qualify.
func (e *Engine) RegenerateMerged(ctx context.Context) (MergedResult, error) {
	var result MergedResult
	catalog, err := podsync.ReadFeeds(e.cfg.Podsync.DataDir)
	if err != nil {
		e.warnDegraded("podsync feeds unreadable", 0, err)
	}
	for _, skipped := range catalog.Skipped {
		e.warnDegraded("podsync feed unparseable", 0, fmt.Errorf("%s: %w", filepath.Base(skipped.Path), skipped.Err))
	}
	bySource := catalog.BySourceURL()
	byID := catalog.ByID()

	manualByChannel, err := e.store.DoneDownloadsByChannel(ctx)
	if err != nil {
		return result, services.Wrap(services.ErrStorage, "feeds", "load downloads", "Failed to load finished downloads", err)
	}

	channels, err := e.store.ListChannels(ctx)
	if err != nil {
		return result, services.Wrap(services.ErrStorage, "feeds", "load channels", "Failed to load channels", err)
	}

	dir := e.cfg.Paths.MergedFeedDir
	generated := map[int64]struct{}{}
	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		external := bySource[podsync.NormalizeURL(ch.URL)]
		if external == nil && ch.Name != "" {
			external = byID[ch.Name]
		}
		manual, err := e.manualItems(manualByChannel[ch.ID])
		if err != nil {
			return result, err
		}
		if external == nil && len(manual) > 0 {
			e.warnDegraded("no podsync feed for channel", ch.ID, nil)
			result.Degraded = append(result.Degraded, ch.ID)
		}
		items := mergeItems(external, manual)
		if len(items) == 0 {
			continue
		}

		doc := document{
			Title:       fmt.Sprintf("%s %s", ch.DisplayName(), e.cfg.Feeds.MergedTitleSuffix),
			Description: e.cfg.Feeds.MergedDescription,
			Link:        e.cfg.MergedFeedURL(ch.ID),
			Items:       items,
		}
		if external != nil {
			doc.Title = external.Title
			if external.Description != "" {
				doc.Description = external.Description
			}
			doc.ImageURL = external.ImageURL
		}
		if err := e.write(filepath.Join(dir, fmt.Sprintf("%d.xml", ch.ID)), doc); err != nil {
			return result, err
		}
		generated[ch.ID] = struct{}{}
		result.Written = append(result.Written, ch.ID)
	}

	removed, err := pruneStale(dir, generated)
	if err != nil {
		logging.WarnWithContext(e.logger, "stale merged feed cleanup failed", "merged_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "feeds for removed channels remain served"),
		)
	}
	result.Removed = removed
	e.logger.Info("merged feeds written",
		logging.String(logging.FieldEventType, "merged_feeds_written"),
		logging.Int("written", len(result.Written)),
		logging.Int("removed", len(result.Removed)),
		logging.Int("degraded", len(result.Degraded)),
	)
	return result, nil
}

// mergeItems combines Podsync items with manual items. A manual item whose
// key Podsync already serves is dropped.
func mergeItems(external *podsync.Feed, manual []Item) []Item {
	seen := map[string]struct{}{}
	var items []Item
	if external != nil {
		for _, it := range external.Items {
			if _, dup := seen[it.DedupeKey]; dup {
				continue
			}
			seen[it.DedupeKey] = struct{}{}
			items = append(items, Item{Key: it.DedupeKey, PublishedAt: it.PublishedAt, XML: it.RawXML, External: true})
		}
	}
	for _, it := range manual {
		if _, dup := seen[it.Key]; dup {
			continue
		}
		seen[it.Key] = struct{}{}
		items = append(items, it)
	}
	sortItems(items)
	return items
}

func (e *Engine) manualItems(episodes []store.DownloadedEpisode) ([]Item, error) {
	items := make([]Item, 0, len(episodes))
	for _, ep := range episodes {
		if ep.Record.Filename == "" {
			continue
		}
		item, err := e.manualItem(ep)
		if err != nil {
			return nil, services.Wrap(services.ErrInternal, "feeds", "render item", "Failed to render feed item", err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (e *Engine) manualItem(ep store.DownloadedEpisode) (Item, error) {
	rec := ep.Record
	video := ep.Video
	if video == nil {
		video = &store.Video{VideoID: rec.VideoID}
	}

	published := ep.PublishedAt()
	pub := rec.UpdatedAt
	if published != nil {
		pub = *published
	}
	if pub.IsZero() {
		pub = e.clock()
	}

	var size int64
	if rec.MediaPath != "" {
		if info, err := os.Stat(rec.MediaPath); err == nil {
			size = info.Size()
		}
	}

	raw := rssItem{
		Title:       firstNonEmpty(video.Title, rec.Filename, rec.VideoID),
		Description: firstNonEmpty(video.Description, video.WebpageURL),
		GUID:        rssGUID{IsPermaLink: "false", Value: rec.VideoID},
		PubDate:     FormatPubDate(pub),
		Link:        video.WebpageURL,
		Enclosure: rssEnclosure{
			URL:    e.cfg.MediaURL(rec.Filename),
			Length: size,
			Type:   MediaType(rec.Filename),
		},
		Duration: formatDuration(video.DurationSeconds),
	}
	if video.ThumbnailURL != "" {
		raw.Image = &itunesImage{Href: video.ThumbnailURL}
	}
	xmlText, err := marshalItem(raw)
	if err != nil {
		return Item{}, err
	}
	return Item{Key: rec.VideoID, PublishedAt: published, XML: xmlText}, nil
}

func (e *Engine) write(path string, doc document) error {
	data, err := render(doc, e.clock())
	if err != nil {
		return services.Wrap(services.ErrInternal, "feeds", "render", "Failed to render feed", err)
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "feeds", "write", "Failed to write feed", err)
	}
	return nil
}

func (e *Engine) warnDegraded(msg string, channelID int64, err error) {
	attrs := []logging.Attr{
		logging.String(logging.FieldErrorKind, "degraded"),
		logging.String(logging.FieldErrorHint, "check podsync.data_dir and the channel URL"),
		logging.String(logging.FieldImpact, "merged feed falls back to manual items and default metadata"),
	}
	if channelID > 0 {
		attrs = append(attrs, logging.Int64(logging.FieldChannelID, channelID))
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logging.WarnWithContext(e.logger, msg, "degraded_merge", attrs...)
}

// pruneStale removes `<channel id>.xml` files that were not generated in
// this pass. Other files in the directory are left alone.
func pruneStale(dir string, generated map[int64]struct{}) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var removed []string
	var errs []error
	writeMu.Lock()
	defer writeMu.Unlock()
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".xml") {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(name, ".xml"), 10, 64)
		if err != nil {
			continue
		}
		if _, ok := generated[id]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, name)
	}
	return removed, errors.Join(errs...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
