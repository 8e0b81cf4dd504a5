package testsupport

import (
	"context"
	"testing"
	"time"

	"podcompanion/internal/config"
	"podcompanion/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// AddChannel inserts a channel for tests.
func AddChannel(t testing.TB, st *store.Store, url, name string) *store.Channel {
	t.Helper()

	ch, _, err := st.AddChannel(context.Background(), url, name)
	if err != nil {
		t.Fatalf("store.AddChannel: %v", err)
	}
	return ch
}

// AddVideo upserts a video for tests. A nil published leaves the date unknown.
func AddVideo(t testing.TB, st *store.Store, channelID int64, videoID, title string, published *time.Time) {
	t.Helper()

	if _, err := st.UpsertVideo(context.Background(), store.Video{
		ChannelID:   channelID,
		VideoID:     videoID,
		Title:       title,
		WebpageURL:  "https://www.youtube.com/watch?v=" + videoID,
		PublishedAt: published,
	}); err != nil {
		t.Fatalf("store.UpsertVideo: %v", err)
	}
}

// MarkDone drives a download record through queued, running, and done.
func MarkDone(t testing.TB, st *store.Store, videoID, filename, mediaPath string) {
	t.Helper()

	ctx := context.Background()
	if _, err := st.QueueDownload(ctx, videoID); err != nil {
		t.Fatalf("store.QueueDownload: %v", err)
	}
	if err := st.MarkDownloadRunning(ctx, videoID); err != nil {
		t.Fatalf("store.MarkDownloadRunning: %v", err)
	}
	if err := st.MarkDownloadDone(ctx, videoID, filename, mediaPath); err != nil {
		t.Fatalf("store.MarkDownloadDone: %v", err)
	}
}

// Day returns midnight UTC of the given day in January 2024.
func Day(day int) *time.Time {
	ts := time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC)
	return &ts
}
