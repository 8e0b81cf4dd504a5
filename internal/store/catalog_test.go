package store_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"podcompanion/internal/store"
	"podcompanion/internal/testsupport"
)

func TestAddChannelIsIdempotentByNormalizedURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, created, err := st.AddChannel(ctx, " https://www.youtube.com/@example/ ", "")
	if err != nil || !created {
		t.Fatalf("AddChannel failed: created=%v err=%v", created, err)
	}
	if first.URL != "https://www.youtube.com/@example" {
		t.Fatalf("expected normalized url, got %q", first.URL)
	}

	again, created, err := st.AddChannel(ctx, "https://www.youtube.com/@example", "Example")
	if err != nil {
		t.Fatalf("AddChannel failed: %v", err)
	}
	if created || again.ID != first.ID {
		t.Fatalf("expected existing channel, got created=%v id=%d", created, again.ID)
	}
	if again.Name != "Example" {
		t.Fatalf("expected missing name filled, got %q", again.Name)
	}

	channels, err := st.ListChannels(ctx)
	if err != nil {
		t.Fatalf("ListChannels failed: %v", err)
	}
	if len(channels) != 1 {
		t.Fatalf("expected one channel, got %d", len(channels))
	}
}

func TestSetLastIndexedIsMonotonic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	ch := testsupport.AddChannel(t, st, "https://www.youtube.com/@mono", "Mono")

	later := time.Date(2024, 5, 1, 12, 0, 0, 500, time.UTC)
	earlier := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := st.SetLastIndexed(ctx, ch.ID, later); err != nil {
		t.Fatalf("SetLastIndexed failed: %v", err)
	}
	if err := st.SetLastIndexed(ctx, ch.ID, earlier); err != nil {
		t.Fatalf("SetLastIndexed failed: %v", err)
	}
	got, err := st.ChannelByID(ctx, ch.ID)
	if err != nil {
		t.Fatalf("ChannelByID failed: %v", err)
	}
	if got.LastIndexedAt == nil || !got.LastIndexedAt.Equal(later) {
		t.Fatalf("expected last indexed to stay at %s, got %v", later, got.LastIndexedAt)
	}
}

func TestUpsertVideoPreservesHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	ch := testsupport.AddChannel(t, st, "https://www.youtube.com/@hist", "Hist")

	inserted, err := st.UpsertVideo(ctx, store.Video{
		ChannelID:   ch.ID,
		VideoID:     "abcdefghijk",
		Title:       "Original Title",
		PublishedAt: testsupport.Day(2),
	})
	if err != nil || !inserted {
		t.Fatalf("UpsertVideo failed: inserted=%v err=%v", inserted, err)
	}

	inserted, err = st.UpsertVideo(ctx, store.Video{
		ChannelID:   ch.ID,
		VideoID:     "abcdefghijk",
		Title:       "[private video]",
		Unavailable: true,
	})
	if err != nil || inserted {
		t.Fatalf("UpsertVideo update failed: inserted=%v err=%v", inserted, err)
	}

	videos, err := st.ListVideos(ctx, store.VideoFilter{ChannelID: ch.ID, IncludeUnavailable: true})
	if err != nil {
		t.Fatalf("ListVideos failed: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("expected one row, got %d", len(videos))
	}
	v := videos[0]
	if !v.Unavailable || v.Title != "Original Title" {
		t.Fatalf("expected unavailable flag with preserved title, got %#v", v)
	}
	if v.PublishedAt == nil || !v.PublishedAt.Equal(*testsupport.Day(2)) {
		t.Fatalf("expected publish date preserved, got %v", v.PublishedAt)
	}

	visible, err := st.ListVideos(ctx, store.VideoFilter{ChannelID: ch.ID})
	if err != nil {
		t.Fatalf("ListVideos failed: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("expected unavailable video hidden by default, got %d", len(visible))
	}
}

func TestUpsertVideoTwiceYieldsIdenticalRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	ch := testsupport.AddChannel(t, st, "https://www.youtube.com/@same", "Same")

	duration := int64(321)
	video := store.Video{
		ChannelID:       ch.ID,
		VideoID:         "zyxwvutsrqp",
		Title:           "Episode",
		Description:     "desc",
		WebpageURL:      "https://www.youtube.com/watch?v=zyxwvutsrqp",
		PublishedAt:     testsupport.Day(5),
		DurationSeconds: &duration,
		Uploader:        "Same",
	}
	if _, err := st.UpsertVideo(ctx, video); err != nil {
		t.Fatalf("UpsertVideo failed: %v", err)
	}
	before, err := st.ListVideos(ctx, store.VideoFilter{ChannelID: ch.ID})
	if err != nil {
		t.Fatalf("ListVideos failed: %v", err)
	}
	if _, err := st.UpsertVideo(ctx, video); err != nil {
		t.Fatalf("UpsertVideo failed: %v", err)
	}
	after, err := st.ListVideos(ctx, store.VideoFilter{ChannelID: ch.ID})
	if err != nil {
		t.Fatalf("ListVideos failed: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("expected identical rows\nbefore: %#v\nafter:  %#v", before, after)
	}
}

func TestListVideosSortsUnknownDatesLast(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	ch := testsupport.AddChannel(t, st, "https://www.youtube.com/@order", "Order")

	testsupport.AddVideo(t, st, ch.ID, "v3xxxxxxxxx", "Third", nil)
	testsupport.AddVideo(t, st, ch.ID, "v1xxxxxxxxx", "First", testsupport.Day(1))
	testsupport.AddVideo(t, st, ch.ID, "v2xxxxxxxxx", "Second", testsupport.Day(3))

	videos, err := st.ListVideos(ctx, store.VideoFilter{ChannelID: ch.ID})
	if err != nil {
		t.Fatalf("ListVideos failed: %v", err)
	}
	var got []string
	for _, v := range videos {
		got = append(got, v.VideoID)
	}
	want := []string{"v2xxxxxxxxx", "v1xxxxxxxxx", "v3xxxxxxxxx"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order %v, want %v", got, want)
	}

	matched, err := st.ListVideos(ctx, store.VideoFilter{Query: "sec"})
	if err != nil {
		t.Fatalf("ListVideos query failed: %v", err)
	}
	if len(matched) != 1 || matched[0].VideoID != "v2xxxxxxxxx" {
		t.Fatalf("unexpected query result %#v", matched)
	}
}

func TestComparePublished(t *testing.T) {
	early, late := testsupport.Day(1), testsupport.Day(9)
	cases := []struct {
		name string
		a, b *time.Time
		want int
	}{
		{"newer first", late, early, -1},
		{"older after", early, late, 1},
		{"equal", early, testsupport.Day(1), 0},
		{"unknown after known", nil, early, 1},
		{"known before unknown", late, nil, -1},
		{"both unknown", nil, nil, 0},
	}
	for _, tc := range cases {
		if got := store.ComparePublished(tc.a, tc.b); got != tc.want {
			t.Fatalf("%s: ComparePublished = %d, want %d", tc.name, got, tc.want)
		}
	}
}
