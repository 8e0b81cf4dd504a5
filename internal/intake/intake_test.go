package intake_test

import (
	"context"
	"errors"
	"testing"

	"podcompanion/internal/intake"
	"podcompanion/internal/reconcile"
	"podcompanion/internal/services"
	"podcompanion/internal/store"
	"podcompanion/internal/testsupport"
)

func newService(t *testing.T) (*intake.Service, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return intake.New(st, reconcile.New(st, reconcile.NoProbe{}, nil), nil), st
}

func TestValidateChannelURL(t *testing.T) {
	cases := []struct {
		url string
		ok  bool
	}{
		{"https://www.youtube.com/@chan", true},
		{"https://youtube.com/channel/UC123", true},
		{"http://m.youtube.com/user/someone", true},
		{"https://music.youtube.com/playlist?list=PL1", true},
		{"https://YOUTU.BE/abc", true},
		{"https://www.youtube.com:443/@chan", true},
		{"ftp://www.youtube.com/@chan", false},
		{"https://evil.example.com/@chan", false},
		{"https://youtube.com.evil.example/@chan", false},
		{"www.youtube.com/@chan", false},
		{"", false},
	}
	for _, tc := range cases {
		err := intake.ValidateChannelURL(tc.url)
		if tc.ok && err != nil {
			t.Fatalf("ValidateChannelURL(%q) failed: %v", tc.url, err)
		}
		if !tc.ok && !errors.Is(err, services.ErrValidation) {
			t.Fatalf("ValidateChannelURL(%q) = %v, want validation error", tc.url, err)
		}
	}
}

func TestAddChannelRejectsBeforeInsert(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	if _, _, err := svc.AddChannel(ctx, "https://vimeo.com/someone", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	channels, err := st.ListChannels(ctx)
	if err != nil {
		t.Fatalf("ListChannels failed: %v", err)
	}
	if len(channels) != 0 {
		t.Fatalf("expected no rows for rejected input, got %+v", channels)
	}
}

func TestAddChannelSchedulesRegeneration(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	ch, created, err := svc.AddChannel(ctx, "https://www.youtube.com/@chan/", "chan")
	if err != nil || !created {
		t.Fatalf("AddChannel failed: created=%v err=%v", created, err)
	}
	if ch.URL != "https://www.youtube.com/@chan" {
		t.Fatalf("expected normalized url, got %q", ch.URL)
	}
	if _, created, err := svc.AddChannel(ctx, "https://www.youtube.com/@chan", ""); err != nil || created {
		t.Fatalf("expected existing channel returned, created=%v err=%v", created, err)
	}

	jobs, err := st.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Kind != store.KindRegenerateFeeds {
		t.Fatalf("expected a single regenerate job, got %+v", jobs)
	}
}

func TestEnqueueIndex(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	if _, err := svc.EnqueueIndex(ctx, 42); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	ch := testsupport.AddChannel(t, st, "https://www.youtube.com/@chan", "chan")
	job, err := svc.EnqueueIndex(ctx, ch.ID)
	if err != nil {
		t.Fatalf("EnqueueIndex failed: %v", err)
	}
	var payload store.IndexChannelPayload
	if err := job.DecodePayload(&payload); err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if job.Kind != store.KindIndexChannel || payload.ChannelID != ch.ID || job.Status != store.JobPending {
		t.Fatalf("unexpected job %+v payload %+v", job, payload)
	}
}

func TestEnqueueDownloads(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	if _, err := svc.EnqueueDownloads(ctx, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty batch, got %v", err)
	}
	ch := testsupport.AddChannel(t, st, "https://www.youtube.com/@chan", "chan")
	testsupport.AddVideo(t, st, ch.ID, "dQw4w9WgXcQ", "One", testsupport.Day(1))

	result, err := svc.EnqueueDownloads(ctx, []string{"dQw4w9WgXcQ", "dQw4w9WgXcQ", "bad id!"})
	if err != nil {
		t.Fatalf("EnqueueDownloads failed: %v", err)
	}
	if result.Queued != 1 || result.Invalid != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	again, err := svc.EnqueueDownloads(ctx, []string{"dQw4w9WgXcQ"})
	if err != nil {
		t.Fatalf("second EnqueueDownloads failed: %v", err)
	}
	if again.Queued != 0 || again.SkippedExisting != 1 {
		t.Fatalf("expected idempotent enqueue, got %+v", again)
	}
}

func TestSyncAndRegenerateEnqueue(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sync, err := svc.SyncExternal(ctx)
	if err != nil || sync.Kind != store.KindSyncExternalFeeds {
		t.Fatalf("SyncExternal failed: job=%+v err=%v", sync, err)
	}
	regen, err := svc.RegenerateFeeds(ctx)
	if err != nil || regen.Kind != store.KindRegenerateFeeds {
		t.Fatalf("RegenerateFeeds failed: job=%+v err=%v", regen, err)
	}
}
