package store_test

import (
	"context"
	"errors"
	"testing"

	"podcompanion/internal/store"
	"podcompanion/internal/testsupport"
)

func TestEnqueueAndClaimInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, err := st.Enqueue(ctx, store.KindIndexChannel, store.IndexChannelPayload{ChannelID: 1})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if first.Status != store.JobPending {
		t.Fatalf("expected pending, got %s", first.Status)
	}
	second, err := st.Enqueue(ctx, store.KindRegenerateFeeds, nil)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	claimed, err := st.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID || claimed.Status != store.JobRunning {
		t.Fatalf("expected first job claimed running, got %#v", claimed)
	}
	var payload store.IndexChannelPayload
	if err := claimed.DecodePayload(&payload); err != nil || payload.ChannelID != 1 {
		t.Fatalf("unexpected payload %#v err=%v", payload, err)
	}

	claimed, err = st.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if claimed == nil || claimed.ID != second.ID {
		t.Fatalf("expected second job, got %#v", claimed)
	}

	claimed, err = st.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected empty queue, got %#v", claimed)
	}
}

func TestEnqueueRejectsBadInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := st.Enqueue(ctx, store.JobKind("reboot"), nil); !errors.Is(err, store.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if _, err := st.Enqueue(ctx, store.KindIndexChannel, store.IndexChannelPayload{}); !errors.Is(err, store.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if _, err := st.Enqueue(ctx, store.KindDownloadVideo, store.DownloadVideoPayload{VideoID: "  "}); !errors.Is(err, store.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	jobs, err := st.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no rows for rejected input, got %d", len(jobs))
	}
}

func TestCompleteAndFailRequireRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := st.Enqueue(ctx, store.KindSyncExternalFeeds, nil)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := st.Complete(ctx, job.ID); !errors.Is(err, store.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning for pending job, got %v", err)
	}

	if _, err := st.ClaimNextPending(ctx); err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if err := st.Fail(ctx, job.ID, "lister exited 1"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if err := st.Complete(ctx, job.ID); !errors.Is(err, store.ErrNotRunning) {
		t.Fatalf("expected failed job to stay failed, got %v", err)
	}

	got, err := st.JobByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobByID failed: %v", err)
	}
	if got.Status != store.JobFailed || got.Error != "lister exited 1" {
		t.Fatalf("unexpected job state %#v", got)
	}
}

func TestListRecentNewestFirstAndStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		job, err := st.Enqueue(ctx, store.KindRegenerateFeeds, nil)
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		ids = append(ids, job.ID)
	}
	claimed, err := st.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if err := st.Complete(ctx, claimed.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	jobs, err := st.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != ids[2] || jobs[1].ID != ids[1] {
		t.Fatalf("unexpected recent jobs %#v", jobs)
	}

	stats, err := st.JobStats(ctx)
	if err != nil {
		t.Fatalf("JobStats failed: %v", err)
	}
	if stats[store.JobDone] != 1 || stats[store.JobPending] != 2 {
		t.Fatalf("unexpected stats %#v", stats)
	}
}

func TestFailOrphanedRunningFailsJobsAndDownloads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := st.QueueDownload(ctx, "dQw4w9WgXcQ")
	if err != nil || job == nil {
		t.Fatalf("QueueDownload failed: job=%v err=%v", job, err)
	}
	if _, err := st.ClaimNextPending(ctx); err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if err := st.MarkDownloadRunning(ctx, "dQw4w9WgXcQ"); err != nil {
		t.Fatalf("MarkDownloadRunning failed: %v", err)
	}

	orphaned, err := st.FailOrphanedRunning(ctx, "interrupted by daemon restart")
	if err != nil {
		t.Fatalf("FailOrphanedRunning failed: %v", err)
	}
	if len(orphaned) != 1 || orphaned[0].ID != job.ID {
		t.Fatalf("unexpected orphaned jobs %#v", orphaned)
	}

	got, err := st.JobByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobByID failed: %v", err)
	}
	if got.Status != store.JobFailed {
		t.Fatalf("expected failed job, got %s", got.Status)
	}
	rec, err := st.DownloadByVideoID(ctx, "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("DownloadByVideoID failed: %v", err)
	}
	if rec.Status != store.DownloadFailed || rec.Error != "interrupted by daemon restart" {
		t.Fatalf("unexpected record %#v", rec)
	}

	requeued, err := st.QueueDownload(ctx, "dQw4w9WgXcQ")
	if err != nil || requeued == nil {
		t.Fatalf("expected failed record to be re-queueable, job=%v err=%v", requeued, err)
	}
}

func TestLatestIndexStatesTracksNewestJobPerChannel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := st.Enqueue(ctx, store.KindIndexChannel, store.IndexChannelPayload{ChannelID: 4}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	claimed, err := st.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if err := st.Fail(ctx, claimed.ID, "timeout"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	newest, err := st.Enqueue(ctx, store.KindIndexChannel, store.IndexChannelPayload{ChannelID: 4})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	states, err := st.LatestIndexStates(ctx)
	if err != nil {
		t.Fatalf("LatestIndexStates failed: %v", err)
	}
	state, ok := states[4]
	if !ok || state.JobID != newest.ID || state.Status != store.JobPending {
		t.Fatalf("unexpected index state %#v", states)
	}
}
