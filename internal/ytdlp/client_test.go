package ytdlp_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"podcompanion/internal/ytdlp"
)

type stubExecutor struct {
	lines []string
	err   error
	calls int
	args  [][]string
	// onRun runs before lines are replayed.
	onRun func(args []string)
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	s.calls++
	cloned := append([]string(nil), args...)
	s.args = append(s.args, cloned)
	if s.onRun != nil {
		s.onRun(cloned)
	}
	for _, line := range s.lines {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if onStdout != nil {
			onStdout(line)
		}
	}
	return s.err
}

func newClient(t *testing.T, exec ytdlp.Executor) *ytdlp.Client {
	t.Helper()
	client, err := ytdlp.New("yt-dlp", ytdlp.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := ytdlp.New("  "); err == nil {
		t.Fatal("expected error for empty binary")
	}
}

func TestListChannelStreamsEntries(t *testing.T) {
	exec := &stubExecutor{lines: []string{
		`{"id":"v1","title":"First","upload_date":"20240105","duration":61.4,"channel":"Chan"}`,
		`{"id":"v2","title":"[Private video]","url":"v2"}`,
		``,
		`{"title":"no id"}`,
		`{"id":"v3","title":"Third","timestamp":1704067200,"availability":"needs_auth"}`,
	}}
	client := newClient(t, exec)

	var got []ytdlp.Entry
	err := client.ListChannel(context.Background(), "https://www.youtube.com/@chan", 0, func(e ytdlp.Entry) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("ListChannel failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].PublishedAt == nil || got[0].PublishedAt.Format("2006-01-02") != "2024-01-05" {
		t.Fatalf("unexpected published date: %v", got[0].PublishedAt)
	}
	if got[0].DurationSeconds == nil || *got[0].DurationSeconds != 61 {
		t.Fatalf("unexpected duration: %v", got[0].DurationSeconds)
	}
	if got[0].WebpageURL != "https://www.youtube.com/watch?v=v1" {
		t.Fatalf("unexpected page url: %s", got[0].WebpageURL)
	}
	if !got[1].Unavailable || !got[2].Unavailable {
		t.Fatalf("expected unavailable markers, got %+v %+v", got[1], got[2])
	}
	if got[0].Unavailable {
		t.Fatal("expected first entry to be available")
	}
	if got[2].PublishedAt == nil || got[2].PublishedAt.Unix() != 1704067200 {
		t.Fatalf("expected timestamp fallback, got %v", got[2].PublishedAt)
	}

	args := exec.args[0]
	if !slices.Contains(args, "--flat-playlist") || !slices.Contains(args, "--dump-json") {
		t.Fatalf("missing listing flags: %v", args)
	}
	if slices.Contains(args, "--playlist-end") {
		t.Fatalf("unlimited listing should not pass --playlist-end: %v", args)
	}
}

func TestListChannelHonoursLimit(t *testing.T) {
	exec := &stubExecutor{lines: []string{
		`{"id":"a1","title":"A"}`,
		`{"id":"a2","title":"B"}`,
		`{"id":"a3","title":"C"}`,
	}}
	client := newClient(t, exec)

	count := 0
	err := client.ListChannel(context.Background(), "https://www.youtube.com/@chan", 2, func(ytdlp.Entry) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("ListChannel failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 entries, got %d", count)
	}
	idx := slices.Index(exec.args[0], "--playlist-end")
	if idx < 0 || exec.args[0][idx+1] != "2" {
		t.Fatalf("expected --playlist-end 2, got %v", exec.args[0])
	}
}

func TestListChannelStopsOnCallbackError(t *testing.T) {
	sentinel := errors.New("storage down")
	exec := &stubExecutor{lines: []string{`{"id":"a1"}`, `{"id":"a2"}`}}
	client := newClient(t, exec)

	count := 0
	err := client.ListChannel(context.Background(), "https://x", 0, func(ytdlp.Entry) error {
		count++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if count != 1 {
		t.Fatalf("expected listing to stop after first entry, got %d", count)
	}
}

func TestListChannelReportsMalformedOutput(t *testing.T) {
	exec := &stubExecutor{lines: []string{`{"id":"a1"}`, `{"id":`}}
	client := newClient(t, exec)

	err := client.ListChannel(context.Background(), "https://x", 0, func(ytdlp.Entry) error { return nil })
	if !errors.Is(err, ytdlp.ErrMalformedOutput) {
		t.Fatalf("expected malformed output error, got %v", err)
	}
}

func TestListChannelReturnsExitError(t *testing.T) {
	exitErr := &ytdlp.ExitError{
		Binary:   "yt-dlp",
		ExitCode: 1,
		Stderr:   []string{"[youtube] fetching", "ERROR: [youtube] This channel does not exist."},
	}
	client := newClient(t, &stubExecutor{err: exitErr})

	err := client.ListChannel(context.Background(), "https://x", 0, func(ytdlp.Entry) error { return nil })
	var got *ytdlp.ExitError
	if !errors.As(err, &got) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if got.Summary() != "ERROR: [youtube] This channel does not exist." {
		t.Fatalf("unexpected summary %q", got.Summary())
	}
}

func TestMetadataParsesSingleJSON(t *testing.T) {
	exec := &stubExecutor{lines: []string{
		`{"id":"v1","title":"Full","description":"desc",`,
		`"release_timestamp":1704153600,"uploader":"Up","channel":"Chan","webpage_url":"https://www.youtube.com/watch?v=v1"}`,
	}}
	client := newClient(t, exec)

	entry, err := client.Metadata(context.Background(), "https://www.youtube.com/watch?v=v1")
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if entry.Uploader != "Up" {
		t.Fatalf("expected uploader preferred, got %q", entry.Uploader)
	}
	if entry.PublishedAt == nil || entry.PublishedAt.Unix() != 1704153600 {
		t.Fatalf("unexpected published date %v", entry.PublishedAt)
	}
	if !slices.Contains(exec.args[0], "--dump-single-json") {
		t.Fatalf("expected --dump-single-json, got %v", exec.args[0])
	}
}

func TestDownloadReturnsProducedFile(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "vid.old")
	if err := os.WriteFile(stale, []byte("stale"), 0o644); err != nil {
		t.Fatalf("write stale file: %v", err)
	}
	exec := &stubExecutor{onRun: func(args []string) {
		_ = os.WriteFile(filepath.Join(dir, "vid.mp3.part"), []byte("p"), 0o644)
		_ = os.WriteFile(filepath.Join(dir, "vid.mp3"), []byte("audio"), 0o644)
	}}
	client := newClient(t, exec)

	path, err := client.Download(context.Background(), ytdlp.DownloadRequest{
		URL:       "https://www.youtube.com/watch?v=vid",
		VideoID:   "vid",
		OutputDir: dir,
		AudioOnly: true,
	})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if filepath.Base(path) != "vid.mp3" {
		t.Fatalf("unexpected output %s", path)
	}
	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected stale staging file removed, got %v", err)
	}
	joined := strings.Join(exec.args[0], " ")
	if !strings.Contains(joined, "-x --audio-format mp3") {
		t.Fatalf("expected audio extraction flags, got %s", joined)
	}
	if !strings.Contains(joined, filepath.Join(dir, "vid.%(ext)s")) {
		t.Fatalf("expected output template, got %s", joined)
	}
}

func TestDownloadVideoFlags(t *testing.T) {
	dir := t.TempDir()
	exec := &stubExecutor{onRun: func([]string) {
		_ = os.WriteFile(filepath.Join(dir, "vid.mp4"), []byte("video"), 0o644)
	}}
	client := newClient(t, exec)

	if _, err := client.Download(context.Background(), ytdlp.DownloadRequest{
		URL: "https://www.youtube.com/watch?v=vid", VideoID: "vid", OutputDir: dir,
	}); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !slices.Contains(exec.args[0], "--merge-output-format") {
		t.Fatalf("expected merge flag, got %v", exec.args[0])
	}
}

func TestDownloadErrorsWhenNoOutputProduced(t *testing.T) {
	client := newClient(t, &stubExecutor{})
	_, err := client.Download(context.Background(), ytdlp.DownloadRequest{
		URL: "https://www.youtube.com/watch?v=vid", VideoID: "vid", OutputDir: t.TempDir(),
	})
	if err == nil || !strings.Contains(err.Error(), "no output file") {
		t.Fatalf("expected no output error, got %v", err)
	}
}
