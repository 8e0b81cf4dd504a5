package staging_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"podcompanion/internal/logging"
	"podcompanion/internal/staging"
)

func age(t *testing.T, path string, d time.Duration) {
	t.Helper()
	old := time.Now().Add(-d)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("set mtime on %s: %v", path, err)
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", filepath.Join(t.TempDir(), "missing")} {
		result := staging.CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q, got %+v", dir, result)
		}
	}
}

func TestCleanStaleRemovesOldEntries(t *testing.T) {
	dir := t.TempDir()

	oldPart := filepath.Join(dir, "dQw4w9WgXcQ.webm.part")
	if err := os.WriteFile(oldPart, []byte("partial"), 0o644); err != nil {
		t.Fatalf("write part: %v", err)
	}
	age(t, oldPart, 48*time.Hour)

	oldFrag := filepath.Join(dir, "frags")
	if err := os.MkdirAll(filepath.Join(oldFrag, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir frags: %v", err)
	}
	age(t, oldFrag, 48*time.Hour)

	fresh := filepath.Join(dir, "aaaaaaaaaaa.mp3")
	if err := os.WriteFile(fresh, []byte("fresh"), 0o644); err != nil {
		t.Fatalf("write fresh: %v", err)
	}

	result := staging.CleanStale(context.Background(), dir, staging.DefaultMaxAge, nil)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.Removed) != 2 {
		t.Fatalf("expected 2 removed, got %v", result.Removed)
	}
	for _, gone := range []string{oldPart, oldFrag} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed", gone)
		}
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh file should remain: %v", err)
	}
}

func TestMeasureUsage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.mp3"), make([]byte, 100), 0o644); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b.part"), make([]byte, 50), 0o644); err != nil {
		t.Fatalf("write b: %v", err)
	}

	usage, err := staging.MeasureUsage(dir)
	if err != nil {
		t.Fatalf("MeasureUsage failed: %v", err)
	}
	if usage.Entries != 2 || usage.Bytes != 150 {
		t.Fatalf("unexpected usage %+v", usage)
	}

	usage, err = staging.MeasureUsage(filepath.Join(dir, "missing"))
	if err != nil || usage != (staging.Usage{}) {
		t.Fatalf("expected empty usage for missing dir, got %+v err=%v", usage, err)
	}
}
