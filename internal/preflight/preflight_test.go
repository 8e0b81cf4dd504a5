package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podcompanion/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed || result.Detail == "" {
		t.Fatalf("expected failure with detail for missing dir, got %+v", result)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckReadable(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(file, []byte("[feeds]\n"), 0o444); err != nil {
		t.Fatal(err)
	}
	if result := CheckReadable("config", file, true); !result.Passed {
		t.Fatalf("expected readable file to pass, got %s", result.Detail)
	}
	missing := CheckReadable("config", filepath.Join(dir, "missing.toml"), true)
	if missing.Passed || missing.Blocking() {
		t.Fatalf("expected optional non-blocking failure, got %+v", missing)
	}
	if unset := CheckReadable("config", "", true); unset.Detail != "not configured" {
		t.Fatalf("unexpected detail for unset path: %q", unset.Detail)
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected at least one free byte, got %s", result.Detail)
	}
	result := CheckFreeSpace("space", dir, 1<<62)
	if result.Passed || !strings.Contains(result.Detail, "below") {
		t.Fatalf("expected shortfall reported, got %+v", result)
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected statfs failure for missing path")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsMissingBinaryAsBlocking(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	cfg.Downloads.YTDLPBinary = "clearly-not-present-yt-dlp"

	results := RunAll(context.Background(), cfg)
	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}
	for _, name := range []string{"Data directory", "Staging directory", "Media directory", "Feed directory", "Merged feed directory"} {
		if !byName[name].Passed {
			t.Fatalf("check %q failed: %s", name, byName[name].Detail)
		}
	}
	if _, ok := byName["Status cache"]; ok {
		t.Fatal("expected redis check skipped without a url")
	}
	podsync := byName["Podsync config"]
	if podsync.Passed || podsync.Blocking() {
		t.Fatalf("expected missing podsync config to be non-blocking, got %+v", podsync)
	}

	blocking := Blocking(results)
	found := false
	for _, r := range blocking {
		if r.Name == "yt-dlp" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected missing yt-dlp to block, got %+v", blocking)
	}
}

func TestRunAll_IncludesRedisWhenConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Cache.RedisURL = "ftp://not-redis"

	results := RunAll(context.Background(), cfg)
	last := results[len(results)-1]
	if last.Name != "Status cache" || last.Passed || last.Blocking() {
		t.Fatalf("expected optional failing redis check, got %+v", last)
	}
}
