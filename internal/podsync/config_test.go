package podsync_test

import (
	"os"
	"path/filepath"
	"testing"

	"podcompanion/internal/podsync"
)

func TestReadConfigParsesFeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	payload := `
[server]
port = 8080

[feeds.zeta]
url = "https://www.youtube.com/@zeta/ "
page_size = 10

[feeds.alpha]
url = "https://www.youtube.com/channel/UCalpha/"

[feeds.empty]
format = "audio"
`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	sources, err := podsync.ReadConfig(path)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %+v", sources)
	}
	if sources[0].ID != "alpha" || sources[0].URL != "https://www.youtube.com/channel/UCalpha" {
		t.Fatalf("unexpected first source %+v", sources[0])
	}
	if sources[1].ID != "zeta" || sources[1].URL != "https://www.youtube.com/@zeta" {
		t.Fatalf("unexpected second source %+v", sources[1])
	}
}

func TestReadConfigMissingFile(t *testing.T) {
	sources, err := podsync.ReadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("expected no error for missing config, got %v", err)
	}
	if len(sources) != 0 {
		t.Fatalf("expected no sources, got %+v", sources)
	}
}

func TestReadConfigRejectsInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[feeds.x\nurl="), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := podsync.ReadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}
