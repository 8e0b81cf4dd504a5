package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"podcompanion/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.ManualFeedFile = filepath.Join(base, "feeds", "manual.xml")
	cfgVal.Paths.MergedFeedDir = filepath.Join(base, "feeds", "merged")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Podsync.ConfigPath = filepath.Join(base, "podsync", "config.toml")
	cfgVal.Podsync.DataDir = filepath.Join(base, "podsync", "data")
	cfgVal.Podsync.WatchConfig = false
	cfgVal.Indexing.HydrateMissingDates = false
	cfgVal.Downloads.RefreshMetadata = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPublicBaseURL overrides the public feed base URL on the test config.
func WithPublicBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Feeds.PublicBaseURL = url
	}
}

// WithScanLimit caps catalog listing on the test config.
func WithScanLimit(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Indexing.ScanLimit = limit
	}
}

// WithHydration enables publish-date hydration with the given budget.
func WithHydration(budget int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Indexing.HydrateMissingDates = true
		b.cfg.Indexing.HydrateBudget = budget
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, yt-dlp is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"yt-dlp"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteExecutable(b.t, binDir, name, "exit 0\n")
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
