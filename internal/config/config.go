package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file locations owned by the companion.
type Paths struct {
	DataDir        string `toml:"data_dir"`
	StagingDir     string `toml:"staging_dir"`
	MediaDir       string `toml:"media_dir"`
	ManualFeedFile string `toml:"manual_feed_file"`
	MergedFeedDir  string `toml:"merged_feed_dir"`
	LogDir         string `toml:"log_dir"`
}

// Feeds controls how generated feed documents are addressed and titled.
type Feeds struct {
	PublicBaseURL        string `toml:"public_base_url"`
	MediaURLPath         string `toml:"media_url_path"`
	ManualFeedPath       string `toml:"manual_feed_path"`
	ManualTitle          string `toml:"manual_title"`
	ManualDescription    string `toml:"manual_description"`
	MergedFeedPathPrefix string `toml:"merged_feed_path_prefix"`
	MergedTitleSuffix    string `toml:"merged_title_suffix"`
	MergedDescription    string `toml:"merged_description"`
}

// Downloads configures the external fetcher.
type Downloads struct {
	AudioOnly       bool   `toml:"audio_only"`
	YTDLPBinary     string `toml:"ytdlp_binary"`
	DownloadTimeout int    `toml:"download_timeout"`
	RefreshMetadata bool   `toml:"refresh_metadata"`
}

// Indexing configures channel catalog listing.
type Indexing struct {
	ScanLimit           int  `toml:"scan_limit"`
	IndexTimeout        int  `toml:"index_timeout"`
	MetadataTimeout     int  `toml:"metadata_timeout"`
	HydrateMissingDates bool `toml:"hydrate_missing_dates"`
	HydrateBudget       int  `toml:"hydrate_budget"`
}

// Podsync points at the external feed-owning tool's read-only files.
type Podsync struct {
	ConfigPath   string `toml:"config_path"`
	DataDir      string `toml:"data_dir"`
	SyncInterval int    `toml:"sync_interval"`
	WatchConfig  bool   `toml:"watch_config"`
}

// Workflow contains configuration for worker timing.
type Workflow struct {
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Cache configures the optional shared status projection.
type Cache struct {
	RedisURL  string `toml:"redis_url"`
	KeyPrefix string `toml:"key_prefix"`
}

// Notifications configures optional ntfy alerts.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	NotifySuccess  bool   `toml:"notify_success"`
}

// Config encapsulates all configuration values for podcompanion.
//
// Configuration sections by subsystem:
//   - Paths: database, staging, media, and generated feed locations
//   - Feeds: public URLs and titles of generated feeds
//   - Downloads: external fetcher invocation
//   - Indexing: catalog listing bounds
//   - Podsync: external tool config and feed locations
//   - Workflow: worker polling intervals
//   - Logging: log format and level
//   - Cache: optional Redis status projection
//   - Notifications: optional ntfy alerts for downloads and index failures
type Config struct {
	Paths     Paths     `toml:"paths"`
	Feeds     Feeds     `toml:"feeds"`
	Downloads Downloads `toml:"downloads"`
	Indexing  Indexing  `toml:"indexing"`
	Podsync   Podsync   `toml:"podsync"`
	Workflow  Workflow  `toml:"workflow"`
	Logging   Logging   `toml:"logging"`
	Cache     Cache     `toml:"cache"`

	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("podcompanion.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		c.Paths.StagingDir,
		c.Paths.MediaDir,
		c.Paths.MergedFeedDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.ManualFeedFile),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the SQLite job database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "companion.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "podcompanion.lock")
}

// YTDLPBinary returns the external lister/fetcher executable name.
func (c *Config) YTDLPBinary() string {
	if bin := strings.TrimSpace(c.Downloads.YTDLPBinary); bin != "" {
		return bin
	}
	return defaultYTDLPBinary
}

// PollInterval returns the worker poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollInterval) * time.Second
}

// ErrorRetryInterval returns the back-off after a control-path storage failure.
func (c *Config) ErrorRetryInterval() time.Duration {
	return time.Duration(c.Workflow.ErrorRetryInterval) * time.Second
}

// SyncInterval returns the external config sync period; zero disables it.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Podsync.SyncInterval) * time.Second
}

// IndexTimeout bounds one catalog listing run.
func (c *Config) IndexTimeout() time.Duration {
	return time.Duration(c.Indexing.IndexTimeout) * time.Second
}

// MetadataTimeout bounds one single-video metadata lookup.
func (c *Config) MetadataTimeout() time.Duration {
	return time.Duration(c.Indexing.MetadataTimeout) * time.Second
}

// DownloadTimeout bounds one fetcher invocation.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Downloads.DownloadTimeout) * time.Second
}

// NotificationTimeout returns the ntfy request timeout.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// ManualFeedURL returns the public URL of the manual feed.
func (c *Config) ManualFeedURL() string {
	return strings.TrimRight(c.Feeds.PublicBaseURL, "/") + c.Feeds.ManualFeedPath
}

// MediaURL returns the public URL of a file in the media directory.
func (c *Config) MediaURL(filename string) string {
	prefix := strings.TrimRight(c.Feeds.MediaURLPath, "/")
	return strings.TrimRight(c.Feeds.PublicBaseURL, "/") + prefix + "/" + url.PathEscape(filename)
}

// MergedFeedURL returns the public URL of a channel's merged feed.
func (c *Config) MergedFeedURL(channelID int64) string {
	return fmt.Sprintf("%s%s/%d.xml", strings.TrimRight(c.Feeds.PublicBaseURL, "/"), c.Feeds.MergedFeedPathPrefix, channelID)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
