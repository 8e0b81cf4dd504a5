package config

import (
	"fmt"
	"os"
	"strings"
)

const envPrefix = "COMPANION_"

func (c *Config) normalize() error {
	c.applyEnvOverrides()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFeeds()
	c.normalizeDownloads()
	if err := c.normalizePodsync(); err != nil {
		return err
	}
	c.normalizeCache()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
	return nil
}

// applyEnvOverrides replaces selected values with COMPANION_* environment variables.
func (c *Config) applyEnvOverrides() {
	overrides := map[string]*string{
		"PUBLIC_BASE_URL":     &c.Feeds.PublicBaseURL,
		"MEDIA_DIR":           &c.Paths.MediaDir,
		"DATA_DIR":            &c.Paths.DataDir,
		"PODSYNC_CONFIG_PATH": &c.Podsync.ConfigPath,
		"PODSYNC_DATA_DIR":    &c.Podsync.DataDir,
		"REDIS_URL":           &c.Cache.RedisURL,
		"YTDLP_BINARY":        &c.Downloads.YTDLPBinary,
		"NTFY_TOPIC":          &c.Notifications.NtfyTopic,
	}
	for suffix, target := range overrides {
		if value, ok := os.LookupEnv(envPrefix + suffix); ok && strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if c.Paths.ManualFeedFile, err = expandPath(c.Paths.ManualFeedFile); err != nil {
		return fmt.Errorf("paths.manual_feed_file: %w", err)
	}
	if c.Paths.MergedFeedDir, err = expandPath(c.Paths.MergedFeedDir); err != nil {
		return fmt.Errorf("paths.merged_feed_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFeeds() {
	c.Feeds.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Feeds.PublicBaseURL), "/")
	if c.Feeds.PublicBaseURL == "" {
		c.Feeds.PublicBaseURL = defaultPublicBaseURL
	}
	c.Feeds.MediaURLPath = normalizeURLPath(c.Feeds.MediaURLPath, defaultMediaURLPath)
	c.Feeds.ManualFeedPath = normalizeURLPath(c.Feeds.ManualFeedPath, defaultManualFeedPath)
	c.Feeds.MergedFeedPathPrefix = normalizeURLPath(c.Feeds.MergedFeedPathPrefix, defaultMergedFeedPathPrefix)
	if strings.TrimSpace(c.Feeds.ManualTitle) == "" {
		c.Feeds.ManualTitle = defaultManualTitle
	}
	if strings.TrimSpace(c.Feeds.ManualDescription) == "" {
		c.Feeds.ManualDescription = defaultManualDescription
	}
	c.Feeds.MergedTitleSuffix = strings.TrimSpace(c.Feeds.MergedTitleSuffix)
	if c.Feeds.MergedTitleSuffix == "" {
		c.Feeds.MergedTitleSuffix = defaultMergedTitleSuffix
	}
	if strings.TrimSpace(c.Feeds.MergedDescription) == "" {
		c.Feeds.MergedDescription = defaultMergedDescription
	}
}

// normalizeURLPath ensures a leading slash and strips trailing slashes.
func normalizeURLPath(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if !strings.HasPrefix(value, "/") {
		value = "/" + value
	}
	trimmed := strings.TrimRight(value, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

func (c *Config) normalizeDownloads() {
	c.Downloads.YTDLPBinary = strings.TrimSpace(c.Downloads.YTDLPBinary)
	if c.Downloads.YTDLPBinary == "" {
		c.Downloads.YTDLPBinary = defaultYTDLPBinary
	}
}

func (c *Config) normalizePodsync() error {
	var err error
	if strings.TrimSpace(c.Podsync.ConfigPath) != "" {
		if c.Podsync.ConfigPath, err = expandPath(c.Podsync.ConfigPath); err != nil {
			return fmt.Errorf("podsync.config_path: %w", err)
		}
	}
	if strings.TrimSpace(c.Podsync.DataDir) != "" {
		if c.Podsync.DataDir, err = expandPath(c.Podsync.DataDir); err != nil {
			return fmt.Errorf("podsync.data_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeCache() {
	c.Cache.RedisURL = strings.TrimSpace(c.Cache.RedisURL)
	c.Cache.KeyPrefix = strings.TrimSpace(c.Cache.KeyPrefix)
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = defaultCacheKeyPrefix
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
