package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFeeds(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateIndexing(); err != nil {
		return err
	}
	if err := c.validatePodsync(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePaths() error {
	required := map[string]string{
		"paths.data_dir":         c.Paths.DataDir,
		"paths.staging_dir":      c.Paths.StagingDir,
		"paths.media_dir":        c.Paths.MediaDir,
		"paths.manual_feed_file": c.Paths.ManualFeedFile,
		"paths.merged_feed_dir":  c.Paths.MergedFeedDir,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	if c.Paths.StagingDir == c.Paths.MediaDir {
		return errors.New("paths.staging_dir must differ from paths.media_dir")
	}
	return nil
}

func (c *Config) validateFeeds() error {
	parsed, err := url.Parse(c.Feeds.PublicBaseURL)
	if err != nil {
		return fmt.Errorf("feeds.public_base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("feeds.public_base_url must use http or https, got %q", c.Feeds.PublicBaseURL)
	}
	if parsed.Host == "" {
		return errors.New("feeds.public_base_url must include a host")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"downloads.download_timeout":    c.Downloads.DownloadTimeout,
		"indexing.index_timeout":        c.Indexing.IndexTimeout,
		"indexing.metadata_timeout":     c.Indexing.MetadataTimeout,
		"workflow.poll_interval":        c.Workflow.PollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	})
}

func (c *Config) validateIndexing() error {
	if c.Indexing.ScanLimit < 0 {
		return errors.New("indexing.scan_limit must be >= 0 (0 means unlimited)")
	}
	if c.Indexing.HydrateBudget < 0 {
		return errors.New("indexing.hydrate_budget must be >= 0")
	}
	return nil
}

func (c *Config) validatePodsync() error {
	if c.Podsync.SyncInterval < 0 {
		return errors.New("podsync.sync_interval must be >= 0 (0 disables periodic sync)")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.RedisURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Cache.RedisURL)
	if err != nil {
		return fmt.Errorf("cache.redis_url: %w", err)
	}
	if parsed.Scheme != "redis" && parsed.Scheme != "rediss" {
		return fmt.Errorf("cache.redis_url must use redis:// or rediss://, got %q", parsed.Scheme)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) topic URL, got %q", c.Notifications.NtfyTopic)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
