package config

const (
	defaultConfigPath           = "~/.config/podcompanion/config.toml"
	defaultDataDir              = "~/.local/share/podcompanion"
	defaultStagingDir           = "~/.local/share/podcompanion/staging"
	defaultMediaDir             = "~/.local/share/podcompanion/media"
	defaultManualFeedFile       = "~/.local/share/podcompanion/manual.xml"
	defaultMergedFeedDir        = "~/.local/share/podcompanion/merged"
	defaultLogDir               = "~/.local/share/podcompanion/logs"
	defaultPublicBaseURL        = "http://localhost:8080"
	defaultMediaURLPath         = "/media"
	defaultManualFeedPath       = "/feeds/manual.xml"
	defaultManualTitle          = "Podsync Companion Manual Feed"
	defaultManualDescription    = "Manually selected back-catalog episodes"
	defaultMergedFeedPathPrefix = "/feeds/merged"
	defaultMergedTitleSuffix    = "Merged Feed"
	defaultMergedDescription    = "Podsync feed items plus companion manual items"
	defaultYTDLPBinary          = "yt-dlp"
	defaultDownloadTimeout      = 3600
	defaultIndexTimeout         = 900
	defaultMetadataTimeout      = 60
	defaultHydrateBudget        = 20
	defaultPodsyncConfigPath    = "/podsync/config.toml"
	defaultPodsyncDataDir       = "/podsync/data"
	defaultSyncInterval         = 300
	defaultPollInterval         = 3
	defaultErrorRetryInterval   = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultCacheKeyPrefix       = "podcompanion:"
	defaultNtfyRequestTimeout   = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:        defaultDataDir,
			StagingDir:     defaultStagingDir,
			MediaDir:       defaultMediaDir,
			ManualFeedFile: defaultManualFeedFile,
			MergedFeedDir:  defaultMergedFeedDir,
			LogDir:         defaultLogDir,
		},
		Feeds: Feeds{
			PublicBaseURL:        defaultPublicBaseURL,
			MediaURLPath:         defaultMediaURLPath,
			ManualFeedPath:       defaultManualFeedPath,
			ManualTitle:          defaultManualTitle,
			ManualDescription:    defaultManualDescription,
			MergedFeedPathPrefix: defaultMergedFeedPathPrefix,
			MergedTitleSuffix:    defaultMergedTitleSuffix,
			MergedDescription:    defaultMergedDescription,
		},
		Downloads: Downloads{
			AudioOnly:       true,
			YTDLPBinary:     defaultYTDLPBinary,
			DownloadTimeout: defaultDownloadTimeout,
			RefreshMetadata: true,
		},
		Indexing: Indexing{
			ScanLimit:           0,
			IndexTimeout:        defaultIndexTimeout,
			MetadataTimeout:     defaultMetadataTimeout,
			HydrateMissingDates: true,
			HydrateBudget:       defaultHydrateBudget,
		},
		Podsync: Podsync{
			ConfigPath:   defaultPodsyncConfigPath,
			DataDir:      defaultPodsyncDataDir,
			SyncInterval: defaultSyncInterval,
			WatchConfig:  true,
		},
		Workflow: Workflow{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Cache: Cache{
			KeyPrefix: defaultCacheKeyPrefix,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			NotifySuccess:  true,
		},
	}
}
