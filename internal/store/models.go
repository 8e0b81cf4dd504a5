package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobKind identifies one of the fixed job types.
type JobKind string

const (
	KindIndexChannel      JobKind = "index_channel"
	KindDownloadVideo     JobKind = "download_video"
	KindRegenerateFeeds   JobKind = "regenerate_manual_feed"
	KindSyncExternalFeeds JobKind = "sync_external_feeds"
)

// Valid reports whether k is a known job kind.
func (k JobKind) Valid() bool {
	switch k {
	case KindIndexChannel, KindDownloadVideo, KindRegenerateFeeds, KindSyncExternalFeeds:
		return true
	default:
		return false
	}
}

// JobKinds lists every job kind in dispatch order.
func JobKinds() []JobKind {
	return []JobKind{KindIndexChannel, KindDownloadVideo, KindRegenerateFeeds, KindSyncExternalFeeds}
}

// JobStatus is the lifecycle state of a job row.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is one durable unit of scheduled work.
type Job struct {
	ID          int64
	Kind        JobKind
	Status      JobStatus
	PayloadJSON string
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DecodePayload unmarshals the job payload into v.
func (j *Job) DecodePayload(v any) error {
	raw := j.PayloadJSON
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Kind, err)
	}
	return nil
}

// IndexChannelPayload addresses an index_channel job.
type IndexChannelPayload struct {
	ChannelID int64 `json:"channel_id"`
}

// DownloadVideoPayload addresses a download_video job.
type DownloadVideoPayload struct {
	VideoID string `json:"video_id"`
}

// Channel is an indexed catalog source.
type Channel struct {
	ID            int64
	URL           string
	Name          string
	CreatedAt     time.Time
	LastIndexedAt *time.Time
}

// DisplayName returns the channel name, falling back to its URL.
func (c Channel) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.URL
}

// Video is one catalog entry belonging to a channel.
type Video struct {
	ID              int64
	ChannelID       int64
	VideoID         string
	Title           string
	Description     string
	WebpageURL      string
	PublishedAt     *time.Time
	DurationSeconds *int64
	ThumbnailURL    string
	Uploader        string
	Unavailable     bool
	IndexedAt       time.Time
}

// VideoFilter narrows ListVideos.
type VideoFilter struct {
	ChannelID          int64
	Query              string
	IncludeUnavailable bool
	Limit              int
	Offset             int
}

// DownloadStatus is the lifecycle state of a manual download.
type DownloadStatus string

const (
	DownloadQueued   DownloadStatus = "queued"
	DownloadRunning  DownloadStatus = "running"
	DownloadDone     DownloadStatus = "done"
	DownloadFailed   DownloadStatus = "failed"
	DownloadExternal DownloadStatus = "external"
)

// Active reports whether a download is queued or running.
func (s DownloadStatus) Active() bool {
	return s == DownloadQueued || s == DownloadRunning
}

// Settled reports whether a new download request for the video must be skipped.
func (s DownloadStatus) Settled() bool {
	return s.Active() || s == DownloadDone || s == DownloadExternal
}

// DownloadRecord tracks the manual download of one video.
type DownloadRecord struct {
	ID        int64
	VideoID   string
	Status    DownloadStatus
	Filename  string
	MediaPath string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DownloadedEpisode pairs a done download with its indexed video, when known.
type DownloadedEpisode struct {
	Record DownloadRecord
	Video  *Video
}

// PublishedAt returns the episode's publish time, if the video is indexed with one.
func (e DownloadedEpisode) PublishedAt() *time.Time {
	if e.Video == nil {
		return nil
	}
	return e.Video.PublishedAt
}

// IndexState summarizes the most recent index job for a channel.
type IndexState struct {
	ChannelID int64
	JobID     int64
	Status    JobStatus
	Error     string
	UpdatedAt time.Time
}

// ComparePublished orders publish times newest first with unknown times last.
// It returns a negative number when a sorts before b.
func ComparePublished(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.After(*b):
		return -1
	case a.Before(*b):
		return 1
	default:
		return 0
	}
}
