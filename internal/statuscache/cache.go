// Package statuscache keeps a read-optimized projection of job and download
// state. The projection is never authoritative: it is rebuilt from the store
// at daemon start and refreshed after each job.
package statuscache

import (
	"context"
	"time"

	"podcompanion/internal/store"
)

// DownloadState is the cached view of one download record.
type DownloadState struct {
	VideoID   string               `json:"video_id"`
	Status    store.DownloadStatus `json:"status"`
	Filename  string               `json:"filename,omitempty"`
	Error     string               `json:"error,omitempty"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// IndexState is the cached outcome of the latest index job for a channel.
type IndexState struct {
	ChannelID int64           `json:"channel_id"`
	JobID     int64           `json:"job_id"`
	Status    store.JobStatus `json:"status"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Snapshot is the full projection.
type Snapshot struct {
	Jobs      map[store.JobStatus]int
	Downloads map[string]DownloadState
	Indexes   map[int64]IndexState
}

// Cache stores the projection. Implementations must be safe for concurrent use.
type Cache interface {
	PutDownload(ctx context.Context, state DownloadState) error
	PutIndex(ctx context.Context, state IndexState) error
	SetJobStats(ctx context.Context, stats map[store.JobStatus]int) error
	Download(ctx context.Context, videoID string) (DownloadState, bool, error)
	Snapshot(ctx context.Context) (Snapshot, error)
	Reset(ctx context.Context) error
	Close() error
}

func downloadState(rec store.DownloadRecord) DownloadState {
	return DownloadState{
		VideoID:   rec.VideoID,
		Status:    rec.Status,
		Filename:  rec.Filename,
		Error:     rec.Error,
		UpdatedAt: rec.UpdatedAt,
	}
}

func indexState(state store.IndexState) IndexState {
	return IndexState{
		ChannelID: state.ChannelID,
		JobID:     state.JobID,
		Status:    state.Status,
		Error:     state.Error,
		UpdatedAt: state.UpdatedAt,
	}
}
