package statuscache

import (
	"context"
	"maps"
	"sync"

	"podcompanion/internal/store"
)

// Memory is an in-process Cache.
type Memory struct {
	mu        sync.RWMutex
	jobs      map[store.JobStatus]int
	downloads map[string]DownloadState
	indexes   map[int64]IndexState
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	m := &Memory{}
	m.reset()
	return m
}

func (m *Memory) reset() {
	m.jobs = map[store.JobStatus]int{}
	m.downloads = map[string]DownloadState{}
	m.indexes = map[int64]IndexState{}
}

func (m *Memory) PutDownload(_ context.Context, state DownloadState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads[state.VideoID] = state
	return nil
}

func (m *Memory) PutIndex(_ context.Context, state IndexState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexes[state.ChannelID] = state
	return nil
}

func (m *Memory) SetJobStats(_ context.Context, stats map[store.JobStatus]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = maps.Clone(stats)
	if m.jobs == nil {
		m.jobs = map[store.JobStatus]int{}
	}
	return nil
}

func (m *Memory) Download(_ context.Context, videoID string) (DownloadState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.downloads[videoID]
	return state, ok, nil
}

func (m *Memory) Snapshot(_ context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Jobs:      maps.Clone(m.jobs),
		Downloads: maps.Clone(m.downloads),
		Indexes:   maps.Clone(m.indexes),
	}, nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}

func (m *Memory) Close() error { return nil }
