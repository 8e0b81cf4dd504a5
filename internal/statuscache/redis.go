package statuscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"podcompanion/internal/store"
)

const redisTimeout = 2 * time.Second

// Redis stores the projection in three hashes under a key prefix so several
// processes (CLI and daemon) can share it.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// DialRedis parses a redis:// URL and verifies the server answers.
func DialRedis(ctx context.Context, rawURL, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, prefix), nil
}

func (r *Redis) key(name string) string { return r.prefix + name }

func (r *Redis) putJSON(ctx context.Context, hash, field string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	return r.client.HSet(ctx, r.key(hash), field, b).Err()
}

func (r *Redis) PutDownload(ctx context.Context, state DownloadState) error {
	return r.putJSON(ctx, "downloads", state.VideoID, state)
}

func (r *Redis) PutIndex(ctx context.Context, state IndexState) error {
	return r.putJSON(ctx, "indexes", strconv.FormatInt(state.ChannelID, 10), state)
}

func (r *Redis) SetJobStats(ctx context.Context, stats map[store.JobStatus]int) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key("jobs"))
	if len(stats) > 0 {
		values := make(map[string]any, len(stats))
		for status, count := range stats {
			values[string(status)] = count
		}
		pipe.HSet(ctx, r.key("jobs"), values)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) Download(ctx context.Context, videoID string) (DownloadState, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	raw, err := r.client.HGet(ctx, r.key("downloads"), videoID).Bytes()
	if errors.Is(err, redis.Nil) {
		return DownloadState{}, false, nil
	}
	if err != nil {
		return DownloadState{}, false, err
	}
	var state DownloadState
	if err := json.Unmarshal(raw, &state); err != nil {
		return DownloadState{}, false, fmt.Errorf("decode cached download %s: %w", videoID, err)
	}
	return state, true, nil
}

func (r *Redis) Snapshot(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	snap := Snapshot{
		Jobs:      map[store.JobStatus]int{},
		Downloads: map[string]DownloadState{},
		Indexes:   map[int64]IndexState{},
	}

	jobs, err := r.client.HGetAll(ctx, r.key("jobs")).Result()
	if err != nil {
		return snap, err
	}
	for status, raw := range jobs {
		count, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		snap.Jobs[store.JobStatus(status)] = count
	}

	downloads, err := r.client.HGetAll(ctx, r.key("downloads")).Result()
	if err != nil {
		return snap, err
	}
	for videoID, raw := range downloads {
		var state DownloadState
		if json.Unmarshal([]byte(raw), &state) == nil {
			snap.Downloads[videoID] = state
		}
	}

	indexes, err := r.client.HGetAll(ctx, r.key("indexes")).Result()
	if err != nil {
		return snap, err
	}
	for _, raw := range indexes {
		var state IndexState
		if json.Unmarshal([]byte(raw), &state) == nil {
			snap.Indexes[state.ChannelID] = state
		}
	}
	return snap, nil
}

func (r *Redis) Reset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	return r.client.Del(ctx, r.key("jobs"), r.key("downloads"), r.key("indexes")).Err()
}

func (r *Redis) Close() error { return r.client.Close() }
