package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const jobColumns = "id, kind, status, payload_json, error, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job        Job
		kind       string
		status     string
		errText    sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&job.ID, &kind, &status, &job.PayloadJSON, &errText, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	job.Kind = JobKind(kind)
	job.Status = JobStatus(status)
	job.Error = errText.String
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return &job, nil
}

func encodePayload(kind JobKind, payload any) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	switch kind {
	case KindIndexChannel:
		p, ok := payload.(IndexChannelPayload)
		if !ok || p.ChannelID <= 0 {
			return "", fmt.Errorf("%w: %s requires a positive channel_id", ErrInvalidPayload, kind)
		}
	case KindDownloadVideo:
		p, ok := payload.(DownloadVideoPayload)
		if !ok || strings.TrimSpace(p.VideoID) == "" {
			return "", fmt.Errorf("%w: %s requires a video_id", ErrInvalidPayload, kind)
		}
	}
	if payload == nil {
		return "{}", nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

func insertJob(ctx context.Context, db execer, kind JobKind, payloadJSON string) (*Job, error) {
	ts := now()
	row := db.QueryRowContext(ctx,
		`INSERT INTO jobs (kind, status, payload_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         RETURNING `+jobColumns,
		kind, JobPending, payloadJSON, ts, ts,
	)
	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// Enqueue appends a pending job. Payload must be IndexChannelPayload for
// index_channel, DownloadVideoPayload for download_video, and nil otherwise.
func (s *Store) Enqueue(ctx context.Context, kind JobKind, payload any) (*Job, error) {
	payloadJSON, err := encodePayload(kind, payload)
	if err != nil {
		return nil, err
	}
	ctx = ensureContext(ctx)
	var job *Job
	err = retryOnBusy(ctx, func() error {
		var insertErr error
		job, insertErr = insertJob(ctx, s.db, kind, payloadJSON)
		return insertErr
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ClaimNextPending flips the oldest pending job to running and returns it.
// It returns nil, nil when the queue is empty.
func (s *Store) ClaimNextPending(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	var job *Job
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`UPDATE jobs SET status = ?, updated_at = ?
             WHERE id = (SELECT id FROM jobs WHERE status = ? ORDER BY id LIMIT 1)
             RETURNING `+jobColumns,
			JobRunning, now(), JobPending,
		)
		var scanErr error
		job, scanErr = scanJob(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return job, nil
}

// Complete transitions a running job to done.
func (s *Store) Complete(ctx context.Context, id int64) error {
	return s.finish(ctx, id, JobDone, "")
}

// Fail transitions a running job to failed with the given error text.
func (s *Store) Fail(ctx context.Context, id int64, errText string) error {
	return s.finish(ctx, id, JobFailed, errText)
}

func (s *Store) finish(ctx context.Context, id int64, status JobStatus, errText string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ? AND status = ?`,
		status, nullableString(errText), now(), id, JobRunning,
	)
	if err != nil {
		return fmt.Errorf("mark job %d %s: %w", id, status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: job %d", ErrNotRunning, id)
	}
	return nil
}

// JobByID fetches a job, returning nil when absent.
func (s *Store) JobByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListRecent returns up to limit jobs, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func collectJobs(rows *sql.Rows) ([]Job, error) {
	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// JobStats counts jobs per status.
func (s *Store) JobStats(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := map[JobStatus]int{}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan job stats: %w", err)
		}
		stats[JobStatus(status)] = count
	}
	return stats, rows.Err()
}

// FailOrphanedRunning fails every job left running by a previous process, along
// with the active download records those jobs owned. It returns the failed jobs.
func (s *Store) FailOrphanedRunning(ctx context.Context, message string) ([]Job, error) {
	var orphaned []Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY id`, JobRunning)
		if err != nil {
			return fmt.Errorf("select running jobs: %w", err)
		}
		jobs, err := collectJobs(rows)
		rows.Close()
		if err != nil {
			return err
		}

		ts := now()
		for _, job := range jobs {
			if _, err := tx.ExecContext(ctx,
				`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
				JobFailed, message, ts, job.ID,
			); err != nil {
				return fmt.Errorf("fail job %d: %w", job.ID, err)
			}
			if job.Kind != KindDownloadVideo {
				continue
			}
			var payload DownloadVideoPayload
			if err := job.DecodePayload(&payload); err != nil || payload.VideoID == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE downloads SET status = ?, error = ?, updated_at = ? WHERE video_id = ? AND status IN (?, ?)`,
				DownloadFailed, message, ts, payload.VideoID, DownloadQueued, DownloadRunning,
			); err != nil {
				return fmt.Errorf("fail download %s: %w", payload.VideoID, err)
			}
		}
		orphaned = jobs
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fail orphaned jobs: %w", err)
	}
	return orphaned, nil
}

// LatestIndexStates returns the most recent index job per channel.
func (s *Store) LatestIndexStates(ctx context.Context) (map[int64]IndexState, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE id IN (
            SELECT MAX(id) FROM jobs WHERE kind = ?
            GROUP BY json_extract(payload_json, '$.channel_id')
        )`, KindIndexChannel)
	if err != nil {
		return nil, fmt.Errorf("latest index jobs: %w", err)
	}
	defer rows.Close()
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, err
	}

	states := make(map[int64]IndexState, len(jobs))
	for _, job := range jobs {
		var payload IndexChannelPayload
		if err := job.DecodePayload(&payload); err != nil {
			continue
		}
		states[payload.ChannelID] = IndexState{
			ChannelID: payload.ChannelID,
			JobID:     job.ID,
			Status:    job.Status,
			Error:     job.Error,
			UpdatedAt: job.UpdatedAt,
		}
	}
	return states, nil
}
