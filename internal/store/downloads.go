package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const downloadColumns = "id, video_id, status, filename, media_path, error, created_at, updated_at"

func scanDownload(scanner interface{ Scan(dest ...any) error }) (*DownloadRecord, error) {
	var (
		rec        DownloadRecord
		status     string
		filename   sql.NullString
		mediaPath  sql.NullString
		errText    sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&rec.ID, &rec.VideoID, &status, &filename, &mediaPath, &errText, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	rec.Status = DownloadStatus(status)
	rec.Filename = filename.String
	rec.MediaPath = mediaPath.String
	rec.Error = errText.String
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	return &rec, nil
}

// DownloadByVideoID fetches a download record, returning nil when absent.
func (s *Store) DownloadByVideoID(ctx context.Context, videoID string) (*DownloadRecord, error) {
	return downloadByVideoID(ensureContext(ctx), s.db, videoID)
}

func downloadByVideoID(ctx context.Context, db execer, videoID string) (*DownloadRecord, error) {
	rec, err := scanDownload(db.QueryRowContext(ctx, `SELECT `+downloadColumns+` FROM downloads WHERE video_id = ?`, videoID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get download: %w", err)
	}
	return rec, nil
}

// QueueDownload moves the video's record to queued and enqueues its
// download_video job in one transaction. When the record is already settled
// (queued, running, done, or external) nothing changes and the returned job is
// nil.
func (s *Store) QueueDownload(ctx context.Context, videoID string) (*Job, error) {
	videoID = strings.TrimSpace(videoID)
	payloadJSON, err := encodePayload(KindDownloadVideo, DownloadVideoPayload{VideoID: videoID})
	if err != nil {
		return nil, err
	}

	ctx = ensureContext(ctx)
	var job *Job
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		job = nil
		existing, err := downloadByVideoID(ctx, tx, videoID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status.Settled() {
			return nil
		}
		ts := now()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO downloads (video_id, status, created_at, updated_at) VALUES (?, ?, ?, ?)
             ON CONFLICT(video_id) DO UPDATE SET status = excluded.status, error = NULL, updated_at = excluded.updated_at`,
			videoID, DownloadQueued, ts, ts,
		); err != nil {
			return fmt.Errorf("queue download: %w", err)
		}
		job, err = insertJob(ctx, tx, KindDownloadVideo, payloadJSON)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// MarkDownloadRunning moves a queued or failed record to running, creating the
// record when a job was enqueued without one.
func (s *Store) MarkDownloadRunning(ctx context.Context, videoID string) error {
	ts := now()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO downloads (video_id, status, created_at, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(video_id) DO UPDATE SET status = excluded.status, error = NULL, updated_at = excluded.updated_at
         WHERE downloads.status IN (?, ?)`,
		videoID, DownloadRunning, ts, ts, DownloadQueued, DownloadFailed,
	)
	if err != nil {
		return fmt.Errorf("mark download running: %w", err)
	}
	return requireAffected(res, videoID, DownloadRunning)
}

// MarkDownloadDone records a finished download.
func (s *Store) MarkDownloadDone(ctx context.Context, videoID, filename, mediaPath string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE downloads SET status = ?, filename = ?, media_path = ?, error = NULL, updated_at = ?
         WHERE video_id = ? AND status = ?`,
		DownloadDone, filename, mediaPath, now(), videoID, DownloadRunning,
	)
	if err != nil {
		return fmt.Errorf("mark download done: %w", err)
	}
	return requireAffected(res, videoID, DownloadDone)
}

// MarkDownloadFailed records a failed download with already-redacted error text.
func (s *Store) MarkDownloadFailed(ctx context.Context, videoID, errText string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE downloads SET status = ?, error = ?, updated_at = ?
         WHERE video_id = ? AND status IN (?, ?)`,
		DownloadFailed, nullableString(errText), now(), videoID, DownloadQueued, DownloadRunning,
	)
	if err != nil {
		return fmt.Errorf("mark download failed: %w", err)
	}
	return requireAffected(res, videoID, DownloadFailed)
}

// MarkDownloadExternal records that the external tool already holds the video.
// Active and done records are left untouched; the boolean reports a change.
func (s *Store) MarkDownloadExternal(ctx context.Context, videoID string) (bool, error) {
	ts := now()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO downloads (video_id, status, created_at, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(video_id) DO UPDATE SET status = excluded.status, error = NULL, updated_at = excluded.updated_at
         WHERE downloads.status = ?`,
		videoID, DownloadExternal, ts, ts, DownloadFailed,
	)
	if err != nil {
		return false, fmt.Errorf("mark download external: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func requireAffected(res sql.Result, videoID string, target DownloadStatus) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, videoID, target)
	}
	return nil
}

// ListDownloads returns records most recently updated first. A non-positive
// limit returns every record.
func (s *Store) ListDownloads(ctx context.Context, limit int) ([]DownloadRecord, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads ORDER BY updated_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()
	return collectDownloads(rows)
}

// DownloadsByVideoIDs returns the records for the given ids keyed by video id.
func (s *Store) DownloadsByVideoIDs(ctx context.Context, videoIDs []string) (map[string]DownloadRecord, error) {
	result := make(map[string]DownloadRecord, len(videoIDs))
	if len(videoIDs) == 0 {
		return result, nil
	}
	args := make([]any, len(videoIDs))
	for i, id := range videoIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+downloadColumns+` FROM downloads WHERE video_id IN (`+makePlaceholders(len(videoIDs))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("downloads by video ids: %w", err)
	}
	defer rows.Close()
	records, err := collectDownloads(rows)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		result[rec.VideoID] = rec
	}
	return result, nil
}

func collectDownloads(rows *sql.Rows) ([]DownloadRecord, error) {
	var records []DownloadRecord
	for rows.Next() {
		rec, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

const episodeColumns = `d.id, d.video_id, d.status, d.filename, d.media_path, d.error, d.created_at, d.updated_at,
                v.id, v.channel_id, v.video_id, v.title, v.description, v.webpage_url, v.published_at,
                v.duration_seconds, v.thumbnail_url, v.uploader, v.unavailable, v.indexed_at`

// DoneDownloadsWithVideos returns every done record once, in creation order,
// joined with the earliest indexed video row for its id when one exists.
func (s *Store) DoneDownloadsWithVideos(ctx context.Context) ([]DownloadedEpisode, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+episodeColumns+`
         FROM downloads d
         LEFT JOIN videos v ON v.id = (SELECT MIN(id) FROM videos WHERE video_id = d.video_id)
         WHERE d.status = ?
         ORDER BY d.created_at, d.id`, DownloadDone)
	if err != nil {
		return nil, fmt.Errorf("list done downloads: %w", err)
	}
	defer rows.Close()
	return collectEpisodes(rows)
}

// DoneDownloadsByChannel groups done records by every channel that indexed
// the video. A video listed under several channels appears under each of
// them; records with no indexed video are omitted.
func (s *Store) DoneDownloadsByChannel(ctx context.Context) (map[int64][]DownloadedEpisode, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+episodeColumns+`
         FROM downloads d
         JOIN videos v ON v.video_id = d.video_id
         WHERE d.status = ?
         ORDER BY d.created_at, d.id, v.channel_id`, DownloadDone)
	if err != nil {
		return nil, fmt.Errorf("list done downloads by channel: %w", err)
	}
	defer rows.Close()
	episodes, err := collectEpisodes(rows)
	if err != nil {
		return nil, err
	}
	grouped := make(map[int64][]DownloadedEpisode)
	for _, ep := range episodes {
		grouped[ep.Video.ChannelID] = append(grouped[ep.Video.ChannelID], ep)
	}
	return grouped, nil
}

func collectEpisodes(rows *sql.Rows) ([]DownloadedEpisode, error) {
	var episodes []DownloadedEpisode
	for rows.Next() {
		var (
			rec        DownloadRecord
			status     string
			filename   sql.NullString
			mediaPath  sql.NullString
			errText    sql.NullString
			createdRaw string
			updatedRaw string

			vid         sql.NullInt64
			channelID   sql.NullInt64
			videoID     sql.NullString
			title       sql.NullString
			description sql.NullString
			webpage     sql.NullString
			published   sql.NullString
			duration    sql.NullInt64
			thumbnail   sql.NullString
			uploader    sql.NullString
			unavailable sql.NullInt64
			indexedRaw  sql.NullString
		)
		if err := rows.Scan(
			&rec.ID, &rec.VideoID, &status, &filename, &mediaPath, &errText, &createdRaw, &updatedRaw,
			&vid, &channelID, &videoID, &title, &description, &webpage, &published,
			&duration, &thumbnail, &uploader, &unavailable, &indexedRaw,
		); err != nil {
			return nil, fmt.Errorf("scan done download: %w", err)
		}
		rec.Status = DownloadStatus(status)
		rec.Filename = filename.String
		rec.MediaPath = mediaPath.String
		rec.Error = errText.String
		if created, err := parseTimeString(createdRaw); err == nil {
			rec.CreatedAt = created
		}
		if updated, err := parseTimeString(updatedRaw); err == nil {
			rec.UpdatedAt = updated
		}

		episode := DownloadedEpisode{Record: rec}
		if vid.Valid {
			video := &Video{
				ID:           vid.Int64,
				ChannelID:    channelID.Int64,
				VideoID:      videoID.String,
				Title:        title.String,
				Description:  description.String,
				WebpageURL:   webpage.String,
				PublishedAt:  parseNullTime(published),
				ThumbnailURL: thumbnail.String,
				Uploader:     uploader.String,
				Unavailable:  unavailable.Int64 != 0,
			}
			if duration.Valid {
				d := duration.Int64
				video.DurationSeconds = &d
			}
			if indexed, err := parseTimeString(indexedRaw.String); err == nil {
				video.IndexedAt = indexed
			}
			episode.Video = video
		}
		episodes = append(episodes, episode)
	}
	return episodes, rows.Err()
}

// DownloadCounts counts records per status.
func (s *Store) DownloadCounts(ctx context.Context) (map[DownloadStatus]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(*) FROM downloads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("download counts: %w", err)
	}
	defer rows.Close()

	counts := map[DownloadStatus]int{}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan download counts: %w", err)
		}
		counts[DownloadStatus(status)] = count
	}
	return counts, rows.Err()
}
