package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const videoColumns = "id, channel_id, video_id, title, description, webpage_url, published_at, duration_seconds, thumbnail_url, uploader, unavailable, indexed_at"

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		v           Video
		published   sql.NullString
		duration    sql.NullInt64
		unavailable int
		indexedRaw  string
	)
	if err := scanner.Scan(
		&v.ID,
		&v.ChannelID,
		&v.VideoID,
		&v.Title,
		&v.Description,
		&v.WebpageURL,
		&published,
		&duration,
		&v.ThumbnailURL,
		&v.Uploader,
		&unavailable,
		&indexedRaw,
	); err != nil {
		return nil, err
	}
	v.PublishedAt = parseNullTime(published)
	if duration.Valid {
		d := duration.Int64
		v.DurationSeconds = &d
	}
	v.Unavailable = unavailable != 0
	if indexed, err := parseTimeString(indexedRaw); err == nil {
		v.IndexedAt = indexed
	}
	return &v, nil
}

// UpsertVideo inserts or updates a video keyed by (channel, video id). Known
// values are never replaced by unknown ones, and an entry that turned
// unavailable keeps its previous title. It reports whether a new row was created.
func (s *Store) UpsertVideo(ctx context.Context, v Video) (bool, error) {
	if v.ChannelID <= 0 || strings.TrimSpace(v.VideoID) == "" {
		return false, errors.New("video requires channel id and video id")
	}
	ctx = ensureContext(ctx)
	var inserted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM videos WHERE channel_id = ? AND video_id = ?`, v.ChannelID, v.VideoID,
		).Scan(&existing); err != nil {
			return fmt.Errorf("lookup video: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO videos (
                channel_id, video_id, title, description, webpage_url, published_at,
                duration_seconds, thumbnail_url, uploader, unavailable, indexed_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(channel_id, video_id) DO UPDATE SET
                title = CASE
                    WHEN excluded.unavailable = 1 AND videos.title != '' THEN videos.title
                    WHEN excluded.title = '' THEN videos.title
                    ELSE excluded.title END,
                description = CASE WHEN excluded.description = '' THEN videos.description ELSE excluded.description END,
                webpage_url = CASE WHEN excluded.webpage_url = '' THEN videos.webpage_url ELSE excluded.webpage_url END,
                published_at = COALESCE(excluded.published_at, videos.published_at),
                duration_seconds = COALESCE(excluded.duration_seconds, videos.duration_seconds),
                thumbnail_url = CASE WHEN excluded.thumbnail_url = '' THEN videos.thumbnail_url ELSE excluded.thumbnail_url END,
                uploader = CASE WHEN excluded.uploader = '' THEN videos.uploader ELSE excluded.uploader END,
                unavailable = excluded.unavailable`,
			v.ChannelID,
			v.VideoID,
			v.Title,
			v.Description,
			v.WebpageURL,
			nullableTime(v.PublishedAt),
			nullableInt(v.DurationSeconds),
			v.ThumbnailURL,
			v.Uploader,
			boolToInt(v.Unavailable),
			now(),
		); err != nil {
			return fmt.Errorf("upsert video: %w", err)
		}
		inserted = existing == 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// VideoByVideoID returns the earliest indexed row for an external video id,
// or nil when the video has not been indexed.
func (s *Store) VideoByVideoID(ctx context.Context, videoID string) (*Video, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+videoColumns+` FROM videos WHERE video_id = ? ORDER BY id LIMIT 1`, videoID)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// VideoInChannel returns the row for videoID within a channel, or nil.
func (s *Store) VideoInChannel(ctx context.Context, channelID int64, videoID string) (*Video, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+videoColumns+` FROM videos WHERE channel_id = ? AND video_id = ?`, channelID, videoID)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel video: %w", err)
	}
	return video, nil
}

// SetVideoPublished fills in a missing publish time without touching other fields.
func (s *Store) SetVideoPublished(ctx context.Context, id int64, at time.Time) error {
	if _, err := s.execWithRetry(ctx,
		`UPDATE videos SET published_at = ? WHERE id = ? AND published_at IS NULL`,
		formatTime(at), id,
	); err != nil {
		return fmt.Errorf("set video published: %w", err)
	}
	return nil
}

// ListVideos returns videos newest first, with unknown publish dates after
// every dated video in insertion order.
func (s *Store) ListVideos(ctx context.Context, filter VideoFilter) ([]Video, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.ChannelID > 0 {
		clauses = append(clauses, "channel_id = ?")
		args = append(args, filter.ChannelID)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		clauses = append(clauses, "(title LIKE ? ESCAPE '\\' OR video_id = ?)")
		args = append(args, "%"+escapeLike(q)+"%", q)
	}
	if !filter.IncludeUnavailable {
		clauses = append(clauses, "unavailable = 0")
	}

	query := `SELECT ` + videoColumns + ` FROM videos`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY published_at IS NULL, published_at DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, *v)
	}
	return videos, rows.Err()
}

// CountVideos returns the number of indexed videos for a channel.
func (s *Store) CountVideos(ctx context.Context, channelID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM videos WHERE channel_id = ?`, channelID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return count, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return replacer.Replace(value)
}
