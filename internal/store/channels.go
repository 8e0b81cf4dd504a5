package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const channelColumns = "id, url, name, created_at, last_indexed_at"

// NormalizeChannelURL trims whitespace and trailing slashes so equivalent
// channel URLs map to one row.
func NormalizeChannelURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

func scanChannel(scanner interface{ Scan(dest ...any) error }) (*Channel, error) {
	var (
		ch          Channel
		createdRaw  string
		lastIndexed sql.NullString
	)
	if err := scanner.Scan(&ch.ID, &ch.URL, &ch.Name, &createdRaw, &lastIndexed); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		ch.CreatedAt = created
	}
	ch.LastIndexedAt = parseNullTime(lastIndexed)
	return &ch, nil
}

// AddChannel inserts a channel keyed by its normalized URL. Adding an existing
// URL returns the stored row and fills in a missing name. The boolean reports
// whether a new row was created.
func (s *Store) AddChannel(ctx context.Context, rawURL, name string) (*Channel, bool, error) {
	url := NormalizeChannelURL(rawURL)
	if url == "" {
		return nil, false, errors.New("channel url is required")
	}
	name = strings.TrimSpace(name)

	var (
		channel *Channel
		created bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanChannel(tx.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE url = ?`, url))
		switch {
		case err == nil:
			if existing.Name == "" && name != "" {
				if _, err := tx.ExecContext(ctx, `UPDATE channels SET name = ? WHERE id = ?`, name, existing.ID); err != nil {
					return fmt.Errorf("update channel name: %w", err)
				}
				existing.Name = name
			}
			channel, created = existing, false
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("lookup channel: %w", err)
		}

		inserted, err := scanChannel(tx.QueryRowContext(ctx,
			`INSERT INTO channels (url, name, created_at) VALUES (?, ?, ?) RETURNING `+channelColumns,
			url, name, now(),
		))
		if err != nil {
			return fmt.Errorf("insert channel: %w", err)
		}
		channel, created = inserted, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return channel, created, nil
}

// ChannelByID fetches a channel, returning nil when absent.
func (s *Store) ChannelByID(ctx context.Context, id int64) (*Channel, error) {
	return s.channelWhere(ctx, "id = ?", id)
}

// ChannelByURL fetches a channel by normalized URL, returning nil when absent.
func (s *Store) ChannelByURL(ctx context.Context, rawURL string) (*Channel, error) {
	return s.channelWhere(ctx, "url = ?", NormalizeChannelURL(rawURL))
}

func (s *Store) channelWhere(ctx context.Context, clause string, arg any) (*Channel, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+channelColumns+` FROM channels WHERE `+clause, arg)
	channel, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return channel, nil
}

// ListChannels returns all channels in creation order.
func (s *Store) ListChannels(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+channelColumns+` FROM channels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, *ch)
	}
	return channels, rows.Err()
}

// SetLastIndexed records a successful index run. The stored timestamp never
// moves backwards.
func (s *Store) SetLastIndexed(ctx context.Context, id int64, at time.Time) error {
	stamp := formatTime(at)
	if _, err := s.execWithRetry(ctx,
		`UPDATE channels SET last_indexed_at = ?
         WHERE id = ? AND (last_indexed_at IS NULL OR last_indexed_at < ?)`,
		stamp, id, stamp,
	); err != nil {
		return fmt.Errorf("set last indexed: %w", err)
	}
	return nil
}
