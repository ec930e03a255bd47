package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const videoColumns = `id, title, uploader, duration_seconds, filepath,
	thumbnail_path, filesize, source_url, channel_id, published_at,
	downloaded_at, user_id`

func scanVideo(row pgx.Row) (*Video, error) {
	var v Video
	err := row.Scan(
		&v.ID, &v.Title, &v.Uploader, &v.DurationSeconds, &v.Filepath,
		&v.ThumbnailPath, &v.Filesize, &v.SourceURL, &v.ChannelID, &v.PublishedAt,
		&v.DownloadedAt, &v.UserID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan video: %w", err)
	}
	return &v, nil
}

// CreateVideoIfAbsent inserts the video unless one with the same content
// id already exists. Returns true when a row was inserted.
func (s *Store) CreateVideoIfAbsent(ctx context.Context, v *Video) (bool, error) {
	if v.DownloadedAt.IsZero() {
		v.DownloadedAt = time.Now().UTC()
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO videos (id, title, uploader, duration_seconds, filepath,
			thumbnail_path, filesize, source_url, channel_id, published_at,
			downloaded_at, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		v.ID, v.Title, v.Uploader, v.DurationSeconds, v.Filepath,
		v.ThumbnailPath, v.Filesize, v.SourceURL, v.ChannelID, v.PublishedAt,
		v.DownloadedAt, v.UserID,
	)
	if err != nil {
		return false, fmt.Errorf("insert video: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) GetVideo(ctx context.Context, id string) (*Video, error) {
	return scanVideo(s.db.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
}

// VideoExists reports whether an artifact with the content id exists.
func (s *Store) VideoExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("video exists: %w", err)
	}
	return exists, nil
}

func (s *Store) ListVideos(ctx context.Context, userID *string, limit, offset int) ([]*Video, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+videoColumns+` FROM videos
		WHERE ($1::text IS NULL OR user_id IS NOT DISTINCT FROM $1)
		ORDER BY downloaded_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (s *Store) DeleteVideo(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// VideoStats aggregates library totals for the stats endpoint.
func (s *Store) VideoStats(ctx context.Context, userID *string) (count int, bytes int64, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(filesize), 0) FROM videos
		WHERE ($1::text IS NULL OR user_id IS NOT DISTINCT FROM $1)`, userID,
	).Scan(&count, &bytes)
	if err != nil {
		return 0, 0, fmt.Errorf("video stats: %w", err)
	}
	return count, bytes, nil
}
