package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const jobColumns = `id, url, user_id, status, progress, speed, eta,
	fragment_index, fragment_count, engine_job_id, title, uploader, error,
	quality, concurrent_fragments, created_at, completed_at,
	duration_seconds, avg_speed_bytes`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(
		&j.ID, &j.URL, &j.UserID, &j.Status, &j.Progress, &j.Speed, &j.ETA,
		&j.FragmentIndex, &j.FragmentCount, &j.EngineJobID, &j.Title, &j.Uploader, &j.Error,
		&j.Quality, &j.ConcurrentFragments, &j.CreatedAt, &j.CompletedAt,
		&j.DurationSeconds, &j.AvgSpeedBytes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}

// CreateJob inserts a new pending job.
func (s *Store) CreateJob(ctx context.Context, j *Job) error {
	if j.Status == "" {
		j.Status = JobPending
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO jobs (id, url, user_id, status, title, uploader, quality, concurrent_fragments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		j.ID, j.URL, j.UserID, j.Status, j.Title, j.Uploader, j.Quality, j.ConcurrentFragments, j.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	return scanJob(s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
}

// PendingJobs returns pending jobs oldest-first, limited to limit.
func (s *Store) PendingJobs(ctx context.Context, limit int) ([]*Job, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		JobPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListJobs returns jobs newest-first, optionally filtered by tenant and status.
func (s *Store) ListJobs(ctx context.Context, userID *string, status JobStatus, limit, offset int) ([]*Job, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE ($1::text IS NULL OR user_id IS NOT DISTINCT FROM $1)
		  AND ($2::text = '' OR status = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		userID, string(status), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// FindJobByURL returns the most recent job with the exact source URL,
// or ErrNotFound.
func (s *Store) FindJobByURL(ctx context.Context, url string) (*Job, error) {
	return scanJob(s.db.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE url = $1 ORDER BY created_at DESC LIMIT 1`, url))
}

// MarkJobActive transitions a pending job to active and records the
// engine's job reference. Terminal rows are never touched.
func (s *Store) MarkJobActive(ctx context.Context, id, engineJobID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE jobs SET status = $2, engine_job_id = $3
		WHERE id = $1 AND status NOT IN ('completed', 'failed')`,
		id, JobActive, engineJobID,
	)
	if err != nil {
		return fmt.Errorf("mark job active: %w", err)
	}
	return nil
}

// UpdateJobProgress persists one progress snapshot for an active job.
func (s *Store) UpdateJobProgress(ctx context.Context, id string, progress int, speed, eta string, fragIndex, fragCount int, avgSpeedBytes *int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE jobs SET progress = $2, speed = $3, eta = $4,
			fragment_index = $5, fragment_count = $6,
			avg_speed_bytes = COALESCE($7, avg_speed_bytes)
		WHERE id = $1 AND status NOT IN ('completed', 'failed')`,
		id, progress, speed, eta, fragIndex, fragCount, avgSpeedBytes,
	)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// CompleteJob transitions a job to completed with its outcome metrics.
// Returns false when the row was already terminal, e.g. cancelled while
// the download was finishing; the caller must then discard the outcome.
func (s *Store) CompleteJob(ctx context.Context, id string, completedAt time.Time, durationSeconds int, avgSpeedBytes *int64, title, uploader string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs SET status = $2, progress = 100, completed_at = $3,
			duration_seconds = $4, avg_speed_bytes = COALESCE($5, avg_speed_bytes),
			title = CASE WHEN $6 <> '' THEN $6 ELSE title END,
			uploader = CASE WHEN $7 <> '' THEN $7 ELSE uploader END
		WHERE id = $1 AND status NOT IN ('completed', 'failed')`,
		id, JobCompleted, completedAt, durationSeconds, avgSpeedBytes, title, uploader,
	)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FailJob transitions a job to failed with a human-readable cause.
func (s *Store) FailJob(ctx context.Context, id, errMsg string, completedAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE jobs SET status = $2, error = $3, completed_at = $4
		WHERE id = $1 AND status NOT IN ('completed', 'failed')`,
		id, JobFailed, errMsg, completedAt,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// CountJobsByStatus returns job counts keyed by status.
func (s *Store) CountJobsByStatus(ctx context.Context, userID *string) (map[JobStatus]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT status, COUNT(*) FROM jobs
		WHERE ($1::text IS NULL OR user_id IS NOT DISTINCT FROM $1)
		GROUP BY status`, userID)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[JobStatus]int)
	for rows.Next() {
		var status JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
