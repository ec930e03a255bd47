// Package store implements Postgres persistence for jobs, videos,
// subscriptions, settings and users.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DB is the subset of pgxpool.Pool the store uses. Satisfied by
// pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides access to all persisted records.
type Store struct {
	db DB
}

func New(db DB) *Store {
	return &Store{db: db}
}

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobActive    JobStatus = "active"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one request to acquire a piece of remote content.
type Job struct {
	ID     string
	URL    string
	UserID *string
	Status JobStatus

	Progress      int
	Speed         string
	ETA           string
	FragmentIndex int
	FragmentCount int
	EngineJobID   string

	Title    string
	Uploader string
	Error    string

	// Enqueue-time overrides; nil means "use settings".
	Quality             *string
	ConcurrentFragments *int

	CreatedAt       time.Time
	CompletedAt     *time.Time
	DurationSeconds *int
	AvgSpeedBytes   *int64
}

// Video is the durable library entry created when a job completes.
// Its ID is the external content id, so duplicate completion signals
// collapse into a single row.
type Video struct {
	ID              string
	Title           string
	Uploader        string
	DurationSeconds *int
	Filepath        string
	ThumbnailPath   *string
	Filesize        *int64
	SourceURL       string
	ChannelID       *string
	PublishedAt     *time.Time
	DownloadedAt    time.Time
	UserID          *string
}

// Subscription is a standing interest in a channel, polled for new items.
type Subscription struct {
	ID            string
	ChannelID     string
	ChannelName   string
	ChannelURL    string
	UserID        *string
	Active        bool
	SubscribedAt  time.Time
	LastCheckedAt *time.Time
	LastVideoAt   time.Time
	TotalEnqueued int
}

type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}
