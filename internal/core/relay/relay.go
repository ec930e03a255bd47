// Package relay republishes persisted job progress as a push stream.
// It reads the record store on a fixed tick instead of sharing state
// with the worker pool, so a client can watch a job regardless of which
// process instance executes it.
package relay

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Ibramadi75/SuperTube/internal/store"
)

// JobReader re-reads one job record per tick.
type JobReader interface {
	GetJob(ctx context.Context, id string) (*store.Job, error)
}

// Snapshot is one pushed progress update. Final marks the last event of
// a stream.
type Snapshot struct {
	JobID         string          `json:"id"`
	Status        store.JobStatus `json:"status"`
	Progress      int             `json:"progress"`
	Speed         string          `json:"speed,omitempty"`
	ETA           string          `json:"eta,omitempty"`
	FragmentIndex int             `json:"fragment_index"`
	FragmentCount int             `json:"fragment_count"`
	Error         string          `json:"error,omitempty"`
	Final         bool            `json:"final"`
}

type Relay struct {
	jobs     JobReader
	interval time.Duration
}

func New(jobs JobReader, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Relay{jobs: jobs, interval: interval}
}

// Watch emits a snapshot whenever the job's percent or status changes,
// then one final snapshot when the job reaches a terminal status, and
// closes the channel. The channel also closes when ctx finishes.
func (r *Relay) Watch(ctx context.Context, jobID string) (<-chan Snapshot, error) {
	job, err := r.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	out := make(chan Snapshot, 1)
	first := snapshotOf(job)
	out <- first
	if first.Final {
		close(out)
		return out, nil
	}

	go r.watch(ctx, jobID, first, out)
	return out, nil
}

func (r *Relay) watch(ctx context.Context, jobID string, last Snapshot, out chan<- Snapshot) {
	defer close(out)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		job, err := r.jobs.GetJob(ctx, jobID)
		if err != nil {
			log.Warn().Err(err).Str("job_id", jobID).Msg("relay job read failed")
			return
		}

		snap := snapshotOf(job)
		if snap.Progress == last.Progress && snap.Status == last.Status && !snap.Final {
			continue
		}
		last = snap

		select {
		case out <- snap:
		case <-ctx.Done():
			return
		}
		if snap.Final {
			return
		}
	}
}

func snapshotOf(job *store.Job) Snapshot {
	return Snapshot{
		JobID:         job.ID,
		Status:        job.Status,
		Progress:      job.Progress,
		Speed:         job.Speed,
		ETA:           job.ETA,
		FragmentIndex: job.FragmentIndex,
		FragmentCount: job.FragmentCount,
		Error:         job.Error,
		Final:         job.Status.Terminal(),
	}
}
