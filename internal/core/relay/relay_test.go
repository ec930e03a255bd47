package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ibramadi75/SuperTube/internal/store"
)

type fakeJobs struct {
	mu  sync.Mutex
	job store.Job
	err error
}

func (f *fakeJobs) GetJob(ctx context.Context, id string) (*store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	j := f.job
	return &j, nil
}

func (f *fakeJobs) set(mutate func(*store.Job)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutate(&f.job)
}

func collect(t *testing.T, ch <-chan Snapshot, want int) []Snapshot {
	t.Helper()
	var snaps []Snapshot
	timeout := time.After(2 * time.Second)
	for len(snaps) < want {
		select {
		case snap, ok := <-ch:
			if !ok {
				return snaps
			}
			snaps = append(snaps, snap)
		case <-timeout:
			t.Fatalf("timed out after %d snapshots", len(snaps))
		}
	}
	return snaps
}

func TestWatchEmitsInitialSnapshot(t *testing.T) {
	jobs := &fakeJobs{job: store.Job{ID: "j1", Status: store.JobActive, Progress: 30}}
	r := New(jobs, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := r.Watch(ctx, "j1")
	require.NoError(t, err)

	snaps := collect(t, ch, 1)
	assert.Equal(t, 30, snaps[0].Progress)
	assert.Equal(t, store.JobActive, snaps[0].Status)
	assert.False(t, snaps[0].Final)
}

func TestWatchTerminalJobClosesImmediately(t *testing.T) {
	jobs := &fakeJobs{job: store.Job{ID: "j1", Status: store.JobCompleted, Progress: 100}}
	r := New(jobs, 5*time.Millisecond)

	ch, err := r.Watch(context.Background(), "j1")
	require.NoError(t, err)

	snap, ok := <-ch
	require.True(t, ok)
	assert.True(t, snap.Final)

	_, ok = <-ch
	assert.False(t, ok, "channel should be closed")
}

func TestWatchUnknownJob(t *testing.T) {
	jobs := &fakeJobs{err: store.ErrNotFound}
	r := New(jobs, 5*time.Millisecond)

	_, err := r.Watch(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWatchStreamsChangesUntilTerminal(t *testing.T) {
	jobs := &fakeJobs{job: store.Job{ID: "j1", Status: store.JobActive, Progress: 10}}
	r := New(jobs, 5*time.Millisecond)

	ch, err := r.Watch(context.Background(), "j1")
	require.NoError(t, err)

	first := collect(t, ch, 1)
	assert.Equal(t, 10, first[0].Progress)

	jobs.set(func(j *store.Job) { j.Progress = 55 })
	second := collect(t, ch, 1)
	assert.Equal(t, 55, second[0].Progress)

	jobs.set(func(j *store.Job) {
		j.Status = store.JobCompleted
		j.Progress = 100
	})
	final := collect(t, ch, 1)
	assert.True(t, final[0].Final)
	assert.Equal(t, 100, final[0].Progress)

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after the final snapshot")
}

func TestWatchSuppressesUnchangedTicks(t *testing.T) {
	jobs := &fakeJobs{job: store.Job{ID: "j1", Status: store.JobActive, Progress: 10}}
	r := New(jobs, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := r.Watch(ctx, "j1")
	require.NoError(t, err)

	collect(t, ch, 1)

	// no change: nothing may arrive while several ticks elapse
	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	_, ok := <-ch
	assert.False(t, ok, "channel should close on context cancellation")
}
