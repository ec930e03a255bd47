// Package cancel tracks the cancellation handle of every in-flight job.
package cancel

import (
	"context"
	"sync"
)

// Registry maps active job ids to their cancellation handles. Contexts
// handed out derive from the root context given to New, so global
// shutdown fans out to every registered job.
type Registry struct {
	root context.Context

	mu      sync.Mutex
	handles map[string]context.CancelFunc
}

func New(root context.Context) *Registry {
	return &Registry{
		root:    root,
		handles: make(map[string]context.CancelFunc),
	}
}

// Register creates a cancellation handle for the job id. It returns
// ok=false, with no side effect, when the id is already registered;
// the worker pool uses this to guarantee one routine per job.
func (r *Registry) Register(id string) (context.Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handles[id]; exists {
		return nil, false
	}
	ctx, cancelFn := context.WithCancel(r.root)
	r.handles[id] = cancelFn
	return ctx, true
}

// Cancel fires the job's handle. Cancelling an unknown or already
// finished job is not an error.
func (r *Registry) Cancel(id string) {
	r.mu.Lock()
	cancelFn := r.handles[id]
	r.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
	}
}

// Deregister removes the job's handle, releasing its context resources.
// Called unconditionally when an execution routine exits.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	cancelFn := r.handles[id]
	delete(r.handles, id)
	r.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
	}
}

// Active returns the number of registered jobs.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
