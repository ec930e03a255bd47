package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Ibramadi75/SuperTube/internal/store"
)

// ActiveCounter reports how many downloads are currently in flight.
type ActiveCounter interface {
	Active() int
}

type StatsHandler struct {
	store  *store.Store
	active ActiveCounter
}

func NewStatsHandler(st *store.Store, active ActiveCounter) *StatsHandler {
	return &StatsHandler{store: st, active: active}
}

type StatsDTO struct {
	JobsPending   int   `json:"jobs_pending" doc:"Jobs waiting for a worker"`
	JobsActive    int   `json:"jobs_active" doc:"Jobs currently downloading"`
	JobsCompleted int   `json:"jobs_completed" doc:"Completed jobs"`
	JobsFailed    int   `json:"jobs_failed" doc:"Failed jobs"`
	ActiveWorkers int   `json:"active_workers" doc:"In-flight downloads on this instance"`
	VideoCount    int   `json:"video_count" doc:"Library entries"`
	LibraryBytes  int64 `json:"library_bytes" doc:"Total library size in bytes"`
}

func (h *StatsHandler) Get(ctx context.Context, _ *EmptyInput) (*DataOutput[StatsDTO], error) {
	tenant := tenantOf(ctx)

	counts, err := h.store.CountJobsByStatus(ctx, tenant)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to count jobs")
	}
	videoCount, libraryBytes, err := h.store.VideoStats(ctx, tenant)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to aggregate library stats")
	}

	return OK(StatsDTO{
		JobsPending:   counts[store.JobPending],
		JobsActive:    counts[store.JobActive],
		JobsCompleted: counts[store.JobCompleted],
		JobsFailed:    counts[store.JobFailed],
		ActiveWorkers: h.active.Active(),
		VideoCount:    videoCount,
		LibraryBytes:  libraryBytes,
	}), nil
}
