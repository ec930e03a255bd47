package handlers

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/Ibramadi75/SuperTube/internal/api/middleware"
	"github.com/Ibramadi75/SuperTube/internal/core/event"
	"github.com/Ibramadi75/SuperTube/internal/store"
)

// Canceller aborts an in-flight download.
type Canceller interface {
	Cancel(jobID string)
}

// Rejects obviously bogus input before a job row is ever created. The
// downloader still performs the authoritative validation.
var mediaURLPattern = regexp.MustCompile(`^https?://(www\.)?(youtube\.com|youtu\.be|music\.youtube\.com)/\S+$`)

type JobsHandler struct {
	store     *store.Store
	canceller Canceller
	bus       *event.Bus
}

func NewJobsHandler(st *store.Store, canceller Canceller, bus *event.Bus) *JobsHandler {
	return &JobsHandler{store: st, canceller: canceller, bus: bus}
}

// Shared types

type AddJobInput struct {
	Body struct {
		URL                 string  `json:"url" minLength:"1" doc:"Media URL to download"`
		Quality             *string `json:"quality,omitempty" doc:"Quality override (e.g. 1080)"`
		ConcurrentFragments *int    `json:"concurrent_fragments,omitempty" minimum:"1" maximum:"16" doc:"Fragment concurrency override"`
	}
}

type ListJobsInput struct {
	Status string `query:"status" enum:",pending,active,completed,failed" doc:"Filter by status"`
	Limit  int    `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Max results"`
	Offset int    `query:"offset" default:"0" minimum:"0" doc:"Offset"`
}

type JobIDInput struct {
	ID string `path:"id" doc:"Job ID"`
}

type JobDTO struct {
	ID            string     `json:"id" doc:"Job ID"`
	URL           string     `json:"url" doc:"Source URL"`
	Status        string     `json:"status" doc:"Job status"`
	Progress      int        `json:"progress" doc:"Progress percent"`
	Speed         string     `json:"speed,omitempty" doc:"Current download speed"`
	ETA           string     `json:"eta,omitempty" doc:"Estimated time remaining"`
	FragmentIndex int        `json:"fragment_index" doc:"Current fragment"`
	FragmentCount int        `json:"fragment_count" doc:"Total fragments"`
	Title         string     `json:"title,omitempty" doc:"Media title"`
	Uploader      string     `json:"uploader,omitempty" doc:"Channel or uploader name"`
	Error         string     `json:"error,omitempty" doc:"Failure cause"`
	CreatedAt     time.Time  `json:"created_at" doc:"Enqueue time"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" doc:"Completion time"`
}

func newJobDTO(j *store.Job) JobDTO {
	return JobDTO{
		ID:            j.ID,
		URL:           j.URL,
		Status:        string(j.Status),
		Progress:      j.Progress,
		Speed:         j.Speed,
		ETA:           j.ETA,
		FragmentIndex: j.FragmentIndex,
		FragmentCount: j.FragmentCount,
		Title:         j.Title,
		Uploader:      j.Uploader,
		Error:         j.Error,
		CreatedAt:     j.CreatedAt,
		CompletedAt:   j.CompletedAt,
	}
}

// Handlers

func (h *JobsHandler) Add(ctx context.Context, input *AddJobInput) (*DataOutput[JobDTO], error) {
	if !mediaURLPattern.MatchString(input.Body.URL) {
		return nil, huma.Error422UnprocessableEntity("unsupported media URL")
	}

	userID := tenantOf(ctx)
	job := &store.Job{
		ID:                  uuid.NewString(),
		URL:                 input.Body.URL,
		UserID:              userID,
		Status:              store.JobPending,
		Quality:             input.Body.Quality,
		ConcurrentFragments: input.Body.ConcurrentFragments,
	}
	if err := h.store.CreateJob(ctx, job); err != nil {
		return nil, huma.Error500InternalServerError("failed to create job")
	}

	h.bus.Publish(ctx, event.Event{
		Type:      event.EventJobCreated,
		Timestamp: time.Now(),
		Payload:   event.JobEvent{JobID: job.ID, UserID: job.UserID, URL: job.URL},
	})

	return OK(newJobDTO(job)), nil
}

func (h *JobsHandler) List(ctx context.Context, input *ListJobsInput) (*DataOutput[[]JobDTO], error) {
	jobs, err := h.store.ListJobs(ctx, tenantOf(ctx), store.JobStatus(input.Status), input.Limit, input.Offset)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list jobs")
	}

	dtos := make([]JobDTO, 0, len(jobs))
	for _, j := range jobs {
		dtos = append(dtos, newJobDTO(j))
	}
	return OK(dtos), nil
}

func (h *JobsHandler) Get(ctx context.Context, input *JobIDInput) (*DataOutput[JobDTO], error) {
	job, err := h.loadOwned(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return OK(newJobDTO(job)), nil
}

// Cancel aborts a job. Active jobs are interrupted at the downloader;
// pending jobs are failed in place so the scheduler never picks them up.
func (h *JobsHandler) Cancel(ctx context.Context, input *JobIDInput) (*MsgOutput, error) {
	job, err := h.loadOwned(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, huma.Error409Conflict("job already finished")
	}

	// Fire the handle regardless of the status this handler observed: the
	// scheduler may have registered the job after the read above, and an
	// unfired token would let the download run to completion.
	h.canceller.Cancel(job.ID)

	if job.Status == store.JobActive {
		return Msg("cancellation requested"), nil
	}

	if err := h.store.FailJob(ctx, job.ID, "download cancelled", time.Now().UTC()); err != nil {
		return nil, huma.Error500InternalServerError("failed to cancel job")
	}
	h.bus.Publish(ctx, event.Event{
		Type:      event.EventJobCancelled,
		Timestamp: time.Now(),
		Payload:   event.JobEvent{JobID: job.ID, UserID: job.UserID, URL: job.URL, Title: job.Title},
	})
	return Msg("job cancelled"), nil
}

func (h *JobsHandler) loadOwned(ctx context.Context, id string) (*store.Job, error) {
	job, err := h.store.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("job not found")
		}
		return nil, huma.Error500InternalServerError("failed to load job")
	}
	if !canAccess(ctx, job.UserID) {
		return nil, huma.Error404NotFound("job not found")
	}
	return job, nil
}

// tenantOf returns the caller's tenant scope. Admin callers operate on
// the global scope.
func tenantOf(ctx context.Context) *string {
	if middleware.GetUserRole(ctx) == "admin" {
		return nil
	}
	id := middleware.GetUserID(ctx)
	if id == "" {
		return nil
	}
	return &id
}

func canAccess(ctx context.Context, owner *string) bool {
	if middleware.GetUserRole(ctx) == "admin" {
		return true
	}
	if owner == nil {
		return true
	}
	return *owner == middleware.GetUserID(ctx)
}
