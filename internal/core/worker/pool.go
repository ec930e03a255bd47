// Package worker schedules pending jobs onto a bounded set of concurrent
// execution routines and drives each one through the downloader engine.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Ibramadi75/SuperTube/internal/core/cancel"
	"github.com/Ibramadi75/SuperTube/internal/core/engine"
	"github.com/Ibramadi75/SuperTube/internal/core/event"
	"github.com/Ibramadi75/SuperTube/internal/core/settings"
	"github.com/Ibramadi75/SuperTube/internal/store"
)

// Store is the record-store surface the pool needs.
type Store interface {
	PendingJobs(ctx context.Context, limit int) ([]*store.Job, error)
	MarkJobActive(ctx context.Context, id, engineJobID string) error
	UpdateJobProgress(ctx context.Context, id string, progress int, speed, eta string, fragIndex, fragCount int, avgSpeedBytes *int64) error
	CompleteJob(ctx context.Context, id string, completedAt time.Time, durationSeconds int, avgSpeedBytes *int64, title, uploader string) (bool, error)
	FailJob(ctx context.Context, id, errMsg string, completedAt time.Time) error
	CreateVideoIfAbsent(ctx context.Context, v *store.Video) (bool, error)
}

// ProgressSource is one open progress stream.
type ProgressSource interface {
	Next() (engine.ProgressEvent, bool)
	Close() error
}

// Engine is the downloader contract consumed by the pool.
type Engine interface {
	StartJob(ctx context.Context, req engine.StartRequest) (string, error)
	StreamProgress(ctx context.Context, externalID string) (ProgressSource, error)
	GetFinalStatus(ctx context.Context, externalID string) (*engine.FinalStatus, error)
	CancelJob(ctx context.Context, externalID string) error
	ProbeMetadata(ctx context.Context, url string) (*engine.MediaInfo, error)
}

// Subscriber is the auto-subscription hook invoked after a successful
// job materializes an artifact with channel metadata.
type Subscriber interface {
	CreateFromArtifact(ctx context.Context, video *store.Video, info *engine.MediaInfo) error
}

type Config struct {
	MaxConcurrent int
	PollInterval  time.Duration
}

// Pool launches up to MaxConcurrent concurrent job routines, tracked in
// the cancellation registry. One routine per job id; a routine's failure
// never reaches the scheduling loop.
type Pool struct {
	store      Store
	engine     Engine
	settings   settings.Source
	registry   *cancel.Registry
	bus        *event.Bus
	subscriber Subscriber // nil disables auto-subscription
	cfg        Config
}

func NewPool(st Store, eng Engine, src settings.Source, registry *cancel.Registry, bus *event.Bus, sub Subscriber, cfg Config) *Pool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Pool{
		store:      st,
		engine:     eng,
		settings:   src,
		registry:   registry,
		bus:        bus,
		subscriber: sub,
		cfg:        cfg,
	}
}

// Run drives Schedule on the poll interval until ctx finishes.
func (p *Pool) Run(ctx context.Context) {
	log.Info().Int("max_concurrent", p.cfg.MaxConcurrent).Dur("poll_interval", p.cfg.PollInterval).Msg("worker pool started")

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker pool stopped")
			return
		case <-ticker.C:
			p.Schedule(ctx)
		}
	}
}

// Schedule launches routines for pending jobs up to the free capacity.
// Selection is oldest-first; a job already holding a cancellation handle
// is skipped, which guarantees one routine per job id.
func (p *Pool) Schedule(ctx context.Context) {
	free := p.cfg.MaxConcurrent - p.registry.Active()
	if free <= 0 {
		return
	}

	jobs, err := p.store.PendingJobs(ctx, free)
	if err != nil {
		log.Error().Err(err).Msg("pending job query failed")
		return
	}

	for _, job := range jobs {
		// Register before any I/O so a cancel request arriving between
		// selection and launch still lands on a live handle.
		jobCtx, ok := p.registry.Register(job.ID)
		if !ok {
			continue
		}
		go p.execute(jobCtx, job)
	}
}

// Cancel fires the cancellation handle for an active job. Unknown ids
// are a no-op.
func (p *Pool) Cancel(jobID string) {
	p.registry.Cancel(jobID)
}

// execute runs one job to a terminal state. Every error is contained
// here: the job ends failed, the pool keeps going.
func (p *Pool) execute(ctx context.Context, job *store.Job) {
	defer p.registry.Deregister(job.ID)

	log.Info().Str("job_id", job.ID).Str("url", job.URL).Msg("job started")

	if err := p.run(ctx, job); err != nil {
		// Terminal persistence must survive the routine's own cancellation.
		bg := context.WithoutCancel(ctx)

		msg := err.Error()
		if ctx.Err() != nil {
			msg = "download cancelled"
		}
		if ferr := p.store.FailJob(bg, job.ID, msg, time.Now().UTC()); ferr != nil {
			log.Error().Err(ferr).Str("job_id", job.ID).Msg("persist job failure failed")
		}

		eventType := event.EventJobFailed
		if ctx.Err() != nil {
			eventType = event.EventJobCancelled
		}
		p.bus.Publish(bg, event.Event{
			Type:    eventType,
			Payload: event.JobEvent{JobID: job.ID, UserID: job.UserID, URL: job.URL, Title: job.Title, Error: msg},
		})
		log.Warn().Err(err).Str("job_id", job.ID).Msg("job failed")
	}
}

var errCancelled = errors.New("download cancelled")

func (p *Pool) run(ctx context.Context, job *store.Job) error {
	// Settings snapshot at execution start; job overrides win.
	values, err := settings.Resolve(ctx, p.settings, job.UserID)
	if err != nil {
		return err
	}

	quality := values.Get(settings.KeyQuality)
	if job.Quality != nil {
		quality = *job.Quality
	}
	fragments := values.Int(settings.KeyConcurrentFragments, 4)
	if job.ConcurrentFragments != nil {
		fragments = *job.ConcurrentFragments
	}

	externalID, err := p.engine.StartJob(ctx, engine.StartRequest{
		URL:                 job.URL,
		Quality:             quality,
		Format:              values.Get(settings.KeyFormat),
		ConcurrentFragments: fragments,
		Sponsorblock:        values.Bool(settings.KeySponsorblock),
		SponsorblockAction:  values.Get(settings.KeySponsorblockAction),
		DownloadThumbnail:   values.Bool(settings.KeyDownloadThumbnail),
		Retries:             values.Int(settings.KeyRetries, 3),
	})
	if err != nil {
		return err
	}

	if err := p.store.MarkJobActive(ctx, job.ID, externalID); err != nil {
		return err
	}
	p.bus.Publish(ctx, event.Event{
		Type:    event.EventJobStarted,
		Payload: event.JobEvent{JobID: job.ID, UserID: job.UserID, URL: job.URL, Title: job.Title},
	})

	startedAt := time.Now().UTC()
	var avgSpeedBytes *int64

	stream, err := p.engine.StreamProgress(ctx, externalID)
	if err != nil {
		// A stream that cannot be opened means no more updates, not a
		// failed job; the final status decides the outcome.
		log.Warn().Err(err).Str("job_id", job.ID).Msg("progress stream unavailable")
	} else {
		avgSpeedBytes = p.drainProgress(ctx, job.ID, stream)
	}

	if ctx.Err() != nil {
		// Cooperative cancellation observed: tell the engine, best-effort.
		if cerr := p.engine.CancelJob(context.WithoutCancel(ctx), externalID); cerr != nil {
			log.Warn().Err(cerr).Str("job_id", job.ID).Msg("engine cancel failed")
		}
		return errCancelled
	}

	final, err := p.engine.GetFinalStatus(ctx, externalID)
	if err != nil {
		return err
	}
	if final == nil {
		return fmt.Errorf("failed to get final status from downloader")
	}
	if !final.Completed() {
		if final.Error != "" {
			return fmt.Errorf("%s", final.Error)
		}
		return fmt.Errorf("download failed")
	}

	completedAt := time.Now().UTC()
	duration := int(completedAt.Sub(startedAt).Seconds())

	var title, uploader string
	if final.Result != nil {
		title = final.Result.Title
		uploader = final.Result.Uploader
	}
	updated, err := p.store.CompleteJob(ctx, job.ID, completedAt, duration, avgSpeedBytes, title, uploader)
	if err != nil {
		return err
	}
	if !updated {
		// The row went terminal out of band, a cancel landed while the
		// download was finishing. Discard the outcome: no artifact, no
		// success notification.
		log.Warn().Str("job_id", job.ID).Msg("job already terminal, discarding completion")
		return nil
	}

	p.materialize(ctx, job, final, values)

	p.bus.Publish(ctx, event.Event{
		Type:    event.EventJobCompleted,
		Payload: event.JobEvent{JobID: job.ID, UserID: job.UserID, URL: job.URL, Title: orDefault(title, job.Title)},
	})
	log.Info().Str("job_id", job.ID).Int("duration_s", duration).Msg("job completed")
	return nil
}

// drainProgress persists every update until the stream ends and returns
// the last measured throughput.
func (p *Pool) drainProgress(ctx context.Context, jobID string, stream ProgressSource) *int64 {
	defer stream.Close()

	var avgSpeed *int64
	for {
		ev, ok := stream.Next()
		if !ok {
			return avgSpeed
		}
		if parsed := parseSpeedBytes(ev.Speed); parsed != nil {
			avgSpeed = parsed
		}
		err := p.store.UpdateJobProgress(ctx, jobID, int(ev.Percent), ev.Speed, ev.ETA, ev.FragmentIndex, ev.FragmentCount, avgSpeed)
		if err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Str("job_id", jobID).Msg("progress persist failed")
		}
		if ev.Terminal {
			return avgSpeed
		}
	}
}

// materialize creates the library entry for a completed job. Idempotent
// on the external content id, so a duplicate completion signal is a
// no-op. Metadata gaps degrade the entry, never fail the job.
func (p *Pool) materialize(ctx context.Context, job *store.Job, final *engine.FinalStatus, values settings.Values) {
	result := final.Result
	if result == nil || result.VideoID == "" || result.Filepath == "" {
		return
	}

	info, err := p.engine.ProbeMetadata(ctx, job.URL)
	if err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("metadata probe errored")
	}

	video := &store.Video{
		ID:        result.VideoID,
		Title:     orDefault(result.Title, "Unknown"),
		Uploader:  orDefault(result.Uploader, "Unknown"),
		Filepath:  result.Filepath,
		SourceURL: job.URL,
		UserID:    job.UserID,
	}
	if thumb := thumbnailPath(result.Filepath, result.Ext); thumb != "" {
		video.ThumbnailPath = &thumb
	}
	if fi, err := os.Stat(result.Filepath); err == nil {
		size := fi.Size()
		video.Filesize = &size
	}
	if info != nil {
		if info.DurationSeconds > 0 {
			d := info.DurationSeconds
			video.DurationSeconds = &d
		}
		if info.ChannelID != "" {
			channelID := info.ChannelID
			video.ChannelID = &channelID
		}
		if published := info.UploadedAt(); !published.IsZero() {
			video.PublishedAt = &published
		}
	}

	created, err := p.store.CreateVideoIfAbsent(ctx, video)
	if err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Str("video_id", video.ID).Msg("artifact create failed")
		return
	}
	if !created {
		log.Debug().Str("video_id", video.ID).Msg("artifact already exists")
		return
	}
	log.Info().Str("video_id", video.ID).Str("title", video.Title).Msg("artifact created")

	if p.subscriber != nil && values.Bool(settings.KeyAutoSubscribe) && info != nil && info.ChannelID != "" {
		if err := p.subscriber.CreateFromArtifact(ctx, video, info); err != nil {
			log.Warn().Err(err).Str("channel_id", info.ChannelID).Msg("auto-subscribe failed")
		}
	}
}

func thumbnailPath(filepath, ext string) string {
	if ext == "" {
		return ""
	}
	suffix := "." + ext
	if !strings.HasSuffix(filepath, suffix) {
		return ""
	}
	return strings.TrimSuffix(filepath, suffix) + "-thumb.jpg"
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
