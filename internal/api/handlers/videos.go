package handlers

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/Ibramadi75/SuperTube/internal/store"
)

type VideosHandler struct {
	store *store.Store
}

func NewVideosHandler(st *store.Store) *VideosHandler {
	return &VideosHandler{store: st}
}

type ListVideosInput struct {
	Limit  int `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Max results"`
	Offset int `query:"offset" default:"0" minimum:"0" doc:"Offset"`
}

type VideoIDInput struct {
	ID string `path:"id" doc:"Video content ID"`
}

type VideoDTO struct {
	ID              string     `json:"id" doc:"Content ID"`
	Title           string     `json:"title" doc:"Title"`
	Uploader        string     `json:"uploader" doc:"Channel or uploader name"`
	DurationSeconds *int       `json:"duration_seconds,omitempty" doc:"Media duration"`
	Filepath        string     `json:"filepath" doc:"Path on disk"`
	ThumbnailPath   *string    `json:"thumbnail_path,omitempty" doc:"Thumbnail path on disk"`
	Filesize        *int64     `json:"filesize,omitempty" doc:"File size in bytes"`
	SourceURL       string     `json:"source_url" doc:"Original media URL"`
	ChannelID       *string    `json:"channel_id,omitempty" doc:"Source channel ID"`
	PublishedAt     *time.Time `json:"published_at,omitempty" doc:"Original publish time"`
	DownloadedAt    time.Time  `json:"downloaded_at" doc:"Download time"`
}

func newVideoDTO(v *store.Video) VideoDTO {
	return VideoDTO{
		ID:              v.ID,
		Title:           v.Title,
		Uploader:        v.Uploader,
		DurationSeconds: v.DurationSeconds,
		Filepath:        v.Filepath,
		ThumbnailPath:   v.ThumbnailPath,
		Filesize:        v.Filesize,
		SourceURL:       v.SourceURL,
		ChannelID:       v.ChannelID,
		PublishedAt:     v.PublishedAt,
		DownloadedAt:    v.DownloadedAt,
	}
}

func (h *VideosHandler) List(ctx context.Context, input *ListVideosInput) (*DataOutput[[]VideoDTO], error) {
	videos, err := h.store.ListVideos(ctx, tenantOf(ctx), input.Limit, input.Offset)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list videos")
	}

	dtos := make([]VideoDTO, 0, len(videos))
	for _, v := range videos {
		dtos = append(dtos, newVideoDTO(v))
	}
	return OK(dtos), nil
}

func (h *VideosHandler) Get(ctx context.Context, input *VideoIDInput) (*DataOutput[VideoDTO], error) {
	video, err := h.loadOwned(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return OK(newVideoDTO(video)), nil
}

// Delete removes the library entry and its files on disk. A missing
// file is not an error; the row is the source of truth.
func (h *VideosHandler) Delete(ctx context.Context, input *VideoIDInput) (*MsgOutput, error) {
	video, err := h.loadOwned(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if err := h.store.DeleteVideo(ctx, video.ID); err != nil {
		return nil, huma.Error500InternalServerError("failed to delete video")
	}

	if err := os.Remove(video.Filepath); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", video.Filepath).Msg("failed to remove video file")
	}
	if video.ThumbnailPath != nil {
		if err := os.Remove(*video.ThumbnailPath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", *video.ThumbnailPath).Msg("failed to remove thumbnail")
		}
	}

	return Msg("video deleted"), nil
}

func (h *VideosHandler) loadOwned(ctx context.Context, id string) (*store.Video, error) {
	video, err := h.store.GetVideo(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("video not found")
		}
		return nil, huma.Error500InternalServerError("failed to load video")
	}
	if !canAccess(ctx, video.UserID) {
		return nil, huma.Error404NotFound("video not found")
	}
	return video, nil
}
