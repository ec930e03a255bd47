package api

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/Ibramadi75/SuperTube/internal/api/middleware"
	"github.com/Ibramadi75/SuperTube/internal/store"
)

// VideoReader loads library rows for file serving.
type VideoReader interface {
	GetVideo(ctx context.Context, id string) (*store.Video, error)
}

// videoFile serves a library file straight off disk. Like the SSE route
// this bypasses huma: echo's File handles range requests and content
// type detection, which the media player on the other end relies on.
func videoFile(videos VideoReader, thumbnail bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		video, err := videos.GetVideo(ctx, c.Param("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "video not found"})
			}
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load video"})
		}
		if !ownsVideo(c, video) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "video not found"})
		}

		path := video.Filepath
		if thumbnail {
			if video.ThumbnailPath == nil {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "no thumbnail"})
			}
			path = *video.ThumbnailPath
		}
		if _, err := os.Stat(path); err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "file missing on disk"})
		}
		return c.File(path)
	}
}

func ownsVideo(c echo.Context, video *store.Video) bool {
	ctx := c.Request().Context()
	if middleware.GetUserRole(ctx) == "admin" {
		return true
	}
	if video.UserID == nil {
		return true
	}
	return *video.UserID == middleware.GetUserID(ctx)
}
