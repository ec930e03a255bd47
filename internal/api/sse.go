package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Ibramadi75/SuperTube/internal/api/middleware"
	"github.com/Ibramadi75/SuperTube/internal/core/relay"
	"github.com/Ibramadi75/SuperTube/internal/store"
)

// progressEvents streams job progress snapshots as server-sent events.
// The stream ends with a "complete" event once the job reaches a
// terminal status, or when the client disconnects.
func progressEvents(st *store.Store, rel *relay.Relay) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		jobID := c.Param("id")

		job, err := st.GetJob(ctx, jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
			}
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load job"})
		}
		if !ownsJob(c, job) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		}

		snapshots, err := rel.Watch(ctx, jobID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to watch job"})
		}

		w := c.Response()
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		for snap := range snapshots {
			name := "progress"
			if snap.Final {
				name = "complete"
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
			w.Flush()
		}
		return nil
	}
}

func ownsJob(c echo.Context, job *store.Job) bool {
	ctx := c.Request().Context()
	if middleware.GetUserRole(ctx) == "admin" {
		return true
	}
	if job.UserID == nil {
		return true
	}
	return *job.UserID == middleware.GetUserID(ctx)
}
