package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/download", r.URL.Path)

		var req StartRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://youtu.be/abc", req.URL)
		assert.Equal(t, "1080", req.Quality)
		assert.Equal(t, 4, req.ConcurrentFragments)

		json.NewEncoder(w).Encode(map[string]string{"id": "ext-42", "status": "queued"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	id, err := c.StartJob(context.Background(), StartRequest{
		URL:                 "https://youtu.be/abc",
		Quality:             "1080",
		ConcurrentFragments: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, "ext-42", id)
}

func TestStartJobTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening any more

	c := NewClient(srv.URL, time.Second)
	_, err := c.StartJob(context.Background(), StartRequest{URL: "https://youtu.be/abc"})
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestStartJobRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported url", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.StartJob(context.Background(), StartRequest{URL: "https://example.com"})
	assert.ErrorIs(t, err, ErrEngineRejected)
	assert.Contains(t, err.Error(), "unsupported url")
}

func TestStartJobEmptyIDRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.StartJob(context.Background(), StartRequest{URL: "https://youtu.be/abc"})
	assert.ErrorIs(t, err, ErrEngineRejected)
}

func TestGetFinalStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/download/ext-42", r.URL.Path)
		json.NewEncoder(w).Encode(FinalStatus{
			ID:     "ext-42",
			Status: "completed",
			Result: &Result{Filepath: "/data/a.mp4", VideoID: "abc", Ext: "mp4"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	final, err := c.GetFinalStatus(context.Background(), "ext-42")
	require.NoError(t, err)
	require.NotNil(t, final)
	assert.True(t, final.Completed())
	assert.Equal(t, "abc", final.Result.VideoID)
}

func TestGetFinalStatusFailsSoft(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second)
		final, err := c.GetFinalStatus(context.Background(), "ext-42")
		assert.NoError(t, err)
		assert.Nil(t, final)
	})

	t.Run("transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		c := NewClient(srv.URL, time.Second)
		final, err := c.GetFinalStatus(context.Background(), "ext-42")
		assert.NoError(t, err)
		assert.Nil(t, final)
	})
}

func TestCancelJob(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	require.NoError(t, c.CancelJob(context.Background(), "ext-42"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/download/ext-42", gotPath)
}

func TestProbeMetadataFailsSoft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "extractor error", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	info, err := c.ProbeMetadata(context.Background(), "https://youtu.be/abc")
	assert.NoError(t, err)
	assert.Nil(t, info)
}

func TestListChannelItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/channel", r.URL.Path)
		assert.Equal(t, "https://youtube.com/@chan", r.URL.Query().Get("url"))
		assert.Equal(t, "20260101", r.URL.Query().Get("since"))
		json.NewEncoder(w).Encode(map[string]any{
			"items": []ChannelItem{
				{ID: "v1", URL: "https://youtu.be/v1", Title: "one", UploadDate: "20260110"},
				{ID: "v2", URL: "https://youtu.be/v2", Title: "two", UploadDate: "20260105"},
			},
		})
	}))
	defer srv.Close()

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewClient(srv.URL, time.Second)
	items, err := c.ListChannelItems(context.Background(), "https://youtube.com/@chan", &since)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "v1", items[0].ID)
	assert.Equal(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), items[0].UploadedAt())
}
