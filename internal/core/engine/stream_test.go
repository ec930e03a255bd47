package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/download/ext-42/stream", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}))
}

func TestStreamProgressParsesEvents(t *testing.T) {
	srv := sseServer(t, []string{
		"event: progress\ndata: {\"id\":\"ext-42\",\"percent\":12.5,\"speed\":\"2.0MiB/s\",\"eta\":\"01:20\",\"fragment_index\":3,\"fragment_count\":24}\n\n",
		"event: progress\ndata: {\"id\":\"ext-42\",\"percent\":50}\n\n",
		"event: complete\ndata: {\"id\":\"ext-42\",\"percent\":100,\"status\":\"completed\"}\n\n",
	})
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	stream, err := c.StreamProgress(context.Background(), "ext-42")
	require.NoError(t, err)
	defer stream.Close()

	ev, ok := stream.Next()
	require.True(t, ok)
	assert.Equal(t, 12.5, ev.Percent)
	assert.Equal(t, "2.0MiB/s", ev.Speed)
	assert.Equal(t, 3, ev.FragmentIndex)
	assert.False(t, ev.Terminal)

	ev, ok = stream.Next()
	require.True(t, ok)
	assert.Equal(t, float64(50), ev.Percent)

	ev, ok = stream.Next()
	require.True(t, ok)
	assert.True(t, ev.Terminal)
	assert.Equal(t, float64(100), ev.Percent)

	_, ok = stream.Next()
	assert.False(t, ok)
}

func TestStreamProgressSkipsMalformedFrames(t *testing.T) {
	srv := sseServer(t, []string{
		"event: progress\ndata: not-json\n\n",
		"event: complete\ndata: {\"percent\":100}\n\n",
	})
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	stream, err := c.StreamProgress(context.Background(), "ext-42")
	require.NoError(t, err)
	defer stream.Close()

	ev, ok := stream.Next()
	require.True(t, ok)
	assert.True(t, ev.Terminal)
}

func TestStreamProgressEndsOnTransportBreak(t *testing.T) {
	srv := sseServer(t, []string{
		"event: progress\ndata: {\"percent\":10}\n\n",
		// connection closes without a complete event
	})
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	stream, err := c.StreamProgress(context.Background(), "ext-42")
	require.NoError(t, err)
	defer stream.Close()

	_, ok := stream.Next()
	require.True(t, ok)

	_, ok = stream.Next()
	assert.False(t, ok)
}

func TestStreamProgressRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such download", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.StreamProgress(context.Background(), "ext-42")
	assert.ErrorIs(t, err, ErrEngineRejected)
}
