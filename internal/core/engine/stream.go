package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ProgressStream is a single-consumer iterator over the sidecar's SSE
// progress feed. It ends naturally on a terminal event, on context
// cancellation, or on any read error. A broken stream means "no more
// updates", never a fatal error; the caller falls through to fetching
// the final status. A stream cannot be resumed mid-flight.
type ProgressStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool
}

// StreamProgress opens the progress stream for a running download.
func (c *Client) StreamProgress(ctx context.Context, externalID string) (*ProgressStream, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/download/"+url.PathEscape(externalID)+"/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamHTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrEngineRejected, resp.StatusCode)
	}

	return &ProgressStream{
		body:   resp.Body,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

// Next returns the next progress event, or ok=false when the stream has
// ended. After a Terminal event, ok is false on the following call.
func (s *ProgressStream) Next() (ProgressEvent, bool) {
	if s.done {
		return ProgressEvent{}, false
	}

	var eventType, data string
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			// transport break or context cancellation: the sequence ends
			s.done = true
			return ProgressEvent{}, false
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(line[len("data:"):])
		case line == "" && data != "":
			var ev ProgressEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				// skip malformed frames, keep reading
				eventType, data = "", ""
				continue
			}
			if eventType == "complete" {
				ev.Terminal = true
				s.done = true
			}
			return ev, true
		}
	}
}

// Close releases the underlying connection. Safe to call more than once.
func (s *ProgressStream) Close() error {
	s.done = true
	return s.body.Close()
}
