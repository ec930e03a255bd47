// Package engine is the typed client for the external yt-dlp sidecar.
// The sidecar performs the actual content retrieval; this package only
// speaks its HTTP API.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Client talks to the downloader sidecar.
type Client struct {
	baseURL string
	http    *http.Client
	// streaming requests must not be bounded by the request timeout
	streamHTTP *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: timeout},
		streamHTTP: &http.Client{},
	}
}

type startResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// StartJob asks the sidecar to begin a download and returns its job id.
func (c *Client) StartJob(ctx context.Context, req StartRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal start request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/download", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build start request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s", ErrEngineRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out startResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode start response: %v", ErrEngineRejected, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: empty download id", ErrEngineRejected)
	}
	return out.ID, nil
}

// GetFinalStatus fetches the sidecar's report for a download. It fails
// soft: transport errors and non-2xx responses yield (nil, nil), which
// the caller must treat as a failed download.
func (c *Client) GetFinalStatus(ctx context.Context, externalID string) (*FinalStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/download/"+url.PathEscape(externalID), nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.Warn().Err(err).Str("engine_job_id", externalID).Msg("final status fetch failed")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	var out FinalStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Warn().Err(err).Str("engine_job_id", externalID).Msg("final status decode failed")
		return nil, nil
	}
	return &out, nil
}

// CancelJob asks the sidecar to abort a download. Best-effort.
func (c *Client) CancelJob(ctx context.Context, externalID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/download/"+url.PathEscape(externalID), nil)
	if err != nil {
		return fmt.Errorf("build cancel request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrEngineRejected, resp.StatusCode)
	}
	return nil
}

// ProbeMetadata extracts metadata for a URL without downloading. Fails
// soft to (nil, nil) so metadata gaps never fail a job.
func (c *Client) ProbeMetadata(ctx context.Context, mediaURL string) (*MediaInfo, error) {
	body, err := json.Marshal(map[string]string{"url": mediaURL})
	if err != nil {
		return nil, fmt.Errorf("marshal info request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/info", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build info request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.Warn().Err(err).Str("url", mediaURL).Msg("metadata probe failed")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	var out MediaInfo
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Warn().Err(err).Str("url", mediaURL).Msg("metadata decode failed")
		return nil, nil
	}
	return &out, nil
}

// ListChannelItems returns a channel's items published after since,
// newest first as reported by the sidecar. A nil since asks for the
// channel's most recent items (subscription bootstrap).
func (c *Client) ListChannelItems(ctx context.Context, channelURL string, since *time.Time) ([]ChannelItem, error) {
	q := url.Values{"url": {channelURL}}
	if since != nil {
		q.Set("since", since.Format("20060102"))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/channel?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build channel request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrEngineRejected, resp.StatusCode)
	}

	var out struct {
		Items []ChannelItem `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode channel response: %v", ErrEngineRejected, err)
	}
	return out.Items, nil
}
