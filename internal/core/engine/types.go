package engine

import "time"

// StartRequest carries everything the sidecar needs to begin a download.
type StartRequest struct {
	URL                 string `json:"url"`
	Quality             string `json:"quality"`
	Format              string `json:"format"`
	ConcurrentFragments int    `json:"concurrent_fragments"`
	Sponsorblock        bool   `json:"sponsorblock"`
	SponsorblockAction  string `json:"sponsorblock_action"`
	DownloadThumbnail   bool   `json:"download_thumbnail"`
	Retries             int    `json:"retries"`
}

// ProgressEvent is one update from the sidecar's progress stream.
type ProgressEvent struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Percent       float64 `json:"percent"`
	Speed         string  `json:"speed"`
	ETA           string  `json:"eta"`
	FragmentIndex int     `json:"fragment_index"`
	FragmentCount int     `json:"fragment_count"`

	// Terminal is set when the stream's event type is "complete"; the
	// stream ends after such an event.
	Terminal bool `json:"-"`
}

// Result describes the file produced by a completed download.
type Result struct {
	Filepath string `json:"filepath"`
	Uploader string `json:"uploader"`
	Title    string `json:"title"`
	VideoID  string `json:"video_id"`
	Ext      string `json:"ext"`
}

// FinalStatus is the sidecar's terminal report for a download.
type FinalStatus struct {
	ID      string  `json:"id"`
	Status  string  `json:"status"`
	Percent float64 `json:"percent"`
	Error   string  `json:"error"`
	Result  *Result `json:"result"`
}

// Completed reports whether the engine finished the download successfully.
func (f *FinalStatus) Completed() bool { return f.Status == "completed" }

// MediaInfo is probed metadata for a single URL.
type MediaInfo struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Uploader        string `json:"uploader"`
	DurationSeconds int    `json:"duration"`
	Thumbnail       string `json:"thumbnail"`
	ChannelID       string `json:"channel_id"`
	ChannelURL      string `json:"channel_url"`
	UploadDate      string `json:"upload_date"` // YYYYMMDD
}

// UploadedAt parses the YYYYMMDD upload date; zero time when absent or
// malformed.
func (m *MediaInfo) UploadedAt() time.Time {
	t, err := time.Parse("20060102", m.UploadDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ChannelItem is one entry of a channel listing.
type ChannelItem struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	UploadDate string `json:"upload_date"` // YYYYMMDD
}

// UploadedAt parses the YYYYMMDD upload date; zero time when absent or
// malformed.
func (c *ChannelItem) UploadedAt() time.Time {
	t, err := time.Parse("20060102", c.UploadDate)
	if err != nil {
		return time.Time{}
	}
	return t
}
