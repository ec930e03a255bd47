// Package notify pushes best-effort job notifications through ntfy.
// Every failure is logged and swallowed; a broken notification must
// never affect the job that triggered it.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Ibramadi75/SuperTube/internal/core/event"
	"github.com/Ibramadi75/SuperTube/internal/core/settings"
)

// Kind selects the notification template.
type Kind string

const (
	KindStarted Kind = "started"
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
)

const defaultServer = "https://ntfy.sh"

// Dispatcher sends push notifications when the owning tenant (or the
// global scope) has a ntfy topic configured and notifications enabled.
type Dispatcher struct {
	source settings.Source
	server string
	client *http.Client
}

func NewDispatcher(source settings.Source, server string) *Dispatcher {
	if server == "" {
		server = defaultServer
	}
	return &Dispatcher{
		source: source,
		server: strings.TrimRight(server, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Attach subscribes the dispatcher to job lifecycle events on the bus.
func (d *Dispatcher) Attach(bus *event.Bus) {
	bus.Subscribe(func(ctx context.Context, ev event.Event) {
		payload, ok := ev.Payload.(event.JobEvent)
		if !ok {
			return
		}
		switch ev.Type {
		case event.EventJobStarted:
			d.Send(ctx, payload.UserID, KindStarted, payload.URL)
		case event.EventJobCompleted:
			d.Send(ctx, payload.UserID, KindSuccess, orDefault(payload.Title, payload.URL))
		case event.EventJobFailed, event.EventJobCancelled:
			d.Send(ctx, payload.UserID, KindFailure, orDefault(payload.Title, payload.URL))
		}
	}, event.EventJobStarted, event.EventJobCompleted, event.EventJobFailed, event.EventJobCancelled)
}

// Send posts one notification. Fire-and-forget: all errors are logged
// at warn level and dropped.
func (d *Dispatcher) Send(ctx context.Context, tenant *string, kind Kind, message string) {
	values, err := settings.Resolve(ctx, d.source, tenant)
	if err != nil {
		log.Warn().Err(err).Msg("notification settings lookup failed")
		return
	}
	if !values.Bool(settings.KeyNotifyEnabled) {
		return
	}
	topic := strings.TrimSpace(values.Get(settings.KeyNotifyTopic))
	if topic == "" {
		return
	}

	title, tag, body := render(kind, message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s", d.server, topic), strings.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Msg("build notification request failed")
		return
	}
	req.Header.Set("Title", title)
	req.Header.Set("Tags", tag)

	resp, err := d.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("notification send failed")
		return
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("kind", string(kind)).Msg("notification rejected")
		return
	}
	log.Debug().Str("kind", string(kind)).Str("message", message).Msg("notification sent")
}

func render(kind Kind, message string) (title, tag, body string) {
	switch kind {
	case KindStarted:
		return "Download started", "arrow_down", message
	case KindSuccess:
		return "Download complete", "white_check_mark", message
	case KindFailure:
		return "Download failed", "x", message
	default:
		return "SuperTube", "bell", message
	}
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
