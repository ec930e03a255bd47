// Package subscription discovers new channel items for subscribed
// channels and enqueues them as pending jobs.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Ibramadi75/SuperTube/internal/core/engine"
	"github.com/Ibramadi75/SuperTube/internal/store"
)

// Store is the record-store surface the service needs.
type Store interface {
	GetSubscription(ctx context.Context, id string) (*store.Subscription, error)
	FindSubscriptionByChannel(ctx context.Context, userID *string, channelID string) (*store.Subscription, error)
	CreateSubscription(ctx context.Context, sub *store.Subscription) error
	ListActiveSubscriptions(ctx context.Context, userID *string) ([]*store.Subscription, error)
	RecordSubscriptionCheck(ctx context.Context, id string, checkedAt time.Time, watermark *time.Time, enqueued int) error
	VideoExists(ctx context.Context, id string) (bool, error)
	FindJobByURL(ctx context.Context, url string) (*store.Job, error)
	CreateJob(ctx context.Context, j *store.Job) error
}

// Engine is the downloader surface used for channel discovery.
type Engine interface {
	ListChannelItems(ctx context.Context, channelURL string, since *time.Time) ([]engine.ChannelItem, error)
	ProbeMetadata(ctx context.Context, url string) (*engine.MediaInfo, error)
}

type Service struct {
	store  Store
	engine Engine
}

func NewService(st Store, eng Engine) *Service {
	return &Service{store: st, engine: eng}
}

// CheckOne polls a single subscription for items newer than its
// watermark and enqueues jobs for the ones not already known. Returns
// the number of jobs created. lastCheckedAt advances even when nothing
// new is found; the watermark only ever moves forward.
func (s *Service) CheckOne(ctx context.Context, subscriptionID string) (int, error) {
	sub, err := s.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return 0, err
	}
	if !sub.Active {
		return 0, nil
	}

	log.Debug().Str("channel", sub.ChannelName).Time("since", sub.LastVideoAt).Msg("checking subscription")

	since := sub.LastVideoAt
	items, err := s.engine.ListChannelItems(ctx, sub.ChannelURL, &since)
	if err != nil {
		return 0, fmt.Errorf("list channel items: %w", err)
	}

	now := time.Now().UTC()
	if len(items) == 0 {
		if err := s.store.RecordSubscriptionCheck(ctx, sub.ID, now, nil, 0); err != nil {
			return 0, err
		}
		return 0, nil
	}

	var (
		created   int
		watermark *time.Time
	)
	for _, item := range items {
		if item.ID == "" || item.URL == "" {
			continue
		}

		// Dedup guards: an artifact with this content id, or a job with
		// this exact URL, means the item was already processed.
		exists, err := s.store.VideoExists(ctx, item.ID)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		if _, err := s.store.FindJobByURL(ctx, item.URL); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return created, err
		}

		job := &store.Job{
			ID:       uuid.NewString(),
			URL:      item.URL,
			UserID:   sub.UserID,
			Status:   store.JobPending,
			Title:    item.Title,
			Uploader: sub.ChannelName,
		}
		if err := s.store.CreateJob(ctx, job); err != nil {
			return created, err
		}
		created++
		log.Info().Str("channel", sub.ChannelName).Str("title", item.Title).Msg("queued new channel item")

		if uploaded := item.UploadedAt(); !uploaded.IsZero() {
			if watermark == nil || uploaded.After(*watermark) {
				u := uploaded
				watermark = &u
			}
		}
	}

	if err := s.store.RecordSubscriptionCheck(ctx, sub.ID, now, watermark, created); err != nil {
		return created, err
	}
	return created, nil
}

// CheckAll checks every active subscription, optionally scoped to one
// tenant. One subscription's failure is logged and never aborts the
// batch.
func (s *Service) CheckAll(ctx context.Context, userID *string) (int, error) {
	subs, err := s.store.ListActiveSubscriptions(ctx, userID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, sub := range subs {
		n, err := s.CheckOne(ctx, sub.ID)
		if err != nil {
			log.Error().Err(err).Str("channel", sub.ChannelName).Msg("subscription check failed")
			continue
		}
		total += n
	}
	log.Info().Int("subscriptions", len(subs)).Int("new_jobs", total).Msg("subscription sweep finished")
	return total, nil
}

// CreateFromURL bootstraps a subscription by probing the channel's most
// recent item. Returns the existing subscription when the (tenant,
// channel) pair is already subscribed.
func (s *Service) CreateFromURL(ctx context.Context, channelURL string, userID *string) (*store.Subscription, error) {
	items, err := s.engine.ListChannelItems(ctx, channelURL, nil)
	if err != nil {
		return nil, fmt.Errorf("list channel items: %w", err)
	}
	if len(items) == 0 || items[0].URL == "" {
		return nil, fmt.Errorf("no items found for channel %s", channelURL)
	}

	info, err := s.engine.ProbeMetadata(ctx, items[0].URL)
	if err != nil {
		return nil, err
	}
	if info == nil || info.ChannelID == "" {
		return nil, fmt.Errorf("could not resolve channel metadata for %s", channelURL)
	}

	existing, err := s.store.FindSubscriptionByChannel(ctx, userID, info.ChannelID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	sub := &store.Subscription{
		ID:          uuid.NewString(),
		ChannelID:   info.ChannelID,
		ChannelName: orDefault(info.Uploader, "Unknown"),
		ChannelURL:  orDefault(info.ChannelURL, channelURL),
		UserID:      userID,
		Active:      true,
		LastVideoAt: time.Now().UTC(),
	}
	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	log.Info().Str("channel", sub.ChannelName).Msg("subscription created from url")
	return sub, nil
}

// CreateFromArtifact is the auto-subscribe path invoked when a job
// completes. It is idempotent per (tenant, channel) and immediately
// runs one check so items newer than the artifact are queued without
// waiting for the next scheduled sweep.
func (s *Service) CreateFromArtifact(ctx context.Context, video *store.Video, info *engine.MediaInfo) error {
	if info == nil || info.ChannelID == "" || info.ChannelURL == "" {
		log.Warn().Str("video_id", video.ID).Msg("cannot auto-subscribe: missing channel metadata")
		return nil
	}

	if _, err := s.store.FindSubscriptionByChannel(ctx, video.UserID, info.ChannelID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	watermark := time.Now().UTC()
	if video.PublishedAt != nil {
		watermark = *video.PublishedAt
	} else if uploaded := info.UploadedAt(); !uploaded.IsZero() {
		watermark = uploaded
	}

	sub := &store.Subscription{
		ID:            uuid.NewString(),
		ChannelID:     info.ChannelID,
		ChannelName:   orDefault(video.Uploader, info.Uploader),
		ChannelURL:    info.ChannelURL,
		UserID:        video.UserID,
		Active:        true,
		LastVideoAt:   watermark,
		TotalEnqueued: 1, // the artifact that triggered the subscription
	}
	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return err
	}
	log.Info().Str("channel", sub.ChannelName).Msg("auto-subscribed after completed job")

	if n, err := s.CheckOne(ctx, sub.ID); err != nil {
		log.Warn().Err(err).Str("channel", sub.ChannelName).Msg("initial subscription check failed")
	} else if n > 0 {
		log.Info().Int("count", n).Str("channel", sub.ChannelName).Msg("queued newer items after auto-subscribe")
	}
	return nil
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
