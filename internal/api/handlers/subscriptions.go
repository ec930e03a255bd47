package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Ibramadi75/SuperTube/internal/core/subscription"
	"github.com/Ibramadi75/SuperTube/internal/store"
)

type SubscriptionsHandler struct {
	store *store.Store
	svc   *subscription.Service
}

func NewSubscriptionsHandler(st *store.Store, svc *subscription.Service) *SubscriptionsHandler {
	return &SubscriptionsHandler{store: st, svc: svc}
}

type AddSubscriptionInput struct {
	Body struct {
		ChannelURL string `json:"channel_url" minLength:"1" doc:"Channel URL to subscribe to"`
	}
}

type SubscriptionIDInput struct {
	ID string `path:"id" doc:"Subscription ID"`
}

type SetActiveInput struct {
	ID   string `path:"id" doc:"Subscription ID"`
	Body struct {
		Active bool `json:"active" doc:"Whether the subscription is polled"`
	}
}

type SubscriptionDTO struct {
	ID            string     `json:"id" doc:"Subscription ID"`
	ChannelID     string     `json:"channel_id" doc:"Channel ID"`
	ChannelName   string     `json:"channel_name" doc:"Channel name"`
	ChannelURL    string     `json:"channel_url" doc:"Channel URL"`
	Active        bool       `json:"active" doc:"Whether the subscription is polled"`
	SubscribedAt  time.Time  `json:"subscribed_at" doc:"Subscription time"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty" doc:"Last poll time"`
	LastVideoAt   time.Time  `json:"last_video_at" doc:"Newest known item time"`
	TotalEnqueued int        `json:"total_enqueued" doc:"Jobs enqueued from this channel"`
}

func newSubscriptionDTO(sub *store.Subscription) SubscriptionDTO {
	return SubscriptionDTO{
		ID:            sub.ID,
		ChannelID:     sub.ChannelID,
		ChannelName:   sub.ChannelName,
		ChannelURL:    sub.ChannelURL,
		Active:        sub.Active,
		SubscribedAt:  sub.SubscribedAt,
		LastCheckedAt: sub.LastCheckedAt,
		LastVideoAt:   sub.LastVideoAt,
		TotalEnqueued: sub.TotalEnqueued,
	}
}

type CheckResultDTO struct {
	Enqueued int `json:"enqueued" doc:"Jobs created by the check"`
}

func (h *SubscriptionsHandler) Add(ctx context.Context, input *AddSubscriptionInput) (*DataOutput[SubscriptionDTO], error) {
	sub, err := h.svc.CreateFromURL(ctx, input.Body.ChannelURL, tenantOf(ctx))
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("failed to resolve channel", err)
	}
	return OK(newSubscriptionDTO(sub)), nil
}

func (h *SubscriptionsHandler) List(ctx context.Context, _ *EmptyInput) (*DataOutput[[]SubscriptionDTO], error) {
	subs, err := h.store.ListSubscriptions(ctx, tenantOf(ctx))
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list subscriptions")
	}

	dtos := make([]SubscriptionDTO, 0, len(subs))
	for _, sub := range subs {
		dtos = append(dtos, newSubscriptionDTO(sub))
	}
	return OK(dtos), nil
}

func (h *SubscriptionsHandler) Get(ctx context.Context, input *SubscriptionIDInput) (*DataOutput[SubscriptionDTO], error) {
	sub, err := h.loadOwned(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return OK(newSubscriptionDTO(sub)), nil
}

func (h *SubscriptionsHandler) SetActive(ctx context.Context, input *SetActiveInput) (*DataOutput[SubscriptionDTO], error) {
	if _, err := h.loadOwned(ctx, input.ID); err != nil {
		return nil, err
	}
	if err := h.store.SetSubscriptionActive(ctx, input.ID, input.Body.Active); err != nil {
		return nil, huma.Error500InternalServerError("failed to update subscription")
	}
	sub, err := h.store.GetSubscription(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load subscription")
	}
	return OK(newSubscriptionDTO(sub)), nil
}

func (h *SubscriptionsHandler) Delete(ctx context.Context, input *SubscriptionIDInput) (*MsgOutput, error) {
	if _, err := h.loadOwned(ctx, input.ID); err != nil {
		return nil, err
	}
	if err := h.store.DeleteSubscription(ctx, input.ID); err != nil {
		return nil, huma.Error500InternalServerError("failed to delete subscription")
	}
	return Msg("subscription deleted"), nil
}

// Check polls one subscription immediately, outside the cron schedule.
func (h *SubscriptionsHandler) Check(ctx context.Context, input *SubscriptionIDInput) (*DataOutput[CheckResultDTO], error) {
	if _, err := h.loadOwned(ctx, input.ID); err != nil {
		return nil, err
	}
	enqueued, err := h.svc.CheckOne(ctx, input.ID)
	if err != nil {
		return nil, huma.Error502BadGateway("subscription check failed", err)
	}
	return OK(CheckResultDTO{Enqueued: enqueued}), nil
}

// CheckAll polls every active subscription in the caller's scope.
func (h *SubscriptionsHandler) CheckAll(ctx context.Context, _ *EmptyInput) (*DataOutput[CheckResultDTO], error) {
	enqueued, err := h.svc.CheckAll(ctx, tenantOf(ctx))
	if err != nil {
		return nil, huma.Error502BadGateway("subscription check failed", err)
	}
	return OK(CheckResultDTO{Enqueued: enqueued}), nil
}

func (h *SubscriptionsHandler) loadOwned(ctx context.Context, id string) (*store.Subscription, error) {
	sub, err := h.store.GetSubscription(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("subscription not found")
		}
		return nil, huma.Error500InternalServerError("failed to load subscription")
	}
	if !canAccess(ctx, sub.UserID) {
		return nil, huma.Error404NotFound("subscription not found")
	}
	return sub, nil
}
