package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const subscriptionColumns = `id, channel_id, channel_name, channel_url, user_id,
	active, subscribed_at, last_checked_at, last_video_at, total_enqueued`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(
		&sub.ID, &sub.ChannelID, &sub.ChannelName, &sub.ChannelURL, &sub.UserID,
		&sub.Active, &sub.SubscribedAt, &sub.LastCheckedAt, &sub.LastVideoAt, &sub.TotalEnqueued,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &sub, nil
}

func (s *Store) CreateSubscription(ctx context.Context, sub *Subscription) error {
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO subscriptions (id, channel_id, channel_name, channel_url, user_id,
			active, subscribed_at, last_video_at, total_enqueued)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.ID, sub.ChannelID, sub.ChannelName, sub.ChannelURL, sub.UserID,
		sub.Active, sub.SubscribedAt, sub.LastVideoAt, sub.TotalEnqueued,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	return scanSubscription(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
}

// FindSubscriptionByChannel returns the subscription for a (tenant, channel)
// pair, or ErrNotFound. At most one such row exists.
func (s *Store) FindSubscriptionByChannel(ctx context.Context, userID *string, channelID string) (*Subscription, error) {
	return scanSubscription(s.db.QueryRow(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE channel_id = $1 AND user_id IS NOT DISTINCT FROM $2`,
		channelID, userID))
}

// ListActiveSubscriptions returns active subscriptions, optionally scoped
// to one tenant.
func (s *Store) ListActiveSubscriptions(ctx context.Context, userID *string) ([]*Subscription, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE active AND ($1::text IS NULL OR user_id IS NOT DISTINCT FROM $1)
		ORDER BY subscribed_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query active subscriptions: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

func (s *Store) ListSubscriptions(ctx context.Context, userID *string) ([]*Subscription, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE ($1::text IS NULL OR user_id IS NOT DISTINCT FROM $1)
		ORDER BY subscribed_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

func collectSubscriptions(rows pgx.Rows) ([]*Subscription, error) {
	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// RecordSubscriptionCheck advances last_checked_at and adds the enqueued
// count. A supplied watermark only ever moves last_video_at forward.
func (s *Store) RecordSubscriptionCheck(ctx context.Context, id string, checkedAt time.Time, watermark *time.Time, enqueued int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE subscriptions SET
			last_checked_at = $2,
			last_video_at = GREATEST(last_video_at, COALESCE($3, last_video_at)),
			total_enqueued = total_enqueued + $4
		WHERE id = $1`,
		id, checkedAt, watermark, enqueued,
	)
	if err != nil {
		return fmt.Errorf("record subscription check: %w", err)
	}
	return nil
}

func (s *Store) SetSubscriptionActive(ctx context.Context, id string, active bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE subscriptions SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set subscription active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
