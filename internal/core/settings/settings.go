// Package settings resolves the layered key/value configuration: built-in
// defaults, overlaid by global rows, overlaid by per-tenant rows. Job-level
// overrides form a third layer applied by the worker at enqueue time.
package settings

import (
	"context"
	"fmt"
	"strconv"
)

// Setting keys. Stored values are strings; typed getters parse them.
const (
	KeyQuality             = "quality.default"
	KeyFormat              = "format.video"
	KeyDownloadThumbnail   = "format.thumbnail"
	KeyConcurrentFragments = "performance.concurrentFragments"
	KeyRetries             = "performance.retries"
	KeySponsorblock        = "sponsorblock.enabled"
	KeySponsorblockAction  = "sponsorblock.action"
	KeyNotifyEnabled       = "notifications.enabled"
	KeyNotifyTopic         = "notifications.topic"
	KeySubsEnabled         = "subscriptions.enabled"
	KeySubsCron            = "subscriptions.cron"
	KeyAutoSubscribe       = "subscriptions.autoSubscribe"
)

// Defaults returns the built-in bottom layer.
func Defaults() map[string]string {
	return map[string]string{
		KeyQuality:             "1080",
		KeyFormat:              "mp4",
		KeyDownloadThumbnail:   "true",
		KeyConcurrentFragments: "4",
		KeyRetries:             "3",
		KeySponsorblock:        "true",
		KeySponsorblockAction:  "mark",
		KeyNotifyEnabled:       "false",
		KeyNotifyTopic:         "",
		KeySubsEnabled:         "false",
		KeySubsCron:            "0 * 9-21 * * *",
		KeyAutoSubscribe:       "false",
	}
}

// Source reads persisted setting rows. Implemented by *store.Store.
type Source interface {
	GlobalSettings(ctx context.Context) (map[string]string, error)
	TenantSettings(ctx context.Context, userID string) (map[string]string, error)
}

// Values is one resolved snapshot. Lookups never consult the store again,
// so a snapshot taken at enqueue time is immune to later setting changes.
type Values map[string]string

// Resolve merges defaults, global rows and, when tenant is non-nil,
// that tenant's override rows.
func Resolve(ctx context.Context, src Source, tenant *string) (Values, error) {
	merged := Defaults()

	global, err := src.GlobalSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load global settings: %w", err)
	}
	for k, v := range global {
		merged[k] = v
	}

	if tenant != nil {
		overrides, err := src.TenantSettings(ctx, *tenant)
		if err != nil {
			return nil, fmt.Errorf("load tenant settings: %w", err)
		}
		for k, v := range overrides {
			merged[k] = v
		}
	}
	return merged, nil
}

func (v Values) Get(key string) string {
	return v[key]
}

func (v Values) Bool(key string) bool {
	return v[key] == "true"
}

func (v Values) Int(key string, fallback int) int {
	n, err := strconv.Atoi(v[key])
	if err != nil {
		return fallback
	}
	return n
}
