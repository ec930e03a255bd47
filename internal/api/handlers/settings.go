package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Ibramadi75/SuperTube/internal/api/middleware"
	"github.com/Ibramadi75/SuperTube/internal/core/settings"
	"github.com/Ibramadi75/SuperTube/internal/store"
)

type SettingsHandler struct {
	store *store.Store
}

func NewSettingsHandler(st *store.Store) *SettingsHandler {
	return &SettingsHandler{store: st}
}

type UpdateSettingInput struct {
	Key  string `path:"key" doc:"Setting key"`
	Body struct {
		Value string `json:"value" doc:"Setting value"`
	}
}

type SettingKeyInput struct {
	Key string `path:"key" doc:"Setting key"`
}

type SettingDTO struct {
	Key   string `json:"key" doc:"Setting key"`
	Value string `json:"value" doc:"Resolved value"`
}

// List returns the caller's fully resolved settings: defaults overlaid
// by global rows, overlaid by the caller's own rows.
func (h *SettingsHandler) List(ctx context.Context, _ *EmptyInput) (*DataOutput[map[string]string], error) {
	values, err := settings.Resolve(ctx, h.store, callerTenant(ctx))
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to resolve settings")
	}
	return OK(map[string]string(values)), nil
}

func (h *SettingsHandler) Get(ctx context.Context, input *SettingKeyInput) (*DataOutput[SettingDTO], error) {
	if !knownKey(input.Key) {
		return nil, huma.Error404NotFound("unknown setting key")
	}
	values, err := settings.Resolve(ctx, h.store, callerTenant(ctx))
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to resolve settings")
	}
	return OK(SettingDTO{Key: input.Key, Value: values.Get(input.Key)}), nil
}

// Update writes one override row in the caller's own scope.
func (h *SettingsHandler) Update(ctx context.Context, input *UpdateSettingInput) (*DataOutput[SettingDTO], error) {
	if !knownKey(input.Key) {
		return nil, huma.Error404NotFound("unknown setting key")
	}
	if err := h.store.UpsertSetting(ctx, callerTenant(ctx), input.Key, input.Body.Value); err != nil {
		return nil, huma.Error500InternalServerError("failed to update setting")
	}
	return OK(SettingDTO{Key: input.Key, Value: input.Body.Value}), nil
}

// UpdateGlobal writes one row in the global scope. Admin only.
func (h *SettingsHandler) UpdateGlobal(ctx context.Context, input *UpdateSettingInput) (*DataOutput[SettingDTO], error) {
	if !knownKey(input.Key) {
		return nil, huma.Error404NotFound("unknown setting key")
	}
	if err := h.store.UpsertSetting(ctx, nil, input.Key, input.Body.Value); err != nil {
		return nil, huma.Error500InternalServerError("failed to update setting")
	}
	return OK(SettingDTO{Key: input.Key, Value: input.Body.Value}), nil
}

// callerTenant scopes setting reads and writes to the authenticated
// user. Unlike tenantOf, admins resolve their own overrides here too.
func callerTenant(ctx context.Context) *string {
	id := middleware.GetUserID(ctx)
	if id == "" {
		return nil
	}
	return &id
}

func knownKey(key string) bool {
	_, ok := settings.Defaults()[key]
	return ok
}
