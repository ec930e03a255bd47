package store

import (
	"context"
	"fmt"
)

// GlobalSettings returns the settings rows with no owning tenant.
func (s *Store) GlobalSettings(ctx context.Context) (map[string]string, error) {
	return s.settings(ctx, `SELECT key, value FROM settings WHERE user_id IS NULL`)
}

// TenantSettings returns only the given tenant's override rows.
func (s *Store) TenantSettings(ctx context.Context, userID string) (map[string]string, error) {
	return s.settings(ctx, `SELECT key, value FROM settings WHERE user_id = $1`, userID)
}

func (s *Store) settings(ctx context.Context, query string, args ...any) (map[string]string, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		values[key] = value
	}
	return values, rows.Err()
}

// UpsertSetting writes one key for the given tenant (nil = global).
func (s *Store) UpsertSetting(ctx context.Context, userID *string, key, value string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO settings (user_id, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (COALESCE(user_id, ''), key) DO UPDATE SET value = EXCLUDED.value`,
		userID, key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert setting %q: %w", key, err)
	}
	return nil
}
