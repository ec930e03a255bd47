package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"server.host": "0.0.0.0",
		"server.port": 8080,

		"engine.url":             "http://localhost:8000",
		"engine.request_timeout": "30s",

		"worker.max_concurrent": 3,
		"worker.poll_interval":  "2s",

		"relay.tick_interval": "500ms",

		"notify.server": "https://ntfy.sh",

		"auth.jwt_expiry":     "24h",
		"auth.admin_username": "admin",

		"logging.level":  "info",
		"logging.format": "pretty",
	}

	for key, val := range defaults {
		k.Set(key, val)
	}
	return nil
}
