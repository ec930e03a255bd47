package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/Ibramadi75/SuperTube/internal/app"
	"github.com/Ibramadi75/SuperTube/internal/config"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the server (API, worker pool and subscription poller)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection string",
				Sources: cli.EnvVars("ST_DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "engine-url",
				Usage:   "Downloader sidecar base URL",
				Sources: cli.EnvVars("ST_ENGINE_URL"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if v := cmd.String("database-url"); v != "" {
				cfg.Database.URL = v
			}
			if v := cmd.String("engine-url"); v != "" {
				cfg.Engine.URL = v
			}
			if v := cmd.String("log-level"); v != "" {
				cfg.Logging.Level = v
			}

			if cfg.Database.URL == "" {
				return fmt.Errorf("database URL is required (set ST_DATABASE_URL env or database.url in config)")
			}

			return app.Run(ctx, cfg)
		},
	}
}
