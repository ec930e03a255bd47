// Package app wires together the store, downloader client, worker pool,
// subscription poller and HTTP API into one running server process.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ibramadi75/SuperTube/internal/api"
	"github.com/Ibramadi75/SuperTube/internal/config"
	"github.com/Ibramadi75/SuperTube/internal/core/cancel"
	"github.com/Ibramadi75/SuperTube/internal/core/engine"
	"github.com/Ibramadi75/SuperTube/internal/core/event"
	"github.com/Ibramadi75/SuperTube/internal/core/relay"
	"github.com/Ibramadi75/SuperTube/internal/core/subscription"
	"github.com/Ibramadi75/SuperTube/internal/core/worker"
	"github.com/Ibramadi75/SuperTube/internal/database"
	"github.com/Ibramadi75/SuperTube/internal/notify"
	"github.com/Ibramadi75/SuperTube/internal/store"
)

// jwtSecretKey is the settings row used to persist an auto-generated
// secret across restarts.
const jwtSecretKey = "auth.jwtSecret"

// engineAdapter narrows *engine.Client's concrete stream type to the
// interface the worker pool consumes.
type engineAdapter struct {
	*engine.Client
}

func (a engineAdapter) StreamProgress(ctx context.Context, externalID string) (worker.ProgressSource, error) {
	stream, err := a.Client.StreamProgress(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func Run(ctx context.Context, cfg *config.Config) error {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Debug().Str("level", cfg.Logging.Level).Msg("log level configured")

	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("database connect: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	st := store.New(pool)

	jwtSecret, err := ensureJWTSecret(ctx, st, cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("jwt secret: %w", err)
	}
	adminPassword, err := ensureAdmin(ctx, st, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
	if err != nil {
		return fmt.Errorf("admin setup: %w", err)
	}

	// Background routines stop when runCtx is cancelled; the registry
	// derives every per-job context from it too.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	bus := event.NewBus()
	registry := cancel.New(runCtx)

	engineClient := engine.NewClient(cfg.Engine.URL, config.Duration(cfg.Engine.RequestTimeout, 30*time.Second))
	eng := engineAdapter{engineClient}

	subs := subscription.NewService(st, engineClient)

	workers := worker.NewPool(st, eng, st, registry, bus, subs, worker.Config{
		MaxConcurrent: cfg.Worker.MaxConcurrent,
		PollInterval:  config.Duration(cfg.Worker.PollInterval, 2*time.Second),
	})

	notifier := notify.NewDispatcher(st, cfg.Notify.Server)
	notifier.Attach(bus)

	rel := relay.New(st, config.Duration(cfg.Relay.TickInterval, 500*time.Millisecond))
	poller := subscription.NewPoller(subs, st)

	jwtExpiry, err := time.ParseDuration(cfg.Auth.JWTExpiry)
	if err != nil {
		jwtExpiry = 24 * time.Hour
	}

	e := echo.New()
	e.HideBanner = true

	api.SetupRouter(e, api.RouterConfig{
		Store:     st,
		Canceller: workers,
		Active:    registry,
		Subs:      subs,
		Relay:     rel,
		Bus:       bus,
		JWTSecret: jwtSecret,
		JWTExpiry: jwtExpiry,
	})

	go workers.Run(runCtx)
	go poller.Run(runCtx)

	printBanner(cfg, adminPassword)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down...")
	stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	return nil
}

// ensureJWTSecret returns the configured secret, or generates one on
// first boot and persists it so tokens survive restarts.
func ensureJWTSecret(ctx context.Context, st *store.Store, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	values, err := st.GlobalSettings(ctx)
	if err != nil {
		return "", err
	}
	if secret := values[jwtSecretKey]; secret != "" {
		return secret, nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(b)
	if err := st.UpsertSetting(ctx, nil, jwtSecretKey, secret); err != nil {
		return "", err
	}
	return secret, nil
}

// ensureAdmin creates the bootstrap admin account on an empty database.
// Returns the generated password, or "" when nothing was created.
func ensureAdmin(ctx context.Context, st *store.Store, username, password string) (string, error) {
	count, err := st.CountUsers(ctx)
	if err != nil {
		return "", err
	}
	if count > 0 {
		return "", nil
	}

	if password == "" {
		b := make([]byte, 8)
		rand.Read(b)
		password = hex.EncodeToString(b)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", err
	}

	if err := st.CreateUser(ctx, &store.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         "admin",
	}); err != nil {
		return "", err
	}
	return password, nil
}

func printBanner(cfg *config.Config, adminPassword string) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println("  SuperTube started")
	fmt.Println()
	if adminPassword != "" {
		fmt.Println("  Admin credentials (save these, shown only once):")
		fmt.Printf("    Username: %s\n", cfg.Auth.AdminUsername)
		fmt.Printf("    Password: %s\n", adminPassword)
		fmt.Println()
	}
	fmt.Printf("  HTTP:       http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Downloader: %s\n", cfg.Engine.URL)
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println()
}
