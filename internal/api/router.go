package api

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Ibramadi75/SuperTube/internal/api/handlers"
	"github.com/Ibramadi75/SuperTube/internal/api/middleware"
	"github.com/Ibramadi75/SuperTube/internal/core/event"
	"github.com/Ibramadi75/SuperTube/internal/core/relay"
	"github.com/Ibramadi75/SuperTube/internal/core/subscription"
	"github.com/Ibramadi75/SuperTube/internal/store"
)

type RouterConfig struct {
	Store     *store.Store
	Canceller handlers.Canceller
	Active    handlers.ActiveCounter
	Subs      *subscription.Service
	Relay     *relay.Relay
	Bus       *event.Bus
	JWTSecret string
	JWTExpiry time.Duration
}

func SetupRouter(e *echo.Echo, cfg RouterConfig) {
	handlers.InitErrors()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	v1 := e.Group("/api/v1")
	config := huma.DefaultConfig("SuperTube API", "1.0.0")
	config.Servers = []*huma.Server{{URL: "/api/v1"}}
	config.Info.Description = "Self-hosted media download manager"
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"BearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "JWT Bearer token",
		},
	}

	api := humaecho.NewWithGroup(e, v1, config)

	authMw := middleware.Auth(cfg.JWTSecret)
	adminMw := middleware.AdminOnly()
	secured := []map[string][]string{{"BearerAuth": {}}}

	authHandler := handlers.NewAuthHandler(cfg.Store, cfg.JWTSecret, cfg.JWTExpiry)
	huma.Register(api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/auth/register",
		Summary:     "Register a new user",
		Tags:        []string{"Auth"},
	}, authHandler.Register)

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login and get JWT token",
		Tags:        []string{"Auth"},
	}, authHandler.Login)

	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Summary:     "Get current user info",
		Tags:        []string{"Auth"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, authHandler.Me)

	jobsHandler := handlers.NewJobsHandler(cfg.Store, cfg.Canceller, cfg.Bus)
	huma.Register(api, huma.Operation{
		OperationID:   "jobs-add",
		Method:        http.MethodPost,
		Path:          "/jobs",
		Summary:       "Enqueue a download",
		Tags:          []string{"Jobs"},
		Security:      secured,
		Middlewares:   huma.Middlewares{authMw},
		DefaultStatus: http.StatusCreated,
	}, jobsHandler.Add)

	huma.Register(api, huma.Operation{
		OperationID: "jobs-list",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List download jobs",
		Tags:        []string{"Jobs"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, jobsHandler.List)

	huma.Register(api, huma.Operation{
		OperationID: "jobs-get",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}",
		Summary:     "Get job status",
		Tags:        []string{"Jobs"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, jobsHandler.Get)

	huma.Register(api, huma.Operation{
		OperationID: "jobs-cancel",
		Method:      http.MethodDelete,
		Path:        "/jobs/{id}",
		Summary:     "Cancel a job",
		Tags:        []string{"Jobs"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, jobsHandler.Cancel)

	// Progress streaming bypasses huma: SSE needs direct control of the
	// response writer.
	v1.GET("/jobs/:id/events", progressEvents(cfg.Store, cfg.Relay), middleware.EchoAuth(cfg.JWTSecret))

	// Library file serving also bypasses huma, same as the SSE route.
	v1.GET("/videos/:id/stream", videoFile(cfg.Store, false), middleware.EchoAuth(cfg.JWTSecret))
	v1.GET("/videos/:id/thumbnail", videoFile(cfg.Store, true), middleware.EchoAuth(cfg.JWTSecret))

	videosHandler := handlers.NewVideosHandler(cfg.Store)
	huma.Register(api, huma.Operation{
		OperationID: "videos-list",
		Method:      http.MethodGet,
		Path:        "/videos",
		Summary:     "List library videos",
		Tags:        []string{"Videos"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, videosHandler.List)

	huma.Register(api, huma.Operation{
		OperationID: "videos-get",
		Method:      http.MethodGet,
		Path:        "/videos/{id}",
		Summary:     "Get a library video",
		Tags:        []string{"Videos"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, videosHandler.Get)

	huma.Register(api, huma.Operation{
		OperationID: "videos-delete",
		Method:      http.MethodDelete,
		Path:        "/videos/{id}",
		Summary:     "Delete a video and its files",
		Tags:        []string{"Videos"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, videosHandler.Delete)

	subsHandler := handlers.NewSubscriptionsHandler(cfg.Store, cfg.Subs)
	huma.Register(api, huma.Operation{
		OperationID:   "subscriptions-add",
		Method:        http.MethodPost,
		Path:          "/subscriptions",
		Summary:       "Subscribe to a channel",
		Tags:          []string{"Subscriptions"},
		Security:      secured,
		Middlewares:   huma.Middlewares{authMw},
		DefaultStatus: http.StatusCreated,
	}, subsHandler.Add)

	huma.Register(api, huma.Operation{
		OperationID: "subscriptions-list",
		Method:      http.MethodGet,
		Path:        "/subscriptions",
		Summary:     "List subscriptions",
		Tags:        []string{"Subscriptions"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, subsHandler.List)

	huma.Register(api, huma.Operation{
		OperationID: "subscriptions-get",
		Method:      http.MethodGet,
		Path:        "/subscriptions/{id}",
		Summary:     "Get a subscription",
		Tags:        []string{"Subscriptions"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, subsHandler.Get)

	huma.Register(api, huma.Operation{
		OperationID: "subscriptions-set-active",
		Method:      http.MethodPatch,
		Path:        "/subscriptions/{id}",
		Summary:     "Pause or resume a subscription",
		Tags:        []string{"Subscriptions"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, subsHandler.SetActive)

	huma.Register(api, huma.Operation{
		OperationID: "subscriptions-delete",
		Method:      http.MethodDelete,
		Path:        "/subscriptions/{id}",
		Summary:     "Delete a subscription",
		Tags:        []string{"Subscriptions"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, subsHandler.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "subscriptions-check",
		Method:      http.MethodPost,
		Path:        "/subscriptions/{id}/check",
		Summary:     "Check a subscription now",
		Tags:        []string{"Subscriptions"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, subsHandler.Check)

	huma.Register(api, huma.Operation{
		OperationID: "subscriptions-check-all",
		Method:      http.MethodPost,
		Path:        "/subscriptions/check",
		Summary:     "Check all subscriptions now",
		Tags:        []string{"Subscriptions"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, subsHandler.CheckAll)

	settingsHandler := handlers.NewSettingsHandler(cfg.Store)
	huma.Register(api, huma.Operation{
		OperationID: "settings-list",
		Method:      http.MethodGet,
		Path:        "/settings",
		Summary:     "List resolved settings",
		Tags:        []string{"Settings"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, settingsHandler.List)

	huma.Register(api, huma.Operation{
		OperationID: "settings-get",
		Method:      http.MethodGet,
		Path:        "/settings/{key}",
		Summary:     "Get a resolved setting",
		Tags:        []string{"Settings"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, settingsHandler.Get)

	huma.Register(api, huma.Operation{
		OperationID: "settings-update",
		Method:      http.MethodPatch,
		Path:        "/settings/{key}",
		Summary:     "Override a setting for the current user",
		Tags:        []string{"Settings"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, settingsHandler.Update)

	huma.Register(api, huma.Operation{
		OperationID: "admin-settings-update",
		Method:      http.MethodPatch,
		Path:        "/admin/settings/{key}",
		Summary:     "Update a global setting",
		Tags:        []string{"Admin"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw, adminMw},
	}, settingsHandler.UpdateGlobal)

	statsHandler := handlers.NewStatsHandler(cfg.Store, cfg.Active)
	huma.Register(api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Get download and library stats",
		Tags:        []string{"Stats"},
		Security:    secured,
		Middlewares: huma.Middlewares{authMw},
	}, statsHandler.Get)
}
