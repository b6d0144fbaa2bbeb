package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/toolgrid/quotad/internal/api"
	"github.com/toolgrid/quotad/internal/auth"
	"github.com/toolgrid/quotad/internal/config"
	"github.com/toolgrid/quotad/internal/database"
	"github.com/toolgrid/quotad/internal/launch"
	"github.com/toolgrid/quotad/internal/metadata"
	"github.com/toolgrid/quotad/internal/middleware"
	"github.com/toolgrid/quotad/internal/quota"
	iredis "github.com/toolgrid/quotad/internal/redis"
	"github.com/toolgrid/quotad/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("validating config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if path := os.Getenv("MIGRATIONS_PATH"); path != "" {
		if err := database.RunMigrations(cfg.DB.DSN(), path); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Quota core
	store := quota.NewPostgresStore(pool)
	resolver := quota.NewResolver(store)
	engine := quota.NewEngine(store)
	quotaHandler := quota.NewHandler(resolver, engine)

	// Metadata
	publisher := metadata.NewPublisher(cfg.Tool.BaseURL, store)
	metadataHandler := metadata.NewHandler(publisher)

	// Tool launch
	verifier := launch.NewVerifier(cfg.Launch.Secret, cfg.Launch.MaxLifetime)
	replay := launch.NewReplayGuard(redisClient, cfg.Launch.MaxLifetime)
	launchHandler := launch.NewHandler(verifier, replay)
	launchLimiter := middleware.NewRateLimiter(redisClient, cfg.Launch.RateLimitMax, cfg.Launch.RateLimitWindow)

	// Router
	router := api.NewRouter(pool, redisClient,
		api.RouterConfig{CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins},
		api.HandlerSet{
			GetMetadata: metadataHandler.Get,

			ListGlobalQuotas:   quotaHandler.ListGlobal,
			UpsertGlobalQuotas: quotaHandler.UpsertGlobal,
			ListCourseQuotas:   quotaHandler.ListCourse,
			UpsertCourseQuotas: quotaHandler.UpsertCourse,
			ListCourseMembers:  quotaHandler.ListCourseMembers,
			GetCourseMember:    quotaHandler.GetCourseMember,
			UpsertCourseMember: quotaHandler.UpsertCourseMember,

			AccessTool: launchHandler.Access,

			APIKeyMiddleware:  auth.APIKey(cfg.Auth.APIKey),
			LaunchRateLimiter: launchLimiter.Middleware,
		})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
