package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/toolgrid/quotad/internal/database"
	mw "github.com/toolgrid/quotad/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Metadata
	GetMetadata http.HandlerFunc

	// Quota resolution and upsert
	ListGlobalQuotas   http.HandlerFunc
	UpsertGlobalQuotas http.HandlerFunc
	ListCourseQuotas   http.HandlerFunc
	UpsertCourseQuotas http.HandlerFunc
	ListCourseMembers  http.HandlerFunc
	GetCourseMember    http.HandlerFunc
	UpsertCourseMember http.HandlerFunc

	// Tool launch
	AccessTool http.HandlerFunc

	// Middleware
	APIKeyMiddleware  func(http.Handler) http.Handler
	LaunchRateLimiter func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
}

func NewRouter(pool *pgxpool.Pool, redisClient *redis.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe, always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe checks DB and redis
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"redis":    "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if redisClient == nil {
			health["redis"] = "not configured"
		} else if err := redisClient.Ping(r.Context()).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Tool launch (public, launch-token authenticated)
	r.Group(func(r chi.Router) {
		if h.LaunchRateLimiter != nil {
			r.Use(h.LaunchRateLimiter)
		}
		r.Post("/", h.AccessTool)
		r.Post("/access-tool", h.AccessTool)
	})

	// Administrative routes (API key)
	r.Group(func(r chi.Router) {
		r.Use(h.APIKeyMiddleware)

		r.Get("/metadata", h.GetMetadata)

		r.Route("/quota", func(r chi.Router) {
			r.Get("/", h.ListGlobalQuotas)
			r.Put("/", h.UpsertGlobalQuotas)

			r.Route("/course/{courseID}", func(r chi.Router) {
				r.Get("/", h.ListCourseQuotas)
				r.Put("/", h.UpsertCourseQuotas)

				r.Route("/user", func(r chi.Router) {
					r.Get("/", h.ListCourseMembers)
					r.Get("/{userID}", h.GetCourseMember)
					r.Put("/{userID}", h.UpsertCourseMember)
				})
			})
		})
	})

	return r
}
