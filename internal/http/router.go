package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kycgate/internal/platform/metrics"
	"kycgate/internal/platform/middleware"
	"kycgate/pkg/platform/httputil"
)

const (
	defaultRequestTimeout = 30 * time.Second
	healthCheckTimeout    = 2 * time.Second
)

// RouteRegistrar is implemented by module handlers. Routes are registered
// relative to /api.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// HealthCheck is one readiness probe, for example a database ping.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Config holds the router's collaborators.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	RequestTimeout time.Duration
	HealthChecks   []HealthCheck
	Handlers       []RouteRegistrar
}

// NewRouter applies the shared middleware chain and mounts every module
// under /api alongside the health and metrics endpoints.
func NewRouter(cfg Config) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Latency(cfg.Metrics))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteFailure(w, http.StatusNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteFailure(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	r.Get("/", handleLiveness)
	r.Get("/healthz", readiness(cfg.Logger, cfg.HealthChecks))
	r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)

	r.Route("/api", func(r chi.Router) {
		for _, h := range cfg.Handlers {
			h.Register(r)
		}
	})
	return r
}

func handleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, "OK", map[string]string{"status": "ok"})
}

func readiness(logger *slog.Logger, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				healthy = false
				status[c.Name] = "down"
				logger.WarnContext(ctx, "readiness check failed",
					"check", c.Name,
					"request_id", middleware.GetRequestID(ctx),
					"error", err,
				)
				continue
			}
			status[c.Name] = "up"
		}

		if !healthy {
			httputil.WriteFailure(w, http.StatusServiceUnavailable, "Service unavailable", status)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, "OK", status)
	}
}
