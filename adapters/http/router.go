package http

import (
	"net/http"
	"time"

	"github.com/artpar/intake/adapters/metrics"
	"github.com/artpar/intake/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics        *metrics.Collector
	MetricsHandler http.Handler // overrides the default promhttp handler for /metrics
	EnableDocs     bool         // serve /openapi.json and the /docs UI
	RateLimiter    *RateLimiter // per-client rate limiting for dispatched requests
	RequestTimeout time.Duration
	Version        string
}

// NewRouter creates the main HTTP router.
func NewRouter(dispatch *DispatchHandler, health *HealthHandler, logger zerolog.Logger) chi.Router {
	return NewRouterWithConfig(dispatch, health, logger, RouterConfig{})
}

// NewRouterWithConfig creates the main HTTP router with optional config.
//
// The operational endpoints (/health*, /version, /metrics, /openapi.json,
// /docs) are reserved: a manifest route on the same method and path is
// shadowed. Every other request, including other methods on those paths,
// goes to the route table.
func NewRouterWithConfig(dispatch *DispatchHandler, health *HealthHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}

	// Health endpoints
	r.Get("/health", health.Liveness)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Metrics endpoint (prefer explicit handler, fall back to promhttp)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	} else if cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Version endpoint
	r.Get("/version", NewVersionHandler(cfg.Version))

	// OpenAPI document and interactive docs (if enabled)
	if cfg.EnableDocs {
		r.Get("/openapi.json", NewOpenAPIHandler(dispatch.service))
		r.Get("/docs/*", httpSwagger.Handler(
			httpSwagger.URL("/openapi.json"),
		))
	}

	// Everything else belongs to the route table, including methods the
	// operational endpoints above do not claim.
	r.NotFound(dispatch.ServeHTTP)
	r.MethodNotAllowed(dispatch.ServeHTTP)

	return r
}

// NewOpenAPIHandler serves the active snapshot's OpenAPI document.
func NewOpenAPIHandler(service *app.DispatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := service.Snapshot()
		if snap == nil || snap.Doc == nil {
			writeDetail(w, http.StatusServiceUnavailable, "no definitions loaded")
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		writeJSON(w, http.StatusOK, snap.Doc)
	}
}
