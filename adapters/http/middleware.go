package http

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/artpar/intake/adapters/metrics"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", ww.Header().Get("X-Request-ID")).
				Msg("http request")
		})
	}
}

// staleClientAfter is how long an idle client keeps its token bucket.
const staleClientAfter = 3 * time.Minute

// defaultMaxClients bounds the per-client bucket map.
const defaultMaxClients = 10000

// RateLimiter applies a per-client token bucket to dispatched requests.
// Operational endpoints are exempt. Idle buckets are pruned once the map
// fills up, so one bucket per live client is the steady state.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*rateLimitClient
	limit   rate.Limit
	burst   int
	max     int
	metrics *metrics.Collector
}

type rateLimitClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second with
// the given burst, per client IP.
func NewRateLimiter(rps float64, burst int, m *metrics.Collector) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		clients: make(map[string]*rateLimitClient),
		limit:   rate.Limit(rps),
		burst:   burst,
		max:     defaultMaxClients,
		metrics: m,
	}
}

// Middleware rejects clients over their budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isOperational(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.allow(clientIP(r)) {
			if rl.metrics != nil {
				rl.metrics.RateLimited.Inc()
			}
			w.Header().Set("Retry-After", "1")
			writeDetail(w, http.StatusTooManyRequests, "Too Many Requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	c, ok := rl.clients[key]
	if !ok {
		if len(rl.clients) >= rl.max {
			rl.prune(now)
		}
		c = &rateLimitClient{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.Allow()
}

// prune drops buckets idle past staleClientAfter. Called with mu held.
func (rl *RateLimiter) prune(now time.Time) {
	for k, c := range rl.clients {
		if now.Sub(c.lastSeen) > staleClientAfter {
			delete(rl.clients, k)
		}
	}
}

// isOperational reports whether a path belongs to the service itself
// rather than the route table.
func isOperational(path string) bool {
	return strings.HasPrefix(path, "/health") ||
		path == "/metrics" ||
		path == "/version" ||
		path == "/openapi.json" ||
		strings.HasPrefix(path, "/docs")
}

// clientIP extracts the client IP. The RealIP middleware has already
// folded X-Forwarded-For and X-Real-IP into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
