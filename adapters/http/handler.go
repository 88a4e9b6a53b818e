// Package http provides the HTTP surface for the dispatch service.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/artpar/intake/adapters/metrics"
	"github.com/artpar/intake/app"
	"github.com/rs/zerolog"
)

// detailBody is the wire shape of match, transport and internal failures.
// Validation failures use the field-error envelope instead.
type detailBody struct {
	Detail string `json:"detail"`
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// defaultMaxBodyBytes caps request bodies when no limit is configured.
const defaultMaxBodyBytes = 10 << 20 // 10MB

// DispatchHandler adapts the dispatch service to HTTP. It owns the request
// body cap, the wire envelopes, and per-request logging and metrics.
type DispatchHandler struct {
	service *app.DispatchService
	logger  zerolog.Logger
	metrics *metrics.Collector
	maxBody int64
}

// NewDispatchHandler creates an HTTP handler around the dispatch service.
func NewDispatchHandler(service *app.DispatchService, logger zerolog.Logger) *DispatchHandler {
	return &DispatchHandler{
		service: service,
		logger:  logger,
		maxBody: defaultMaxBodyBytes,
	}
}

// NewDispatchHandlerWithMetrics creates an HTTP handler that also records
// request metrics.
func NewDispatchHandlerWithMetrics(service *app.DispatchService, logger zerolog.Logger, m *metrics.Collector) *DispatchHandler {
	h := NewDispatchHandler(service, logger)
	h.metrics = m
	return h
}

// SetMaxBodyBytes caps how many request body bytes are read. Values under
// one keep the current cap.
func (h *DispatchHandler) SetMaxBodyBytes(n int64) {
	if n > 0 {
		h.maxBody = n
	}
}

// ServeHTTP runs one request through match, validate and handle, then
// writes the outcome. Responses are always JSON: handler output on 200,
// the field-error envelope on 422, the detail envelope otherwise.
func (h *DispatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.metrics != nil {
		h.metrics.RequestsInFlight.Inc()
		defer h.metrics.RequestsInFlight.Dec()
	}

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeDetail(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large")
				return
			}
			h.logger.Error().Err(err).Msg("failed to read request body")
			writeDetail(w, http.StatusBadRequest, "Failed to read request body")
			return
		}
	}

	req := app.Request{
		ID:     r.Header.Get("X-Request-ID"),
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header,
		Body:   body,
	}

	res := h.service.Dispatch(r.Context(), req)

	h.writeResult(w, res)
	h.logRequest(r, res, time.Since(start))
}

// writeResult maps a dispatch result onto the wire. The request ID always
// travels back in X-Request-ID; 405 carries the Allow header.
func (h *DispatchHandler) writeResult(w http.ResponseWriter, res app.Result) {
	if res.RequestID != "" {
		w.Header().Set("X-Request-ID", res.RequestID)
	}

	switch {
	case res.Failure != nil:
		h.encode(w, res.Status, res.Failure)
	case res.Detail != "":
		if len(res.Allowed) > 0 {
			w.Header().Set("Allow", strings.Join(res.Allowed, ", "))
		}
		h.encode(w, res.Status, detailBody{Detail: res.Detail})
	default:
		h.encode(w, res.Status, res.Output)
	}
}

func (h *DispatchHandler) encode(w http.ResponseWriter, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		h.logger.Error().Err(err).Msg("failed to write response body")
	}
}

// logRequest logs one dispatched request and records its metrics. Route
// labels carry the matched pattern, never the raw path.
func (h *DispatchHandler) logRequest(r *http.Request, res app.Result, elapsed time.Duration) {
	routeLabel := "unmatched"
	routeID := ""
	if res.Route != nil {
		routeLabel = res.Route.Pattern
		routeID = res.Route.ID
	}

	if h.metrics != nil {
		status := statusLabel(res.Status)
		h.metrics.RequestsTotal.WithLabelValues(r.Method, routeLabel, status).Inc()
		h.metrics.RequestDuration.WithLabelValues(r.Method, routeLabel, status).Observe(elapsed.Seconds())

		switch res.Status {
		case http.StatusNotFound:
			h.metrics.MatchFailures.WithLabelValues("not_found").Inc()
		case http.StatusMethodNotAllowed:
			h.metrics.MatchFailures.WithLabelValues("method_not_allowed").Inc()
		case http.StatusUnprocessableEntity:
			if res.Failure != nil {
				for _, fe := range res.Failure.Errors {
					h.metrics.ValidationFailures.WithLabelValues(routeLabel, string(fe.Kind)).Inc()
				}
			}
		}
	}

	event := h.logger.Info()
	switch {
	case res.Status >= 500:
		event = h.logger.Error()
	case res.Status >= 400:
		event = h.logger.Warn()
	}

	event.
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("route", routeID).
		Int("status", res.Status).
		Dur("duration", elapsed).
		Str("request_id", res.RequestID).
		Msg("dispatch request")
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	service *app.DispatchService
}

// NewHealthHandler creates a health handler backed by the dispatch service.
func NewHealthHandler(service *app.DispatchService) *HealthHandler {
	return &HealthHandler{service: service}
}

// Liveness returns a simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness reports whether definitions are loaded and dispatch can serve.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  "no definitions loaded",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"routes": snap.Table.Len(),
	})
}

// NewVersionHandler returns the version endpoint.
func NewVersionHandler(version string) http.HandlerFunc {
	if version == "" {
		version = "dev"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, VersionResponse{
			Version: version,
			Service: "intake",
		})
	}
}

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// writeDetail writes the detail envelope.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailBody{Detail: detail})
}

// statusLabel returns the class label used for metric status dimensions.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
