package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/artpar/intake/adapters/clock"
	apihttp "github.com/artpar/intake/adapters/http"
	"github.com/artpar/intake/adapters/idgen"
	"github.com/artpar/intake/adapters/metrics"
	"github.com/artpar/intake/app"
	"github.com/artpar/intake/core/schema"
	"github.com/artpar/intake/domain/route"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

func testSchemas() []schema.Schema {
	return []schema.Schema{
		{
			Name: "user_create",
			Fields: map[string]schema.Field{
				"id":   {Kind: schema.KindInt, Required: boolPtr(true), Min: floatPtr(1)},
				"name": {Kind: schema.KindString, Default: "anon"},
			},
		},
	}
}

func testRoutes() []route.Route {
	return []route.Route{
		route.New("POST", "/users").WithSchema("user_create"),
		route.New("GET", "/users/{id}").WithParamType("id", "int"),
		route.New("GET", "/health"),
	}
}

func newTestService(t *testing.T) *app.DispatchService {
	t.Helper()
	svc := app.NewDispatchService(app.Deps{
		Clock:  clock.NewFake(baseTime),
		IDGen:  idgen.NewSequential("req-"),
		Logger: zerolog.Nop(),
	}, app.Config{})
	if err := svc.Load(testRoutes(), testSchemas()); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return svc
}

func newTestHandler(t *testing.T) *apihttp.DispatchHandler {
	t.Helper()
	return apihttp.NewDispatchHandler(newTestService(t), zerolog.Nop())
}

func TestDispatchHandler_Success(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("POST", "/users", strings.NewReader(`{"id": 5}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := rec.Result()
	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 200, body: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %s, want application/json", ct)
	}
	if id := resp.Header.Get("X-Request-ID"); id != "req-1" {
		t.Errorf("X-Request-ID = %s, want req-1", id)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["route"] != "POST /users" {
		t.Errorf("route = %v, want POST /users", body["route"])
	}
	params, ok := body["params"].(map[string]any)
	if !ok {
		t.Fatalf("params type = %T, want object", body["params"])
	}
	// JSON numbers decode as float64.
	if params["id"] != float64(5) {
		t.Errorf("id = %v, want 5", params["id"])
	}
	if params["name"] != "anon" {
		t.Errorf("name = %v, want default anon", params["name"])
	}
}

func TestDispatchHandler_ValidationError(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("POST", "/users", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := rec.Result()
	if resp.StatusCode != 422 {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}

	var body struct {
		Errors []struct {
			Field   string `json:"field"`
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(body.Errors))
	}
	fe := body.Errors[0]
	if fe.Field != "id" || fe.Kind != "missing" {
		t.Errorf("error = %s/%s, want id/missing", fe.Field, fe.Kind)
	}
	if fe.Message == "" {
		t.Error("error message should not be empty")
	}
}

func TestDispatchHandler_NotFound(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/nope", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := rec.Result()
	if resp.StatusCode != 404 {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["detail"] != "Not Found" {
		t.Errorf("detail = %q, want Not Found", body["detail"])
	}
}

func TestDispatchHandler_MethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("DELETE", "/users", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := rec.Result()
	if resp.StatusCode != 405 {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow != "POST" {
		t.Errorf("Allow = %q, want POST", allow)
	}

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["detail"] != "Method Not Allowed" {
		t.Errorf("detail = %q, want Method Not Allowed", body["detail"])
	}
}

func TestDispatchHandler_KeepsInboundRequestID(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/users/7", nil)
	req.Header.Set("X-Request-ID", "upstream-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if id := rec.Header().Get("X-Request-ID"); id != "upstream-42" {
		t.Errorf("X-Request-ID = %s, want upstream-42", id)
	}
}

func TestDispatchHandler_BodyTooLarge(t *testing.T) {
	handler := newTestHandler(t)
	handler.SetMaxBodyBytes(16)

	big := `{"id": 5, "name": "` + strings.Repeat("x", 64) + `"}`
	req := httptest.NewRequest("POST", "/users", strings.NewReader(big))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := rec.Result()
	if resp.StatusCode != 413 {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["detail"] != "Request Entity Too Large" {
		t.Errorf("detail = %q, want Request Entity Too Large", body["detail"])
	}
}

func TestDispatchHandler_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	handler := apihttp.NewDispatchHandlerWithMetrics(newTestService(t), zerolog.Nop(), m)

	// One success, one match failure, one validation failure.
	for _, r := range []*http.Request{
		httptest.NewRequest("POST", "/users", strings.NewReader(`{"id": 5}`)),
		httptest.NewRequest("GET", "/nope", nil),
		httptest.NewRequest("POST", "/users", strings.NewReader(`{}`)),
	} {
		handler.ServeHTTP(httptest.NewRecorder(), r)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	got := make(map[string]bool, len(families))
	for _, f := range families {
		got[f.GetName()] = true
	}
	for _, name := range []string{
		"intake_requests_total",
		"intake_request_duration_seconds",
		"intake_match_failures_total",
		"intake_validation_failures_total",
	} {
		if !got[name] {
			t.Errorf("metric %s was not recorded", name)
		}
	}
}

func TestHealthHandler(t *testing.T) {
	svc := app.NewDispatchService(app.Deps{
		Clock:  clock.NewFake(baseTime),
		IDGen:  idgen.NewSequential("req-"),
		Logger: zerolog.Nop(),
	}, app.Config{})
	health := apihttp.NewHealthHandler(svc)

	// Liveness is unconditional.
	rec := httptest.NewRecorder()
	health.Liveness(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != 200 {
		t.Errorf("liveness status = %d, want 200", rec.Code)
	}

	// Readiness fails before definitions load.
	rec = httptest.NewRecorder()
	health.Readiness(rec, httptest.NewRequest("GET", "/health/ready", nil))
	if rec.Code != 503 {
		t.Errorf("readiness status = %d, want 503 before load", rec.Code)
	}

	if err := svc.Load(testRoutes(), testSchemas()); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	rec = httptest.NewRecorder()
	health.Readiness(rec, httptest.NewRequest("GET", "/health/ready", nil))
	if rec.Code != 200 {
		t.Errorf("readiness status = %d, want 200 after load", rec.Code)
	}
	var body map[string]any
	json.NewDecoder(rec.Body).Decode(&body)
	if body["routes"] != float64(3) {
		t.Errorf("routes = %v, want 3", body["routes"])
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	apihttp.NewVersionHandler("1.2.3")(rec, httptest.NewRequest("GET", "/version", nil))

	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["version"] != "1.2.3" {
		t.Errorf("version = %s, want 1.2.3", body["version"])
	}
	if body["service"] != "intake" {
		t.Errorf("service = %s, want intake", body["service"])
	}

	rec = httptest.NewRecorder()
	apihttp.NewVersionHandler("")(rec, httptest.NewRequest("GET", "/version", nil))
	json.NewDecoder(rec.Body).Decode(&body)
	if body["version"] != "dev" {
		t.Errorf("default version = %s, want dev", body["version"])
	}
}
