package app_test

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/artpar/intake/adapters/clock"
	"github.com/artpar/intake/adapters/idgen"
	"github.com/artpar/intake/app"
	"github.com/artpar/intake/core/schema"
	"github.com/artpar/intake/core/validation"
	"github.com/artpar/intake/domain/route"
	"github.com/rs/zerolog"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

func testDeps() app.Deps {
	return app.Deps{
		Clock:  clock.NewFake(baseTime),
		IDGen:  idgen.NewSequential("req-"),
		Logger: zerolog.Nop(),
	}
}

func testSchemas() []schema.Schema {
	return []schema.Schema{
		{
			Name: "user_create",
			Fields: map[string]schema.Field{
				"id":   {Kind: schema.KindInt, Required: boolPtr(true), Min: floatPtr(1)},
				"name": {Kind: schema.KindString, Default: "anon"},
			},
		},
		{
			Name: "user_search",
			Fields: map[string]schema.Field{
				"q":     {Kind: schema.KindString, Required: boolPtr(true), Source: schema.SourceQuery},
				"limit": {Kind: schema.KindInt, Default: 10, Source: schema.SourceQuery},
			},
		},
	}
}

func testRoutes() []route.Route {
	return []route.Route{
		route.New("POST", "/users").WithSchema("user_create"),
		route.New("GET", "/users").WithSchema("user_search"),
		route.New("GET", "/users/{id}").WithParamType("id", "int"),
		route.New("GET", "/health"),
	}
}

func newTestService(t *testing.T) *app.DispatchService {
	t.Helper()
	svc := app.NewDispatchService(testDeps(), app.Config{})
	if err := svc.Load(testRoutes(), testSchemas()); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return svc
}

func TestDispatchService_Dispatch_Success(t *testing.T) {
	svc := newTestService(t)

	res := svc.Dispatch(context.Background(), app.Request{
		Method: "POST",
		Path:   "/users",
		Body:   []byte(`{"id": 5}`),
	})

	if res.Status != 200 {
		t.Fatalf("status = %d, want 200", res.Status)
	}
	if res.RequestID != "req-1" {
		t.Errorf("requestID = %s, want req-1", res.RequestID)
	}
	if res.Route == nil || res.Route.ID != "POST /users" {
		t.Fatalf("route = %+v, want POST /users", res.Route)
	}

	out, ok := res.Output.(map[string]any)
	if !ok {
		t.Fatalf("output type = %T, want map", res.Output)
	}
	if out["route"] != "POST /users" {
		t.Errorf("echoed route = %v, want POST /users", out["route"])
	}
	params, ok := out["params"].(map[string]any)
	if !ok {
		t.Fatalf("echoed params type = %T, want map", out["params"])
	}
	if params["id"] != int64(5) {
		t.Errorf("id = %v (%T), want int64 5", params["id"], params["id"])
	}
	if params["name"] != "anon" {
		t.Errorf("name = %v, want default anon", params["name"])
	}
}

func TestDispatchService_Dispatch_QueryParams(t *testing.T) {
	svc := newTestService(t)

	res := svc.Dispatch(context.Background(), app.Request{
		Method: "GET",
		Path:   "/users",
		Query:  url.Values{"q": {"alice"}},
	})

	if res.Status != 200 {
		t.Fatalf("status = %d, want 200: %+v", res.Status, res)
	}
	params := res.Output.(map[string]any)["params"].(map[string]any)
	if params["q"] != "alice" {
		t.Errorf("q = %v, want alice", params["q"])
	}
	if params["limit"] != int64(10) {
		t.Errorf("limit = %v (%T), want default int64 10", params["limit"], params["limit"])
	}
}

func TestDispatchService_Dispatch_PathParams(t *testing.T) {
	svc := newTestService(t)

	res := svc.Dispatch(context.Background(), app.Request{
		Method: "GET",
		Path:   "/users/7",
	})

	if res.Status != 200 {
		t.Fatalf("status = %d, want 200: %+v", res.Status, res)
	}
	params := res.Output.(map[string]any)["params"].(map[string]any)
	if params["id"] != int64(7) {
		t.Errorf("id = %v (%T), want int64 7", params["id"], params["id"])
	}
}

func TestDispatchService_Dispatch_PathParamTypeMismatch(t *testing.T) {
	svc := newTestService(t)

	res := svc.Dispatch(context.Background(), app.Request{
		Method: "GET",
		Path:   "/users/abc",
	})

	if res.Status != 422 {
		t.Fatalf("status = %d, want 422", res.Status)
	}
	if res.Failure == nil || len(res.Failure.Errors) != 1 {
		t.Fatalf("failure = %+v, want one field error", res.Failure)
	}
	fe := res.Failure.Errors[0]
	if fe.Field != "id" || fe.Kind != validation.TypeMismatch {
		t.Errorf("error = %s/%s, want id/type_mismatch", fe.Field, fe.Kind)
	}
}

func TestDispatchService_Dispatch_ValidationFailure(t *testing.T) {
	svc := newTestService(t)

	res := svc.Dispatch(context.Background(), app.Request{
		Method: "POST",
		Path:   "/users",
		Body:   []byte(`{}`),
	})

	if res.Status != 422 {
		t.Fatalf("status = %d, want 422", res.Status)
	}
	if res.Output != nil {
		t.Error("output should be nil on validation failure")
	}
	if res.Failure == nil || len(res.Failure.Errors) != 1 {
		t.Fatalf("failure = %+v, want one field error", res.Failure)
	}
	fe := res.Failure.Errors[0]
	if fe.Field != "id" || fe.Kind != validation.Missing {
		t.Errorf("error = %s/%s, want id/missing", fe.Field, fe.Kind)
	}
	if res.Route == nil {
		t.Error("route should be set when matching succeeded")
	}
}

func TestDispatchService_Dispatch_NotFound(t *testing.T) {
	svc := newTestService(t)

	res := svc.Dispatch(context.Background(), app.Request{
		Method: "GET",
		Path:   "/nope",
	})

	if res.Status != 404 {
		t.Fatalf("status = %d, want 404", res.Status)
	}
	if res.Detail != "Not Found" {
		t.Errorf("detail = %q, want Not Found", res.Detail)
	}
	if res.Route != nil {
		t.Error("route should be nil when nothing matched")
	}
}

func TestDispatchService_Dispatch_MethodNotAllowed(t *testing.T) {
	svc := newTestService(t)

	res := svc.Dispatch(context.Background(), app.Request{
		Method: "DELETE",
		Path:   "/users",
	})

	if res.Status != 405 {
		t.Fatalf("status = %d, want 405", res.Status)
	}
	if res.Detail != "Method Not Allowed" {
		t.Errorf("detail = %q, want Method Not Allowed", res.Detail)
	}
	want := []string{"GET", "POST"}
	if len(res.Allowed) != len(want) {
		t.Fatalf("allowed = %v, want %v", res.Allowed, want)
	}
	for i := range want {
		if res.Allowed[i] != want[i] {
			t.Errorf("allowed[%d] = %s, want %s", i, res.Allowed[i], want[i])
		}
	}
}

func TestDispatchService_Dispatch_HandlerError(t *testing.T) {
	svc := app.NewDispatchService(testDeps(), app.Config{})
	err := svc.RegisterHandler("boom", app.HandlerFunc(func(ctx context.Context, inv app.Invocation) (any, error) {
		return nil, errors.New("backend exploded")
	}))
	if err != nil {
		t.Fatalf("RegisterHandler error: %v", err)
	}
	routes := []route.Route{route.New("GET", "/boom").WithHandler("boom")}
	if err := svc.Load(routes, nil); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	res := svc.Dispatch(context.Background(), app.Request{Method: "GET", Path: "/boom"})

	if res.Status != 500 {
		t.Fatalf("status = %d, want 500", res.Status)
	}
	if res.Detail != "Internal Server Error" {
		t.Errorf("detail = %q, want Internal Server Error", res.Detail)
	}
	if res.Output != nil {
		t.Error("handler output should be discarded on error")
	}
}

func TestDispatchService_Dispatch_NoDefinitions(t *testing.T) {
	svc := app.NewDispatchService(testDeps(), app.Config{})

	res := svc.Dispatch(context.Background(), app.Request{Method: "GET", Path: "/users"})

	if res.Status != 503 {
		t.Fatalf("status = %d, want 503", res.Status)
	}
	if res.Detail != "no definitions loaded" {
		t.Errorf("detail = %q, want no definitions loaded", res.Detail)
	}
}

func TestDispatchService_Dispatch_KeepsProvidedRequestID(t *testing.T) {
	svc := newTestService(t)

	res := svc.Dispatch(context.Background(), app.Request{
		ID:     "upstream-7",
		Method: "GET",
		Path:   "/health",
	})

	if res.RequestID != "upstream-7" {
		t.Errorf("requestID = %s, want upstream-7", res.RequestID)
	}
}

func TestDispatchService_Dispatch_HandlerReceivesInvocation(t *testing.T) {
	svc := app.NewDispatchService(testDeps(), app.Config{})

	var got app.Invocation
	err := svc.RegisterHandler("capture", app.HandlerFunc(func(ctx context.Context, inv app.Invocation) (any, error) {
		got = inv
		return "ok", nil
	}))
	if err != nil {
		t.Fatalf("RegisterHandler error: %v", err)
	}
	routes := []route.Route{
		route.New("GET", "/items/{sku}").WithHandler("capture"),
	}
	if err := svc.Load(routes, nil); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	res := svc.Dispatch(context.Background(), app.Request{
		Method: "GET",
		Path:   "/items/abc",
	})

	if res.Status != 200 {
		t.Fatalf("status = %d, want 200: %+v", res.Status, res)
	}
	if got.Route.ID != "GET /items/{sku}" {
		t.Errorf("invocation route = %s, want GET /items/{sku}", got.Route.ID)
	}
	if got.Params.String("sku") != "abc" {
		t.Errorf("sku = %v, want abc", got.Params.String("sku"))
	}
	if got.RequestID != "req-1" {
		t.Errorf("invocation requestID = %s, want req-1", got.RequestID)
	}
	if !got.ReceivedAt.Equal(baseTime) {
		t.Errorf("receivedAt = %v, want %v", got.ReceivedAt, baseTime)
	}
}

func TestDispatchService_RegisterHandler(t *testing.T) {
	svc := app.NewDispatchService(testDeps(), app.Config{})
	noop := app.HandlerFunc(func(context.Context, app.Invocation) (any, error) { return nil, nil })

	if err := svc.RegisterHandler("orders", noop); err != nil {
		t.Fatalf("RegisterHandler error: %v", err)
	}
	if err := svc.RegisterHandler("orders", noop); err == nil {
		t.Error("duplicate registration should fail")
	}
	if err := svc.RegisterHandler(app.EchoName, noop); err == nil {
		t.Error("echo is pre-registered, re-registration should fail")
	}
	if err := svc.RegisterHandler("", noop); err == nil {
		t.Error("empty name should fail")
	}
	if err := svc.RegisterHandler("broken", nil); err == nil {
		t.Error("nil handler should fail")
	}
}

func TestDispatchService_OnSwap(t *testing.T) {
	svc := app.NewDispatchService(testDeps(), app.Config{})

	var got *app.Snapshot
	svc.OnSwap(func(s *app.Snapshot) { got = s })

	if err := svc.Load(testRoutes(), testSchemas()); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if got == nil {
		t.Fatal("OnSwap callback not invoked")
	}
	if got.Table.Len() != 4 {
		t.Errorf("snapshot routes = %d, want 4", got.Table.Len())
	}
	if !got.BuiltAt.Equal(baseTime) {
		t.Errorf("builtAt = %v, want %v", got.BuiltAt, baseTime)
	}
	if got.Doc == nil {
		t.Error("snapshot should carry an OpenAPI document")
	}
}

const routesManifest = `
routes:
  - method: POST
    path: /users
    schema: user_create
  - id: user_get
    method: GET
    path: /users/{id}
    params:
      id: int
`

const userSchemaManifest = `
schema: user_create
fields:
  id:
    type: int
    required: true
    min: 1
  name:
    type: string
    default: anon
`

func writeManifests(t *testing.T) (routesPath, schemaDir string) {
	t.Helper()
	dir := t.TempDir()
	routesPath = filepath.Join(dir, "routes.yaml")
	schemaDir = filepath.Join(dir, "schemas")
	if err := os.MkdirAll(schemaDir, 0755); err != nil {
		t.Fatalf("mkdir schemas: %v", err)
	}
	if err := os.WriteFile(routesPath, []byte(routesManifest), 0644); err != nil {
		t.Fatalf("write routes manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(schemaDir, "user_create.yaml"), []byte(userSchemaManifest), 0644); err != nil {
		t.Fatalf("write schema manifest: %v", err)
	}
	return routesPath, schemaDir
}

func TestDispatchService_Reload_FromManifests(t *testing.T) {
	routesPath, schemaDir := writeManifests(t)
	svc := app.NewDispatchService(testDeps(), app.Config{
		RoutesFile: routesPath,
		SchemaDir:  schemaDir,
	})

	if err := svc.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	snap := svc.Snapshot()
	if snap == nil {
		t.Fatal("no snapshot after reload")
	}
	if snap.Table.Len() != 2 {
		t.Errorf("routes = %d, want 2", snap.Table.Len())
	}

	res := svc.Dispatch(context.Background(), app.Request{Method: "GET", Path: "/users/42"})
	if res.Status != 200 {
		t.Fatalf("status = %d, want 200: %+v", res.Status, res)
	}
	if res.Route.ID != "user_get" {
		t.Errorf("route id = %s, want user_get", res.Route.ID)
	}
}

func TestDispatchService_Reload_FailureKeepsSnapshot(t *testing.T) {
	routesPath, schemaDir := writeManifests(t)
	svc := app.NewDispatchService(testDeps(), app.Config{
		RoutesFile: routesPath,
		SchemaDir:  schemaDir,
	})
	if err := svc.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	var reloadErrs []error
	svc.OnReloadError(func(err error) { reloadErrs = append(reloadErrs, err) })

	if err := os.WriteFile(routesPath, []byte("routes: []\n"), 0644); err != nil {
		t.Fatalf("write broken manifest: %v", err)
	}
	if err := svc.Reload(); err == nil {
		t.Fatal("Reload should fail for a manifest with no routes")
	}
	if len(reloadErrs) != 1 {
		t.Errorf("reload error callbacks = %d, want 1", len(reloadErrs))
	}

	// Old snapshot still serves.
	res := svc.Dispatch(context.Background(), app.Request{Method: "GET", Path: "/users/42"})
	if res.Status != 200 {
		t.Errorf("status after failed reload = %d, want 200", res.Status)
	}
}

func TestDispatchService_WatchManifests(t *testing.T) {
	routesPath, schemaDir := writeManifests(t)
	svc := app.NewDispatchService(testDeps(), app.Config{
		RoutesFile: routesPath,
		SchemaDir:  schemaDir,
	})
	if err := svc.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	defer svc.Stop()

	var mu sync.Mutex
	var swaps int
	svc.OnSwap(func(*app.Snapshot) {
		mu.Lock()
		swaps++
		mu.Unlock()
	})

	if err := svc.WatchManifests(); err != nil {
		t.Fatalf("WatchManifests error: %v", err)
	}

	updated := routesManifest + "  - method: GET\n    path: /health\n"
	if err := os.WriteFile(routesPath, []byte(updated), 0644); err != nil {
		t.Fatalf("write updated manifest: %v", err)
	}

	// Wait for the file watcher to trigger
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	if swaps == 0 {
		t.Error("file watcher did not trigger reload")
	}
	mu.Unlock()

	if n := svc.Snapshot().Table.Len(); n != 3 {
		t.Errorf("routes after watch reload = %d, want 3", n)
	}
}
