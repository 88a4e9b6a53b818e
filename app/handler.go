package app

import (
	"context"
	"net/http"
	"time"

	"github.com/artpar/intake/domain/route"
)

// Invocation carries one validated request into a handler.
type Invocation struct {
	Route      route.Route
	Params     Params
	Header     http.Header
	RequestID  string
	ReceivedAt time.Time
}

// Handler consumes a validated parameter bundle. Implementations are
// registered on the service by name and referenced from route manifests;
// whatever a handler returns is encoded as the response body.
type Handler interface {
	Handle(ctx context.Context, inv Invocation) (any, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, inv Invocation) (any, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, inv Invocation) (any, error) {
	return f(ctx, inv)
}

// EchoName is the handler routes fall back to when their manifest names
// none.
const EchoName = "echo"

// Echo returns the validated parameter bundle back to the caller, letting
// a manifest-only deployment exercise the full pipeline without business
// handlers.
func Echo() Handler {
	return HandlerFunc(func(_ context.Context, inv Invocation) (any, error) {
		return map[string]any{
			"route":  inv.Route.ID,
			"params": map[string]any(inv.Params),
		}, nil
	})
}
