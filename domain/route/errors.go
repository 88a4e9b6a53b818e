package route

import (
	"fmt"
	"strings"
)

// PatternError reports a malformed path pattern at registration time.
type PatternError struct {
	Pattern string
	Reason  string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid route pattern %q: %s", e.Pattern, e.Reason)
}

// DuplicateRouteError reports a registration that collides with an existing
// route. Identity is structural: two patterns collide when they differ only
// in parameter names.
type DuplicateRouteError struct {
	Method   string
	Pattern  string
	Existing string // pattern of the route already registered
}

func (e *DuplicateRouteError) Error() string {
	if e.Existing != "" && e.Existing != e.Pattern {
		return fmt.Sprintf("duplicate route %s %s: same shape as %s", e.Method, e.Pattern, e.Existing)
	}
	return fmt.Sprintf("duplicate route %s %s", e.Method, e.Pattern)
}

// NotFoundError reports that no registered pattern matches a request path.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no route matches path %s", e.Path)
}

// MethodNotAllowedError reports that at least one pattern matches the
// request path, but none under the request method. Allowed lists the
// methods that would have matched, sorted.
type MethodNotAllowedError struct {
	Method  string
	Path    string
	Allowed []string
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("method %s not allowed for path %s (allowed: %s)",
		e.Method, e.Path, strings.Join(e.Allowed, ", "))
}
