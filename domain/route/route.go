// Package route provides the typed route table: immutable route values, a
// builder that rejects duplicate registrations, and a compiled table for
// concurrent request matching.
//
// Match ranks candidate patterns by their number of literal segments, most
// specific first: /users/me is tried before /users/{id}. Patterns with
// equally many literal segments are tried in registration order, so of two
// equally specific routes the one registered first wins.
package route

import (
	"strconv"
	"strings"
)

// Route describes one dispatchable endpoint (immutable value type).
// Routes are declared in manifests and compiled into a Table for matching.
type Route struct {
	ID          string // stable identifier; defaults to "METHOD pattern"
	Method      string // canonical upper-case HTTP method
	Pattern     string // path pattern, e.g. /download/{hash}
	Schema      string // request schema name; empty = path params only
	Handler     string // handler identifier, resolved when a snapshot is built
	Description string

	// ParamTypes maps a path parameter name to its primitive kind
	// ("string", "int", "float", "bool"). Parameters not listed here
	// are treated as strings. Kind names are checked when the route is
	// compiled into a dispatch snapshot, not at registration.
	ParamTypes map[string]string
}

// New creates a Route with the method canonicalized and a default ID.
func New(method, pattern string) Route {
	method = CanonicalMethod(method)
	return Route{
		ID:      method + " " + pattern,
		Method:  method,
		Pattern: pattern,
	}
}

// CanonicalMethod normalizes an HTTP method token for matching.
func CanonicalMethod(method string) string {
	return strings.ToUpper(strings.TrimSpace(method))
}

// WithID returns a copy of the route with the given identifier.
func (r Route) WithID(id string) Route {
	r.ID = id
	return r
}

// WithSchema returns a copy of the route referencing the named request schema.
func (r Route) WithSchema(name string) Route {
	r.Schema = name
	return r
}

// WithHandler returns a copy of the route bound to the named handler.
func (r Route) WithHandler(name string) Route {
	r.Handler = name
	return r
}

// WithDescription returns a copy of the route with the given description.
func (r Route) WithDescription(d string) Route {
	r.Description = d
	return r
}

// WithParamType returns a copy of the route declaring the primitive kind of
// one path parameter. The copy owns its ParamTypes map.
func (r Route) WithParamType(name, kind string) Route {
	types := make(map[string]string, len(r.ParamTypes)+1)
	for k, v := range r.ParamTypes {
		types[k] = v
	}
	types[name] = kind
	r.ParamTypes = types
	return r
}

// Segment is one element of a parsed path pattern: either a literal or a
// named parameter, never both.
type Segment struct {
	Literal string // literal text; empty for parameters
	Param   string // parameter name; empty for literals
}

// IsParam reports whether the segment captures a path parameter.
func (s Segment) IsParam() bool {
	return s.Param != ""
}

// ParsePattern splits a path pattern into segments and validates it.
// Patterns must start with "/"; each segment is either literal text or a
// single {name} parameter; parameter names are identifiers and unique
// within the pattern. The root pattern "/" yields no segments.
func ParsePattern(pattern string) ([]Segment, error) {
	if pattern == "" || pattern[0] != '/' {
		return nil, &PatternError{Pattern: pattern, Reason: "must start with /"}
	}
	if pattern == "/" {
		return []Segment{}, nil
	}

	parts := strings.Split(pattern[1:], "/")
	segments := make([]Segment, 0, len(parts))
	seen := make(map[string]bool, len(parts))

	for _, part := range parts {
		switch {
		case part == "":
			return nil, &PatternError{Pattern: pattern, Reason: "empty segment"}

		case strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}"):
			name := part[1 : len(part)-1]
			if !isValidParamName(name) {
				return nil, &PatternError{Pattern: pattern, Reason: "invalid parameter name " + strconv.Quote(name)}
			}
			if seen[name] {
				return nil, &PatternError{Pattern: pattern, Reason: "duplicate parameter " + strconv.Quote(name)}
			}
			seen[name] = true
			segments = append(segments, Segment{Param: name})

		case strings.ContainsAny(part, "{}"):
			return nil, &PatternError{Pattern: pattern, Reason: "segment " + strconv.Quote(part) + " mixes literal text and braces"}

		default:
			segments = append(segments, Segment{Literal: part})
		}
	}

	return segments, nil
}

// ParamNames returns the parameter names of a parsed pattern in path order.
func ParamNames(segments []Segment) []string {
	var names []string
	for _, s := range segments {
		if s.IsParam() {
			names = append(names, s.Param)
		}
	}
	return names
}

// shapeKey builds the structural identity of a route: the method plus the
// pattern with parameter names erased. /u/{id} and /u/{uid} share a shape.
func shapeKey(method string, segments []Segment) string {
	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(' ')
	if len(segments) == 0 {
		b.WriteByte('/')
	}
	for _, s := range segments {
		b.WriteByte('/')
		if s.IsParam() {
			b.WriteString("{}")
		} else {
			b.WriteString(s.Literal)
		}
	}
	return b.String()
}

// isValidParamName checks that a parameter name is a valid identifier:
// letter or underscore first, then letters, digits, underscores.
func isValidParamName(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			continue
		}
		if i > 0 && c >= '0' && c <= '9' {
			continue
		}
		return false
	}
	return true
}
