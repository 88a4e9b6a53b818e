package route

import (
	"regexp"
	"sort"
	"strings"
)

// MatchResult contains information about a successful route match.
type MatchResult struct {
	Route      *Route
	PathParams map[string]string // raw parameter strings (e.g. {id} -> "123")
}

// Builder accumulates routes and rejects duplicates before a Table is built.
// A failed Add leaves the builder unchanged. Builders are not safe for
// concurrent use; the Table they produce is.
type Builder struct {
	entries []compiledRoute
	shapes  map[string]int // shape key -> index into entries
}

type compiledRoute struct {
	route    Route
	segments []Segment
	regex    *regexp.Regexp
	literals int // number of literal segments, the specificity rank
	order    int // registration order, the tie-break
}

// NewBuilder creates an empty route table builder.
func NewBuilder() *Builder {
	return &Builder{shapes: make(map[string]int)}
}

// Add registers a route. It fails with *PatternError when the pattern is
// malformed and with *DuplicateRouteError when a route with the same method
// and pattern shape is already registered.
func (b *Builder) Add(r Route) error {
	r.Method = CanonicalMethod(r.Method)
	if r.Method == "" {
		return &PatternError{Pattern: r.Pattern, Reason: "method is required"}
	}

	segments, err := ParsePattern(r.Pattern)
	if err != nil {
		return err
	}

	names := ParamNames(segments)
	for declared := range r.ParamTypes {
		if !containsName(names, declared) {
			return &PatternError{Pattern: r.Pattern, Reason: "type declared for unknown parameter " + declared}
		}
	}

	key := shapeKey(r.Method, segments)
	if i, ok := b.shapes[key]; ok {
		return &DuplicateRouteError{
			Method:   r.Method,
			Pattern:  r.Pattern,
			Existing: b.entries[i].route.Pattern,
		}
	}

	if r.ID == "" {
		r.ID = r.Method + " " + r.Pattern
	}

	b.shapes[key] = len(b.entries)
	b.entries = append(b.entries, compiledRoute{
		route:    r,
		segments: segments,
		regex:    compileSegments(segments),
		literals: countLiterals(segments),
		order:    len(b.entries),
	})
	return nil
}

// Len returns the number of registered routes.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Build compiles the registered routes into an immutable Table. Candidates
// are ordered by literal segment count descending; registration order breaks
// ties. The builder remains usable afterwards.
func (b *Builder) Build() *Table {
	entries := make([]compiledRoute, len(b.entries))
	copy(entries, b.entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].literals > entries[j].literals
	})
	return &Table{entries: entries}
}

// Table matches requests against a fixed set of routes. It is immutable and
// safe for concurrent use without locking.
type Table struct {
	entries []compiledRoute
}

// Match finds the route for the given method and path. A single trailing
// slash is ignored: /users/ matches /users. On failure the error is either
// a *NotFoundError (no pattern matches the path) or a *MethodNotAllowedError
// (some pattern matches under other methods).
func (t *Table) Match(method, path string) (*MatchResult, error) {
	method = CanonicalMethod(method)
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	var allowed map[string]bool
	for i := range t.entries {
		e := &t.entries[i]
		params := matchPath(e, path)
		if params == nil {
			continue
		}
		if e.route.Method != method {
			if allowed == nil {
				allowed = make(map[string]bool)
			}
			allowed[e.route.Method] = true
			continue
		}
		return &MatchResult{Route: &e.route, PathParams: params}, nil
	}

	if len(allowed) > 0 {
		methods := make([]string, 0, len(allowed))
		for m := range allowed {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		return nil, &MethodNotAllowedError{Method: method, Path: path, Allowed: methods}
	}
	return nil, &NotFoundError{Path: path}
}

// Routes returns the routes in matching precedence order.
func (t *Table) Routes() []Route {
	routes := make([]Route, len(t.entries))
	for i := range t.entries {
		routes[i] = t.entries[i].route
	}
	return routes
}

// Len returns the number of routes in the table.
func (t *Table) Len() int {
	return len(t.entries)
}

// compileSegments converts parsed segments into an anchored regexp with one
// named capture group per parameter: /users/{id} -> ^/users/(?P<id>[^/]+)$.
func compileSegments(segments []Segment) *regexp.Regexp {
	var b strings.Builder
	b.WriteByte('^')
	if len(segments) == 0 {
		b.WriteByte('/')
	}
	for _, s := range segments {
		b.WriteByte('/')
		if s.IsParam() {
			b.WriteString("(?P<" + s.Param + ">[^/]+)")
		} else {
			b.WriteString(regexp.QuoteMeta(s.Literal))
		}
	}
	b.WriteByte('$')
	return regexp.MustCompile(b.String())
}

// matchPath checks if the path matches the entry's pattern.
// Returns path parameters if matched, nil if no match.
func matchPath(e *compiledRoute, path string) map[string]string {
	matches := e.regex.FindStringSubmatch(path)
	if matches == nil {
		return nil
	}

	params := make(map[string]string)
	for i, name := range e.regex.SubexpNames() {
		if i > 0 && name != "" && i < len(matches) {
			params[name] = matches[i]
		}
	}
	return params
}

func countLiterals(segments []Segment) int {
	n := 0
	for _, s := range segments {
		if !s.IsParam() {
			n++
		}
	}
	return n
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
