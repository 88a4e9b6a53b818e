package app

import (
	"fmt"
	"time"

	"github.com/artpar/intake/core/openapi"
	"github.com/artpar/intake/core/schema"
	"github.com/artpar/intake/domain/route"
)

// Snapshot is one immutable generation of dispatchable state: the compiled
// route table, the schema registry it references, the handler and effective
// request schema resolved per route, and the OpenAPI document describing it
// all. Snapshots are built as a unit and swapped atomically, so a request
// only ever sees routes, schemas, and handlers that agree with each other.
type Snapshot struct {
	Table    *route.Table
	Registry *schema.Registry
	Doc      *openapi.Spec
	BuiltAt  time.Time

	bound map[string]boundRoute // route ID -> dispatch binding
}

type boundRoute struct {
	handler Handler
	schema  schema.Schema
}

// DocInfo carries the OpenAPI metadata a snapshot embeds.
type DocInfo struct {
	Title     string
	Version   string
	ServerURL string
}

// buildSnapshot compiles routes, schemas, and handlers into a dispatchable
// unit. Any inconsistency fails the build: duplicate routes or IDs, unknown
// schema or handler names, invalid path parameter kinds, or a path
// parameter shadowing a declared field. Nothing is swapped on failure.
func buildSnapshot(routes []route.Route, schemas []schema.Schema, handlers map[string]Handler, info DocInfo, now time.Time) (*Snapshot, error) {
	registry, err := schema.NewRegistry(schemas...)
	if err != nil {
		return nil, err
	}

	builder := route.NewBuilder()
	for _, r := range routes {
		if err := builder.Add(r); err != nil {
			return nil, err
		}
	}
	table := builder.Build()

	// Bind against the table's routes: those carry canonical methods and
	// defaulted IDs.
	bound := make(map[string]boundRoute, table.Len())
	for _, r := range table.Routes() {
		if _, exists := bound[r.ID]; exists {
			return nil, fmt.Errorf("duplicate route id %q", r.ID)
		}

		name := r.Handler
		if name == "" {
			name = EchoName
		}
		h, ok := handlers[name]
		if !ok {
			return nil, fmt.Errorf("route %s: unknown handler %q", r.ID, name)
		}

		eff, err := effectiveSchema(r, registry)
		if err != nil {
			return nil, err
		}

		bound[r.ID] = boundRoute{handler: h, schema: eff}
	}

	gen := openapi.NewGenerator(table, registry)
	gen.SetInfo(openapi.Info{
		Title:       info.Title,
		Version:     info.Version,
		Description: "Auto-generated documentation for validated routes",
	})
	if info.ServerURL != "" {
		gen.AddServer(info.ServerURL, "")
	}

	return &Snapshot{
		Table:    table,
		Registry: registry,
		Doc:      gen.Generate(),
		BuiltAt:  now,
		bound:    bound,
	}, nil
}

// binding returns the dispatch binding for a route ID.
func (s *Snapshot) binding(id string) (boundRoute, bool) {
	b, ok := s.bound[id]
	return b, ok
}

// effectiveSchema merges the route's declared schema with fields
// synthesized for its path parameters. Path parameters are required and
// typed by the route's ParamTypes (string when undeclared); a parameter
// sharing a name with a declared field is ambiguous and fails the build.
func effectiveSchema(r route.Route, registry *schema.Registry) (schema.Schema, error) {
	eff := schema.Schema{Name: r.Schema}
	if r.Schema != "" {
		declared, ok := registry.Get(r.Schema)
		if !ok {
			return schema.Schema{}, fmt.Errorf("route %s: unknown schema %q", r.ID, r.Schema)
		}
		eff = declared
	}

	segments, err := route.ParsePattern(r.Pattern)
	if err != nil {
		return schema.Schema{}, err // patterns in a built table always parse
	}

	required := true
	for _, name := range route.ParamNames(segments) {
		if _, exists := eff.Fields[name]; exists {
			return schema.Schema{}, fmt.Errorf(
				"route %s: path parameter %q collides with a field of schema %q", r.ID, name, r.Schema)
		}

		kind, ok := paramKind(r.ParamTypes[name])
		if !ok {
			return schema.Schema{}, fmt.Errorf(
				"route %s: parameter %q has invalid kind %q", r.ID, name, r.ParamTypes[name])
		}

		eff = eff.WithField(name, schema.Field{
			Kind:     kind,
			Required: &required,
			Source:   schema.SourcePath,
		})
	}

	return eff, nil
}

// paramKind maps a manifest parameter kind to a schema field kind. Path
// parameters are single path segments, so only scalars are valid.
func paramKind(kind string) (schema.FieldKind, bool) {
	switch kind {
	case "", "string":
		return schema.KindString, true
	case "int":
		return schema.KindInt, true
	case "float":
		return schema.KindFloat, true
	case "bool":
		return schema.KindBool, true
	}
	return "", false
}
