package openapi

import (
	"regexp"
	"sort"
	"strings"

	"github.com/artpar/intake/core/schema"
	"github.com/artpar/intake/domain/route"
)

// Generator generates OpenAPI specs from a compiled route table and the
// schema registry backing it.
type Generator struct {
	table    *route.Table
	registry *schema.Registry
	info     Info
	servers  []Server
}

// NewGenerator creates a generator with default document metadata.
func NewGenerator(table *route.Table, registry *schema.Registry) *Generator {
	return &Generator{
		table:    table,
		registry: registry,
		info: Info{
			Title:       "Intake API",
			Version:     "1.0.0",
			Description: "Auto-generated documentation for validated routes",
		},
	}
}

// SetInfo sets the API info.
func (g *Generator) SetInfo(info Info) {
	g.info = info
}

// AddServer adds a server URL.
func (g *Generator) AddServer(url, description string) {
	g.servers = append(g.servers, Server{
		URL:         url,
		Description: description,
	})
}

// Generate creates the OpenAPI specification from the route table.
func (g *Generator) Generate() *Spec {
	spec := &Spec{
		OpenAPI: "3.0.3",
		Info:    g.info,
		Servers: g.servers,
		Paths:   make(map[string]PathItem),
		Components: Components{
			Schemas: map[string]*Schema{
				"FieldError":      fieldErrorSchema(),
				"ValidationError": validationErrorSchema(),
			},
		},
	}

	// Sort for stable document output; the table's own order is matching
	// precedence, which is irrelevant here.
	routes := g.table.Routes()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Pattern != routes[j].Pattern {
			return routes[i].Pattern < routes[j].Pattern
		}
		return routes[i].Method < routes[j].Method
	})

	for _, r := range routes {
		g.addRoute(spec, r)
	}

	return spec
}

// addRoute documents a single route: path parameters from the pattern,
// query parameters and the body object from the referenced schema, and the
// validation failure payload.
func (g *Generator) addRoute(spec *Spec, r route.Route) {
	segments, err := route.ParsePattern(r.Pattern)
	if err != nil {
		return // patterns in a built table always parse
	}

	var params []Parameter
	for _, name := range route.ParamNames(segments) {
		params = append(params, Parameter{
			Name:     name,
			In:       "path",
			Required: true,
			Schema:   scalarSchema(r.ParamTypes[name]),
		})
	}

	var body *RequestBody
	if r.Schema != "" {
		s, ok := g.registry.Get(r.Schema)
		if ok {
			params = append(params, queryParameters(s)...)
			if bodySchema := bodyObjectSchema(s); bodySchema != nil {
				spec.Components.Schemas[s.Name] = bodySchema
				body = &RequestBody{
					Required: len(bodySchema.Required) > 0,
					Content: map[string]MediaType{
						"application/json": {Schema: &Schema{Ref: "#/components/schemas/" + s.Name}},
					},
				}
			}
		}
	}

	op := &Operation{
		Summary:     r.ID,
		Description: r.Description,
		OperationID: operationID(r),
		Parameters:  params,
		RequestBody: body,
		Responses: map[string]Response{
			"200": {
				Description: "Validated request dispatched to the handler",
				Content: map[string]MediaType{
					"application/json": {Schema: &Schema{Type: "object"}},
				},
			},
			"422": {
				Description: "Validation failure",
				Content: map[string]MediaType{
					"application/json": {Schema: &Schema{Ref: "#/components/schemas/ValidationError"}},
				},
			},
		},
	}

	pathItem := spec.Paths[r.Pattern]
	switch r.Method {
	case "GET":
		pathItem.Get = op
	case "POST":
		pathItem.Post = op
	case "PUT":
		pathItem.Put = op
	case "PATCH":
		pathItem.Patch = op
	case "DELETE":
		pathItem.Delete = op
	default:
		return // other methods are matchable but not documented
	}
	spec.Paths[r.Pattern] = pathItem
}

// queryParameters documents the schema's query-source fields.
func queryParameters(s schema.Schema) []Parameter {
	var params []Parameter
	for _, name := range s.FieldNames() {
		f := s.Fields[name]
		if f.EffectiveSource() != schema.SourceQuery {
			continue
		}
		params = append(params, Parameter{
			Name:        name,
			In:          "query",
			Description: f.Description,
			Required:    f.IsRequired(),
			Schema:      fieldSchema(f),
		})
	}
	return params
}

// bodyObjectSchema builds the object schema for the body-source fields.
// Returns nil when the schema declares no body fields.
func bodyObjectSchema(s schema.Schema) *Schema {
	props := make(map[string]*Schema)
	var required []string

	for _, name := range s.FieldNames() {
		f := s.Fields[name]
		if f.EffectiveSource() != schema.SourceBody {
			continue
		}
		props[name] = fieldSchema(f)
		if f.IsRequired() {
			required = append(required, name)
		}
	}

	if len(props) == 0 {
		return nil
	}
	return &Schema{
		Type:        "object",
		Description: s.Description,
		Properties:  props,
		Required:    required,
	}
}

// fieldSchema converts a schema field to its JSON Schema form.
func fieldSchema(f schema.Field) *Schema {
	out := &Schema{
		Description: f.Description,
		Default:     f.Default,
	}

	switch f.Kind {
	case schema.KindString:
		out.Type = "string"
		out.Enum = f.Enum
		out.MinLength = f.MinLen
		out.MaxLength = f.MaxLen
	case schema.KindInt:
		out.Type = "integer"
		out.Minimum = f.Min
		out.Maximum = f.Max
	case schema.KindFloat:
		out.Type = "number"
		out.Minimum = f.Min
		out.Maximum = f.Max
	case schema.KindBool:
		out.Type = "boolean"
	case schema.KindObject:
		out.Type = "object"
		out.Properties = make(map[string]*Schema, len(f.Fields))
		var required []string
		for name, nested := range f.Fields {
			out.Properties[name] = fieldSchema(nested)
			if nested.IsRequired() {
				required = append(required, name)
			}
		}
		sort.Strings(required)
		out.Required = required
	case schema.KindArray:
		out.Type = "array"
		out.MinItems = f.MinLen
		out.MaxItems = f.MaxLen
		if f.Elem != nil {
			out.Items = fieldSchema(*f.Elem)
		}
	}

	return out
}

// scalarSchema maps a path parameter kind name to a JSON Schema.
func scalarSchema(kind string) *Schema {
	switch kind {
	case "int":
		return &Schema{Type: "integer"}
	case "float":
		return &Schema{Type: "number"}
	case "bool":
		return &Schema{Type: "boolean"}
	default:
		return &Schema{Type: "string"}
	}
}

// fieldErrorSchema documents one entry of the failure payload.
func fieldErrorSchema() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"field": {Type: "string", Description: "Dotted path of the offending value"},
			"kind": {
				Type: "string",
				Enum: []string{"missing", "type_mismatch", "out_of_range", "unknown_field"},
			},
			"message": {Type: "string"},
		},
		Required: []string{"field", "kind", "message"},
	}
}

// validationErrorSchema documents the failure payload envelope.
func validationErrorSchema() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"errors": {
				Type:  "array",
				Items: &Schema{Ref: "#/components/schemas/FieldError"},
			},
		},
		Required: []string{"errors"},
	}
}

var nonIdentifier = regexp.MustCompile(`[^a-z0-9]+`)

// operationID creates a stable operation ID from the route method and
// pattern, e.g. get_users_id.
func operationID(r route.Route) string {
	name := nonIdentifier.ReplaceAllString(strings.ToLower(r.Pattern), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "root"
	}
	return strings.ToLower(r.Method) + "_" + name
}
