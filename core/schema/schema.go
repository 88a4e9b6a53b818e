package schema

import "sort"

// Schema is the root definition of a request schema (immutable value type).
// A schema names the fields a request must carry; routes reference schemas
// by name.
type Schema struct {
	// Name identifies the schema. Routes reference it by this name.
	Name string `yaml:"schema"`

	// Fields defines the expected request fields by name.
	Fields map[string]Field `yaml:"fields"`

	// Strict rejects undeclared fields instead of ignoring them.
	Strict bool `yaml:"strict,omitempty"`

	// Description for documentation output.
	Description string `yaml:"description,omitempty"`
}

// FieldNames returns the schema's top-level field names, sorted.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithField returns a copy of the schema with one field added or replaced.
// The copy owns its Fields map.
func (s Schema) WithField(name string, f Field) Schema {
	fields := make(map[string]Field, len(s.Fields)+1)
	for k, v := range s.Fields {
		fields[k] = v
	}
	fields[name] = f
	s.Fields = fields
	return s
}
