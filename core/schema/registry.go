package schema

import (
	"fmt"
	"sort"
)

// Registry is an immutable set of schemas indexed by name. It is built once
// from validated schemas and is safe for concurrent lookups without locking.
type Registry struct {
	schemas map[string]Schema
}

// NewRegistry builds a registry from the given schemas. Every schema is
// validated; duplicate names are rejected.
func NewRegistry(schemas ...Schema) (*Registry, error) {
	byName := make(map[string]Schema, len(schemas))
	for _, s := range schemas {
		if err := Validate(s); err != nil {
			return nil, err
		}
		if _, exists := byName[s.Name]; exists {
			return nil, fmt.Errorf("schema %q already registered", s.Name)
		}
		byName[s.Name] = s
	}
	return &Registry{schemas: byName}, nil
}

// Get returns the named schema.
func (r *Registry) Get(name string) (Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns the registered schema names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	return len(r.schemas)
}
