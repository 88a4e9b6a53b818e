package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/artpar/intake/domain/route"
	"gopkg.in/yaml.v3"
)

// routesManifest is the on-disk shape of a routes file:
//
//	routes:
//	  - method: POST
//	    path: /users
//	    schema: user_create
//	    handler: create_user
//	  - method: GET
//	    path: /users/{id}
//	    params:
//	      id: int
type routesManifest struct {
	Routes []routeManifest `yaml:"routes"`
}

// routeManifest declares one route. Params maps path parameter names to
// primitive kinds; omitted parameters are strings. An empty handler means
// the built-in echo handler.
type routeManifest struct {
	ID          string            `yaml:"id"`
	Method      string            `yaml:"method"`
	Path        string            `yaml:"path"`
	Schema      string            `yaml:"schema"`
	Handler     string            `yaml:"handler"`
	Description string            `yaml:"description"`
	Params      map[string]string `yaml:"params"`
}

// ParseRoutesFile reads a routes manifest from a YAML file.
func ParseRoutesFile(path string) ([]route.Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading routes file: %w", err)
	}

	routes, err := ParseRoutes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return routes, nil
}

// ParseRoutes parses a routes manifest. Pattern grammar, duplicates, and
// cross references (schema and handler names, param kinds) are checked when
// the snapshot is built, not here.
func ParseRoutes(data []byte) ([]route.Route, error) {
	var m routesManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing routes yaml: %w", err)
	}
	if len(m.Routes) == 0 {
		return nil, fmt.Errorf("routes manifest declares no routes")
	}

	routes := make([]route.Route, 0, len(m.Routes))
	for i, rm := range m.Routes {
		if strings.TrimSpace(rm.Method) == "" {
			return nil, fmt.Errorf("route %d: method is required", i)
		}
		if strings.TrimSpace(rm.Path) == "" {
			return nil, fmt.Errorf("route %d: path is required", i)
		}

		r := route.New(rm.Method, rm.Path)
		if rm.ID != "" {
			r = r.WithID(rm.ID)
		}
		if rm.Schema != "" {
			r = r.WithSchema(rm.Schema)
		}
		if rm.Handler != "" {
			r = r.WithHandler(rm.Handler)
		}
		if rm.Description != "" {
			r = r.WithDescription(rm.Description)
		}
		for name, kind := range rm.Params {
			r = r.WithParamType(name, kind)
		}
		routes = append(routes, r)
	}
	return routes, nil
}
