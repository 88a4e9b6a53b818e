/*
Package schema defines typed request schemas: named, immutable descriptions
of the fields a request is expected to carry, where each field comes from,
and how its raw value must be shaped.

Schemas are declared in YAML manifests, validated on parse, and collected
into a Registry that is built once and read concurrently without locking.

# Schema Definition

A minimal schema definition in YAML:

	schema: user_create

	fields:
	  id:   { type: int, required: true }
	  name: { type: string, default: anon }
	  tags: { type: array, elem: { type: string } }
	  profile:
	    type: object
	    fields:
	      age:  { type: int, min: 0 }
	      city: { type: string }

# Field Kinds

Supported field kinds:

  - string: text value; accepts only strings
  - int:    integer value; accepts integral numbers and numeric strings
  - float:  floating-point value
  - bool:   boolean value
  - object: nested fields, validated recursively
  - array:  homogeneous elements described by elem

# Field Sources

Each top-level field declares where its raw value is read from:

  - body:  a member of the JSON request body (the default)
  - query: a URL query parameter, always arriving as a string
  - path:  a path parameter captured by the route pattern

Path fields must be scalar; query fields may also be arrays of scalars,
filled from repeated parameters (?tag=a&tag=b). Nested fields always come
from the enclosing body value and cannot declare a source.

# Optionality and Defaults

Fields are optional unless marked required: true. A default applies only
when an optional field is absent from the request; a value that is present
but empty (an empty string, an explicit null) is never replaced. Required
fields cannot declare defaults.

# Strict Mode

By default undeclared fields are ignored. A schema with strict: true
rejects them instead, throughout the whole field tree.

# Parsing

Load schemas from YAML, one schema per file:

	s, err := schema.ParseFile("schemas/user_create.yaml")
	all, err := schema.ParseDir("schemas/")

All schemas are validated on parse. Invalid schemas return an error.
*/
package schema
