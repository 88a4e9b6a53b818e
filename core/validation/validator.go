// Package validation coerces raw request values against a schema and
// aggregates every failure into a single result. Coercion is a tagged
// decode over the JSON variants a body can carry; no reflection is
// involved. Validation never stops at the first failing field.
package validation

import (
	"bytes"
	"encoding/json"
	"io"
	"net/url"
	"sort"

	"github.com/artpar/intake/core/schema"
)

// Input carries the raw request values to validate. Body is the unparsed
// JSON body (nil or empty means no body). Query and PathParams hold the raw
// string values the transport extracted.
type Input struct {
	Body       []byte
	Query      url.Values
	PathParams map[string]string
}

// Validate checks the input against the schema. The result is
// all-or-nothing: on success Values holds one coerced entry per resolved
// field, on failure Errors holds every field failure found.
//
// Fields are resolved by their declared source. A scalar query field reads
// the first value of its parameter; an array query field reads all repeated
// values. Undeclared query parameters are always ignored; undeclared body
// fields are ignored unless the schema is strict. A schema with no body
// fields never decodes the body, so such requests cannot fail on it.
func Validate(s schema.Schema, in Input) Result {
	res := Result{Valid: true}

	bodyFields := make(map[string]schema.Field, len(s.Fields))
	for name, f := range s.Fields {
		if f.EffectiveSource() == schema.SourceBody {
			bodyFields[name] = f
		}
	}

	// The body is read only when the schema asks for it. A schema declaring
	// no body fields accepts any body untouched; strict mode still reads it
	// to reject undeclared members.
	body := map[string]any{}
	if len(bodyFields) > 0 || s.Strict {
		var ok bool
		body, ok = decodeBody(in.Body, &res)
		if !ok {
			return res
		}
	}

	checkUnknown("", bodyFields, body, s.Strict, &res)

	values := make(map[string]any, len(s.Fields))
	for _, name := range s.FieldNames() {
		f := s.Fields[name]

		var raw any
		var present bool
		fromString := false

		switch f.EffectiveSource() {
		case schema.SourceBody:
			raw, present = body[name]
		case schema.SourceQuery:
			vals, ok := in.Query[name]
			present = ok && len(vals) > 0
			if present {
				if f.Kind == schema.KindArray {
					raw = vals
				} else {
					raw = vals[0]
				}
			}
			fromString = true
		case schema.SourcePath:
			var v string
			v, present = in.PathParams[name]
			raw = v
			fromString = true
		}

		v, record := resolveField(name, f, raw, present, fromString, s.Strict, &res)
		if record {
			values[name] = v
		}
	}

	if res.Valid {
		res.Values = values
	}
	return res
}

// resolveField applies the presence policy for one field and coerces its
// value. A required absent field is a missing error. A default applies only
// when an optional field is absent; an explicit null is present-but-empty,
// recorded as nil for optional fields and rejected for required ones.
// The returned bool reports whether the value should be recorded.
func resolveField(path string, f schema.Field, raw any, present, fromString, strict bool, res *Result) (any, bool) {
	if !present {
		if f.IsRequired() {
			res.AddError(path, Missing, nil, "field is required")
			return nil, false
		}
		if f.Default != nil {
			return normalizeDefault(f), true
		}
		return nil, false
	}

	if raw == nil {
		if f.IsRequired() {
			res.AddError(path, TypeMismatch, nil, "must not be null")
			return nil, false
		}
		return nil, true
	}

	v, ok := coerceValue(path, f, raw, strict, fromString, res)
	if !ok {
		return nil, false
	}
	return v, true
}

// walkFields validates the members of a JSON object against declared
// fields, in sorted name order so error output is deterministic. Used for
// nested objects; the top level resolves sources itself.
func walkFields(prefix string, fields map[string]schema.Field, raw map[string]any, strict bool, res *Result) map[string]any {
	checkUnknown(prefix, fields, raw, strict, res)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(map[string]any, len(fields))
	for _, name := range names {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		rawVal, present := raw[name]
		v, record := resolveField(path, fields[name], rawVal, present, false, strict, res)
		if record {
			values[name] = v
		}
	}
	return values
}

// checkUnknown rejects undeclared object members under strict mode, in
// sorted key order.
func checkUnknown(prefix string, fields map[string]schema.Field, raw map[string]any, strict bool, res *Result) {
	if !strict {
		return
	}

	var unknown []string
	for key := range raw {
		if _, ok := fields[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	for _, key := range unknown {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		res.AddError(path, UnknownField, raw[key], "field is not declared in the schema")
	}
}

// decodeBody parses the raw JSON body into an object. Numbers decode as
// json.Number so integer precision survives coercion. A nil, empty, or
// null body is an empty object; anything that is not a JSON object is a
// body-level failure.
func decodeBody(body []byte, res *Result) (map[string]any, bool) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, true
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		res.AddError("body", TypeMismatch, nil, "request body is not valid JSON")
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		res.AddError("body", TypeMismatch, nil, "request body has trailing data")
		return nil, false
	}

	switch m := v.(type) {
	case nil:
		return map[string]any{}, true
	case map[string]any:
		return m, true
	default:
		res.AddError("body", TypeMismatch, nil, "request body must be a JSON object")
		return nil, false
	}
}
