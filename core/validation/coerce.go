package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/artpar/intake/core/schema"
)

// coerceValue coerces one raw value to the field's kind, recording failures
// on res. The raw value is one of the JSON decode variants (json.Number,
// string, bool, map[string]any, []any) or, for query and path sources, a
// string or []string. fromString relaxes boolean parsing to the
// strconv.ParseBool forms, which only string sources get.
func coerceValue(path string, f schema.Field, raw any, strict, fromString bool, res *Result) (any, bool) {
	switch f.Kind {
	case schema.KindInt:
		return coerceInt(path, f, raw, res)
	case schema.KindFloat:
		return coerceFloat(path, f, raw, res)
	case schema.KindBool:
		return coerceBool(path, raw, fromString, res)
	case schema.KindString:
		return coerceString(path, f, raw, res)
	case schema.KindObject:
		return coerceObject(path, f, raw, strict, res)
	case schema.KindArray:
		return coerceArray(path, f, raw, strict, fromString, res)
	default:
		res.AddError(path, TypeMismatch, raw, fmt.Sprintf("unsupported field kind %q", f.Kind))
		return nil, false
	}
}

// coerceInt accepts integral JSON numbers, integral floats (42.0), and
// numeric strings. Fractional values are a type mismatch; integral values
// beyond int64 are out of range.
func coerceInt(path string, f schema.Field, raw any, res *Result) (any, bool) {
	var text string
	switch v := raw.(type) {
	case json.Number:
		text = string(v)
	case string:
		text = v
	default:
		res.AddError(path, TypeMismatch, raw, "must be an integer")
		return nil, false
	}

	n, ok := parseInt(path, text, raw, res)
	if !ok {
		return nil, false
	}
	if !checkNumericBounds(path, float64(n), f, res) {
		return nil, false
	}
	return n, true
}

func parseInt(path, text string, raw any, res *Result) (int64, bool) {
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i, true
	}

	// Not a plain integer literal: fractional, exponent form, or overflow.
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			res.AddError(path, OutOfRange, raw, "exceeds the integer range")
			return 0, false
		}
		res.AddError(path, TypeMismatch, raw, "must be an integer")
		return 0, false
	}
	if f != math.Trunc(f) {
		res.AddError(path, TypeMismatch, raw, "must be an integer")
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		res.AddError(path, OutOfRange, raw, "exceeds the integer range")
		return 0, false
	}
	return int64(f), true
}

// coerceFloat accepts JSON numbers and numeric strings.
func coerceFloat(path string, f schema.Field, raw any, res *Result) (any, bool) {
	var text string
	switch v := raw.(type) {
	case json.Number:
		text = string(v)
	case string:
		text = v
	default:
		res.AddError(path, TypeMismatch, raw, "must be a number")
		return nil, false
	}

	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			res.AddError(path, OutOfRange, raw, "exceeds the float range")
			return nil, false
		}
		res.AddError(path, TypeMismatch, raw, "must be a number")
		return nil, false
	}
	if math.IsInf(n, 0) || math.IsNaN(n) {
		res.AddError(path, OutOfRange, raw, "must be a finite number")
		return nil, false
	}
	if !checkNumericBounds(path, n, f, res) {
		return nil, false
	}
	return n, true
}

// coerceBool accepts JSON booleans. String forms (true/false/1/0/t/f) are
// accepted only from string sources, never from the body.
func coerceBool(path string, raw any, fromString bool, res *Result) (any, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		if fromString {
			if b, err := strconv.ParseBool(v); err == nil {
				return b, true
			}
		}
		res.AddError(path, TypeMismatch, raw, "must be a boolean")
		return nil, false
	default:
		res.AddError(path, TypeMismatch, raw, "must be a boolean")
		return nil, false
	}
}

// coerceString accepts strings only; numbers never coerce to strings.
func coerceString(path string, f schema.Field, raw any, res *Result) (any, bool) {
	s, ok := raw.(string)
	if !ok {
		res.AddError(path, TypeMismatch, raw, "must be a string")
		return nil, false
	}

	if f.MinLen != nil && len(s) < *f.MinLen {
		res.AddError(path, OutOfRange, raw, fmt.Sprintf("must be at least %d characters", *f.MinLen))
		return nil, false
	}
	if f.MaxLen != nil && len(s) > *f.MaxLen {
		res.AddError(path, OutOfRange, raw, fmt.Sprintf("must be at most %d characters", *f.MaxLen))
		return nil, false
	}
	if len(f.Enum) > 0 && !enumContains(f.Enum, s) {
		res.AddError(path, OutOfRange, raw,
			fmt.Sprintf("must be one of: %s", strings.Join(f.Enum, ", ")))
		return nil, false
	}
	return s, true
}

// coerceObject validates nested fields recursively with dotted error paths.
func coerceObject(path string, f schema.Field, raw any, strict bool, res *Result) (any, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		res.AddError(path, TypeMismatch, raw, "must be an object")
		return nil, false
	}

	before := len(res.Errors)
	values := walkFields(path, f.Fields, m, strict, res)
	if len(res.Errors) != before {
		return nil, false
	}
	return values, true
}

// coerceArray validates each element with indexed error paths (tags.0).
// Query-sourced arrays arrive as the repeated parameter values.
func coerceArray(path string, f schema.Field, raw any, strict, fromString bool, res *Result) (any, bool) {
	var elems []any
	switch v := raw.(type) {
	case []any:
		elems = v
	case []string:
		elems = make([]any, len(v))
		for i, s := range v {
			elems[i] = s
		}
	default:
		res.AddError(path, TypeMismatch, raw, "must be an array")
		return nil, false
	}

	before := len(res.Errors)
	values := make([]any, 0, len(elems))
	for i, elem := range elems {
		elemPath := fmt.Sprintf("%s.%d", path, i)
		if elem == nil {
			res.AddError(elemPath, TypeMismatch, nil, "array elements must not be null")
			continue
		}
		v, ok := coerceValue(elemPath, *f.Elem, elem, strict, fromString, res)
		if ok {
			values = append(values, v)
		}
	}
	if len(res.Errors) != before {
		return nil, false
	}

	if f.MinLen != nil && len(values) < *f.MinLen {
		res.AddError(path, OutOfRange, raw, fmt.Sprintf("must have at least %d elements", *f.MinLen))
		return nil, false
	}
	if f.MaxLen != nil && len(values) > *f.MaxLen {
		res.AddError(path, OutOfRange, raw, fmt.Sprintf("must have at most %d elements", *f.MaxLen))
		return nil, false
	}
	return values, true
}

// checkNumericBounds enforces inclusive min/max on a coerced number.
func checkNumericBounds(path string, n float64, f schema.Field, res *Result) bool {
	if f.Min != nil && n < *f.Min {
		res.AddError(path, OutOfRange, n, fmt.Sprintf("must be at least %v", *f.Min))
		return false
	}
	if f.Max != nil && n > *f.Max {
		res.AddError(path, OutOfRange, n, fmt.Sprintf("must be at most %v", *f.Max))
		return false
	}
	return true
}

// normalizeDefault converts a manifest default (as yaml decodes it) to the
// kind's canonical runtime type. Schema validation restricts defaults to
// scalar fields.
func normalizeDefault(f schema.Field) any {
	switch f.Kind {
	case schema.KindInt:
		switch v := f.Default.(type) {
		case int:
			return int64(v)
		case int64:
			return v
		case uint64:
			return int64(v)
		case float64:
			return int64(v)
		}
	case schema.KindFloat:
		switch v := f.Default.(type) {
		case int:
			return float64(v)
		case int64:
			return float64(v)
		case uint64:
			return float64(v)
		case float64:
			return v
		}
	}
	return f.Default
}

func enumContains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
