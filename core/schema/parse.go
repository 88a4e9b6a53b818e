package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFile parses a schema definition from a YAML file.
func ParseFile(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("read file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses a schema definition from YAML bytes.
func Parse(data []byte) (Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("parse yaml: %w", err)
	}

	if err := Validate(s); err != nil {
		return Schema{}, fmt.Errorf("validate schema %q: %w", s.Name, err)
	}

	return s, nil
}

// ParseDir parses all schema definitions from a directory, including
// subdirectories. One schema per file; non-YAML files are skipped.
func ParseDir(dir string) ([]Schema, error) {
	var schemas []Schema

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path)
			if err != nil {
				return nil, err
			}
			schemas = append(schemas, sub...)
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		s, err := ParseFile(path)
		if err != nil {
			return nil, err
		}

		schemas = append(schemas, s)
	}

	return schemas, nil
}

// Validate validates a schema definition.
func Validate(s Schema) error {
	var errs []string

	if s.Name == "" {
		errs = append(errs, "schema name is required")
	} else if !isValidIdentifier(s.Name) {
		errs = append(errs, fmt.Sprintf("schema name %q is not a valid identifier", s.Name))
	}

	if len(s.Fields) == 0 {
		errs = append(errs, "schema must have at least one field")
	}

	errs = append(errs, validateFields("", s.Fields, true)...)

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validateFields validates a field map in sorted name order so error output
// is deterministic. The prefix is the dotted path of the enclosing object.
func validateFields(prefix string, fields map[string]Field, topLevel bool) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []string
	for _, name := range names {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		if !isValidIdentifier(name) {
			errs = append(errs, fmt.Sprintf("field name %q is not a valid identifier", path))
		}
		errs = append(errs, validateField(path, fields[name], topLevel)...)
	}
	return errs
}

// validateField validates a single field definition, recursing into object
// fields and array elements.
func validateField(path string, f Field, topLevel bool) []string {
	var errs []string

	if !isValidFieldKind(f.Kind) {
		errs = append(errs, fmt.Sprintf("field %q: unknown type %q", path, f.Kind))
		return errs
	}

	switch f.Source {
	case "", SourceBody:
	case SourceQuery:
		if !topLevel {
			errs = append(errs, fmt.Sprintf("field %q: source %q is only valid on top-level fields", path, f.Source))
		}
		// Arrays of scalars are allowed: repeated query parameters.
		scalarArray := f.Kind == KindArray && f.Elem != nil && f.Elem.Kind.IsScalar()
		if !f.Kind.IsScalar() && !scalarArray {
			errs = append(errs, fmt.Sprintf("field %q: source query requires a scalar or array of scalars, got %q", path, f.Kind))
		}
	case SourcePath:
		if !topLevel {
			errs = append(errs, fmt.Sprintf("field %q: source %q is only valid on top-level fields", path, f.Source))
		}
		if !f.Kind.IsScalar() {
			errs = append(errs, fmt.Sprintf("field %q: source path requires a scalar type, got %q", path, f.Kind))
		}
	default:
		errs = append(errs, fmt.Sprintf("field %q: unknown source %q", path, f.Source))
	}

	if len(f.Enum) > 0 {
		if f.Kind != KindString {
			errs = append(errs, fmt.Sprintf("field %q: enum applies to string fields, got %q", path, f.Kind))
		}
		for _, v := range f.Enum {
			if v == "" {
				errs = append(errs, fmt.Sprintf("field %q: enum values must be non-empty", path))
				break
			}
		}
	}

	if f.Min != nil || f.Max != nil {
		if f.Kind != KindInt && f.Kind != KindFloat {
			errs = append(errs, fmt.Sprintf("field %q: min/max apply to numeric fields, got %q", path, f.Kind))
		} else if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			errs = append(errs, fmt.Sprintf("field %q: min %v exceeds max %v", path, *f.Min, *f.Max))
		}
	}

	if f.MinLen != nil || f.MaxLen != nil {
		if f.Kind != KindString && f.Kind != KindArray {
			errs = append(errs, fmt.Sprintf("field %q: min_len/max_len apply to string and array fields, got %q", path, f.Kind))
		} else {
			if f.MinLen != nil && *f.MinLen < 0 {
				errs = append(errs, fmt.Sprintf("field %q: min_len must not be negative", path))
			}
			if f.MinLen != nil && f.MaxLen != nil && *f.MinLen > *f.MaxLen {
				errs = append(errs, fmt.Sprintf("field %q: min_len %d exceeds max_len %d", path, *f.MinLen, *f.MaxLen))
			}
		}
	}

	switch f.Kind {
	case KindObject:
		if len(f.Fields) == 0 {
			errs = append(errs, fmt.Sprintf("field %q: object type requires fields", path))
		}
		errs = append(errs, validateFields(path, f.Fields, false)...)
	case KindArray:
		if f.Elem == nil {
			errs = append(errs, fmt.Sprintf("field %q: array type requires elem", path))
		} else {
			if f.Elem.Required != nil {
				errs = append(errs, fmt.Sprintf("field %q: array elem cannot be marked required", path))
			}
			if f.Elem.Default != nil {
				errs = append(errs, fmt.Sprintf("field %q: array elem cannot declare a default", path))
			}
			errs = append(errs, validateField(path+".elem", *f.Elem, false)...)
		}
	default:
		if len(f.Fields) > 0 {
			errs = append(errs, fmt.Sprintf("field %q: fields are only valid on object type", path))
		}
		if f.Elem != nil {
			errs = append(errs, fmt.Sprintf("field %q: elem is only valid on array type", path))
		}
	}

	if f.Default != nil {
		if f.IsRequired() {
			errs = append(errs, fmt.Sprintf("field %q: required field cannot declare a default", path))
		}
		if err := validateDefault(path, f); err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

// validateDefault validates that a default value matches the field type and
// its bounds.
func validateDefault(path string, f Field) error {
	switch f.Kind {
	case KindInt:
		switch v := f.Default.(type) {
		case int, int64, uint64:
		case float64:
			if v != float64(int64(v)) {
				return fmt.Errorf("field %q: default must be an integer", path)
			}
		default:
			return fmt.Errorf("field %q: default must be an integer", path)
		}
		if n, ok := defaultAsFloat(f.Default); ok {
			if err := checkBounds(path, n, f); err != nil {
				return err
			}
		}
	case KindFloat:
		n, ok := defaultAsFloat(f.Default)
		if !ok {
			return fmt.Errorf("field %q: default must be a number", path)
		}
		if err := checkBounds(path, n, f); err != nil {
			return err
		}
	case KindBool:
		if _, ok := f.Default.(bool); !ok {
			return fmt.Errorf("field %q: default must be a boolean", path)
		}
	case KindString:
		s, ok := f.Default.(string)
		if !ok {
			return fmt.Errorf("field %q: default must be a string", path)
		}
		if len(f.Enum) > 0 && !containsString(f.Enum, s) {
			return fmt.Errorf("field %q: default %q is not a valid enum value", path, s)
		}
		if f.MinLen != nil && len(s) < *f.MinLen {
			return fmt.Errorf("field %q: default is shorter than min_len %d", path, *f.MinLen)
		}
		if f.MaxLen != nil && len(s) > *f.MaxLen {
			return fmt.Errorf("field %q: default is longer than max_len %d", path, *f.MaxLen)
		}
	case KindObject, KindArray:
		return fmt.Errorf("field %q: defaults are not supported for %s fields", path, f.Kind)
	}
	return nil
}

func checkBounds(path string, n float64, f Field) error {
	if f.Min != nil && n < *f.Min {
		return fmt.Errorf("field %q: default %v is below min %v", path, n, *f.Min)
	}
	if f.Max != nil && n > *f.Max {
		return fmt.Errorf("field %q: default %v is above max %v", path, n, *f.Max)
	}
	return nil
}

func defaultAsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}

	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

// isValidFieldKind checks if a field kind is valid.
func isValidFieldKind(k FieldKind) bool {
	switch k {
	case KindString, KindInt, KindFloat, KindBool, KindObject, KindArray:
		return true
	default:
		return false
	}
}
