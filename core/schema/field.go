package schema

// Field describes one expected value in a request schema.
type Field struct {
	// Kind is the field kind. See FieldKind constants.
	Kind FieldKind `yaml:"type"`

	// Required marks the field as mandatory. Fields are optional unless
	// explicitly marked required.
	Required *bool `yaml:"required,omitempty"`

	// Default value applied when an optional field is absent.
	// Never applied to a value that is present, even when empty or null.
	Default any `yaml:"default,omitempty"`

	// Source names where the raw value is read from: body (default),
	// query, or path. Only top-level fields may declare a source.
	Source FieldSource `yaml:"source,omitempty"`

	// Min and Max bound numeric fields (inclusive).
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`

	// MinLen and MaxLen bound string length and array length (inclusive).
	MinLen *int `yaml:"min_len,omitempty"`
	MaxLen *int `yaml:"max_len,omitempty"`

	// Enum lists the permitted values for string fields.
	Enum []string `yaml:"enum,omitempty"`

	// Fields holds the nested schema for object fields.
	Fields map[string]Field `yaml:"fields,omitempty"`

	// Elem describes the element shape for array fields.
	Elem *Field `yaml:"elem,omitempty"`

	// Description for documentation output.
	Description string `yaml:"description,omitempty"`
}

// FieldKind represents the kind of a schema field.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindInt    FieldKind = "int"
	KindFloat  FieldKind = "float"
	KindBool   FieldKind = "bool"
	KindObject FieldKind = "object"
	KindArray  FieldKind = "array"
)

// IsScalar reports whether the kind is a primitive value kind.
func (k FieldKind) IsScalar() bool {
	switch k {
	case KindString, KindInt, KindFloat, KindBool:
		return true
	default:
		return false
	}
}

// FieldSource names where a field's raw value is read from.
type FieldSource string

const (
	SourceBody  FieldSource = "body"
	SourceQuery FieldSource = "query"
	SourcePath  FieldSource = "path"
)

// IsRequired returns whether the field is required.
// Fields are optional by default unless explicitly marked as required.
func (f Field) IsRequired() bool {
	if f.Required != nil {
		return *f.Required
	}
	return false
}

// EffectiveSource returns the field's source, defaulting to body.
func (f Field) EffectiveSource() FieldSource {
	if f.Source == "" {
		return SourceBody
	}
	return f.Source
}
