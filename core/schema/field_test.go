package schema

import (
	"reflect"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestField_IsRequired(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		want  bool
	}{
		{"unset defaults to optional", Field{Kind: KindString}, false},
		{"explicitly required", Field{Kind: KindString, Required: boolPtr(true)}, true},
		{"explicitly optional", Field{Kind: KindString, Required: boolPtr(false)}, false},
		{"optional with default", Field{Kind: KindString, Default: "anon"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.field.IsRequired(); got != tt.want {
				t.Errorf("IsRequired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestField_EffectiveSource(t *testing.T) {
	if got := (Field{Kind: KindString}).EffectiveSource(); got != SourceBody {
		t.Errorf("EffectiveSource() = %q, want body", got)
	}
	if got := (Field{Kind: KindInt, Source: SourceQuery}).EffectiveSource(); got != SourceQuery {
		t.Errorf("EffectiveSource() = %q, want query", got)
	}
}

func TestFieldKind_IsScalar(t *testing.T) {
	scalars := []FieldKind{KindString, KindInt, KindFloat, KindBool}
	for _, k := range scalars {
		if !k.IsScalar() {
			t.Errorf("%s should be scalar", k)
		}
	}
	for _, k := range []FieldKind{KindObject, KindArray} {
		if k.IsScalar() {
			t.Errorf("%s should not be scalar", k)
		}
	}
}

func TestSchema_FieldNames(t *testing.T) {
	s := Schema{
		Name: "test",
		Fields: map[string]Field{
			"zeta":  {Kind: KindString},
			"alpha": {Kind: KindInt},
			"mid":   {Kind: KindBool},
		},
	}
	want := []string{"alpha", "mid", "zeta"}
	if got := s.FieldNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("FieldNames() = %v, want %v", got, want)
	}
}

func TestSchema_WithField(t *testing.T) {
	base := Schema{
		Name:   "test",
		Fields: map[string]Field{"id": {Kind: KindInt}},
	}

	extended := base.WithField("name", Field{Kind: KindString})

	if len(base.Fields) != 1 {
		t.Errorf("base schema mutated: %v", base.Fields)
	}
	if len(extended.Fields) != 2 {
		t.Errorf("extended schema has %d fields, want 2", len(extended.Fields))
	}
	if extended.Fields["name"].Kind != KindString {
		t.Errorf("added field = %+v", extended.Fields["name"])
	}
}
