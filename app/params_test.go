package app_test

import (
	"testing"

	"github.com/artpar/intake/app"
)

func TestParams_TypedGetters(t *testing.T) {
	p := app.Params{
		"name":    "alice",
		"age":     int64(30),
		"score":   3.14,
		"active":  true,
		"address": map[string]any{"city": "Pune"},
		"tags":    []any{"a", "b"},
		"note":    nil,
	}

	if got := p.String("name"); got != "alice" {
		t.Errorf("String(name) = %q, want alice", got)
	}
	if got := p.Int("age"); got != 30 {
		t.Errorf("Int(age) = %d, want 30", got)
	}
	if got := p.Float("score"); got != 3.14 {
		t.Errorf("Float(score) = %v, want 3.14", got)
	}
	if got := p.Bool("active"); !got {
		t.Error("Bool(active) = false, want true")
	}
	if got := p.Map("address"); got["city"] != "Pune" {
		t.Errorf("Map(address) = %v, want city Pune", got)
	}
	if got := p.Slice("tags"); len(got) != 2 {
		t.Errorf("Slice(tags) = %v, want 2 elements", got)
	}
}

func TestParams_MissingOrMistyped(t *testing.T) {
	p := app.Params{"age": int64(30), "note": nil}

	if p.String("missing") != "" {
		t.Error("String on a missing key should return the zero value")
	}
	if p.String("age") != "" {
		t.Error("String on an int value should return the zero value")
	}
	if p.Int("missing") != 0 {
		t.Error("Int on a missing key should return 0")
	}
	if p.Map("age") != nil {
		t.Error("Map on an int value should return nil")
	}
	if p.Has("missing") {
		t.Error("Has(missing) = true, want false")
	}

	// Explicit nulls are recorded but carry no value.
	if !p.Has("note") {
		t.Error("Has(note) = false, want true for explicit null")
	}
	v, ok := p.Get("note")
	if !ok || v != nil {
		t.Errorf("Get(note) = %v/%v, want nil/true", v, ok)
	}
}
