package app

// Params is the coerced parameter bundle a handler receives. Values carry
// the canonical types the validator produces: string, int64, float64, bool,
// map[string]any for objects, []any for arrays, and nil for explicit nulls.
type Params map[string]any

// Has reports whether a value was recorded for name. Explicit nulls count
// as recorded.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Get returns the raw value for name.
func (p Params) Get(name string) (any, bool) {
	v, ok := p[name]
	return v, ok
}

// String returns the value for name, or "" when absent or not a string.
func (p Params) String(name string) string {
	v, _ := p[name].(string)
	return v
}

// Int returns the value for name, or 0 when absent or not an int.
func (p Params) Int(name string) int64 {
	v, _ := p[name].(int64)
	return v
}

// Float returns the value for name, or 0 when absent or not a float.
// Int fields coerce to int64, not float64; use Int for those.
func (p Params) Float(name string) float64 {
	v, _ := p[name].(float64)
	return v
}

// Bool returns the value for name, or false when absent or not a bool.
func (p Params) Bool(name string) bool {
	v, _ := p[name].(bool)
	return v
}

// Map returns the object value for name, or nil when absent or not an
// object.
func (p Params) Map(name string) map[string]any {
	v, _ := p[name].(map[string]any)
	return v
}

// Slice returns the array value for name, or nil when absent or not an
// array.
func (p Params) Slice(name string) []any {
	v, _ := p[name].([]any)
	return v
}
