package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind identifies which case of Value is populated
type Kind int

const (
	NullKind Kind = iota
	BoolKind
	IntKind
	FloatKind
	StringKind
	ListKind
	MapKind
)

// String returns the kind name used in validation messages
func (k Kind) String() string {
	switch k {
	case NullKind:
		return "null"
	case BoolKind:
		return "boolean"
	case IntKind:
		return "integer"
	case FloatKind:
		return "number"
	case StringKind:
		return "string"
	case ListKind:
		return "list"
	case MapKind:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is an immutable document node: a scalar, a list or a string-keyed mapping.
// The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
}

// Null returns the null value
func Null() Value { return Value{} }

// Bool wraps a boolean
func Bool(b bool) Value { return Value{kind: BoolKind, b: b} }

// Int wraps an integer
func Int(i int64) Value { return Value{kind: IntKind, i: i} }

// Float wraps a floating point number
func Float(f float64) Value { return Value{kind: FloatKind, f: f} }

// String wraps a string
func String(s string) Value { return Value{kind: StringKind, s: s} }

// List builds a list value from a copy of items
func List(items ...Value) Value {
	list := make([]Value, len(items))
	copy(list, items)
	return Value{kind: ListKind, list: list}
}

// Map builds a mapping value from a copy of entries
func Map(entries map[string]Value) Value {
	m := make(map[string]Value, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	return Value{kind: MapKind, m: m}
}

// FromInterface converts plain Go data (as produced by encoding/json or yaml.v3)
// into a Value.
func FromInterface(v interface{}) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Value{}, fmt.Errorf("integer %d overflows int64", t)
		}
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, fmt.Errorf("integer %d overflows int64", t)
		}
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case json.Number:
		return numberValue(t.String())
	case string:
		return String(t), nil
	case []interface{}:
		items := make([]Value, 0, len(t))
		for i, item := range t {
			iv, err := FromInterface(item)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, iv)
		}
		return Value{kind: ListKind, list: items}, nil
	case []string:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			items = append(items, String(item))
		}
		return Value{kind: ListKind, list: items}, nil
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			iv, err := FromInterface(item)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			m[k] = iv
		}
		return Value{kind: MapKind, m: m}, nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// numberValue classifies a JSON number literal as an integer or a float
func numberValue(lit string) (Value, error) {
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Int(i), nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return Value{}, fmt.Errorf("number %s is out of range", lit)
	}
	return Float(f), nil
}

// Kind returns the populated case
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null
func (v Value) IsNull() bool { return v.kind == NullKind }

// AsBool returns the boolean payload
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == BoolKind
}

// AsInt returns the integer payload. Floats with an integral value are not
// converted; callers that need a count should reject them.
func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == IntKind
}

// AsFloat returns the numeric payload, promoting integers
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case FloatKind:
		return v.f, true
	case IntKind:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// AsString returns the string payload
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == StringKind
}

// Len returns the number of list items or mapping entries
func (v Value) Len() int {
	switch v.kind {
	case ListKind:
		return len(v.list)
	case MapKind:
		return len(v.m)
	default:
		return 0
	}
}

// Index returns the i-th list item, or null when out of range
func (v Value) Index(i int) Value {
	if v.kind != ListKind || i < 0 || i >= len(v.list) {
		return Null()
	}
	return v.list[i]
}

// Items returns a copy of the list items
func (v Value) Items() []Value {
	if v.kind != ListKind {
		return nil
	}
	items := make([]Value, len(v.list))
	copy(items, v.list)
	return items
}

// Get looks up a mapping entry
func (v Value) Get(key string) (Value, bool) {
	if v.kind != MapKind {
		return Null(), false
	}
	item, ok := v.m[key]
	return item, ok
}

// Keys returns the mapping keys in sorted order
func (v Value) Keys() []string {
	if v.kind != MapKind {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// With returns a copy of the mapping with key set to item.
// A non-mapping receiver is treated as an empty mapping.
func (v Value) With(key string, item Value) Value {
	m := make(map[string]Value, v.Len()+1)
	if v.kind == MapKind {
		for k, existing := range v.m {
			m[k] = existing
		}
	}
	m[key] = item
	return Value{kind: MapKind, m: m}
}

// Interface converts v into fresh plain Go data: nil, bool, int64, float64,
// string, []interface{} or map[string]interface{}.
func (v Value) Interface() interface{} {
	switch v.kind {
	case BoolKind:
		return v.b
	case IntKind:
		return v.i
	case FloatKind:
		return v.f
	case StringKind:
		return v.s
	case ListKind:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case MapKind:
		out := make(map[string]interface{}, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal reports structural equality. Integers and floats are distinct kinds.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case NullKind:
		return true
	case BoolKind:
		return v.b == o.b
	case IntKind:
		return v.i == o.i
	case FloatKind:
		return v.f == o.f
	case StringKind:
		return v.s == o.s
	case ListKind:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case MapKind:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, item := range v.m {
			other, ok := o.m[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON renders canonical JSON: sorted keys, floats always carry a
// fraction or exponent so they parse back as floats.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case NullKind:
		buf.WriteString("null")
	case BoolKind:
		buf.WriteString(strconv.FormatBool(v.b))
	case IntKind:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case FloatKind:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return fmt.Errorf("unsupported float value %v", v.f)
		}
		buf.WriteString(formatFloat(v.f))
	case StringKind:
		encoded, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(encoded)
	case ListKind:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case MapKind:
		buf.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := v.m[k].encode(buf); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'E' {
			return s
		}
	}
	return s + ".0"
}

// String renders v as compact canonical JSON
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid: %v>", err)
	}
	return string(data)
}
