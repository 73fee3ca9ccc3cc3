package scenario

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFromInterface(t *testing.T) {
	v, err := FromInterface(map[string]interface{}{
		"count": 3,
		"ratio": 0.5,
		"name":  "pgd",
		"on":    true,
		"none":  nil,
		"tags":  []interface{}{"a", json.Number("2"), json.Number("2.5")},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	count, _ := v.Get("count")
	if i, ok := count.AsInt(); !ok || i != 3 {
		t.Errorf("Expected count 3, got %v", count)
	}
	ratio, _ := v.Get("ratio")
	if ratio.Kind() != FloatKind {
		t.Errorf("Expected ratio to be a number, got %s", ratio.Kind())
	}
	none, ok := v.Get("none")
	if !ok || !none.IsNull() {
		t.Errorf("Expected present null, got %v (present=%t)", none, ok)
	}
	tags, _ := v.Get("tags")
	if tags.Index(1).Kind() != IntKind {
		t.Errorf("Expected json.Number 2 to be an integer, got %s", tags.Index(1).Kind())
	}
	if tags.Index(2).Kind() != FloatKind {
		t.Errorf("Expected json.Number 2.5 to be a number, got %s", tags.Index(2).Kind())
	}
}

func TestFromInterfaceRejects(t *testing.T) {
	if _, err := FromInterface(struct{}{}); err == nil {
		t.Error("Expected error for unsupported type")
	}
	if _, err := FromInterface(uint64(math.MaxUint64)); err == nil {
		t.Error("Expected error for overflowing integer")
	}
	if _, err := FromInterface(map[string]interface{}{"a": []interface{}{make(chan int)}}); err == nil {
		t.Error("Expected error for nested unsupported type")
	}
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"ints", Int(1), Int(1), true},
		{"int vs float", Int(1), Float(1), false},
		{"strings", String("a"), String("b"), false},
		{"nulls", Null(), Null(), true},
		{"lists", List(Int(1), String("x")), List(Int(1), String("x")), true},
		{"list order", List(Int(1), Int(2)), List(Int(2), Int(1)), false},
		{"maps", Map(map[string]Value{"a": Int(1)}), Map(map[string]Value{"a": Int(1)}), true},
		{"map values", Map(map[string]Value{"a": Int(1)}), Map(map[string]Value{"a": Int(2)}), false},
		{"map keys", Map(map[string]Value{"a": Null()}), Map(map[string]Value{"b": Null()}), false},
	}
	for _, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.want {
			t.Errorf("%s: Expected %t, got %t", tt.name, tt.want, got)
		}
	}
}

func TestValueMarshalJSON(t *testing.T) {
	v := Map(map[string]Value{
		"zeta":  Float(20000),
		"alpha": List(Int(1), Float(0.25), Null(), Bool(false)),
		"mid":   String("a\"b"),
	})
	got := v.String()
	want := `{"alpha":[1,0.25,null,false],"mid":"a\"b","zeta":20000.0}`
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	if _, err := Float(math.NaN()).MarshalJSON(); err == nil {
		t.Error("Expected error for NaN")
	}
	if _, err := List(Float(math.Inf(1))).MarshalJSON(); err == nil {
		t.Error("Expected error for nested infinity")
	}
}

func TestValueCopies(t *testing.T) {
	entries := map[string]Value{"a": Int(1)}
	m := Map(entries)
	entries["a"] = Int(2)
	if item, _ := m.Get("a"); !item.Equal(Int(1)) {
		t.Errorf("Expected Map to copy its input, got %v", item)
	}

	list := List(Int(1), Int(2))
	items := list.Items()
	items[0] = Int(9)
	if !list.Index(0).Equal(Int(1)) {
		t.Errorf("Expected Items to return a copy, got %v", list.Index(0))
	}

	updated := m.With("b", Bool(true))
	if _, ok := m.Get("b"); ok {
		t.Error("Expected With to leave the receiver unchanged")
	}
	if updated.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", updated.Len())
	}

	fromScalar := String("x").With("k", Null())
	if fromScalar.Kind() != MapKind || fromScalar.Len() != 1 {
		t.Errorf("Expected scalar receiver to become a one-entry mapping, got %v", fromScalar)
	}
}

func TestValueAccessors(t *testing.T) {
	if f, ok := Int(3).AsFloat(); !ok || f != 3 {
		t.Errorf("Expected integer to widen to 3, got %v (%t)", f, ok)
	}
	if _, ok := Float(3).AsInt(); ok {
		t.Error("Expected number not to narrow to integer")
	}
	if _, ok := String("true").AsBool(); ok {
		t.Error("Expected string not to convert to boolean")
	}
	if Index := List().Index(4); !Index.IsNull() {
		t.Errorf("Expected out of range index to be null, got %v", Index)
	}
	keys := Map(map[string]Value{"b": Null(), "a": Null()}).Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Expected sorted keys [a b], got %v", keys)
	}
	if MapKind.String() != "mapping" {
		t.Errorf("Expected 'mapping', got '%s'", MapKind)
	}
}
