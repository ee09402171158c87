// Package outputobject defines OutputObject, the polymorphic unit that
// flows through the tile pipeline from feature emission to MVT encoding.
// See spec §3, §4.4 and the "Polymorphic OutputObject" design note.
package outputobject

import (
	"fmt"
	"sort"
	"strconv"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindString ValueKind = iota
	KindFloat
	KindBool
	KindInt
)

// Value is the tagged union of attribute value types a script can attach to
// a feature: String, Float, Bool, Int.
type Value struct {
	Kind ValueKind
	Str  string
	F    float32
	B    bool
	I    int64
}

func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func FloatValue(f float32) Value  { return Value{Kind: KindFloat, F: f} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, B: b} }
func IntValue(i int64) Value      { return Value{Kind: KindInt, I: i} }

// Encode produces a byte-identical canonical serialization of v, used for
// content-based attribute equality (spec §3: "canonical equality via
// byte-identical serialization").
func (v Value) Encode() string {
	switch v.Kind {
	case KindString:
		return "s:" + v.Str
	case KindFloat:
		return "f:" + strconv.FormatFloat(float64(v.F), 'g', -1, 32)
	case KindBool:
		return "b:" + strconv.FormatBool(v.B)
	case KindInt:
		return "i:" + strconv.FormatInt(v.I, 10)
	default:
		return fmt.Sprintf("?:%v", v)
	}
}

// Attribute is one key/value pair recorded against a feature.
type Attribute struct {
	Key   string
	Value Value
}

// Attributes is a key-sorted, immutable attribute set. Sorting on
// construction makes content equality and total ordering a simple slice
// comparison, and gives deterministic MVT key/value dictionary ordering.
type Attributes []Attribute

// NewAttributes builds a sorted Attributes set from a map.
func NewAttributes(m map[string]Value) Attributes {
	a := make(Attributes, 0, len(m))
	for k, v := range m {
		a = append(a, Attribute{Key: k, Value: v})
	}
	sort.Slice(a, func(i, j int) bool { return a[i].Key < a[j].Key })
	return a
}

// Equal reports content-based equality: same keys, same values, in order.
func (a Attributes) Equal(o Attributes) bool {
	if len(a) != len(o) {
		return false
	}
	for i := range a {
		if a[i].Key != o[i].Key || a[i].Value.Encode() != o[i].Value.Encode() {
			return false
		}
	}
	return true
}

// Encode returns a canonical string for total-ordering comparisons.
func (a Attributes) Encode() string {
	var b []byte
	for _, kv := range a {
		b = append(b, kv.Key...)
		b = append(b, '=')
		b = append(b, kv.Value.Encode()...)
		b = append(b, ';')
	}
	return string(b)
}

// Get returns the value for key and whether it was present.
func (a Attributes) Get(key string) (Value, bool) {
	for _, kv := range a {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return Value{}, false
}
