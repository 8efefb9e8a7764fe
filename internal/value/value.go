// Package value implements ArgusDB's in-memory JSON value model: the
// common representation documents are parsed into, inferred against, and
// encoded from. The model keeps integers and floats as distinct kinds and
// object keys in insertion order, so the JSONB codec (internal/jsonb) and
// the schema inferrer (internal/schema) share this single representation
// instead of the standard library's map[string]interface{}; json.go adds
// the textual JSON form on top of it.
package value

import (
	"fmt"
	"math"
)

// Kind identifies which JSON type a Value currently holds.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Int
	Float
	String
	Object
	Array
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Int:
		return "integer"
	case Float:
		return "number"
	case String:
		return "string"
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return "unknown"
	}
}

// Field is one key/value pair of an object, in the order it was inserted.
type Field struct {
	Key string
	Val Value
}

// Value is a single JSON value: null, boolean, integer, float, string, an
// ordered object, or an array. Zero Value is Null.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	fields []Field // Object, in insertion order
	elems  []Value // Array
}

func NewNull() Value   { return Value{kind: Null} }
func NewBool(b bool) Value  { return Value{kind: Bool, b: b} }
func NewInt(i int64) Value  { return Value{kind: Int, i: i} }
func NewFloat(f float64) Value { return Value{kind: Float, f: f} }
func NewString(s string) Value { return Value{kind: String, s: s} }

// NewArray builds an array Value from already-constructed elements.
func NewArray(elems []Value) Value { return Value{kind: Array, elems: elems} }

// NewObject builds an object Value from ordered fields. The caller is
// responsible for key uniqueness; duplicate keys keep the last occurrence
// for lookups but both appear in Fields() (mirrors json.Decoder's own
// last-wins behavior for duplicate object keys).
func NewObject(fields []Field) Value { return Value{kind: Object, fields: fields} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == Null }

func (v Value) Bool() bool { return v.b }

func (v Value) Int() int64 { return v.i }

func (v Value) Float() float64 {
	if v.kind == Int {
		return float64(v.i)
	}
	return v.f
}

func (v Value) String() string { return v.s }

func (v Value) Elems() []Value { return v.elems }

func (v Value) Fields() []Field { return v.fields }

// Get returns the value of the named field and whether it was present.
// For duplicate keys, the last occurrence wins.
func (v Value) Get(key string) (Value, bool) {
	found := false
	var out Value
	for _, f := range v.fields {
		if f.Key == key {
			out = f.Val
			found = true
		}
	}
	return out, found
}

// Index returns the i'th array element and whether i is in range.
func (v Value) Index(i int) (Value, bool) {
	if i < 0 || i >= len(v.elems) {
		return Value{}, false
	}
	return v.elems[i], true
}

// Equal reports structural equality. Int and Float never compare equal to
// each other even when numerically identical: integer is never widened
// into number.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case Bool:
		return a.b == b.b
	case Int:
		return a.i == b.i
	case Float:
		return a.f == b.f || (math.IsNaN(a.f) && math.IsNaN(b.f))
	case String:
		return a.s == b.s
	case Array:
		if len(a.elems) != len(b.elems) {
			return false
		}
		for i := range a.elems {
			if !Equal(a.elems[i], b.elems[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(a.fields) != len(b.fields) {
			return false
		}
		for i := range a.fields {
			if a.fields[i].Key != b.fields[i].Key || !Equal(a.fields[i].Val, b.fields[i].Val) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two values of the same Kind. ok is false when the kinds
// differ (ordering is defined only within a type) or the kind has no
// natural order (object, array, null).
func Compare(a, b Value) (cmp int, ok bool) {
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case Bool:
		if a.b == b.b {
			return 0, true
		}
		if !a.b {
			return -1, true
		}
		return 1, true
	case Int:
		switch {
		case a.i < b.i:
			return -1, true
		case a.i > b.i:
			return 1, true
		default:
			return 0, true
		}
	case Float:
		switch {
		case a.f < b.f:
			return -1, true
		case a.f > b.f:
			return 1, true
		case a.f == b.f:
			return 0, true
		default:
			return 0, false // NaN
		}
	case String:
		switch {
		case a.s < b.s:
			return -1, true
		case a.s > b.s:
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

// AsFloat64 returns the value as a float64 when the kind is numeric
// (Int or Float); this is the row-pipeline equivalent of jsonb.ExtractF64
// once a LazyDoc has already been decoded into a Value.
func (v Value) AsFloat64() (float64, bool) {
	switch v.kind {
	case Int:
		return float64(v.i), true
	case Float:
		return v.f, true
	default:
		return 0, false
	}
}

func (v Value) GoString() string {
	return fmt.Sprintf("value.Value{kind=%s}", v.kind)
}
