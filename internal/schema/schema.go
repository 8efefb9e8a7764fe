// Package schema implements ArgusDB's inferred-schema tree and its merge
// algebra. A Schema mirrors the shape of the JSON values it describes:
// object nodes carry a field map, array nodes carry a single element
// schema, and every node carries the set of JSON types observed at that
// position.
package schema

import (
	"sort"

	"github.com/argusdb/argus/internal/value"
)

// TypeSet is a bitmask over the JSON type alphabet {null, boolean, integer,
// number, string, object, array}. Integer and number are distinct bits so
// that "if integer and number both appear, both are retained" falls out of
// a plain bitwise OR.
type TypeSet uint8

const (
	TNull TypeSet = 1 << iota
	TBool
	TInt
	TFloat
	TString
	TObject
	TArray
)

func (t TypeSet) Has(bit TypeSet) bool { return t&bit != 0 }

var typeNames = []struct {
	bit  TypeSet
	name string
}{
	{TNull, "null"}, {TBool, "boolean"}, {TInt, "integer"}, {TFloat, "number"},
	{TString, "string"}, {TObject, "object"}, {TArray, "array"},
}

// Names returns the type-set as type-name strings in the fixed order
// null, boolean, integer, number, string, object, array, the form used
// when a schema node is rendered into a JSON-Schema-shaped document.
func (t TypeSet) Names() []string {
	names := make([]string, 0, len(typeNames))
	for _, tn := range typeNames {
		if t.Has(tn.bit) {
			names = append(names, tn.name)
		}
	}
	return names
}

func typeSetFromNames(names []string) TypeSet {
	var t TypeSet
	for _, n := range names {
		for _, tn := range typeNames {
			if tn.name == n {
				t |= tn.bit
			}
		}
	}
	return t
}

// Schema is an immutable node in the inferred schema tree. Merge never
// mutates its operands: a merged schema is always freshly allocated so
// that a schema already written into a JSTable's summary header can keep
// being referenced by in-flight readers while the memtable's active
// schema continues to evolve.
type Schema struct {
	Types  TypeSet
	Fields map[string]*Schema // only meaningful when Types.Has(TObject)
	Elem   *Schema            // only meaningful when Types.Has(TArray)
}

// Infer produces the tightest Schema describing a single value. Arrays
// merge the inference of every element pairwise; an empty array yields an
// Elem with an empty type-set.
func Infer(v value.Value) *Schema {
	switch v.Kind() {
	case value.Null:
		return &Schema{Types: TNull}
	case value.Bool:
		return &Schema{Types: TBool}
	case value.Int:
		return &Schema{Types: TInt}
	case value.Float:
		return &Schema{Types: TFloat}
	case value.String:
		return &Schema{Types: TString}
	case value.Object:
		fields := make(map[string]*Schema, len(v.Fields()))
		for _, f := range v.Fields() {
			fields[f.Key] = Infer(f.Val)
		}
		return &Schema{Types: TObject, Fields: fields}
	case value.Array:
		elem := &Schema{}
		for _, e := range v.Elems() {
			elem = Merge(elem, Infer(e))
		}
		return &Schema{Types: TArray, Elem: elem}
	default:
		return &Schema{}
	}
}

// Merge applies the pairwise merge laws: type-sets union, object
// field-maps union by key (shared keys merge recursively), array element
// schemas merge recursively. Merge is commutative, associative, and
// idempotent; a nil operand is treated as the empty schema.
func Merge(a, b *Schema) *Schema {
	if a == nil {
		a = &Schema{}
	}
	if b == nil {
		b = &Schema{}
	}
	out := &Schema{Types: a.Types | b.Types}

	if len(a.Fields) > 0 || len(b.Fields) > 0 {
		out.Fields = make(map[string]*Schema, len(a.Fields)+len(b.Fields))
		for k, v := range a.Fields {
			out.Fields[k] = v
		}
		for k, v := range b.Fields {
			if existing, ok := out.Fields[k]; ok {
				out.Fields[k] = Merge(existing, v)
			} else {
				out.Fields[k] = v
			}
		}
	}

	if a.Elem != nil || b.Elem != nil {
		out.Elem = Merge(a.Elem, b.Elem)
	}

	return out
}

// MergeAll folds Merge over a slice of schemas, left to right. The result
// is independent of the order of schemas by associativity/commutativity.
func MergeAll(schemas []*Schema) *Schema {
	out := &Schema{}
	for _, s := range schemas {
		out = Merge(out, s)
	}
	return out
}

// sortedFieldKeys returns a Schema's field names in sorted order, used
// whenever a Schema is serialized so the on-disk form is deterministic
// regardless of Go's randomized map iteration.
func (s *Schema) sortedFieldKeys() []string {
	keys := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToValue renders the schema tree as a JSON-Schema-shaped value.Value so
// it can travel through the same JSONB codec as documents, serialized as
// a single length-prefixed summary entry.
func (s *Schema) ToValue() value.Value {
	if s == nil {
		s = &Schema{}
	}
	names := s.Types.Names()
	typeVals := make([]value.Value, len(names))
	for i, n := range names {
		typeVals[i] = value.NewString(n)
	}
	fields := []value.Field{
		{Key: "types", Val: value.NewArray(typeVals)},
	}
	if s.Types.Has(TObject) {
		keys := s.sortedFieldKeys()
		props := make([]value.Field, len(keys))
		for i, k := range keys {
			props[i] = value.Field{Key: k, Val: s.Fields[k].ToValue()}
		}
		fields = append(fields, value.Field{Key: "fields", Val: value.NewObject(props)})
	}
	if s.Types.Has(TArray) {
		fields = append(fields, value.Field{Key: "elem", Val: s.Elem.ToValue()})
	}
	return value.NewObject(fields)
}

// FromValue is the inverse of ToValue, decoding a schema header back into
// a *Schema tree.
func FromValue(v value.Value) *Schema {
	out := &Schema{}
	if typesField, ok := v.Get("types"); ok {
		names := make([]string, 0, len(typesField.Elems()))
		for _, e := range typesField.Elems() {
			names = append(names, e.String())
		}
		out.Types = typeSetFromNames(names)
	}
	if fieldsField, ok := v.Get("fields"); ok {
		out.Fields = make(map[string]*Schema, len(fieldsField.Fields()))
		for _, f := range fieldsField.Fields() {
			out.Fields[f.Key] = FromValue(f.Val)
		}
	}
	if elemField, ok := v.Get("elem"); ok {
		out.Elem = FromValue(elemField)
	}
	return out
}
