// Package jsonb implements ArgusDB's self-describing binary document
// encoding. Every encoded value carries its own type tag and, for
// containers, a length prefix per child, so a path can be resolved by
// skipping over sibling bytes instead of decoding them into value.Value
// trees. This is what lets Scan/Filter evaluate a predicate against one
// field of a large document without materializing the rest of it.
package jsonb

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/argusdb/argus/internal/value"
)

const (
	tagNull byte = iota
	tagFalse
	tagTrue
	tagInt
	tagFloat
	tagString
	tagArray
	tagObject
)

// Step is one hop of a field-reference path: either an object key or an
// array index. Dotted and JSONPath field references both compile down
// to a []Step before reaching the codec.
type Step struct {
	Field   string
	Index   int
	IsIndex bool
}

func FieldStep(name string) Step { return Step{Field: name} }
func IndexStep(i int) Step       { return Step{Index: i, IsIndex: true} }

// Encode serializes v to its self-describing byte form.
func Encode(v value.Value) []byte {
	return appendValue(nil, v)
}

func appendValue(buf []byte, v value.Value) []byte {
	switch v.Kind() {
	case value.Null:
		return append(buf, tagNull)
	case value.Bool:
		if v.Bool() {
			return append(buf, tagTrue)
		}
		return append(buf, tagFalse)
	case value.Int:
		buf = append(buf, tagInt)
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v.Int()))
		return append(buf, tmp[:]...)
	case value.Float:
		buf = append(buf, tagFloat)
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v.Float()))
		return append(buf, tmp[:]...)
	case value.String:
		buf = append(buf, tagString)
		buf = appendUvarint(buf, uint64(len(v.String())))
		return append(buf, v.String()...)
	case value.Array:
		buf = append(buf, tagArray)
		elems := v.Elems()
		buf = appendUvarint(buf, uint64(len(elems)))
		for _, e := range elems {
			child := appendValue(nil, e)
			buf = appendUvarint(buf, uint64(len(child)))
			buf = append(buf, child...)
		}
		return buf
	case value.Object:
		buf = append(buf, tagObject)
		fields := v.Fields()
		buf = appendUvarint(buf, uint64(len(fields)))
		for _, f := range fields {
			buf = appendUvarint(buf, uint64(len(f.Key)))
			buf = append(buf, f.Key...)
			child := appendValue(nil, f.Val)
			buf = appendUvarint(buf, uint64(len(child)))
			buf = append(buf, child...)
		}
		return buf
	default:
		return append(buf, tagNull)
	}
}

func appendUvarint(buf []byte, x uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], x)
	return append(buf, tmp[:n]...)
}

// Decode fully materializes b into a value.Value tree.
func Decode(b []byte) (value.Value, error) {
	v, n, err := decodeAt(b)
	if err != nil {
		return value.Value{}, err
	}
	if n != len(b) {
		return value.Value{}, fmt.Errorf("jsonb: %d trailing bytes after decode", len(b)-n)
	}
	return v, nil
}

func decodeAt(b []byte) (value.Value, int, error) {
	if len(b) == 0 {
		return value.Value{}, 0, fmt.Errorf("jsonb: unexpected end of buffer")
	}
	tag := b[0]
	rest := b[1:]
	off := 1
	switch tag {
	case tagNull:
		return value.NewNull(), off, nil
	case tagFalse:
		return value.NewBool(false), off, nil
	case tagTrue:
		return value.NewBool(true), off, nil
	case tagInt:
		if len(rest) < 8 {
			return value.Value{}, 0, fmt.Errorf("jsonb: truncated integer")
		}
		i := int64(binary.LittleEndian.Uint64(rest[:8]))
		return value.NewInt(i), off + 8, nil
	case tagFloat:
		if len(rest) < 8 {
			return value.Value{}, 0, fmt.Errorf("jsonb: truncated float")
		}
		bits := binary.LittleEndian.Uint64(rest[:8])
		return value.NewFloat(math.Float64frombits(bits)), off + 8, nil
	case tagString:
		slen, n := binary.Uvarint(rest)
		if n <= 0 || uint64(len(rest)-n) < slen {
			return value.Value{}, 0, fmt.Errorf("jsonb: truncated string")
		}
		s := string(rest[n : n+int(slen)])
		return value.NewString(s), off + n + int(slen), nil
	case tagArray:
		count, n := binary.Uvarint(rest)
		if n <= 0 {
			return value.Value{}, 0, fmt.Errorf("jsonb: truncated array header")
		}
		rest = rest[n:]
		consumed := off + n
		elems := make([]value.Value, 0, count)
		for i := uint64(0); i < count; i++ {
			clen, n2 := binary.Uvarint(rest)
			if n2 <= 0 || uint64(len(rest)-n2) < clen {
				return value.Value{}, 0, fmt.Errorf("jsonb: truncated array element")
			}
			rest = rest[n2:]
			consumed += n2
			child, _, err := decodeAt(rest[:clen])
			if err != nil {
				return value.Value{}, 0, err
			}
			elems = append(elems, child)
			rest = rest[clen:]
			consumed += int(clen)
		}
		return value.NewArray(elems), consumed, nil
	case tagObject:
		count, n := binary.Uvarint(rest)
		if n <= 0 {
			return value.Value{}, 0, fmt.Errorf("jsonb: truncated object header")
		}
		rest = rest[n:]
		consumed := off + n
		fields := make([]value.Field, 0, count)
		for i := uint64(0); i < count; i++ {
			klen, n2 := binary.Uvarint(rest)
			if n2 <= 0 || uint64(len(rest)-n2) < klen {
				return value.Value{}, 0, fmt.Errorf("jsonb: truncated object key")
			}
			rest = rest[n2:]
			consumed += n2
			key := string(rest[:klen])
			rest = rest[klen:]
			consumed += int(klen)

			vlen, n3 := binary.Uvarint(rest)
			if n3 <= 0 || uint64(len(rest)-n3) < vlen {
				return value.Value{}, 0, fmt.Errorf("jsonb: truncated object value")
			}
			rest = rest[n3:]
			consumed += n3
			child, _, err := decodeAt(rest[:vlen])
			if err != nil {
				return value.Value{}, 0, err
			}
			fields = append(fields, value.Field{Key: key, Val: child})
			rest = rest[vlen:]
			consumed += int(vlen)
		}
		return value.NewObject(fields), consumed, nil
	default:
		return value.Value{}, 0, fmt.Errorf("jsonb: unknown tag %d", tag)
	}
}

// SelectByPath returns the raw self-describing byte sub-slice addressed by
// path, without allocating a value.Value for any sibling it skips over.
// An empty path returns b itself.
func SelectByPath(b []byte, path []Step) ([]byte, bool) {
	cur := b
	for _, step := range path {
		if len(cur) == 0 {
			return nil, false
		}
		tag := cur[0]
		rest := cur[1:]
		if step.IsIndex {
			if tag != tagArray {
				return nil, false
			}
			count, n := binary.Uvarint(rest)
			if n <= 0 {
				return nil, false
			}
			rest = rest[n:]
			if step.Index < 0 || uint64(step.Index) >= count {
				return nil, false
			}
			found := false
			for i := uint64(0); i < count; i++ {
				clen, n2 := binary.Uvarint(rest)
				if n2 <= 0 || uint64(len(rest)-n2) < clen {
					return nil, false
				}
				rest = rest[n2:]
				if i == uint64(step.Index) {
					cur = rest[:clen]
					found = true
					break
				}
				rest = rest[clen:]
			}
			if !found {
				return nil, false
			}
		} else {
			if tag != tagObject {
				return nil, false
			}
			count, n := binary.Uvarint(rest)
			if n <= 0 {
				return nil, false
			}
			rest = rest[n:]
			found := false
			for i := uint64(0); i < count; i++ {
				klen, n2 := binary.Uvarint(rest)
				if n2 <= 0 || uint64(len(rest)-n2) < klen {
					return nil, false
				}
				rest = rest[n2:]
				key := string(rest[:klen])
				rest = rest[klen:]

				vlen, n3 := binary.Uvarint(rest)
				if n3 <= 0 || uint64(len(rest)-n3) < vlen {
					return nil, false
				}
				rest = rest[n3:]
				if key == step.Field {
					cur = rest[:vlen]
					found = true
					break
				}
				rest = rest[vlen:]
			}
			if !found {
				return nil, false
			}
		}
	}
	return cur, true
}

// ExtractF64 decodes a single numeric leaf without building any
// intermediate value.Value tree. It returns false when the path is
// absent or the leaf is non-numeric.
func ExtractF64(b []byte, path []Step) (float64, bool) {
	sub, ok := SelectByPath(b, path)
	if !ok || len(sub) == 0 {
		return 0, false
	}
	switch sub[0] {
	case tagInt:
		if len(sub) < 9 {
			return 0, false
		}
		return float64(int64(binary.LittleEndian.Uint64(sub[1:9]))), true
	case tagFloat:
		if len(sub) < 9 {
			return 0, false
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(sub[1:9])), true
	default:
		return 0, false
	}
}

// IsNull reports whether a raw sub-slice (as returned by SelectByPath)
// encodes a JSON null, without decoding it. JSTable records encode
// tombstones as a null document body, so the iterator uses this to
// recognize a tombstone without materializing anything.
func IsNull(sub []byte) bool {
	return len(sub) > 0 && sub[0] == tagNull
}

// DecodeSub fully decodes a raw sub-slice previously returned by
// SelectByPath, e.g. for ProjectOp materializing a referenced sub-tree.
func DecodeSub(b []byte) (value.Value, error) {
	v, _, err := decodeAt(b)
	return v, err
}
