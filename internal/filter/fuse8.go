// Package filter implements the JSTable membership filter: a Binary
// Fuse8 probabilistic set built once over a run's id set, allowing a
// point Lookup to skip a run's data file entirely when an id cannot
// possibly be present. Binary Fuse8
// guarantees no false negatives, the only correctness property its
// callers rely on.
package filter

import (
	"hash/fnv"

	"github.com/FastFilter/xorfilter"

	"github.com/argusdb/argus/internal/value"
)

// Filter wraps a xorfilter.BinaryFuse8 keyed on the FNV-1a hash of each
// document id. It is built once by the JSTable writer and is immutable
// afterward, matching the immutable-run design.
type Filter struct {
	bf *xorfilter.BinaryFuse8
}

func hashID(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

// Build constructs a membership filter over a run's id set. ids must be
// non-empty; an empty run is not written by the JSTable writer (there is
// nothing to flush).
func Build(ids []string) (*Filter, error) {
	keys := make([]uint64, len(ids))
	for i, id := range ids {
		keys[i] = hashID(id)
	}
	bf, err := xorfilter.PopulateBinaryFuse8(keys)
	if err != nil {
		return nil, err
	}
	return &Filter{bf: bf}, nil
}

// MayContain reports whether id could be present in the run. false is a
// definitive miss (no I/O to the data file is needed); true requires a
// sparse-index lookup to confirm.
func (f *Filter) MayContain(id string) bool {
	if f == nil || f.bf == nil {
		return true
	}
	return f.bf.Contains(hashID(id))
}

// ToValue serializes the filter's fields into a document so it can travel
// through the same JSONB codec as everything else in a JSTable summary,
// where it is written as the second summary entry.
func (f *Filter) ToValue() value.Value {
	fp := make([]value.Value, len(f.bf.Fingerprints))
	for i, b := range f.bf.Fingerprints {
		fp[i] = value.NewInt(int64(b))
	}
	return value.NewObject([]value.Field{
		{Key: "seed", Val: value.NewInt(int64(f.bf.Seed))},
		{Key: "segment_length", Val: value.NewInt(int64(f.bf.SegmentLength))},
		{Key: "segment_length_mask", Val: value.NewInt(int64(f.bf.SegmentLengthMask))},
		{Key: "segment_count", Val: value.NewInt(int64(f.bf.SegmentCount))},
		{Key: "segment_count_length", Val: value.NewInt(int64(f.bf.SegmentCountLength))},
		{Key: "fingerprints", Val: value.NewArray(fp)},
	})
}

// FromValue is the inverse of ToValue, reconstructing a Filter from a
// decoded summary entry.
func FromValue(v value.Value) *Filter {
	get := func(k string) int64 {
		f, _ := v.Get(k)
		return f.Int()
	}
	fpField, _ := v.Get("fingerprints")
	fp := make([]uint8, len(fpField.Elems()))
	for i, e := range fpField.Elems() {
		fp[i] = uint8(e.Int())
	}
	return &Filter{bf: &xorfilter.BinaryFuse8{
		Seed:               uint64(get("seed")),
		SegmentLength:      uint32(get("segment_length")),
		SegmentLengthMask:  uint32(get("segment_length_mask")),
		SegmentCount:       uint32(get("segment_count")),
		SegmentCountLength: uint32(get("segment_count_length")),
		Fingerprints:       fp,
	}}
}
