package jstable

import (
	"io"
	"os"
	"sort"

	"github.com/argusdb/argus/internal/argerr"
	"github.com/argusdb/argus/internal/filter"
	"github.com/argusdb/argus/internal/jsonb"
	"github.com/argusdb/argus/internal/schema"
	"github.com/argusdb/argus/internal/value"
)

// Summary is the eagerly-loaded content of a run's summary file: its
// timestamp, inferred schema, membership filter, and sparse index. The
// data file is never opened until a Scan or Lookup actually needs it.
type Summary struct {
	Dir       string
	Name      string
	Timestamp int64
	Schema    *schema.Schema
	Filter    *filter.Filter
	Index     []IndexEntry
}

// OpenSummary reads and decodes the three summary entries: header,
// filter, and the sparse index written alongside them.
func OpenSummary(dir, name string) (*Summary, error) {
	f, err := os.Open(summaryPath(dir, name))
	if err != nil {
		return nil, argerr.Wrap(argerr.IoError, "open jstable summary", err)
	}
	defer f.Close()

	headerRaw, err := readLengthPrefixed(f)
	if err != nil {
		return nil, argerr.Wrap(argerr.CorruptFormat, "read jstable summary header", err)
	}
	header, err := jsonb.Decode(headerRaw)
	if err != nil {
		return nil, argerr.Wrap(argerr.CorruptFormat, "decode jstable summary header", err)
	}
	filterRaw, err := readLengthPrefixed(f)
	if err != nil {
		return nil, argerr.Wrap(argerr.CorruptFormat, "read jstable summary filter", err)
	}
	filterVal, err := jsonb.Decode(filterRaw)
	if err != nil {
		return nil, argerr.Wrap(argerr.CorruptFormat, "decode jstable summary filter", err)
	}
	indexRaw, err := readLengthPrefixed(f)
	if err != nil {
		return nil, argerr.Wrap(argerr.CorruptFormat, "read jstable summary index", err)
	}
	indexVal, err := jsonb.Decode(indexRaw)
	if err != nil {
		return nil, argerr.Wrap(argerr.CorruptFormat, "decode jstable summary index", err)
	}

	tsField, _ := header.Get("timestamp")
	schemaField, _ := header.Get("schema")

	index := make([]IndexEntry, 0, len(indexVal.Elems()))
	for _, pair := range indexVal.Elems() {
		idVal, _ := pair.Index(0)
		offVal, _ := pair.Index(1)
		index = append(index, IndexEntry{ID: idVal.String(), Offset: offVal.Int()})
	}

	return &Summary{
		Dir:       dir,
		Name:      name,
		Timestamp: tsField.Int(),
		Schema:    schema.FromValue(schemaField),
		Filter:    filter.FromValue(filterVal),
		Index:     index,
	}, nil
}

func (s *Summary) Descriptor() *Descriptor {
	return &Descriptor{Dir: s.Dir, Name: s.Name, Timestamp: s.Timestamp, Schema: s.Schema}
}

// SummaryPathFor and DataPathFor return this run's two file paths, used
// by the LSM engine to delete a run superseded by compaction.
func (s *Summary) SummaryPathFor() string { return summaryPath(s.Dir, s.Name) }
func (s *Summary) DataPathFor() string    { return dataPath(s.Dir, s.Name) }

// LazyDoc is a handle onto one record's raw JSONB document body, decoded
// only as far as a caller asks: Raw is the body's own self-describing
// byte slice, so ExtractF64/SelectByPath can resolve one field without
// decoding the rest of the document.
type LazyDoc struct {
	ID     string
	Raw    []byte
	Tomb   bool
	Schema *schema.Schema
}

func (d LazyDoc) ExtractF64(path []jsonb.Step) (float64, bool) {
	return jsonb.ExtractF64(d.Raw, path)
}

func (d LazyDoc) SelectByPath(path []jsonb.Step) ([]byte, bool) {
	return jsonb.SelectByPath(d.Raw, path)
}

func (d LazyDoc) Decode() (value.Value, error) {
	if d.Tomb {
		return value.NewNull(), nil
	}
	return jsonb.DecodeSub(d.Raw)
}

func readRecord(r io.Reader) (id string, body []byte, tomb bool, err error) {
	raw, err := readLengthPrefixed(r)
	if err != nil {
		if err == io.EOF {
			return "", nil, false, io.EOF
		}
		return "", nil, false, argerr.Wrap(argerr.CorruptFormat, "read jstable record", err)
	}
	idSub, ok := jsonb.SelectByPath(raw, []jsonb.Step{jsonb.IndexStep(0)})
	if !ok {
		return "", nil, false, argerr.New(argerr.CorruptFormat, "jstable record missing id")
	}
	idVal, err := jsonb.DecodeSub(idSub)
	if err != nil {
		return "", nil, false, argerr.Wrap(argerr.CorruptFormat, "decode jstable record id", err)
	}
	bodySub, ok := jsonb.SelectByPath(raw, []jsonb.Step{jsonb.IndexStep(1)})
	if !ok {
		return "", nil, false, argerr.New(argerr.CorruptFormat, "jstable record missing body")
	}
	return idVal.String(), bodySub, jsonb.IsNull(bodySub), nil
}

// Iterator streams (id, LazyDoc) pairs from a run's data file in
// ascending id order, including tombstones — suppression of a shadowed
// tombstone for a plain read, versus propagating it through compaction,
// is the merged iterator's job (internal/lsm), not this type's.
//
// If Predicate is set, a non-tombstone record failing it is skipped
// before the caller ever sees it (predicate pushdown); tombstones
// always pass through regardless.
type Iterator struct {
	f         *os.File
	schema    *schema.Schema
	Predicate func(LazyDoc) bool
}

// Scan opens the data file for sequential streaming from the start.
func (s *Summary) Scan() (*Iterator, error) {
	f, err := os.Open(dataPath(s.Dir, s.Name))
	if err != nil {
		return nil, argerr.Wrap(argerr.IoError, "open jstable data file", err)
	}
	return &Iterator{f: f, schema: s.Schema}, nil
}

// Next returns the next record, or ok=false at end of file.
func (it *Iterator) Next() (LazyDoc, bool, error) {
	for {
		id, body, tomb, err := readRecord(it.f)
		if err != nil {
			if err == io.EOF {
				return LazyDoc{}, false, nil
			}
			return LazyDoc{}, false, err
		}
		doc := LazyDoc{ID: id, Raw: body, Tomb: tomb, Schema: it.schema}
		if !tomb && it.Predicate != nil && !it.Predicate(doc) {
			continue
		}
		return doc, true, nil
	}
}

func (it *Iterator) Close() error { return it.f.Close() }

// LookupStatus is the three-way outcome of a point lookup.
type LookupStatus int

const (
	Miss LookupStatus = iota
	Hit
	Tombstoned
)

// Lookup resolves id within this run via filter check, sparse-index
// binary search, and a bounded forward scan. A Miss never touches the
// data file when the membership filter rules id out.
func (s *Summary) Lookup(id string) (LazyDoc, LookupStatus, error) {
	if s.Filter != nil && !s.Filter.MayContain(id) {
		return LazyDoc{}, Miss, nil
	}

	var startOffset int64
	if len(s.Index) > 0 {
		i := sort.Search(len(s.Index), func(i int) bool { return s.Index[i].ID > id })
		if i > 0 {
			startOffset = s.Index[i-1].Offset
		}
	}

	f, err := os.Open(dataPath(s.Dir, s.Name))
	if err != nil {
		return LazyDoc{}, Miss, argerr.Wrap(argerr.IoError, "open jstable data file", err)
	}
	defer f.Close()
	if startOffset > 0 {
		if _, err := f.Seek(startOffset, io.SeekStart); err != nil {
			return LazyDoc{}, Miss, argerr.Wrap(argerr.IoError, "seek jstable data file", err)
		}
	}

	for {
		recID, body, tomb, err := readRecord(f)
		if err != nil {
			if err == io.EOF {
				return LazyDoc{}, Miss, nil
			}
			return LazyDoc{}, Miss, err
		}
		if recID < id {
			continue
		}
		if recID > id {
			return LazyDoc{}, Miss, nil
		}
		doc := LazyDoc{ID: recID, Raw: body, Tomb: tomb, Schema: s.Schema}
		if tomb {
			return doc, Tombstoned, nil
		}
		return doc, Hit, nil
	}
}
