// Package jstable implements a single immutable on-disk run of ArgusDB's
// LSM tree: a summary file (timestamp, schema, membership filter,
// sparse index) paired with a data file of length-prefixed JSONB
// records. Once written, a run is never mutated in place — compaction
// produces new runs and the old ones are deleted.
package jstable

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/argusdb/argus/internal/argerr"
	"github.com/argusdb/argus/internal/filter"
	"github.com/argusdb/argus/internal/jsonb"
	"github.com/argusdb/argus/internal/schema"
	"github.com/argusdb/argus/internal/value"
)

const (
	summaryExt = ".summary"
	dataExt    = ".data"
	tmpSuffix  = ".tmp"
)

func summaryPath(dir, name string) string { return filepath.Join(dir, name+summaryExt) }
func dataPath(dir, name string) string    { return filepath.Join(dir, name+dataExt) }

// Entry is one record a writer consumes from its input stream: a document
// id paired with either its live body or a tombstone.
type Entry struct {
	ID   string
	Doc  value.Value
	Tomb bool
}

// IndexEntry is one sparse-index pair: the first id at or after a
// index_threshold-byte gap in the data file, and that record's byte
// offset.
type IndexEntry struct {
	ID     string
	Offset int64
}

// Descriptor identifies one run on disk: its directory, base name (no
// extension), and the schema and timestamp recorded in its summary.
// The LSM engine's registry is an ordered slice of these, consulted
// newest-first.
type Descriptor struct {
	Dir       string
	Name      string
	Timestamp int64 // unix millis, when the run was flushed or produced by compaction
	Schema    *schema.Schema
}

func (d *Descriptor) SummaryPath() string { return summaryPath(d.Dir, d.Name) }
func (d *Descriptor) DataPath() string    { return dataPath(d.Dir, d.Name) }

func writeLengthPrefixed(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readLengthPrefixed(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func recordValue(id string, doc value.Value, tomb bool) value.Value {
	body := doc
	if tomb {
		body = value.NewNull()
	}
	return value.NewArray([]value.Value{value.NewString(id), body})
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
}
