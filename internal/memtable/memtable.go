// Package memtable implements the top level of ArgusDB's LSM tree: an
// in-memory ordered map from DocumentId to document, with tombstones for
// deletes, and a live inferred Schema reflecting every non-tombstone
// entry since the last flush.
package memtable

import (
	"sort"
	"sync"

	"github.com/argusdb/argus/internal/argerr"
	"github.com/argusdb/argus/internal/ids"
	"github.com/argusdb/argus/internal/schema"
	"github.com/argusdb/argus/internal/value"
)

type entry struct {
	doc  value.Value
	tomb bool
}

// Record is one (id, maybe-tombstoned document) pair as yielded by Scan.
type Record struct {
	ID   string
	Doc  value.Value
	Tomb bool
}

// Memtable is the mutable top level of the tree. All mutating methods
// must be called from the single serialized write path; Scan and Get may
// be called concurrently with mutation and take a read lock, so a query
// iterator never observes a torn update to a single entry — though a
// whole in-progress flush is only atomic to readers at the LSM-engine
// level, not within this type alone.
type Memtable struct {
	mu      sync.RWMutex
	entries map[string]entry
	schema  *schema.Schema
}

func New() *Memtable {
	return &Memtable{entries: make(map[string]entry), schema: &schema.Schema{}}
}

// Insert assigns an id via gen when maybeID is empty, stores the
// document, merges its inferred schema into the active schema, and
// returns the id. It fails with DuplicateId when maybeID already names a
// live (non-tombstoned) entry.
func (m *Memtable) Insert(gen *ids.Generator, maybeID string, doc value.Value) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := maybeID
	if id != "" {
		if e, ok := m.entries[id]; ok && !e.tomb {
			return "", argerr.New(argerr.DuplicateId, "id already exists: "+id)
		}
	} else {
		id = gen.New()
	}
	m.entries[id] = entry{doc: doc}
	m.schema = schema.Merge(m.schema, schema.Infer(doc))
	return id, nil
}

// Update overwrites an existing live entry and merges its schema. It
// fails with NotFound if id is absent or tombstoned within this
// memtable — callers wanting update-through-to-a-lower-run semantics
// must check the LSM engine's merged view first.
func (m *Memtable) Update(id string, doc value.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok || e.tomb {
		return argerr.New(argerr.NotFound, "no live entry for id: "+id)
	}
	m.entries[id] = entry{doc: doc}
	m.schema = schema.Merge(m.schema, schema.Infer(doc))
	return nil
}

// Delete unconditionally tombstones id: idempotent if already
// tombstoned, and recorded even if id was never seen by this memtable,
// since a delete may be shadowing an entry that lives only in an older
// JSTable run. The schema is left untouched.
func (m *Memtable) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = entry{tomb: true}
}

// Get returns the live document, tombstone flag, and whether id has any
// entry at all in this memtable.
func (m *Memtable) Get(id string) (doc value.Value, tomb bool, found bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e.doc, e.tomb, ok
}

// Size is the count of non-tombstone entries.
func (m *Memtable) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		if !e.tomb {
			n++
		}
	}
	return n
}

// Schema returns the active inferred schema. The returned *schema.Schema
// is immutable (Merge never mutates in place), so callers may hold onto
// it past further mutation of the memtable.
func (m *Memtable) Schema() *schema.Schema {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schema
}

// Scan returns every entry (including tombstones) in ascending id order,
// a point-in-time snapshot safe to iterate without further locking.
func (m *Memtable) Scan() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Record, len(ids))
	for i, id := range ids {
		e := m.entries[id]
		out[i] = Record{ID: id, Doc: e.doc, Tomb: e.tomb}
	}
	return out
}

// Reset clears all entries and the active schema, called after a flush.
func (m *Memtable) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]entry)
	m.schema = &schema.Schema{}
}
