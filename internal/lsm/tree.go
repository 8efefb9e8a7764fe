// Package lsm ties together the memtable, write-ahead log, and JSTable
// runs into ArgusDB's two-level LSM tree. Tree is
// the per-collection engine: every mutation goes through its single
// write path (memtable insert/update/delete plus a WAL append), reads
// merge the memtable with the run registry newest-first, and Flush /
// Compact are the two operations that turn memtable or run contents into
// new immutable JSTable files.
package lsm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/argusdb/argus/internal/argerr"
	"github.com/argusdb/argus/internal/ids"
	"github.com/argusdb/argus/internal/jstable"
	"github.com/argusdb/argus/internal/memtable"
	"github.com/argusdb/argus/internal/schema"
	"github.com/argusdb/argus/internal/value"
	"github.com/argusdb/argus/internal/wal"
)

// Config is the subset of engine configuration a single
// collection's tree needs.
type Config struct {
	MemtableThreshold int
	JSTableThreshold  int
	JSTableDir        string
	IndexThreshold    int
	StrictDeletes     bool
}

// Tree is one collection's LSM tree: a memtable, its write-ahead log,
// and a newest-first registry of on-disk runs. All mutating operations
// take writeMu, matching the single-writer design; readers (Get, Iterate)
// hold registryMu's read lock only long enough to copy the current
// registry slice header, so
// a concurrent flush or compaction's atomic pointer swap never tears a
// reader's view.
type Tree struct {
	name string
	cfg  Config
	gen  *ids.Generator
	log  arbor.ILogger

	writeMu sync.Mutex
	mt      *memtable.Memtable
	w       *wal.WAL

	registryMu sync.RWMutex
	registry   []*jstable.Summary // newest first

	collDir string
	runDir  string
	runSeq  int
}

// Open recovers (or creates) a collection's tree: loads every existing
// run's summary, opens the WAL, and replays it into a fresh memtable by
// scanning the run directory and then replaying the WAL.
func Open(dir, name string, cfg Config, logger arbor.ILogger) (*Tree, error) {
	collDir := filepath.Join(dir, name)
	if err := os.MkdirAll(collDir, 0755); err != nil {
		return nil, argerr.Wrap(argerr.IoError, "create collection directory", err)
	}
	runDir := filepath.Join(collDir, cfg.JSTableDir)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, argerr.Wrap(argerr.IoError, "create jstable directory", err)
	}

	t := &Tree{name: name, cfg: cfg, gen: ids.NewGenerator(), log: logger, mt: memtable.New(), collDir: collDir, runDir: runDir}

	entries, err := os.ReadDir(runDir)
	if err != nil {
		return nil, argerr.Wrap(argerr.IoError, "read jstable directory", err)
	}
	seen := make(map[string]bool)
	maxSeq := -1
	for _, e := range entries {
		base := e.Name()
		ext := filepath.Ext(base)
		if ext != ".summary" && ext != ".data" {
			continue
		}
		runName := base[:len(base)-len(ext)]
		if seen[runName] {
			continue
		}
		seen[runName] = true
		var seq int
		if _, err := fmt.Sscanf(runName, "run-%06d", &seq); err == nil && seq > maxSeq {
			maxSeq = seq
		}
		sum, err := jstable.OpenSummary(runDir, runName)
		if err != nil {
			return nil, err
		}
		t.registry = append(t.registry, sum)
	}
	sort.Slice(t.registry, func(i, j int) bool { return t.registry[i].Timestamp > t.registry[j].Timestamp })
	t.runSeq = maxSeq + 1

	walDir := filepath.Join(collDir, "wal")
	w, err := wal.Open(walDir, logger)
	if err != nil {
		return nil, err
	}
	t.w = w

	ops, err := wal.Replay(walDir, logger)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		switch op.Kind {
		case wal.OpInsert:
			if _, err := t.mt.Insert(t.gen, op.ID, op.Doc); err != nil {
				logger.Warn().Err(err).Str("id", op.ID).Msg("lsm: skipped duplicate insert during replay")
			}
		case wal.OpUpdate:
			if err := t.mt.Update(op.ID, op.Doc); err != nil {
				logger.Warn().Err(err).Str("id", op.ID).Msg("lsm: update-of-unknown-id during replay, applying as insert")
				if _, err := t.mt.Insert(t.gen, op.ID, op.Doc); err != nil {
					return nil, err
				}
			}
		case wal.OpDelete:
			t.mt.Delete(op.ID)
		}
	}
	logger.Debug().Str("collection", name).Int("runs", len(t.registry)).Int("replayed", len(ops)).Msg("lsm: recovered tree")
	return t, nil
}

// Insert, Update, and Delete each perform a WAL append followed by a
// memtable mutation under the same lock, so the write is durable before
// the in-memory state changes. Each rejects the mutation before the WAL
// append when its precondition already fails, so a rejected call never
// becomes durable. When the memtable's live entry count crosses
// MemtableThreshold, a flush is triggered synchronously before the call
// returns, matching the single-writer model's simplicity over background
// compaction.
func (t *Tree) Insert(maybeID string, doc value.Value) (string, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	id := maybeID
	if id == "" {
		id = t.gen.New()
	} else if _, tomb, found := t.mt.Get(id); found && !tomb {
		return "", argerr.New(argerr.DuplicateId, "id already exists: "+id)
	}

	if err := t.w.Append(wal.Operation{Timestamp: time.Now(), Kind: wal.OpInsert, ID: id, Doc: doc}); err != nil {
		return "", err
	}
	gotID, err := t.mt.Insert(t.gen, id, doc)
	if err != nil {
		return "", err
	}
	if t.mt.Size() >= t.cfg.MemtableThreshold {
		if err := t.flushLocked(); err != nil {
			return gotID, err
		}
	}
	return gotID, nil
}

// Update applies doc to id. It first checks the memtable's own view;
// if absent there it must still check the registry (an update can
// target a live document that lives only in a lower run) before
// reporting NotFound.
func (t *Tree) Update(id string, doc value.Value) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, tomb, found := t.mt.Get(id); found {
		if tomb {
			return argerr.New(argerr.NotFound, "no live entry for id: "+id)
		}
	} else {
		status, err := t.lookupRegistryLocked(id)
		if err != nil {
			return err
		}
		if status != jstable.Hit {
			return argerr.New(argerr.NotFound, "no live entry for id: "+id)
		}
	}

	if err := t.w.Append(wal.Operation{Timestamp: time.Now(), Kind: wal.OpUpdate, ID: id, Doc: doc}); err != nil {
		return err
	}
	// Reflect the update in the memtable regardless of which level
	// currently holds the live document: inserting it here shadows the
	// older run's copy on every subsequent read, since the memtable is
	// always consulted first.
	if _, _, found := t.mt.Get(id); found {
		if err := t.mt.Update(id, doc); err != nil {
			return err
		}
	} else if _, err := t.mt.Insert(t.gen, id, doc); err != nil {
		return err
	}
	if t.mt.Size() >= t.cfg.MemtableThreshold {
		return t.flushLocked()
	}
	return nil
}

// Delete tombstones id. With StrictDeletes off (the default), deleting
// an id that has never existed anywhere still records a tombstone and
// returns nil. With StrictDeletes on, Delete consults the merged view
// first and returns NotFound for an id absent everywhere.
func (t *Tree) Delete(id string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.cfg.StrictDeletes {
		_, status, found := t.getLocked(id)
		if !found || status == jstable.Tombstoned {
			return argerr.New(argerr.NotFound, "no entry for id: "+id)
		}
	}

	if err := t.w.Append(wal.Operation{Timestamp: time.Now(), Kind: wal.OpDelete, ID: id}); err != nil {
		return err
	}
	t.mt.Delete(id)
	return nil
}

// getLocked resolves id through the memtable first, falling back to the
// registry newest-first; it must be called with writeMu or a caller that
// otherwise guarantees no concurrent flush/compaction swap.
func (t *Tree) getLocked(id string) (value.Value, jstable.LookupStatus, bool) {
	if doc, tomb, found := t.mt.Get(id); found {
		if tomb {
			return value.Value{}, jstable.Tombstoned, true
		}
		return doc, jstable.Hit, true
	}
	status, err := t.lookupRegistryLocked(id)
	if err != nil || status == jstable.Miss {
		return value.Value{}, jstable.Miss, false
	}
	if status == jstable.Tombstoned {
		return value.Value{}, jstable.Tombstoned, true
	}
	doc, err := t.lookupDocLocked(id)
	if err != nil {
		return value.Value{}, jstable.Miss, false
	}
	return doc, jstable.Hit, true
}

func (t *Tree) lookupRegistryLocked(id string) (jstable.LookupStatus, error) {
	t.registryMu.RLock()
	regs := t.registry
	t.registryMu.RUnlock()
	for _, sum := range regs {
		_, status, err := sum.Lookup(id)
		if err != nil {
			return jstable.Miss, err
		}
		if status != jstable.Miss {
			return status, nil
		}
	}
	return jstable.Miss, nil
}

func (t *Tree) lookupDocLocked(id string) (value.Value, error) {
	t.registryMu.RLock()
	regs := t.registry
	t.registryMu.RUnlock()
	for _, sum := range regs {
		doc, status, err := sum.Lookup(id)
		if err != nil {
			return value.Value{}, err
		}
		if status == jstable.Hit {
			return doc.Decode()
		}
		if status == jstable.Tombstoned {
			return value.Value{}, argerr.New(argerr.NotFound, "tombstoned: "+id)
		}
	}
	return value.Value{}, argerr.New(argerr.NotFound, "not found: "+id)
}

// Get resolves id to its live document through the memtable and registry
// newest-first. It is safe for concurrent use with Insert/Update/Delete
// and with Flush/Compact.
func (t *Tree) Get(id string) (value.Value, error) {
	if doc, tomb, found := t.mt.Get(id); found {
		if tomb {
			return value.Value{}, argerr.New(argerr.NotFound, "not found: "+id)
		}
		return doc, nil
	}
	return t.lookupDocLocked(id)
}

// Schema returns the schema merged across the live memtable and every
// run in the registry.
func (t *Tree) Schema() *schema.Schema {
	t.registryMu.RLock()
	defer t.registryMu.RUnlock()
	out := t.mt.Schema()
	for _, sum := range t.registry {
		out = schema.Merge(out, sum.Schema)
	}
	return out
}

// Name returns the collection name this tree serves.
func (t *Tree) Name() string { return t.name }

// RunCount reports the number of JSTables currently in the registry,
// used by the admin CLI and scheduled maintenance to decide whether a
// forced compaction is worthwhile.
func (t *Tree) RunCount() int {
	t.registryMu.RLock()
	defer t.registryMu.RUnlock()
	return len(t.registry)
}

// Close flushes nothing (an unflushed memtable is recovered from the WAL
// on next Open) and closes the active WAL segment.
func (t *Tree) Close() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.w.Close()
}
