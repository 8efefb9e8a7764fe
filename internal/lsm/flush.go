package lsm

import (
	"fmt"

	"github.com/argusdb/argus/internal/jstable"
)

func (t *Tree) nextRunName() string {
	name := fmt.Sprintf("run-%06d", t.runSeq)
	t.runSeq++
	return name
}

// flushLocked drains the memtable into a new JSTable run, inserts it at
// the front of the registry, rotates the WAL, and resets the memtable.
// It must be called with writeMu held. The atomic step is the registry
// swap: readers either see the old registry (run not yet visible,
// memtable not yet cleared) or the new one — they never observe a
// half-updated state, because the slice header is replaced under
// registryMu in one assignment.
func (t *Tree) flushLocked() error {
	snapshot := t.mt.Scan()
	if len(snapshot) == 0 {
		return nil
	}
	sch := t.mt.Schema()

	entries := make([]jstable.Entry, len(snapshot))
	for i, r := range snapshot {
		entries[i] = jstable.Entry{ID: r.ID, Doc: r.Doc, Tomb: r.Tomb}
	}

	name := t.nextRunName()
	desc, err := jstable.Write(t.runDir, name, sch, entries, t.cfg.IndexThreshold, t.log)
	if err != nil {
		return err
	}
	sum, err := jstable.OpenSummary(t.runDir, desc.Name)
	if err != nil {
		return err
	}

	t.registryMu.Lock()
	newRegistry := make([]*jstable.Summary, 0, len(t.registry)+1)
	newRegistry = append(newRegistry, sum)
	newRegistry = append(newRegistry, t.registry...)
	t.registry = newRegistry
	registrySize := len(t.registry)
	t.registryMu.Unlock()

	t.mt.Reset()
	if err := t.w.Rotate(); err != nil {
		return err
	}
	// Everything written before this rotation is now durable in the new
	// run, so every WAL segment older than the freshly-rotated one is
	// safe to prune.
	if err := t.w.Prune(t.w.Seq()); err != nil {
		t.log.Warn().Err(err).Msg("lsm: wal prune after flush failed")
	}

	t.log.Debug().Str("collection", t.name).Str("run", name).Int("records", len(entries)).Msg("lsm: flushed memtable")

	if registrySize >= t.cfg.JSTableThreshold {
		return t.compactLocked()
	}
	return nil
}

// Flush forces a flush of the current memtable even if it has not
// crossed MemtableThreshold, used by the admin CLI and scheduled
// maintenance.
func (t *Tree) Flush() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.flushLocked()
}
