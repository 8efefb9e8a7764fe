package lsm

import (
	"os"

	"github.com/argusdb/argus/internal/jstable"
	"github.com/argusdb/argus/internal/schema"
)

// compactLocked merges every run currently in the registry into a single
// new run, keeping only the newest copy of each id and dropping
// tombstones entirely — once every run is folded into one, there is no
// older level left for a tombstone to shadow, so it can be discarded
// rather than carried forward. It must be called with writeMu held.
func (t *Tree) compactLocked() error {
	t.registryMu.RLock()
	runs := append([]*jstable.Summary(nil), t.registry...)
	t.registryMu.RUnlock()
	if len(runs) < 2 {
		return nil
	}

	iters := make([]*jstable.Iterator, len(runs))
	cur := make([]jstable.LazyDoc, len(runs))
	has := make([]bool, len(runs))
	for i, r := range runs {
		it, err := r.Scan()
		if err != nil {
			return err
		}
		iters[i] = it
		defer it.Close()
		doc, ok, err := it.Next()
		if err != nil {
			return err
		}
		cur[i], has[i] = doc, ok
	}

	var merged []jstable.Entry
	sch := &schema.Schema{}
	for _, r := range runs {
		sch = schema.Merge(sch, r.Schema)
	}

	for {
		winner := -1
		for i := range iters {
			if !has[i] {
				continue
			}
			if winner == -1 || cur[i].ID < cur[winner].ID {
				winner = i
			}
		}
		if winner == -1 {
			break
		}
		winnerID := cur[winner].ID
		if !cur[winner].Tomb {
			decoded, err := cur[winner].Decode()
			if err != nil {
				return err
			}
			merged = append(merged, jstable.Entry{ID: winnerID, Doc: decoded})
		}
		for i := range iters {
			if has[i] && cur[i].ID == winnerID {
				doc, ok, err := iters[i].Next()
				if err != nil {
					return err
				}
				cur[i], has[i] = doc, ok
			}
		}
	}

	oldRuns := runs
	if len(merged) == 0 {
		t.registryMu.Lock()
		t.registry = nil
		t.registryMu.Unlock()
		return t.removeRuns(oldRuns)
	}

	name := t.nextRunName()
	_, err := jstable.Write(t.runDir, name, sch, merged, t.cfg.IndexThreshold, t.log)
	if err != nil {
		return err
	}
	sum, err := jstable.OpenSummary(t.runDir, name)
	if err != nil {
		return err
	}

	t.registryMu.Lock()
	t.registry = []*jstable.Summary{sum}
	t.registryMu.Unlock()

	t.log.Debug().Str("collection", t.name).Str("run", name).Int("merged_runs", len(oldRuns)).Int("records", len(merged)).Msg("lsm: compacted")
	return t.removeRuns(oldRuns)
}

// removeRuns deletes the summary and data files of superseded runs. On
// Unix an already-open reader keeps its file descriptor valid until it
// closes it, so an in-flight Scan/Lookup against an old run is never
// disrupted by this.
func (t *Tree) removeRuns(runs []*jstable.Summary) error {
	for _, r := range runs {
		if err := os.Remove(r.SummaryPathFor()); err != nil && !os.IsNotExist(err) {
			t.log.Warn().Err(err).Str("run", r.Name).Msg("lsm: failed to remove obsolete summary file")
		}
		if err := os.Remove(r.DataPathFor()); err != nil && !os.IsNotExist(err) {
			t.log.Warn().Err(err).Str("run", r.Name).Msg("lsm: failed to remove obsolete data file")
		}
	}
	return nil
}

// Compact forces a merge of every current run into one, used by the
// admin CLI and scheduled maintenance.
func (t *Tree) Compact() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.compactLocked()
}
