package lsm

import (
	"sort"

	"github.com/argusdb/argus/internal/jsonb"
	"github.com/argusdb/argus/internal/jstable"
	"github.com/argusdb/argus/internal/memtable"
	"github.com/argusdb/argus/internal/value"
)

// Row is the lazy document handle the query engine's pull pipeline
// consumes: it exposes typed extract-to-primitive and full decode
// without committing to either until a caller asks, whether the
// underlying record lives in the memtable (already a value.Value) or a
// run (still raw JSONB bytes).
type Row struct {
	id   string
	mem  *value.Value
	lazy *jstable.LazyDoc
}

func (r Row) ID() string { return r.id }

// ExtractF64 resolves path to a numeric leaf without decoding the rest
// of the document. For a memtable-backed row this still walks an
// already-materialized value.Value (there is nothing to save by
// delaying it further); for a run-backed row it defers straight to
// jsonb.ExtractF64 against the raw bytes.
func (r Row) ExtractF64(path []jsonb.Step) (float64, bool) {
	if r.lazy != nil {
		return r.lazy.ExtractF64(path)
	}
	v := *r.mem
	for _, step := range path {
		var ok bool
		if step.IsIndex {
			v, ok = v.Index(step.Index)
		} else {
			v, ok = v.Get(step.Field)
		}
		if !ok {
			return 0, false
		}
	}
	return v.AsFloat64()
}

// SelectByPath resolves path to a sub-value, used by FieldReference
// evaluation for non-numeric comparisons and ProjectOp.
func (r Row) SelectByPath(path []jsonb.Step) (value.Value, bool) {
	if r.lazy != nil {
		sub, ok := r.lazy.SelectByPath(path)
		if !ok {
			return value.Value{}, false
		}
		v, err := jsonb.DecodeSub(sub)
		if err != nil {
			return value.Value{}, false
		}
		return v, true
	}
	v := *r.mem
	for _, step := range path {
		var ok bool
		if step.IsIndex {
			v, ok = v.Index(step.Index)
		} else {
			v, ok = v.Get(step.Field)
		}
		if !ok {
			return value.Value{}, false
		}
	}
	return v, true
}

func (r Row) Decode() (value.Value, error) {
	if r.lazy != nil {
		return r.lazy.Decode()
	}
	return *r.mem, nil
}

// mtSource adapts a memtable snapshot into the same shape as a JSTable
// run for the merge, so the merge loop doesn't special-case level 0: the
// memtable participates in the merge as the newest, always-present
// source.
type mtSource struct {
	recs []memtable.Record
	pos  int
}

func (s *mtSource) peek() (id string, tomb bool, doc value.Value, ok bool) {
	if s.pos >= len(s.recs) {
		return "", false, value.Value{}, false
	}
	r := s.recs[s.pos]
	return r.ID, r.Tomb, r.Doc, true
}

func (s *mtSource) advance() { s.pos++ }

type runSource struct {
	it  *jstable.Iterator
	cur jstable.LazyDoc
	ok  bool
}

func (s *runSource) peek() (id string, tomb bool, ok bool) {
	if !s.ok {
		return "", false, false
	}
	return s.cur.ID, s.cur.Tomb, true
}

func (s *runSource) advance() error {
	doc, ok, err := s.it.Next()
	if err != nil {
		return err
	}
	s.cur, s.ok = doc, ok
	return nil
}

// Iterator is the merged, pull-driven view of a collection: memtable
// plus every run, newest-source-wins, ascending id order, tombstones
// suppressed. Dropping it before exhaustion releases every open run
// file handle promptly.
type Iterator struct {
	mt      *mtSource
	sources []*runSource
}

// Iterate opens a merged iterator over the collection's current
// point-in-time snapshot of memtable and registry. predicate, if
// non-nil, is pushed down to every run's scan; it is never applied to
// memtable rows, which the caller can filter directly since they are
// already decoded.
func (t *Tree) Iterate(predicate func(raw []byte) bool) (*Iterator, error) {
	mt := &mtSource{recs: t.mt.Scan()}

	t.registryMu.RLock()
	runs := append([]*jstable.Summary(nil), t.registry...)
	t.registryMu.RUnlock()

	sources := make([]*runSource, len(runs))
	for i, r := range runs {
		it, err := r.Scan()
		if err != nil {
			return nil, err
		}
		it.Predicate = func(d jstable.LazyDoc) bool {
			if predicate == nil {
				return true
			}
			return predicate(d.Raw)
		}
		doc, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		sources[i] = &runSource{it: it, cur: doc, ok: ok}
	}
	return &Iterator{mt: mt, sources: sources}, nil
}

// Close releases every run file handle this iterator opened.
func (it *Iterator) Close() error {
	for _, s := range it.sources {
		_ = s.it.Close()
	}
	return nil
}

// Next returns the next live row in ascending id order, or ok=false once
// every source is exhausted. A tombstoned id is consumed internally and
// never surfaced.
func (it *Iterator) Next() (Row, bool, error) {
	for {
		candidates := make([]string, 0, len(it.sources)+1)
		if id, _, _, ok := it.mt.peek(); ok {
			candidates = append(candidates, id)
		}
		for _, s := range it.sources {
			if id, _, ok := s.peek(); ok {
				candidates = append(candidates, id)
			}
		}
		if len(candidates) == 0 {
			return Row{}, false, nil
		}
		sort.Strings(candidates)
		winnerID := candidates[0]

		var (
			tomb    bool
			memDoc  value.Value
			lazyDoc jstable.LazyDoc
			gotDoc  bool
			isMem   bool
		)
		if id, t2, d, ok := it.mt.peek(); ok && id == winnerID {
			tomb, memDoc, gotDoc, isMem = t2, d, true, true
			it.mt.advance()
		}
		for _, s := range it.sources {
			id, t2, ok := s.peek()
			if !ok || id != winnerID {
				continue
			}
			if !gotDoc {
				tomb, gotDoc = t2, true
				if !t2 {
					lazyDoc = s.cur
				}
			}
			if err := s.advance(); err != nil {
				return Row{}, false, err
			}
		}
		if tomb || !gotDoc {
			continue
		}
		if isMem {
			return Row{id: winnerID, mem: &memDoc}, true, nil
		}
		return Row{id: winnerID, lazy: &lazyDoc}, true, nil
	}
}
