// Package engine ties every collection's LSM tree together behind the
// single API a frontend (a SQL parser or wire protocol, neither
// implemented here) is expected to drive: Open, Execute, Insert, Update,
// Delete. CREATE COLLECTION / DROP COLLECTION / SHOW COLLECTIONS only
// make sense with more than one named collection, so Engine owns one
// *lsm.Tree per collection rather than a single implicit tree.
package engine

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/argusdb/argus/internal/argerr"
	"github.com/argusdb/argus/internal/common"
	"github.com/argusdb/argus/internal/lsm"
	"github.com/argusdb/argus/internal/query"
	"github.com/argusdb/argus/internal/value"
)

// Engine owns every collection's LSM tree and the background
// maintenance sweep. InstanceID is a process-local correlation id,
// logged when the engine opens (and by argusd once it is ready), so
// multiple ArgusDB processes sharing a log sink can be told apart.
type Engine struct {
	cfg        *common.Config
	dataDir    string
	logger     arbor.ILogger
	InstanceID string

	mu          sync.RWMutex
	collections map[string]*lsm.Tree

	sched *Scheduler
}

// Open recovers every existing collection under cfg.Engine.DataDir and
// starts the background maintenance scheduler if enabled. Each
// subdirectory of DataDir is treated as one collection's name; a
// directory that fails to recover as a tree aborts startup rather than
// silently dropping a collection.
func Open(cfg *common.Config, logger arbor.ILogger) (*Engine, error) {
	dataDir := cfg.Engine.DataDir
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, argerr.Wrap(argerr.IoError, "create engine data directory", err)
	}

	e := &Engine{
		cfg:         cfg,
		dataDir:     dataDir,
		logger:      logger,
		InstanceID:  uuid.NewString(),
		collections: make(map[string]*lsm.Tree),
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, argerr.Wrap(argerr.IoError, "read engine data directory", err)
	}
	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		name := ent.Name()
		tree, err := lsm.Open(dataDir, name, e.treeConfig(), logger)
		if err != nil {
			return nil, argerr.Wrap(argerr.IoError, "recover collection "+name, err)
		}
		e.collections[name] = tree
	}

	logger.Info().Str("instance_id", e.InstanceID).Int("collections", len(e.collections)).Msg("engine: recovered")

	if cfg.Maintain.Enabled {
		sched, err := NewScheduler(e, cfg.Maintain.Schedule, logger)
		if err != nil {
			return nil, err
		}
		sched.Start()
		e.sched = sched
	}

	return e, nil
}

func (e *Engine) treeConfig() lsm.Config {
	return lsm.Config{
		MemtableThreshold: e.cfg.Engine.MemtableThreshold,
		JSTableThreshold:  e.cfg.Engine.JSTableThreshold,
		JSTableDir:        e.cfg.Engine.JSTableDir,
		IndexThreshold:    e.cfg.Engine.IndexThreshold,
		StrictDeletes:     e.cfg.Engine.StrictDeletes,
	}
}

// CreateCollection creates a new, empty collection. It fails with
// DuplicateId if the name is already in use, reusing the "already
// exists" error kind rather than adding a new one.
func (e *Engine) CreateCollection(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.collections[name]; ok {
		return argerr.New(argerr.DuplicateId, "collection already exists: "+name)
	}
	tree, err := lsm.Open(e.dataDir, name, e.treeConfig(), e.logger)
	if err != nil {
		return err
	}
	e.collections[name] = tree
	e.logger.Info().Str("collection", name).Msg("engine: created collection")
	return nil
}

// DropCollection closes and permanently deletes a collection's tree,
// WAL, and every JSTable run.
func (e *Engine) DropCollection(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	tree, ok := e.collections[name]
	if !ok {
		return argerr.New(argerr.NotFound, "no such collection: "+name)
	}
	if err := tree.Close(); err != nil {
		e.logger.Warn().Err(err).Str("collection", name).Msg("engine: error closing collection before drop")
	}
	delete(e.collections, name)
	dir := filepath.Join(e.dataDir, name)
	if err := os.RemoveAll(dir); err != nil {
		return argerr.Wrap(argerr.IoError, "remove collection directory", err)
	}
	e.logger.Info().Str("collection", name).Msg("engine: dropped collection")
	return nil
}

// ShowCollections lists every known collection name in sorted order.
func (e *Engine) ShowCollections() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.collections))
	for name := range e.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Collection returns the named collection's tree, for callers (the
// query planner, the admin CLI) that need direct access beyond the
// Insert/Update/Delete/Execute surface.
func (e *Engine) Collection(name string) (*lsm.Tree, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tree, ok := e.collections[name]
	if !ok {
		return nil, argerr.New(argerr.NotFound, "no such collection: "+name)
	}
	return tree, nil
}

// Insert inserts doc into collection, assigning an id if maybeID is
// empty.
func (e *Engine) Insert(collection string, doc value.Value, maybeID string) (string, error) {
	tree, err := e.Collection(collection)
	if err != nil {
		return "", err
	}
	return tree.Insert(maybeID, doc)
}

// Update overwrites id's document in collection.
func (e *Engine) Update(collection, id string, doc value.Value) error {
	tree, err := e.Collection(collection)
	if err != nil {
		return err
	}
	return tree.Update(id, doc)
}

// Delete tombstones id in collection.
func (e *Engine) Delete(collection, id string) error {
	tree, err := e.Collection(collection)
	if err != nil {
		return err
	}
	return tree.Delete(id)
}

// Get resolves id to its live document in collection, a point lookup
// outside the Execute surface (used by tests).
func (e *Engine) Get(collection, id string) (value.Value, error) {
	tree, err := e.Collection(collection)
	if err != nil {
		return value.Value{}, err
	}
	return tree.Get(id)
}

// Execute runs one internal-algebra Statement. A SQL frontend that
// lowers SELECT/INSERT/CREATE text into a Statement is not implemented
// here; frontends (or the admin CLI, which constructs the algebra
// directly) call this with an already-compiled Statement.
func (e *Engine) Execute(stmt Statement) (*Result, error) {
	switch stmt.Kind {
	case StmtCreateCollection:
		if err := e.CreateCollection(stmt.Collection); err != nil {
			return nil, err
		}
		return &Result{Kind: stmt.Kind}, nil
	case StmtDropCollection:
		if err := e.DropCollection(stmt.Collection); err != nil {
			return nil, err
		}
		return &Result{Kind: stmt.Kind}, nil
	case StmtShowCollections:
		return &Result{Kind: stmt.Kind, Collections: e.ShowCollections()}, nil
	case StmtInsert:
		ids := make([]string, len(stmt.Docs))
		for i, doc := range stmt.Docs {
			id := ""
			if i < len(stmt.IDs) {
				id = stmt.IDs[i]
			}
			got, err := e.Insert(stmt.Collection, doc, id)
			if err != nil {
				return nil, err
			}
			ids[i] = got
		}
		return &Result{Kind: stmt.Kind, InsertedIDs: ids}, nil
	case StmtSelect:
		tree, err := e.Collection(stmt.Collection)
		if err != nil {
			return nil, err
		}
		rows, err := query.Execute(tree, stmt.Plan)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: stmt.Kind, Rows: rows}, nil
	default:
		return nil, argerr.New(argerr.QueryError, "unknown statement kind")
	}
}

// Close stops the maintenance scheduler and closes every collection's
// WAL handle (an unflushed memtable replays from the WAL on next Open).
func (e *Engine) Close() error {
	if e.sched != nil {
		e.sched.Stop()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var first error
	for name, tree := range e.collections {
		if err := tree.Close(); err != nil {
			e.logger.Warn().Err(err).Str("collection", name).Msg("engine: error closing collection")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
