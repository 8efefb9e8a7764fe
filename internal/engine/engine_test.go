package engine

import (
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/argusdb/argus/internal/argerr"
	"github.com/argusdb/argus/internal/common"
	"github.com/argusdb/argus/internal/query"
	"github.com/argusdb/argus/internal/value"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Engine.DataDir = t.TempDir()
	cfg.Engine.MemtableThreshold = 4
	cfg.Engine.JSTableThreshold = 3
	cfg.Maintain.Enabled = false
	return cfg
}

func testLogger() arbor.ILogger { return arbor.NewLogger() }

func TestCreateShowDropCollection(t *testing.T) {
	e, err := Open(testConfig(t), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	if err := e.CreateCollection("widgets"); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if err := e.CreateCollection("widgets"); !argerr.Is(err, argerr.DuplicateId) {
		t.Fatalf("expected DuplicateId on re-creation, got %v", err)
	}

	names := e.ShowCollections()
	if len(names) != 1 || names[0] != "widgets" {
		t.Fatalf("expected [widgets], got %v", names)
	}

	if err := e.DropCollection("widgets"); err != nil {
		t.Fatalf("DropCollection: %v", err)
	}
	if err := e.DropCollection("widgets"); !argerr.Is(err, argerr.NotFound) {
		t.Fatalf("expected NotFound dropping an already-dropped collection, got %v", err)
	}
	if len(e.ShowCollections()) != 0 {
		t.Fatalf("expected no collections after drop")
	}
}

func TestInsertGetUpdateDeleteThroughEngine(t *testing.T) {
	e, err := Open(testConfig(t), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	if err := e.CreateCollection("docs"); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	doc := value.NewObject([]value.Field{{Key: "a", Val: value.NewInt(1)}})
	id, err := e.Insert("docs", doc, "")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := e.Get("docs", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	a, _ := got.Get("a")
	if a.Int() != 1 {
		t.Fatalf("expected a=1, got %v", a.Int())
	}

	if err := e.Update("docs", id, value.NewObject([]value.Field{{Key: "a", Val: value.NewInt(2)}})); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = e.Get("docs", id)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	a, _ = got.Get("a")
	if a.Int() != 2 {
		t.Fatalf("expected a=2 after update, got %v", a.Int())
	}

	if err := e.Delete("docs", id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := e.Get("docs", id); !argerr.Is(err, argerr.NotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestOperationsOnUnknownCollectionReturnNotFound(t *testing.T) {
	e, err := Open(testConfig(t), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	if _, err := e.Insert("ghost", value.NewInt(1), ""); !argerr.Is(err, argerr.NotFound) {
		t.Fatalf("expected NotFound inserting into an unknown collection, got %v", err)
	}
}

func TestExecuteDispatchesEveryStatementKind(t *testing.T) {
	e, err := Open(testConfig(t), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	if _, err := e.Execute(Statement{Kind: StmtCreateCollection, Collection: "docs"}); err != nil {
		t.Fatalf("StmtCreateCollection: %v", err)
	}

	res, err := e.Execute(Statement{Kind: StmtShowCollections})
	if err != nil {
		t.Fatalf("StmtShowCollections: %v", err)
	}
	if len(res.Collections) != 1 || res.Collections[0] != "docs" {
		t.Fatalf("expected [docs], got %v", res.Collections)
	}

	insertRes, err := e.Execute(Statement{
		Kind:       StmtInsert,
		Collection: "docs",
		Docs: []value.Value{
			value.NewObject([]value.Field{{Key: "n", Val: value.NewInt(1)}}),
			value.NewObject([]value.Field{{Key: "n", Val: value.NewInt(2)}}),
		},
	})
	if err != nil {
		t.Fatalf("StmtInsert: %v", err)
	}
	if len(insertRes.InsertedIDs) != 2 {
		t.Fatalf("expected 2 inserted ids, got %d", len(insertRes.InsertedIDs))
	}

	selectRes, err := e.Execute(Statement{
		Kind:       StmtSelect,
		Collection: "docs",
		Plan:       &query.Plan{Collection: "docs", Offset: 0, Limit: -1},
	})
	if err != nil {
		t.Fatalf("StmtSelect: %v", err)
	}
	if len(selectRes.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(selectRes.Rows))
	}

	if _, err := e.Execute(Statement{Kind: StmtDropCollection, Collection: "docs"}); err != nil {
		t.Fatalf("StmtDropCollection: %v", err)
	}
}

func TestOpenRecoversMultipleCollectionsAcrossRestart(t *testing.T) {
	cfg := testConfig(t)

	e, err := Open(cfg, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, name := range []string{"a", "b"} {
		if err := e.CreateCollection(name); err != nil {
			t.Fatalf("CreateCollection(%s): %v", name, err)
		}
		if _, err := e.Insert(name, value.NewObject([]value.Field{{Key: "x", Val: value.NewInt(1)}}), "doc-1"); err != nil {
			t.Fatalf("Insert into %s: %v", name, err)
		}
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	recovered, err := Open(cfg, testLogger())
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	defer recovered.Close()

	names := recovered.ShowCollections()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("expected recovered collections [a b], got %v", names)
	}
	for _, name := range names {
		got, err := recovered.Get(name, "doc-1")
		if err != nil {
			t.Fatalf("Get(%s, doc-1) after recovery: %v", name, err)
		}
		x, _ := got.Get("x")
		if x.Int() != 1 {
			t.Fatalf("expected recovered x=1 in %s, got %v", name, x.Int())
		}
	}
}
