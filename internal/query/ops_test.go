package query

import (
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/argusdb/argus/internal/lsm"
	"github.com/argusdb/argus/internal/value"
)

func TestLimitOpStopsAtN(t *testing.T) {
	tree := seededTree(t, 10)
	it, err := tree.Iterate(nil)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	var op Op = NewScanOp(it)
	op = NewLimitOp(op, 3)
	out, err := Run(op, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected exactly 3 rows, got %d", len(out))
	}
}

func TestOffsetOpDropsPrefix(t *testing.T) {
	tree := seededTree(t, 5)
	it, err := tree.Iterate(nil)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	var op Op = NewScanOp(it)
	op = NewOffsetOp(op, 4)
	out, err := Run(op, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected exactly 1 row after dropping 4 of 5, got %d", len(out))
	}
}

func TestFilterOpRequiresBooleanResult(t *testing.T) {
	tree := seededTree(t, 1)
	it, err := tree.Iterate(nil)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	var op Op = NewScanOp(it)
	op = NewFilterOp(op, FieldRef{Path: CompileDottedPath("n")}) // not a bool
	if _, err := Run(op, nil); err == nil {
		t.Fatalf("expected QueryError for a non-boolean WHERE predicate")
	}
}

func TestProjectNilFieldsReturnsWholeDocument(t *testing.T) {
	tree, err := lsm.Open(t.TempDir(), "docs", lsm.Config{
		MemtableThreshold: 10, JSTableThreshold: 10, JSTableDir: "runs", IndexThreshold: 1024,
	}, arbor.NewLogger())
	if err != nil {
		t.Fatalf("lsm.Open: %v", err)
	}
	defer tree.Close()
	doc := value.NewObject([]value.Field{{Key: "a", Val: value.NewInt(1)}, {Key: "b", Val: value.NewInt(2)}})
	tree.Insert("x", doc)
	it, err := tree.Iterate(nil)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	defer it.Close()
	row, ok, err := it.Next()
	if err != nil || !ok {
		t.Fatalf("expected one row, ok=%v err=%v", ok, err)
	}
	v, err := Project(row, nil)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if !value.Equal(v, doc) {
		t.Fatalf("expected SELECT * to return the document unchanged, got %+v", v)
	}
}
