package query

import (
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/argusdb/argus/internal/lsm"
	"github.com/argusdb/argus/internal/value"
)

func seededTree(t *testing.T, n int) *lsm.Tree {
	t.Helper()
	tree, err := lsm.Open(t.TempDir(), "docs", lsm.Config{
		MemtableThreshold: 4,
		JSTableThreshold:  3,
		JSTableDir:        "runs",
		IndexThreshold:    64,
	}, arbor.NewLogger())
	if err != nil {
		t.Fatalf("lsm.Open: %v", err)
	}
	t.Cleanup(func() { tree.Close() })
	for i := 0; i < n; i++ {
		doc := value.NewObject([]value.Field{
			{Key: "n", Val: value.NewInt(int64(i))},
			{Key: "tag", Val: value.NewString("even")},
		})
		if _, err := tree.Insert("", doc); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	return tree
}

func TestVectorizableClassifiesSimpleNumericFilters(t *testing.T) {
	p := &Plan{
		Filters: []Expr{
			BinaryExpr{Op: ">", Left: FieldRef{Path: CompileDottedPath("n")}, Right: Literal{Val: value.NewInt(5)}},
		},
		Offset: 0,
		Limit:  -1,
	}
	_, ok := p.Vectorizable()
	if !ok {
		t.Fatalf("expected a simple field > literal filter to be vectorizable")
	}
}

func TestVectorizableRejectsLogicalConnectives(t *testing.T) {
	p := &Plan{
		Filters: []Expr{
			LogicalExpr{Op: "AND", Args: []Expr{
				BinaryExpr{Op: ">", Left: FieldRef{Path: CompileDottedPath("n")}, Right: Literal{Val: value.NewInt(1)}},
			}},
		},
		Offset: 0,
		Limit:  -1,
	}
	if _, ok := p.Vectorizable(); ok {
		t.Fatalf("expected a LogicalExpr filter to disqualify vectorization")
	}
}

func TestVectorizableRejectsArrayIndexPaths(t *testing.T) {
	p := &Plan{
		Filters: []Expr{
			BinaryExpr{Op: "=", Left: FieldRef{Path: CompileJSONPath("$.tags[0]")}, Right: Literal{Val: value.NewInt(1)}},
		},
		Offset: 0,
		Limit:  -1,
	}
	if _, ok := p.Vectorizable(); ok {
		t.Fatalf("expected an array-index path to disqualify vectorization")
	}
}

func TestRowAndVectorizedPipelinesAgree(t *testing.T) {
	tree := seededTree(t, 20)
	plan := &Plan{
		Filters: []Expr{
			BinaryExpr{Op: ">=", Left: FieldRef{Path: CompileDottedPath("n")}, Right: Literal{Val: value.NewInt(5)}},
		},
		Offset: 0,
		Limit:  -1,
	}

	vectorized, err := executeVectorized(tree, plan, mustSimple(t, plan))
	if err != nil {
		t.Fatalf("executeVectorized: %v", err)
	}
	row, err := executeRow(tree, plan)
	if err != nil {
		t.Fatalf("executeRow: %v", err)
	}
	if len(vectorized) != len(row) {
		t.Fatalf("pipelines disagree on result count: vectorized=%d row=%d", len(vectorized), len(row))
	}
	for i := range vectorized {
		vn, _ := vectorized[i].Get("n")
		rn, _ := row[i].Get("n")
		if vn.Int() != rn.Int() {
			t.Fatalf("pipelines disagree at index %d: vectorized n=%v row n=%v", i, vn.Int(), rn.Int())
		}
	}
}

func mustSimple(t *testing.T, p *Plan) []simpleFilter {
	t.Helper()
	simple, ok := p.Vectorizable()
	if !ok {
		t.Fatalf("expected plan to be vectorizable")
	}
	return simple
}

func TestExecuteDispatchesToVectorizedForSimplePlans(t *testing.T) {
	tree := seededTree(t, 10)
	plan := &Plan{
		Filters: []Expr{
			BinaryExpr{Op: "<", Left: FieldRef{Path: CompileDottedPath("n")}, Right: Literal{Val: value.NewInt(3)}},
		},
		Offset: 0,
		Limit:  -1,
	}
	out, err := Execute(tree, plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 rows with n < 3, got %d", len(out))
	}
}

func TestExecuteFallsBackToRowPipelineForLogicalFilters(t *testing.T) {
	tree := seededTree(t, 10)
	plan := &Plan{
		Filters: []Expr{
			LogicalExpr{Op: "OR", Args: []Expr{
				BinaryExpr{Op: "=", Left: FieldRef{Path: CompileDottedPath("n")}, Right: Literal{Val: value.NewInt(1)}},
				BinaryExpr{Op: "=", Left: FieldRef{Path: CompileDottedPath("n")}, Right: Literal{Val: value.NewInt(2)}},
			}},
		},
		Offset: 0,
		Limit:  -1,
	}
	out, err := Execute(tree, plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 rows matching n=1 OR n=2, got %d", len(out))
	}
}

func TestOffsetAndLimitOnUnfilteredScan(t *testing.T) {
	tree := seededTree(t, 10)
	plan := &Plan{
		Filters: nil,
		Offset:  2,
		Limit:   3,
	}
	out, err := Execute(tree, plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 rows after offset/limit, got %d", len(out))
	}
	n, _ := out[0].Get("n")
	if n.Int() != 2 {
		t.Fatalf("expected first row after offset 2 to have n=2, got %v", n.Int())
	}
}

func TestProjectSelectsNamedFields(t *testing.T) {
	tree := seededTree(t, 1)
	plan := &Plan{
		Fields: []ProjectField{{Alias: "doubled", Expr: FuncExpr{Name: "ABS", Args: []Expr{FieldRef{Path: CompileDottedPath("n")}}}}},
		Offset: 0,
		Limit:  -1,
	}
	out, err := Execute(tree, plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	if _, ok := out[0].Get("tag"); ok {
		t.Fatalf("expected projection to exclude unreferenced fields")
	}
	if _, ok := out[0].Get("doubled"); !ok {
		t.Fatalf("expected projection to include the aliased field")
	}
}
