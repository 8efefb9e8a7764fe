package query

import (
	"github.com/argusdb/argus/internal/jsonb"
	"github.com/argusdb/argus/internal/lsm"
	"github.com/argusdb/argus/internal/value"
)

// Plan is a compiled logical plan: Scan → [Filter]* → [Limit|Offset]*.
// Offset and Limit of -1 mean unset.
type Plan struct {
	Collection string
	Filters    []Expr
	Offset     int
	Limit      int
	Fields     []ProjectField // nil means SELECT *
}

// simpleFilter is a BinaryExpr between a non-array field path and a
// numeric literal — the only form the vectorized batch filter accepts:
// no logical connectives, no nested paths through arrays.
type simpleFilter struct {
	path []jsonb.Step
	op   string
	lit  float64
}

func asSimpleNumeric(e Expr) (simpleFilter, bool) {
	b, ok := e.(BinaryExpr)
	if !ok {
		return simpleFilter{}, false
	}
	switch b.Op {
	case "=", "!=", "<>", "<", "<=", ">", ">=":
	default:
		return simpleFilter{}, false
	}
	field, lit, ok := fieldAndLiteral(b.Left, b.Right)
	if !ok {
		return simpleFilter{}, false
	}
	for _, s := range field.Path {
		if s.IsIndex {
			return simpleFilter{}, false
		}
	}
	n, ok := lit.Val.AsFloat64()
	if !ok {
		return simpleFilter{}, false
	}
	return simpleFilter{path: field.Path, op: b.Op, lit: n}, true
}

func fieldAndLiteral(a, b Expr) (FieldRef, Literal, bool) {
	if f, ok := a.(FieldRef); ok {
		if l, ok := b.(Literal); ok {
			return f, l, true
		}
	}
	if f, ok := b.(FieldRef); ok {
		if l, ok := a.(Literal); ok {
			return f, l, true
		}
	}
	return FieldRef{}, Literal{}, false
}

// Vectorizable reports whether every filter in the plan is a simple
// numeric comparison, qualifying the plan for the batch pipeline.
func (p *Plan) Vectorizable() ([]simpleFilter, bool) {
	out := make([]simpleFilter, 0, len(p.Filters))
	for _, f := range p.Filters {
		sf, ok := asSimpleNumeric(f)
		if !ok {
			return nil, false
		}
		out = append(out, sf)
	}
	return out, true
}

func compareF64(op string, a, b float64) bool {
	switch op {
	case "=":
		return a == b
	case "!=", "<>":
		return a != b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	default:
		return a >= b
	}
}

// pushdownPredicate ANDs every simple filter into a single raw-byte
// predicate suitable for jstable pushdown. It is used by the row
// pipeline (where pushdown remains enabled) but never by the vectorized
// pipeline, which disables pushdown so the batched loop does the
// filtering itself.
func pushdownPredicate(filters []simpleFilter) func([]byte) bool {
	if len(filters) == 0 {
		return nil
	}
	return func(raw []byte) bool {
		for _, f := range filters {
			v, ok := jsonb.ExtractF64(raw, f.path)
			if !ok || !compareF64(f.op, v, f.lit) {
				return false
			}
		}
		return true
	}
}

// Execute runs the plan against tree, picking the vectorized batch
// pipeline when every filter qualifies and the row pipeline otherwise.
func Execute(tree *lsm.Tree, plan *Plan) ([]value.Value, error) {
	if simple, ok := plan.Vectorizable(); ok && len(plan.Filters) > 0 {
		return executeVectorized(tree, plan, simple)
	}
	return executeRow(tree, plan)
}

func executeRow(tree *lsm.Tree, plan *Plan) ([]value.Value, error) {
	simple, _ := plan.Vectorizable()
	it, err := tree.Iterate(pushdownPredicate(simple))
	if err != nil {
		return nil, err
	}
	var op Op = NewScanOp(it)
	for _, f := range plan.Filters {
		op = NewFilterOp(op, f)
	}
	if plan.Offset > 0 {
		op = NewOffsetOp(op, plan.Offset)
	}
	if plan.Limit >= 0 {
		op = NewLimitOp(op, plan.Limit)
	}
	return Run(op, plan.Fields)
}

// executeVectorized runs the batch pipeline: batches of up to 4096 rows
// are pulled from the merged iterator (with pushdown disabled), each
// simple filter compacts the batch in place via extract_f64, and
// offset/limit are applied to the surviving stream.
func executeVectorized(tree *lsm.Tree, plan *Plan, filters []simpleFilter) ([]value.Value, error) {
	const batchSize = 4096
	it, err := tree.Iterate(nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var (
		out     []value.Value
		skipped int
	)
	batch := make([]lsm.Row, 0, batchSize)
	for {
		batch = batch[:0]
		for len(batch) < batchSize {
			row, ok, err := it.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			batch = append(batch, row)
		}
		if len(batch) == 0 {
			return out, nil
		}

		for _, f := range filters {
			kept := batch[:0]
			for _, row := range batch {
				v, ok := row.ExtractF64(f.path)
				if ok && compareF64(f.op, v, f.lit) {
					kept = append(kept, row)
				}
			}
			batch = kept
		}

		for _, row := range batch {
			if skipped < plan.Offset {
				skipped++
				continue
			}
			v, err := Project(row, plan.Fields)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			if plan.Limit >= 0 && len(out) >= plan.Limit {
				return out, nil
			}
		}
	}
}
