package query

import (
	"github.com/argusdb/argus/internal/argerr"
	"github.com/argusdb/argus/internal/lsm"
	"github.com/argusdb/argus/internal/value"
)

// Op is a pull-driven row-pipeline operator (a row-at-a-time, Volcano-
// style pipeline): each call to Next yields the next (id, row) or
// signals exhaustion, so dropping the top-level Op after a Limit is
// satisfied releases every open resource promptly.
type Op interface {
	Next() (lsm.Row, bool, error)
	Close() error
}

// ScanOp is the pipeline's source: the collection's merged iterator.
type ScanOp struct {
	it *lsm.Iterator
}

func NewScanOp(it *lsm.Iterator) *ScanOp { return &ScanOp{it: it} }

func (s *ScanOp) Next() (lsm.Row, bool, error) { return s.it.Next() }
func (s *ScanOp) Close() error                 { return s.it.Close() }

// FilterOp evaluates pred against each row in turn and only yields rows
// for which it is true, evaluating directly against the row's lazy
// document without fully decoding it.
type FilterOp struct {
	src  Op
	pred Expr
}

func NewFilterOp(src Op, pred Expr) *FilterOp { return &FilterOp{src: src, pred: pred} }

func (f *FilterOp) Next() (lsm.Row, bool, error) {
	for {
		row, ok, err := f.src.Next()
		if err != nil || !ok {
			return lsm.Row{}, ok, err
		}
		v, err := f.pred.Eval(row)
		if err != nil {
			return lsm.Row{}, false, err
		}
		if v.Kind() != value.Bool {
			return lsm.Row{}, false, argerr.New(argerr.QueryError, "WHERE clause must evaluate to a boolean")
		}
		if v.Bool() {
			return row, true, nil
		}
	}
}

func (f *FilterOp) Close() error { return f.src.Close() }

// OffsetOp drops the first n yields.
type OffsetOp struct {
	src     Op
	n       int
	skipped int
}

func NewOffsetOp(src Op, n int) *OffsetOp { return &OffsetOp{src: src, n: n} }

func (o *OffsetOp) Next() (lsm.Row, bool, error) {
	for o.skipped < o.n {
		_, ok, err := o.src.Next()
		if err != nil || !ok {
			return lsm.Row{}, ok, err
		}
		o.skipped++
	}
	return o.src.Next()
}

func (o *OffsetOp) Close() error { return o.src.Close() }

// LimitOp stops after n yields.
type LimitOp struct {
	src   Op
	n     int
	count int
}

func NewLimitOp(src Op, n int) *LimitOp { return &LimitOp{src: src, n: n} }

func (l *LimitOp) Next() (lsm.Row, bool, error) {
	if l.count >= l.n {
		return lsm.Row{}, false, nil
	}
	row, ok, err := l.src.Next()
	if err != nil || !ok {
		return lsm.Row{}, ok, err
	}
	l.count++
	return row, true, nil
}

func (l *LimitOp) Close() error { return l.src.Close() }

// ProjectField is one named output column of a projection.
type ProjectField struct {
	Alias string
	Expr  Expr
}

// Project materializes the given fields of a row into a fresh object
// Value containing only the referenced paths. A nil field list means
// `SELECT *`: the whole document is decoded and returned unchanged.
func Project(row lsm.Row, fields []ProjectField) (value.Value, error) {
	if fields == nil {
		return row.Decode()
	}
	out := make([]value.Field, len(fields))
	for i, f := range fields {
		v, err := f.Expr.Eval(row)
		if err != nil {
			return value.Value{}, err
		}
		out[i] = value.Field{Key: f.Alias, Val: v}
	}
	return value.NewObject(out), nil
}

// Run drains op, projecting each surviving row, and returns the results
// in the order the pipeline produced them (already ascending id order,
// since every Op preserves the upstream order).
func Run(op Op, fields []ProjectField) ([]value.Value, error) {
	defer op.Close()
	var out []value.Value
	for {
		row, ok, err := op.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		v, err := Project(row, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}
