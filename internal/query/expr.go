// Package query implements ArgusDB's logical query algebra and its two
// execution pipelines: a row-at-a-time (Volcano) pull pipeline for the
// general case, and a vectorized batch pipeline for plans whose
// predicates are simple enough to run as tight numeric comparison
// loops.
package query

import (
	"math"

	"github.com/argusdb/argus/internal/argerr"
	"github.com/argusdb/argus/internal/jsonb"
	"github.com/argusdb/argus/internal/lsm"
	"github.com/argusdb/argus/internal/value"
)

// Expr is one node of a compiled predicate or projection expression:
// field reference, literal, binary comparison, logical connective, or
// function call.
type Expr interface {
	Eval(r lsm.Row) (value.Value, error)
}

// FieldRef resolves a dotted-path or JSONPath field reference, already
// compiled down to codec steps; both surface syntaxes resolve to the
// same internal path representation. A path that does not resolve
// against a given row evaluates to Null rather than erroring — a
// comparison against Null then simply fails to match, which is how a
// schema-less document store is expected to treat an absent field.
type FieldRef struct {
	Path []jsonb.Step
}

func (f FieldRef) Eval(r lsm.Row) (value.Value, error) {
	v, ok := r.SelectByPath(f.Path)
	if !ok {
		return value.NewNull(), nil
	}
	return v, nil
}

// Literal is a constant value embedded in the expression tree.
type Literal struct {
	Val value.Value
}

func (l Literal) Eval(r lsm.Row) (value.Value, error) { return l.Val, nil }

// BinaryExpr is one comparison operator: =, !=/<>, <, <=, >, >=. Int
// and Float operands never compare equal under "=" even when
// numerically identical: the two types are never conflated.
type BinaryExpr struct {
	Op          string
	Left, Right Expr
}

func (b BinaryExpr) Eval(r lsm.Row) (value.Value, error) {
	lv, err := b.Left.Eval(r)
	if err != nil {
		return value.Value{}, err
	}
	rv, err := b.Right.Eval(r)
	if err != nil {
		return value.Value{}, err
	}
	switch b.Op {
	case "=":
		return value.NewBool(value.Equal(lv, rv)), nil
	case "!=", "<>":
		return value.NewBool(!value.Equal(lv, rv)), nil
	case "<", "<=", ">", ">=":
		cmp, ok := value.Compare(lv, rv)
		if !ok {
			return value.NewBool(false), nil
		}
		switch b.Op {
		case "<":
			return value.NewBool(cmp < 0), nil
		case "<=":
			return value.NewBool(cmp <= 0), nil
		case ">":
			return value.NewBool(cmp > 0), nil
		default:
			return value.NewBool(cmp >= 0), nil
		}
	default:
		return value.Value{}, argerr.New(argerr.QueryError, "unknown comparison operator: "+b.Op)
	}
}

// LogicalExpr is AND, OR (variadic) or NOT (unary) over boolean
// operands.
type LogicalExpr struct {
	Op   string // "AND", "OR", "NOT"
	Args []Expr
}

func (l LogicalExpr) Eval(r lsm.Row) (value.Value, error) {
	switch l.Op {
	case "NOT":
		if len(l.Args) != 1 {
			return value.Value{}, argerr.New(argerr.QueryError, "NOT takes exactly one argument")
		}
		v, err := l.Args[0].Eval(r)
		if err != nil {
			return value.Value{}, err
		}
		b, err := asBool(v)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewBool(!b), nil
	case "AND":
		for _, a := range l.Args {
			v, err := a.Eval(r)
			if err != nil {
				return value.Value{}, err
			}
			b, err := asBool(v)
			if err != nil {
				return value.Value{}, err
			}
			if !b {
				return value.NewBool(false), nil
			}
		}
		return value.NewBool(true), nil
	case "OR":
		for _, a := range l.Args {
			v, err := a.Eval(r)
			if err != nil {
				return value.Value{}, err
			}
			b, err := asBool(v)
			if err != nil {
				return value.Value{}, err
			}
			if b {
				return value.NewBool(true), nil
			}
		}
		return value.NewBool(false), nil
	default:
		return value.Value{}, argerr.New(argerr.QueryError, "unknown logical operator: "+l.Op)
	}
}

func asBool(v value.Value) (bool, error) {
	if v.Kind() != value.Bool {
		return false, argerr.New(argerr.QueryError, "expected boolean operand, got "+v.Kind().String())
	}
	return v.Bool(), nil
}

// FuncExpr is one of the numeric functions: the unary set (ABS .. SQRT)
// or the binary set (ATAN2, DIV, LOG, LOG10, ROUND, POW). RAND() is
// recognized but always evaluates to a QueryError, since no random
// source is injected.
type FuncExpr struct {
	Name string
	Args []Expr
}

func (f FuncExpr) Eval(r lsm.Row) (value.Value, error) {
	argf := func(e Expr) (float64, error) {
		v, err := e.Eval(r)
		if err != nil {
			return 0, err
		}
		n, ok := v.AsFloat64()
		if !ok {
			return 0, argerr.New(argerr.QueryError, "expected numeric argument to "+f.Name)
		}
		return n, nil
	}

	if fn, ok := unaryFuncs[f.Name]; ok {
		if len(f.Args) != 1 {
			return value.Value{}, argerr.New(argerr.QueryError, f.Name+" takes exactly one argument")
		}
		x, err := argf(f.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		return value.NewFloat(fn(x)), nil
	}

	switch f.Name {
	case "RAND":
		return value.Value{}, argerr.New(argerr.QueryError, "RAND() requires an injected source; not evaluable in a pure expression context")
	case "ATAN2":
		if len(f.Args) != 2 {
			return value.Value{}, argerr.New(argerr.QueryError, "ATAN2 takes exactly two arguments")
		}
		y, err := argf(f.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		x, err := argf(f.Args[1])
		if err != nil {
			return value.Value{}, err
		}
		return value.NewFloat(math.Atan2(y, x)), nil
	case "DIV":
		if len(f.Args) != 2 {
			return value.Value{}, argerr.New(argerr.QueryError, "DIV takes exactly two arguments")
		}
		x, err := argf(f.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		y, err := argf(f.Args[1])
		if err != nil {
			return value.Value{}, err
		}
		if y == 0 {
			return value.Value{}, argerr.New(argerr.QueryError, "DIV by zero")
		}
		return value.NewFloat(x / y), nil
	case "LOG":
		if len(f.Args) < 1 || len(f.Args) > 2 {
			return value.Value{}, argerr.New(argerr.QueryError, "LOG takes one or two arguments")
		}
		x, err := argf(f.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		if len(f.Args) == 1 {
			return value.NewFloat(math.Log(x)), nil
		}
		base, err := argf(f.Args[1])
		if err != nil {
			return value.Value{}, err
		}
		return value.NewFloat(math.Log(x) / math.Log(base)), nil
	case "LOG10":
		if len(f.Args) != 1 {
			return value.Value{}, argerr.New(argerr.QueryError, "LOG10 takes exactly one argument")
		}
		x, err := argf(f.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		return value.NewFloat(math.Log10(x)), nil
	case "ROUND":
		if len(f.Args) < 1 || len(f.Args) > 2 {
			return value.Value{}, argerr.New(argerr.QueryError, "ROUND takes one or two arguments")
		}
		x, err := argf(f.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		if len(f.Args) == 1 {
			return value.NewFloat(math.Round(x)), nil
		}
		prec, err := argf(f.Args[1])
		if err != nil {
			return value.Value{}, err
		}
		mult := math.Pow(10, prec)
		return value.NewFloat(math.Round(x*mult) / mult), nil
	case "POW":
		if len(f.Args) != 2 {
			return value.Value{}, argerr.New(argerr.QueryError, "POW takes exactly two arguments")
		}
		x, err := argf(f.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		y, err := argf(f.Args[1])
		if err != nil {
			return value.Value{}, err
		}
		return value.NewFloat(math.Pow(x, y)), nil
	default:
		return value.Value{}, argerr.New(argerr.QueryError, "unknown function: "+f.Name)
	}
}

var unaryFuncs = map[string]func(float64) float64{
	"ABS":   math.Abs,
	"ACOS":  math.Acos,
	"ACOSH": math.Acosh,
	"ASIN":  math.Asin,
	"ATAN":  math.Atan,
	"CEIL":  math.Ceil,
	"COS":   math.Cos,
	"COSH":  math.Cosh,
	"EXP":   math.Exp,
	"FLOOR": math.Floor,
	"LN":    math.Log,
	"SIN":   math.Sin,
	"SINH":  math.Sinh,
	"TAN":   math.Tan,
	"TANH":  math.Tanh,
	"SIGN":  func(x float64) float64 { return float64(sign(x)) },
	"SQRT":  math.Sqrt,
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
