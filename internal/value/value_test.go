package value

import "testing"

func TestIntFloatNeverEqual(t *testing.T) {
	a := NewInt(3)
	b := NewFloat(3)
	if Equal(a, b) {
		t.Fatalf("Int(3) and Float(3) must not compare equal")
	}
}

func TestObjectEqualityOrderSensitive(t *testing.T) {
	a := NewObject([]Field{{Key: "a", Val: NewInt(1)}, {Key: "b", Val: NewInt(2)}})
	b := NewObject([]Field{{Key: "b", Val: NewInt(2)}, {Key: "a", Val: NewInt(1)}})
	if Equal(a, b) {
		t.Fatalf("Equal compares fields positionally; differently ordered objects should not be equal")
	}
}

func TestGetLastOccurrenceWins(t *testing.T) {
	v := NewObject([]Field{{Key: "a", Val: NewInt(1)}, {Key: "a", Val: NewInt(2)}})
	got, ok := v.Get("a")
	if !ok || got.Int() != 2 {
		t.Fatalf("expected last occurrence (2), got %v ok=%v", got, ok)
	}
}

func TestCompareCrossKindUndefined(t *testing.T) {
	if _, ok := Compare(NewInt(1), NewString("1")); ok {
		t.Fatalf("Compare across kinds must report ok=false")
	}
}

func TestCompareWithinKind(t *testing.T) {
	cases := []struct {
		a, b Value
		want int
	}{
		{NewInt(1), NewInt(2), -1},
		{NewInt(2), NewInt(1), 1},
		{NewInt(2), NewInt(2), 0},
		{NewString("a"), NewString("b"), -1},
		{NewFloat(1.5), NewFloat(1.5), 0},
	}
	for _, c := range cases {
		cmp, ok := Compare(c.a, c.b)
		if !ok || cmp != c.want {
			t.Fatalf("Compare(%v, %v) = (%d, %v), want (%d, true)", c.a, c.b, cmp, ok, c.want)
		}
	}
}

func TestArrayEqual(t *testing.T) {
	a := NewArray([]Value{NewInt(1), NewString("x")})
	b := NewArray([]Value{NewInt(1), NewString("x")})
	c := NewArray([]Value{NewInt(1)})
	if !Equal(a, b) {
		t.Fatalf("identical arrays should be equal")
	}
	if Equal(a, c) {
		t.Fatalf("arrays of different length should not be equal")
	}
}

func TestAsFloat64(t *testing.T) {
	if f, ok := NewInt(5).AsFloat64(); !ok || f != 5 {
		t.Fatalf("AsFloat64 on Int should succeed: got %v %v", f, ok)
	}
	if f, ok := NewFloat(5.5).AsFloat64(); !ok || f != 5.5 {
		t.Fatalf("AsFloat64 on Float should succeed: got %v %v", f, ok)
	}
	if _, ok := NewString("x").AsFloat64(); ok {
		t.Fatalf("AsFloat64 on String should fail")
	}
}
