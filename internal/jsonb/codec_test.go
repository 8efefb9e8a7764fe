package jsonb

import (
	"testing"

	"github.com/argusdb/argus/internal/value"
)

func sampleDoc() value.Value {
	return value.NewObject([]value.Field{
		{Key: "name", Val: value.NewString("argus")},
		{Key: "count", Val: value.NewInt(42)},
		{Key: "ratio", Val: value.NewFloat(3.5)},
		{Key: "active", Val: value.NewBool(true)},
		{Key: "tags", Val: value.NewArray([]value.Value{value.NewString("a"), value.NewString("b")})},
		{Key: "nested", Val: value.NewObject([]value.Field{{Key: "deep", Val: value.NewInt(7)}})},
		{Key: "nothing", Val: value.NewNull()},
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := sampleDoc()
	b := Encode(v)
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !value.Equal(v, got) {
		t.Fatalf("round trip mismatch:\n want %+v\n got  %+v", v, got)
	}
}

func TestSelectByPathObjectField(t *testing.T) {
	b := Encode(sampleDoc())
	sub, ok := SelectByPath(b, []Step{FieldStep("nested"), FieldStep("deep")})
	if !ok {
		t.Fatalf("expected path to resolve")
	}
	v, err := DecodeSub(sub)
	if err != nil {
		t.Fatalf("DecodeSub: %v", err)
	}
	if v.Int() != 7 {
		t.Fatalf("expected 7, got %v", v.Int())
	}
}

func TestSelectByPathArrayIndex(t *testing.T) {
	b := Encode(sampleDoc())
	sub, ok := SelectByPath(b, []Step{FieldStep("tags"), IndexStep(1)})
	if !ok {
		t.Fatalf("expected path to resolve")
	}
	v, err := DecodeSub(sub)
	if err != nil {
		t.Fatalf("DecodeSub: %v", err)
	}
	if v.String() != "b" {
		t.Fatalf("expected %q, got %q", "b", v.String())
	}
}

func TestSelectByPathMissing(t *testing.T) {
	b := Encode(sampleDoc())
	if _, ok := SelectByPath(b, []Step{FieldStep("absent")}); ok {
		t.Fatalf("expected missing field to fail")
	}
	if _, ok := SelectByPath(b, []Step{FieldStep("tags"), IndexStep(99)}); ok {
		t.Fatalf("expected out-of-range index to fail")
	}
}

func TestExtractF64(t *testing.T) {
	b := Encode(sampleDoc())
	if f, ok := ExtractF64(b, []Step{FieldStep("count")}); !ok || f != 42 {
		t.Fatalf("expected 42, got %v %v", f, ok)
	}
	if f, ok := ExtractF64(b, []Step{FieldStep("ratio")}); !ok || f != 3.5 {
		t.Fatalf("expected 3.5, got %v %v", f, ok)
	}
	if _, ok := ExtractF64(b, []Step{FieldStep("name")}); ok {
		t.Fatalf("expected non-numeric leaf to fail")
	}
	if _, ok := ExtractF64(b, []Step{FieldStep("absent")}); ok {
		t.Fatalf("expected absent path to fail")
	}
}

func TestExtractF64PropertyAgainstEveryNumericLeaf(t *testing.T) {
	type leaf struct {
		path []Step
		want float64
	}
	leaves := []leaf{
		{[]Step{FieldStep("count")}, 42},
		{[]Step{FieldStep("ratio")}, 3.5},
		{[]Step{FieldStep("nested"), FieldStep("deep")}, 7},
	}
	b := Encode(sampleDoc())
	for _, l := range leaves {
		got, ok := ExtractF64(b, l.path)
		if !ok || got != l.want {
			t.Fatalf("ExtractF64(%v) = (%v, %v), want (%v, true)", l.path, got, ok, l.want)
		}
	}
}

func TestIsNullTombstoneBody(t *testing.T) {
	b := Encode(value.NewNull())
	if !IsNull(b) {
		t.Fatalf("expected encoded null to be recognized without decoding")
	}
	nb := Encode(value.NewInt(0))
	if IsNull(nb) {
		t.Fatalf("expected encoded zero integer not to be mistaken for null")
	}
}

func TestDecodeEmptyBufferErrors(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatalf("expected error decoding empty buffer")
	}
}

func TestDecodeTrailingBytesErrors(t *testing.T) {
	b := append(Encode(value.NewInt(1)), 0xFF)
	if _, err := Decode(b); err == nil {
		t.Fatalf("expected trailing-byte decode to fail")
	}
}

func TestEmptyPathReturnsWholeBuffer(t *testing.T) {
	b := Encode(value.NewInt(5))
	sub, ok := SelectByPath(b, nil)
	if !ok {
		t.Fatalf("expected empty path to resolve")
	}
	v, err := DecodeSub(sub)
	if err != nil || v.Int() != 5 {
		t.Fatalf("expected whole-buffer decode to yield 5, got %v err=%v", v, err)
	}
}
