package jstable

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/argusdb/argus/internal/schema"
	"github.com/argusdb/argus/internal/value"
)

func testLogger() arbor.ILogger { return arbor.NewLogger() }

func sortedEntries() []Entry {
	return []Entry{
		{ID: "00001", Doc: value.NewObject([]value.Field{{Key: "a", Val: value.NewInt(1)}})},
		{ID: "00002", Doc: value.NewObject([]value.Field{{Key: "a", Val: value.NewInt(2)}})},
		{ID: "00003", Doc: value.Value{}, Tomb: true},
		{ID: "00004", Doc: value.NewObject([]value.Field{{Key: "a", Val: value.NewFloat(4.5)}})},
	}
}

func TestWriteThenScanYieldsAllRecordsInOrder(t *testing.T) {
	dir := t.TempDir()
	entries := sortedEntries()
	sch := schema.Infer(entries[0].Doc)

	desc, err := Write(dir, "run-000000", sch, append([]Entry(nil), entries...), 1024, testLogger())
	require.NoError(t, err)
	require.Equal(t, "run-000000", desc.Name)

	sum, err := OpenSummary(dir, "run-000000")
	require.NoError(t, err)

	it, err := sum.Scan()
	require.NoError(t, err)
	defer it.Close()

	var got []LazyDoc
	for {
		d, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, d)
	}
	require.Len(t, got, len(entries))
	for i, e := range entries {
		require.Equal(t, e.ID, got[i].ID)
		require.Equal(t, e.Tomb, got[i].Tomb)
	}
}

func TestWriteRefusesEmptyRun(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(dir, "run-empty", &schema.Schema{}, nil, 1024, testLogger())
	require.Error(t, err)
}

func TestMembershipFilterHasNoFalseNegatives(t *testing.T) {
	dir := t.TempDir()
	entries := sortedEntries()
	sch := schema.Infer(entries[0].Doc)
	_, err := Write(dir, "run-000001", sch, append([]Entry(nil), entries...), 1024, testLogger())
	require.NoError(t, err)

	sum, err := OpenSummary(dir, "run-000001")
	require.NoError(t, err)
	for _, e := range entries {
		require.True(t, sum.Filter.MayContain(e.ID), "filter false negative for %s", e.ID)
	}
	require.False(t, sum.Filter.MayContain("99999-not-present"))
}

func TestLookupHitTombstoneMiss(t *testing.T) {
	dir := t.TempDir()
	entries := sortedEntries()
	sch := schema.Infer(entries[0].Doc)
	_, err := Write(dir, "run-000002", sch, append([]Entry(nil), entries...), 1024, testLogger())
	require.NoError(t, err)

	sum, err := OpenSummary(dir, "run-000002")
	require.NoError(t, err)

	doc, status, err := sum.Lookup("00002")
	require.NoError(t, err)
	require.Equal(t, Hit, status)
	decoded, err := doc.Decode()
	require.NoError(t, err)
	a, _ := decoded.Get("a")
	require.Equal(t, int64(2), a.Int())

	_, status, err = sum.Lookup("00003")
	require.NoError(t, err)
	require.Equal(t, Tombstoned, status)

	_, status, err = sum.Lookup("nonexistent")
	require.NoError(t, err)
	require.Equal(t, Miss, status)
}

func TestLookupMatchesLinearScan(t *testing.T) {
	dir := t.TempDir()
	var entries []Entry
	for i := 0; i < 200; i++ {
		entries = append(entries, Entry{
			ID:  idFor(i),
			Doc: value.NewObject([]value.Field{{Key: "n", Val: value.NewInt(int64(i))}}),
		})
	}
	sch := schema.Infer(entries[0].Doc)
	_, err := Write(dir, "run-big", sch, append([]Entry(nil), entries...), 64, testLogger())
	require.NoError(t, err)

	sum, err := OpenSummary(dir, "run-big")
	require.NoError(t, err)

	it, err := sum.Scan()
	require.NoError(t, err)
	defer it.Close()
	linear := make(map[string]bool)
	for {
		d, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		linear[d.ID] = true
	}

	for _, e := range entries {
		_, status, err := sum.Lookup(e.ID)
		require.NoError(t, err)
		require.Equal(t, Hit, status, "binary-search lookup disagrees with linear scan for %s", e.ID)
		require.True(t, linear[e.ID])
	}
}

func TestSparseIndexMonotone(t *testing.T) {
	dir := t.TempDir()
	var entries []Entry
	for i := 0; i < 100; i++ {
		entries = append(entries, Entry{
			ID:  idFor(i),
			Doc: value.NewObject([]value.Field{{Key: "n", Val: value.NewInt(int64(i))}}),
		})
	}
	sch := schema.Infer(entries[0].Doc)
	_, err := Write(dir, "run-idx", sch, append([]Entry(nil), entries...), 32, testLogger())
	require.NoError(t, err)

	sum, err := OpenSummary(dir, "run-idx")
	require.NoError(t, err)
	require.NotEmpty(t, sum.Index)
	for i := 1; i < len(sum.Index); i++ {
		require.Less(t, sum.Index[i-1].ID, sum.Index[i].ID, "sparse index ids must be strictly increasing")
		require.Less(t, sum.Index[i-1].Offset, sum.Index[i].Offset, "sparse index offsets must be strictly increasing")
	}
}

func idFor(i int) string {
	digits := "0123456789"
	b := make([]byte, 5)
	for pos := 4; pos >= 0; pos-- {
		b[pos] = digits[i%10]
		i /= 10
	}
	return string(b)
}
