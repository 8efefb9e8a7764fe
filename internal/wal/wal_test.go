package wal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/argusdb/argus/internal/value"
)

func testLogger() arbor.ILogger { return arbor.NewLogger() }

func TestAppendAndReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ops := []Operation{
		{Timestamp: time.Now(), Kind: OpInsert, ID: "a", Doc: value.NewInt(1)},
		{Timestamp: time.Now(), Kind: OpUpdate, ID: "a", Doc: value.NewInt(2)},
		{Timestamp: time.Now(), Kind: OpDelete, ID: "a"},
	}
	for _, op := range ops {
		if err := w.Append(op); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := Replay(dir, testLogger())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(got) != len(ops) {
		t.Fatalf("expected %d replayed ops, got %d", len(ops), len(got))
	}
	for i, op := range ops {
		if got[i].Kind != op.Kind || got[i].ID != op.ID {
			t.Fatalf("op %d mismatch: want %+v got %+v", i, op, got[i])
		}
	}
}

func TestRotateCreatesNewSegmentAndPreservesReplayOrder(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	w.Append(Operation{Kind: OpInsert, ID: "a", Doc: value.NewInt(1), Timestamp: time.Now()})
	if err := w.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	w.Append(Operation{Kind: OpInsert, ID: "b", Doc: value.NewInt(2), Timestamp: time.Now()})
	w.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 segments after one rotate, got %d", len(entries))
	}

	got, err := Replay(dir, testLogger())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("expected replay order [a, b], got %+v", got)
	}
}

func TestOpenResumesHighestSequenceSegment(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	w.Rotate()
	w.Rotate()
	seq := w.Seq()
	w.Close()

	w2, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	defer w2.Close()
	if w2.Seq() != seq {
		t.Fatalf("expected resumed sequence %d, got %d", seq, w2.Seq())
	}
}

func TestPruneRemovesOnlySegmentsBeforeBarrier(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	w.Append(Operation{Kind: OpInsert, ID: "a", Doc: value.NewInt(1), Timestamp: time.Now()})
	w.Rotate()
	w.Append(Operation{Kind: OpInsert, ID: "b", Doc: value.NewInt(2), Timestamp: time.Now()})
	w.Rotate()
	w.Append(Operation{Kind: OpInsert, ID: "c", Doc: value.NewInt(3), Timestamp: time.Now()})
	barrier := w.Seq()

	if err := w.Prune(barrier); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	w.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 segment to survive pruning, got %d: %v", len(entries), entries)
	}

	got, err := Replay(dir, testLogger())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("expected only the un-pruned segment's operation to survive, got %+v", got)
	}
}

func TestReplayTruncatesMalformedTrailingLine(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	w.Append(Operation{Kind: OpInsert, ID: "a", Doc: value.NewInt(1), Timestamp: time.Now()})
	w.Close()

	path := filepath.Join(dir, segmentName(0))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	f.WriteString(`{"ts":"not-json-trailer`)
	f.Close()

	got, err := Replay(dir, testLogger())
	if err != nil {
		t.Fatalf("expected malformed trailing line to be truncated, not errored: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected exactly the one well-formed op to survive, got %+v", got)
	}
}

func TestReplayErrorsOnMalformedNonTrailingSegment(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	w.Append(Operation{Kind: OpInsert, ID: "a", Doc: value.NewInt(1), Timestamp: time.Now()})
	w.Rotate()
	w.Append(Operation{Kind: OpInsert, ID: "b", Doc: value.NewInt(2), Timestamp: time.Now()})
	w.Close()

	firstSegment := filepath.Join(dir, segmentName(0))
	f, err := os.OpenFile(firstSegment, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	f.WriteString("\nnot-json-and-not-trailing\n")
	f.Close()

	if _, err := Replay(dir, testLogger()); err == nil {
		t.Fatalf("expected CorruptFormat error for malformed line in a non-trailing segment")
	}
}
