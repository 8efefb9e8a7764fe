// Package wal implements ArgusDB's write-ahead log: an append-only,
// line-delimited, durable operation log with segment rotation and
// crash-recovery replay. Every mutation is durable the moment Append
// returns nil — the implementation flushes and fsyncs before
// acknowledging, so a successful mutation is already on disk before the
// caller sees it.
package wal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/argusdb/argus/internal/argerr"
	"github.com/argusdb/argus/internal/value"
)

type OpKind string

const (
	OpInsert OpKind = "insert"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Operation is one write-ahead-logged mutation.
type Operation struct {
	Timestamp time.Time
	Kind      OpKind
	ID        string
	Doc       value.Value // zero value for Delete
}

// line is the on-the-wire JSON shape: {ts, op, doc?, id?}.
type line struct {
	TS  string      `json:"ts"`
	Op  OpKind      `json:"op"`
	ID  string      `json:"id"`
	Doc *value.Value `json:"doc,omitempty"`
}

const segmentPrefix = "wal-"
const segmentSuffix = ".log"

func segmentName(seq int) string {
	return fmt.Sprintf("%s%08d%s", segmentPrefix, seq, segmentSuffix)
}

func segmentSeq(name string) (int, bool) {
	if !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
		return 0, false
	}
	numStr := strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentSuffix)
	seq, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// WAL manages the active segment file for one collection's write path.
// It is written by exactly one goroutine under the LSM engine's write
// lock — the memtable is protected by that same write lock.
type WAL struct {
	mu     sync.Mutex
	dir    string
	logger arbor.ILogger
	seq    int
	file   *os.File
}

// Open opens (or creates) the write-ahead log directory and begins, or
// resumes, appending to the highest-numbered existing segment.
func Open(dir string, logger arbor.ILogger) (*WAL, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, argerr.Wrap(argerr.IoError, "create wal directory", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, argerr.Wrap(argerr.IoError, "read wal directory", err)
	}
	maxSeq := 0
	found := false
	for _, e := range entries {
		if seq, ok := segmentSeq(e.Name()); ok {
			found = true
			if seq > maxSeq {
				maxSeq = seq
			}
		}
	}
	w := &WAL{dir: dir, logger: logger, seq: maxSeq}
	path := filepath.Join(dir, segmentName(maxSeq))
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, argerr.Wrap(argerr.IoError, "open wal segment", err)
	}
	w.file = f
	if !found {
		logger.Debug().Str("path", path).Msg("WAL: created initial segment")
	} else {
		logger.Debug().Str("path", path).Msg("WAL: resumed active segment")
	}
	return w, nil
}

// Append writes op as one JSON line and fsyncs before returning. A nil
// return guarantees the operation is durable.
func (w *WAL) Append(op Operation) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	l := line{
		TS: op.Timestamp.UTC().Format(time.RFC3339Nano),
		Op: op.Kind,
		ID: op.ID,
	}
	if op.Kind != OpDelete {
		doc := op.Doc
		l.Doc = &doc
	}
	data, err := json.Marshal(l)
	if err != nil {
		return argerr.Wrap(argerr.IoError, "marshal wal line", err)
	}
	data = append(data, '\n')

	if _, err := w.file.Write(data); err != nil {
		return argerr.Wrap(argerr.IoError, "write wal line", err)
	}
	if err := w.file.Sync(); err != nil {
		return argerr.Wrap(argerr.IoError, "fsync wal segment", err)
	}
	w.logger.Debug().Str("op", string(op.Kind)).Str("id", op.ID).Msg("WAL: appended")
	return nil
}

// Rotate closes the active segment and opens a new one with the next
// sequence suffix.
func (w *WAL) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Close(); err != nil {
		return argerr.Wrap(argerr.IoError, "close wal segment", err)
	}
	w.seq++
	path := filepath.Join(w.dir, segmentName(w.seq))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return argerr.Wrap(argerr.IoError, "open rotated wal segment", err)
	}
	w.file = f
	w.logger.Debug().Str("path", path).Msg("WAL: rotated")
	return nil
}

// Close closes the active segment file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Prune deletes segments whose sequence number is strictly less than
// beforeSeq. Callers must only invoke this once every operation in those
// segments is reflected in a durable JSTable.
func (w *WAL) Prune(beforeSeq int) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return argerr.Wrap(argerr.IoError, "read wal directory", err)
	}
	for _, e := range entries {
		seq, ok := segmentSeq(e.Name())
		if !ok || seq >= beforeSeq {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if err := os.Remove(path); err != nil {
			return argerr.Wrap(argerr.IoError, "prune wal segment", err)
		}
		w.logger.Debug().Str("path", path).Msg("WAL: pruned segment")
	}
	return nil
}

// Seq returns the active segment's sequence number, the pruning barrier
// a caller should record alongside the next flush.
func (w *WAL) Seq() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// Replay yields every operation recorded under dir, in segment-then-line
// order. A malformed trailing line in the final segment (the result of a
// crash mid-write) is truncated with a logged warning; replay stops at that point
// rather than erroring. A malformed line anywhere but the final segment
// is reported as CorruptFormat, since only a crash mid-append to the
// active segment is expected to leave a partial line.
func Replay(dir string, logger arbor.ILogger) ([]Operation, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, argerr.Wrap(argerr.IoError, "read wal directory", err)
	}

	type segment struct {
		seq  int
		name string
	}
	var segments []segment
	for _, e := range entries {
		if seq, ok := segmentSeq(e.Name()); ok {
			segments = append(segments, segment{seq: seq, name: e.Name()})
		}
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].seq < segments[j].seq })

	var ops []Operation
	for i, seg := range segments {
		isLast := i == len(segments)-1
		path := filepath.Join(dir, seg.name)
		f, err := os.Open(path)
		if err != nil {
			return nil, argerr.Wrap(argerr.IoError, "open wal segment for replay", err)
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			text := scanner.Bytes()
			if len(strings.TrimSpace(string(text))) == 0 {
				continue
			}
			var l line
			if err := json.Unmarshal(text, &l); err != nil {
				if isLast {
					logger.Warn().Str("segment", seg.name).Msg("WAL: truncating malformed trailing line during replay")
					break
				}
				f.Close()
				return nil, argerr.Wrap(argerr.CorruptFormat, fmt.Sprintf("malformed line in non-trailing segment %s", seg.name), err)
			}
			ts, err := time.Parse(time.RFC3339Nano, l.TS)
			if err != nil {
				ts = time.Time{}
			}
			op := Operation{Timestamp: ts, Kind: l.Op, ID: l.ID}
			if l.Doc != nil {
				op.Doc = *l.Doc
			}
			ops = append(ops, op)
		}
		if err := scanner.Err(); err != nil && isLast {
			logger.Warn().Str("segment", seg.name).Err(err).Msg("WAL: truncating unreadable trailing data during replay")
		} else if err := scanner.Err(); err != nil {
			f.Close()
			return nil, argerr.Wrap(argerr.CorruptFormat, "scan wal segment", err)
		}
		f.Close()
	}
	return ops, nil
}
