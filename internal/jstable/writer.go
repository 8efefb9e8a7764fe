package jstable

import (
	"os"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/argusdb/argus/internal/argerr"
	"github.com/argusdb/argus/internal/filter"
	"github.com/argusdb/argus/internal/jsonb"
	"github.com/argusdb/argus/internal/schema"
	"github.com/argusdb/argus/internal/value"
)

// Write consumes entries (already sorted ascending by id — the caller is
// either a Memtable.Scan snapshot or the LSM engine's compaction merge),
// and produces one new run under dir named name. It builds the sparse
// index while streaming records to the data file, builds the membership
// filter over every id seen (tombstones included — a tombstone id is
// still "in the data file"), and writes both files under a temporary
// name before renaming into place so a crash mid-write leaves no
// visible run.
func Write(dir, name string, sch *schema.Schema, entries []Entry, indexThreshold int, logger arbor.ILogger) (*Descriptor, error) {
	if len(entries) == 0 {
		return nil, argerr.New(argerr.IoError, "jstable: refusing to write an empty run")
	}
	sortEntries(entries)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, argerr.Wrap(argerr.IoError, "create jstable directory", err)
	}

	dataTmp := dataPath(dir, name) + tmpSuffix
	summaryTmp := summaryPath(dir, name) + tmpSuffix

	df, err := os.OpenFile(dataTmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, argerr.Wrap(argerr.IoError, "create jstable data file", err)
	}

	var (
		offset      int64
		lastIndexed int64 = -1
		index       []IndexEntry
		ids         = make([]string, len(entries))
	)
	for i, e := range entries {
		ids[i] = e.ID
		rec := jsonb.Encode(recordValue(e.ID, e.Doc, e.Tomb))
		if lastIndexed < 0 || offset-lastIndexed >= int64(indexThreshold) {
			index = append(index, IndexEntry{ID: e.ID, Offset: offset})
			lastIndexed = offset
		}
		if err := writeLengthPrefixed(df, rec); err != nil {
			df.Close()
			os.Remove(dataTmp)
			return nil, argerr.Wrap(argerr.IoError, "write jstable record", err)
		}
		offset += 4 + int64(len(rec))
	}
	if err := df.Sync(); err != nil {
		df.Close()
		os.Remove(dataTmp)
		return nil, argerr.Wrap(argerr.IoError, "fsync jstable data file", err)
	}
	if err := df.Close(); err != nil {
		os.Remove(dataTmp)
		return nil, argerr.Wrap(argerr.IoError, "close jstable data file", err)
	}

	f, err := filter.Build(ids)
	if err != nil {
		os.Remove(dataTmp)
		return nil, argerr.Wrap(argerr.IoError, "build jstable membership filter", err)
	}

	ts := time.Now().UnixMilli()
	header := value.NewObject([]value.Field{
		{Key: "timestamp", Val: value.NewInt(ts)},
		{Key: "schema", Val: sch.ToValue()},
	})
	indexVal := make([]value.Value, len(index))
	for i, e := range index {
		indexVal[i] = value.NewArray([]value.Value{value.NewString(e.ID), value.NewInt(e.Offset)})
	}

	sf, err := os.OpenFile(summaryTmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		os.Remove(dataTmp)
		return nil, argerr.Wrap(argerr.IoError, "create jstable summary file", err)
	}
	for _, entry := range []value.Value{header, f.ToValue(), value.NewArray(indexVal)} {
		if err := writeLengthPrefixed(sf, jsonb.Encode(entry)); err != nil {
			sf.Close()
			os.Remove(dataTmp)
			os.Remove(summaryTmp)
			return nil, argerr.Wrap(argerr.IoError, "write jstable summary entry", err)
		}
	}
	if err := sf.Sync(); err != nil {
		sf.Close()
		os.Remove(dataTmp)
		os.Remove(summaryTmp)
		return nil, argerr.Wrap(argerr.IoError, "fsync jstable summary file", err)
	}
	if err := sf.Close(); err != nil {
		os.Remove(dataTmp)
		os.Remove(summaryTmp)
		return nil, argerr.Wrap(argerr.IoError, "close jstable summary file", err)
	}

	if err := os.Rename(dataTmp, dataPath(dir, name)); err != nil {
		os.Remove(dataTmp)
		os.Remove(summaryTmp)
		return nil, argerr.Wrap(argerr.IoError, "commit jstable data file", err)
	}
	if err := os.Rename(summaryTmp, summaryPath(dir, name)); err != nil {
		return nil, argerr.Wrap(argerr.IoError, "commit jstable summary file", err)
	}

	logger.Debug().Str("name", name).Int("records", len(entries)).Msg("jstable: wrote run")
	return &Descriptor{Dir: dir, Name: name, Timestamp: ts, Schema: sch}, nil
}
