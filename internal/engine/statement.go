package engine

import (
	"github.com/argusdb/argus/internal/query"
	"github.com/argusdb/argus/internal/value"
)

// StatementKind identifies which form of statement a Statement carries.
type StatementKind int

const (
	StmtCreateCollection StatementKind = iota
	StmtDropCollection
	StmtShowCollections
	StmtInsert
	StmtSelect
)

// Statement is the internal algebra the engine consumes. A SQL frontend
// would lower parsed text into this shape; in this repo the admin CLI
// builds one of these directly rather than going through SQL text.
type Statement struct {
	Kind       StatementKind
	Collection string

	// StmtInsert: one Statement may carry several documents. IDs, if
	// present, pairs 1:1 with Docs; a doc with no entry in IDs (IDs
	// absent or shorter than Docs) or an empty entry gets an
	// auto-assigned id.
	Docs []value.Value
	IDs  []string

	// StmtSelect: the compiled logical plan.
	Plan *query.Plan
}

// Result is the outcome of Execute: reads populate Rows, inserts populate
// InsertedIDs, and SHOW COLLECTIONS populates Collections.
type Result struct {
	Kind        StatementKind
	Rows        []value.Value
	InsertedIDs []string
	Collections []string
}
