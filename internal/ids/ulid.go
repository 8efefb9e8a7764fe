// Package ids generates DocumentId values: a process-local monotonic
// counter plus entropy source producing a 26-character,
// lexicographically sortable token, so that lexical id order
// approximates insertion order across the memtable and every JSTable
// run.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces monotonically increasing DocumentId strings. It
// wraps ulid.Monotonic with its own mutex because ulid's monotonic
// entropy source is not safe for concurrent use, and Memtable.Insert can
// be called from the single writer path while a flush snapshot is being
// read concurrently elsewhere in the LSM engine.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// New returns the next DocumentId. Safe for concurrent use, though the
// LSM engine only ever calls it from the serialized write path.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	return id.String()
}
