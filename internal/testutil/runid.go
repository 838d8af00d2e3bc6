// Package testutil provides deterministic helpers for tests.
//
// Production code generates run identifiers with timeline.UUIDv7Generator.
// Tests that compare provenance records or golden snapshots need stable ids
// instead; the generators here supply them.
package testutil

import (
	"fmt"
	"sync"
)

// FixedRunIDGenerator returns the same run id on every call, making
// provenance records byte-identical across runs of the same scenario.
// Implements timeline.RunIDGenerator.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator that always returns id.
// An empty id defaults to "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}

// SequenceRunIDGenerator returns "prefix-1", "prefix-2", ... in call order.
// Use it when one scenario produces several runs (an exposure run feeding an
// event run) and each needs a distinct but predictable id. Safe for
// concurrent use.
type SequenceRunIDGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequenceRunIDGenerator creates a sequence generator with the given
// prefix. An empty prefix defaults to "test-run".
func NewSequenceRunIDGenerator(prefix string) *SequenceRunIDGenerator {
	if prefix == "" {
		prefix = "test-run"
	}
	return &SequenceRunIDGenerator{prefix: prefix}
}

// Generate returns the next id in the sequence, starting at "prefix-1".
func (g *SequenceRunIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Reset rewinds the sequence so the next Generate returns "prefix-1" again.
func (g *SequenceRunIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
