package testutil

import (
	"strconv"
	"sync"
)

// SequenceFlowGenerator numbers flows "<prefix>-1", "<prefix>-2", ...
//
// Golden traces depend on flow tokens being reproducible, so scenarios use
// this generator instead of UUIDv7 tokens. Unlike engine.FixedGenerator it
// never runs out, and Reset restarts the numbering for the next scenario.
//
// Implements engine.FlowTokenGenerator.
type SequenceFlowGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceFlowGenerator creates a generator. An empty prefix becomes "flow".
func NewSequenceFlowGenerator(prefix string) *SequenceFlowGenerator {
	if prefix == "" {
		prefix = "flow"
	}
	return &SequenceFlowGenerator{prefix: prefix}
}

// Generate returns the next token.
func (g *SequenceFlowGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.prefix + "-" + strconv.Itoa(g.n)
}

// Reset restarts numbering at 1.
func (g *SequenceFlowGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
