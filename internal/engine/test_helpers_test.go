package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/linkgraph/internal/ir"
	"github.com/roach88/linkgraph/internal/testutil"
)

// newTestCache creates a cache with deterministic flow tokens and sequence
// numbers and a silent logger.
func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	base := []Option{
		WithLogger(testutil.DiscardLogger()),
		WithFlowGenerator(testutil.NewSequenceFlowGenerator("flow")),
		WithClock(testutil.NewDeterministicClock()),
	}
	return New(append(base, opts...)...)
}

// mustMutate mutates and fails the test on error.
func mustMutate(t *testing.T, c *Cache, target ir.Value, data Data, opts ...MutateOption) string {
	t.Helper()
	key, err := c.Mutate(target, data, opts...)
	require.NoError(t, err)
	return key
}

// requireConsistent asserts the refcount invariant holds.
func requireConsistent(t *testing.T, c *Cache) {
	t.Helper()
	require.NoError(t, c.CheckConsistency())
}

func entity(typ, id string, fields ir.Object) ir.Object {
	return testutil.Entity(typ, id, fields)
}

func link(key string) ir.Link {
	return ir.Link(key)
}

// recorder collects notifications in delivery order.
type recorder struct {
	got []Notification
}

func (r *recorder) cb(n Notification) {
	r.got = append(r.got, n)
}

func (r *recorder) count() int {
	return len(r.got)
}

func (r *recorder) last() Notification {
	if len(r.got) == 0 {
		return Notification{}
	}
	return r.got[len(r.got)-1]
}
