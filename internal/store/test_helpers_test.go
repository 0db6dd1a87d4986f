package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/linkgraph/internal/ir"
)

// createTestStore creates a new empty store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	return New()
}

// putLinked writes rec under key and reconciles its edges from the links it
// contains, the way the engine commits a record.
func putLinked(s *Store, key string, rec ir.Object, synthetic bool) {
	s.Put(key, rec, synthetic)
	s.SetChildren(key, ir.Links(rec))
}

// requireConsistent asserts the refcount invariant holds.
func requireConsistent(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.CheckRefCounts())
}
