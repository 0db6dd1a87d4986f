package store

import (
	"slices"

	"github.com/roach88/linkgraph/internal/ir"
)

// Get returns the stored record for key.
// The returned object is owned by the store and must not be modified;
// use Snapshot or ir.Object.Clone for a private copy.
func (s *Store) Get(key string) (ir.Object, bool) {
	rec, ok := s.records[key]
	return rec, ok
}

// Has reports whether a record exists for key.
func (s *Store) Has(key string) bool {
	_, ok := s.records[key]
	return ok
}

// Tracked reports whether key has a record or takes part in any edge.
func (s *Store) Tracked(key string) bool {
	if s.Has(key) {
		return true
	}
	return len(s.parents[key]) > 0 || len(s.children[key]) > 0
}

// IsSynthetic reports whether key was committed as an anonymous nested object.
func (s *Store) IsSynthetic(key string) bool {
	_, ok := s.synthetic[key]
	return ok
}

// Parents returns the current referrers of key, sorted.
// Returns an empty slice (not nil) when key has no parents.
func (s *Store) Parents(key string) []string {
	return sortedKeys(s.parents[key])
}

// Children returns the keys referenced by key's record, sorted.
func (s *Store) Children(key string) []string {
	return sortedKeys(s.children[key])
}

// RefCount returns the number of distinct current parents of key.
func (s *Store) RefCount(key string) int {
	return s.counts[key]
}

// TypeKeys returns every non-synthetic key of the given type, sorted.
func (s *Store) TypeKeys(typ string) []string {
	return sortedKeys(s.types[typ])
}

// Keys returns every record key, sorted.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Garbage returns the pending garbage set in sweep order.
func (s *Store) Garbage() []string {
	return slices.Clone(s.garbage)
}

// sortedKeys returns the members of set in lexical order, never nil.
func sortedKeys(set keySet) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
