package store

import (
	"fmt"

	"github.com/roach88/linkgraph/internal/ir"
)

// keySet is an unordered set of link keys.
type keySet map[string]struct{}

// Store is the Link Store plus Reference Graph of one cache instance.
type Store struct {
	records   map[string]ir.Object
	synthetic keySet
	types     map[string]keySet // type name -> non-synthetic keys

	parents  map[string]keySet // child -> referrers
	children map[string]keySet // parent -> referents
	counts   map[string]int    // child -> len(parents[child])

	garbage   []string // FIFO sweep order
	inGarbage keySet
}

// New creates an empty store.
func New() *Store {
	return &Store{
		records:   make(map[string]ir.Object),
		synthetic: make(keySet),
		types:     make(map[string]keySet),
		parents:   make(map[string]keySet),
		children:  make(map[string]keySet),
		counts:    make(map[string]int),
		inGarbage: make(keySet),
	}
}

// Stats summarizes store size for diagnostics.
type Stats struct {
	Records int `json:"records"`
	Edges   int `json:"edges"`
	Garbage int `json:"garbage"`
}

// Stats returns current record, edge and pending-garbage counts.
func (s *Store) Stats() Stats {
	edges := 0
	for _, kids := range s.children {
		edges += len(kids)
	}
	return Stats{
		Records: len(s.records),
		Edges:   edges,
		Garbage: len(s.garbage),
	}
}

// Snapshot returns a deep copy of every record, keyed by link key.
func (s *Store) Snapshot() map[string]ir.Object {
	out := make(map[string]ir.Object, len(s.records))
	for k, rec := range s.records {
		out[k] = rec.Clone()
	}
	return out
}

// Digest fingerprints the full record set. Two stores with the same records
// produce the same digest.
func (s *Store) Digest() (string, error) {
	d, err := ir.SnapshotDigest(s.records)
	if err != nil {
		return "", fmt.Errorf("store digest: %w", err)
	}
	return d, nil
}

// CheckRefCounts verifies RefCount(k) == len(Parents(k)) for every tracked key
// and that parent/child adjacency is symmetric. Used by tests and the CLI dump.
func (s *Store) CheckRefCounts() error {
	for child, ps := range s.parents {
		if s.counts[child] != len(ps) {
			return fmt.Errorf("refcount mismatch for %s: count=%d parents=%d", child, s.counts[child], len(ps))
		}
		for p := range ps {
			if _, ok := s.children[p][child]; !ok {
				return fmt.Errorf("edge %s -> %s missing from children index", p, child)
			}
		}
	}
	for child, n := range s.counts {
		if n != len(s.parents[child]) {
			return fmt.Errorf("refcount mismatch for %s: count=%d parents=%d", child, n, len(s.parents[child]))
		}
	}
	for p, kids := range s.children {
		for c := range kids {
			if _, ok := s.parents[c][p]; !ok {
				return fmt.Errorf("edge %s -> %s missing from parents index", p, c)
			}
		}
	}
	return nil
}

// CheckEdges verifies that the outgoing edges of every key mirror the links
// in its stored record. A key with no record has no outgoing edges.
func (s *Store) CheckEdges() error {
	for p, kids := range s.children {
		rec, ok := s.records[p]
		if !ok {
			if len(kids) > 0 {
				return fmt.Errorf("%s has %d outgoing edge(s) but no record", p, len(kids))
			}
			continue
		}
		want := make(keySet)
		for _, l := range ir.Links(rec) {
			want[l] = struct{}{}
		}
		for c := range kids {
			if _, ok := want[c]; !ok {
				return fmt.Errorf("edge %s -> %s is not backed by the record", p, c)
			}
		}
		for c := range want {
			if _, ok := kids[c]; !ok {
				return fmt.Errorf("link %s -> %s has no edge", p, c)
			}
		}
	}
	for p, rec := range s.records {
		if _, ok := s.children[p]; ok {
			continue
		}
		if links := ir.Links(rec); len(links) > 0 {
			return fmt.Errorf("link %s -> %s has no edge", p, links[0])
		}
	}
	return nil
}
