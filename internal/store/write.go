package store

import (
	"github.com/roach88/linkgraph/internal/ir"
)

// Put writes the record for key, replacing any previous record.
// Non-synthetic keys are added to the type index.
//
// Put does not touch the reference graph; callers reconcile edges with
// SetChildren after committing.
func (s *Store) Put(key string, rec ir.Object, synthetic bool) {
	s.records[key] = rec
	if synthetic {
		s.synthetic[key] = struct{}{}
		return
	}
	typ := ir.TypeOf(key)
	if typ == "" {
		return
	}
	if s.types[typ] == nil {
		s.types[typ] = make(keySet)
	}
	s.types[typ][key] = struct{}{}
}

// AddEdge records parent -> child and recomputes child's reference count as
// its new parent count. Idempotent.
func (s *Store) AddEdge(child, parent string) {
	if s.parents[child] == nil {
		s.parents[child] = make(keySet)
	}
	s.parents[child][parent] = struct{}{}

	if s.children[parent] == nil {
		s.children[parent] = make(keySet)
	}
	s.children[parent][child] = struct{}{}

	s.counts[child] = len(s.parents[child])
}

// RemoveEdge drops parent -> child. When child's count reaches 0 it is
// enqueued in the garbage set. Removing a missing edge is a no-op.
func (s *Store) RemoveEdge(child, parent string) {
	if _, ok := s.parents[child][parent]; !ok {
		return
	}
	delete(s.parents[child], parent)
	delete(s.children[parent], child)
	if len(s.children[parent]) == 0 {
		delete(s.children, parent)
	}

	s.counts[child] = len(s.parents[child])
	if s.counts[child] == 0 {
		delete(s.parents, child)
		s.enqueue(child)
	}
}

// SetChildren reconciles parent's outgoing edges to exactly children.
// New edges are added, edges no longer present are removed (possibly
// enqueueing orphans). Returns the keys that lost this parent.
func (s *Store) SetChildren(parent string, children []string) []string {
	want := make(keySet, len(children))
	for _, c := range children {
		want[c] = struct{}{}
		s.AddEdge(c, parent)
	}

	var dropped []string
	for _, c := range sortedKeys(s.children[parent]) {
		if _, ok := want[c]; !ok {
			s.RemoveEdge(c, parent)
			dropped = append(dropped, c)
		}
	}
	return dropped
}

// Delete removes key outright regardless of its reference count: its record,
// count entry, type index membership and every edge in both directions.
// Children that lose their last parent are enqueued for the next Sweep.
//
// Delete never rewrites parent records; callers clean referrers first.
func (s *Store) Delete(key string) {
	for _, p := range sortedKeys(s.parents[key]) {
		delete(s.children[p], key)
		if len(s.children[p]) == 0 {
			delete(s.children, p)
		}
	}
	delete(s.parents, key)

	for _, c := range sortedKeys(s.children[key]) {
		s.RemoveEdge(c, key)
	}
	delete(s.children, key)

	s.dropRecord(key)
}

// dropRecord removes the record, count and index entries of key.
func (s *Store) dropRecord(key string) {
	delete(s.records, key)
	delete(s.counts, key)
	if _, ok := s.synthetic[key]; ok {
		delete(s.synthetic, key)
		return
	}
	if typ := ir.TypeOf(key); typ != "" {
		delete(s.types[typ], key)
		if len(s.types[typ]) == 0 {
			delete(s.types, typ)
		}
	}
}

// enqueue adds key to the garbage set once.
func (s *Store) enqueue(key string) {
	if _, ok := s.inGarbage[key]; ok {
		return
	}
	s.inGarbage[key] = struct{}{}
	s.garbage = append(s.garbage, key)
}

// Release enqueues key for the next Sweep when nothing references it.
// Used for records committed during normalization that ended up unlinked.
func (s *Store) Release(key string) {
	if s.counts[key] == 0 {
		s.enqueue(key)
	}
}
