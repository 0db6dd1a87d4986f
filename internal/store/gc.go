package store

import "log/slog"

// Sweep consumes the garbage set and reclaims every candidate whose
// reference count is still 0.
//
// For each reclaimed key:
//   - its record, count entry and type index membership are deleted
//   - any leftover parent bookkeeping is dropped (parent records are never rewritten)
//   - each child loses one parent; children reaching 0 are swept in the same pass
//
// Candidates that regained a parent since being enqueued are skipped.
// The garbage set shrinks monotonically, so Sweep always terminates; it is
// idempotent and safe to call on an empty set.
//
// Returns the reclaimed keys in reclamation order.
func (s *Store) Sweep() []string {
	var removed []string

	for len(s.garbage) > 0 {
		key := s.garbage[0]
		s.garbage = s.garbage[1:]
		delete(s.inGarbage, key)

		if s.counts[key] != 0 {
			continue
		}

		for _, p := range sortedKeys(s.parents[key]) {
			delete(s.children[p], key)
			if len(s.children[p]) == 0 {
				delete(s.children, p)
			}
		}
		delete(s.parents, key)

		// RemoveEdge enqueues children whose count reaches 0.
		for _, c := range sortedKeys(s.children[key]) {
			s.RemoveEdge(c, key)
		}
		delete(s.children, key)

		s.dropRecord(key)
		removed = append(removed, key)
	}

	s.garbage = nil
	if len(removed) > 0 {
		slog.Debug("garbage swept", "removed", len(removed), "records", len(s.records))
	}
	return removed
}
