// Package store provides the in-memory Link Store and Reference Graph.
//
// The store holds three kinds of state for one cache instance:
//   - Records: link key -> normalized record (ir.Object with links, never nested objects)
//   - Reference graph: parent -> children and child -> parents adjacency
//   - Garbage set: keys whose reference count dropped to 0, pending Sweep
//
// # Invariants
//
// Reference counts are derived, never incremented blindly:
//   - RefCount(k) == len(Parents(k)) after every edge operation
//   - An edge parent -> child exists iff the parent's record contains the child's link
//     (maintained by callers through SetChildren on every commit)
//
// Synthetic keys (anonymous nested objects, "Type:Id.path") take part in the
// reference graph and the garbage collector but are excluded from the type index.
//
// # Ownership
//
// A Store is single-owner: it performs no locking. The engine drives it from a
// single goroutine, and every read used for output is copied by the caller.
//
// Deterministic iteration: every method returning keys returns them sorted,
// and the garbage set is swept in FIFO order.
package store
