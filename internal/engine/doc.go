// Package engine implements the linkgraph normalized cache.
//
// A Cache flattens nested entity trees into one record per link key, keeps a
// reference-counted parent graph between records, and tells subscribers when
// a key or anything below it changed.
//
// ARCHITECTURE:
//
// Single Owner:
// A Cache is driven by one goroutine. Every operation runs to completion
// synchronously, including the notification callbacks it triggers, so the
// observable order of commits and deliveries is deterministic.
//
// Mutation Flow:
//  1. Mutate derives the target key and runs the middleware chain
//  2. The input tree is checked for self-reference (CYCLIC_INPUT), and a
//     WithParent owner must already link the target (INVALID_PARENT)
//  3. Nested objects are normalized depth first: identified entities become
//     links to their own records, anonymous objects get synthetic keys
//  4. Each record is committed when its encoding changed, and its outgoing
//     edges are reconciled with the links it now holds
//  5. Every key that changed under shallow equality is notified once,
//     bubbling up the parent graph
//  6. Records whose last parent went away are swept
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Every Notification carries Seq from Clock.Next(). Flow tokens group the
// notifications of one outermost mutation.
//
// Bounded Cascades:
// A key recurring on its own notification path, or a path beyond the depth
// budget, raises DEPTH_EXCEEDED. The error is fatal: the cache refuses every
// later write and returns it again.
package engine
