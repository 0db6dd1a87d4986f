// Package harness runs YAML scenarios against a fresh cache and checks the
// resulting notification trace and graph state.
//
// # Scenario Format
//
//	name: diamond_cascade
//	description: "A shared leaf notifies every ancestor once"
//	schema: schema.cue          # optional, relative to this file
//	max_notify_depth: 16        # optional
//	steps:
//	  - op: subscribe
//	    id: top
//	    target: "Top:1"
//	    selector: "value?.mid"  # optional expr-lang expression
//	    direct_only: false
//	  - op: mutate
//	    target: { type: Top, id: "1", mid: { type: Mid, id: "1" } }
//	  - op: update
//	    target: "Mid:1"
//	    data: { name: "renamed" }
//	  - op: invalidate
//	    target: "Mid:1"
//	  - op: unsubscribe
//	    id: top
//	  - op: sweep
//	assertions:
//	  - type: resolve
//	    key: "Top:1"
//	    expect: { type: Top, id: "1", mid: null }
//	  - type: notified
//	    subscription: top
//	    count: 2
//
// Links are written as {$ref: "Type:id"}. A step that must fail names the
// error code in expect_error (CYCLIC_INPUT, DEPTH_EXCEEDED, INVALID_PARENT,
// VALIDATION).
//
// # Assertion Types
//
//   - resolve: the key resolves to exactly the expected record
//   - absent: the key has no record
//   - refcount: the key has exactly count parents
//   - parents: the key's parents are exactly keys
//   - notified: a subscription received count notifications
//   - type_keys: the entity type has exactly keys
//
// # Deterministic Testing
//
// Every run uses a fresh cache with flow tokens "flow-1", "flow-2", ... and a
// logical clock starting at 1, so traces are identical across runs and can
// be compared against golden files under testdata/golden.
package harness
