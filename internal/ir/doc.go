// Package ir provides the value model shared by every linkgraph package.
//
// This package contains the field value union, the key codec and canonical
// serialization. All other internal packages import ir; ir imports nothing
// internal. This keeps ir the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Value is sealed: Null, String, Int, Bool, Link, Array, Object
//   - NO float types anywhere - use int64 for numbers
//   - Links are explicit values, never inferred from string content
//   - Canonical JSON (RFC 8785) is the only serialization used for digests
package ir
