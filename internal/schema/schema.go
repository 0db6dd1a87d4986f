// Package schema compiles CUE type definitions into key codecs and field
// validators for the cache.
//
// A schema file names the type field, optional cache settings and one entry
// per entity type:
//
//	type_field: "__typename"
//	max_notify_depth: 32
//
//	types: {
//		User: {
//			key: "id"
//			fields: { id: string | int, name: string, tags: [...string] }
//		}
//		Edge: key: ["from", "to"]
//	}
//
// Composite keys join their field values with KeySep, so Edge{from: "a",
// to: "b"} becomes "Edge:a/b".
package schema

import (
	"slices"
	"strings"

	"github.com/roach88/linkgraph/internal/ir"
)

// KeySep joins the parts of a composite key.
const KeySep = "/"

// Kind is the declared shape of an entity field.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindBool   Kind = "bool"
	KindArray  Kind = "array"
	KindObject Kind = "object"
	KindID     Kind = "id" // string or int
)

// TypeSpec describes one entity type.
type TypeSpec struct {
	Name string `json:"name"`

	// Key lists the fields whose values form the id segment. Empty means
	// the default id/_id lookup.
	Key []string `json:"key,omitempty"`

	// Fields maps declared field names to their kinds. Undeclared fields
	// are accepted as-is.
	Fields map[string]Kind `json:"fields,omitempty"`

	// Line is the source line of the type definition, when known.
	Line int `json:"line,omitempty"`
}

// Schema is a compiled set of type definitions.
type Schema struct {
	TypeField      string              `json:"type_field,omitempty"`
	MaxNotifyDepth int                 `json:"max_notify_depth,omitempty"`
	Types          map[string]TypeSpec `json:"types"`
}

// TypeNames returns the declared type names in sorted order.
func (s *Schema) TypeNames() []string {
	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Codec builds a key codec with one KeyFunc per type that declares a key.
func (s *Schema) Codec() *ir.Codec {
	codec := ir.NewCodec()
	if s.TypeField != "" {
		codec.TypeField = s.TypeField
	}
	for _, name := range s.TypeNames() {
		spec := s.Types[name]
		if len(spec.Key) > 0 {
			codec.Register(name, KeyFunc(spec.Key))
		}
	}
	return codec
}

// KeyFunc derives an id segment from the given fields. Every field must hold
// a non-empty string or an int.
func KeyFunc(fields []string) ir.KeyFunc {
	fields = slices.Clone(fields)
	return func(entity ir.Object) (string, bool) {
		parts := make([]string, len(fields))
		for i, f := range fields {
			id, ok := ir.IDString(entity[f])
			if !ok {
				return "", false
			}
			parts[i] = id
		}
		return strings.Join(parts, KeySep), true
	}
}
