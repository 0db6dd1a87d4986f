package ir

import (
	"regexp"
	"strconv"
	"strings"
)

// Default identity field names.
const (
	DefaultTypeField = "type"
	DefaultIDField   = "id"
	FallbackIDField  = "_id"
)

// SyntheticSep separates an owner key from the field path of an anonymous
// nested object: "User:1.profile", "User:1.tags.0".
const SyntheticSep = "."

// Entity ids and synthetic path segments are escaped so that SyntheticSep
// only ever appears as a separator: "%" becomes "%25" and "." becomes "%2E".
var (
	segmentEscaper   = strings.NewReplacer("%", "%25", SyntheticSep, "%2E")
	segmentUnescaper = strings.NewReplacer("%2E", SyntheticSep, "%25", "%")
)

// EscapeSegment encodes s for use as one key segment.
func EscapeSegment(s string) string {
	return segmentEscaper.Replace(s)
}

// UnescapeSegment reverses EscapeSegment.
func UnescapeSegment(s string) string {
	return segmentUnescaper.Replace(s)
}

// keyGrammar matches "Type:Id": a non-empty type segment without ':' or
// whitespace, then ':' and a non-empty id segment.
var keyGrammar = regexp.MustCompile(`^[^:\s]+:.+$`)

// KeyFunc derives the id segment for an entity of a registered type.
// Returning false means the entity has no identity.
type KeyFunc func(entity Object) (id string, ok bool)

// Codec derives link keys from entities and back.
//
// A zero Codec uses the "type" field as the type tag and "id" then "_id" as
// the identity fields.
type Codec struct {
	// TypeField names the field holding the entity type tag.
	TypeField string

	// KeyFuncs holds per-type id functions. They take precedence over the
	// id/_id fields.
	KeyFuncs map[string]KeyFunc
}

// NewCodec creates a codec with the default type field.
func NewCodec() *Codec {
	return &Codec{
		TypeField: DefaultTypeField,
		KeyFuncs:  make(map[string]KeyFunc),
	}
}

// Register installs a per-type id function.
func (c *Codec) Register(typ string, fn KeyFunc) {
	if c.KeyFuncs == nil {
		c.KeyFuncs = make(map[string]KeyFunc)
	}
	c.KeyFuncs[typ] = fn
}

func (c *Codec) typeField() string {
	if c == nil || c.TypeField == "" {
		return DefaultTypeField
	}
	return c.TypeField
}

// KeyOf derives the canonical link key for v.
//
//   - Link and String inputs are accepted only when they match the key grammar.
//     They are taken verbatim, so an id holding "." or "%" must be given in
//     its escaped form.
//   - Object inputs need a string type tag, then a registered KeyFunc, else an
//     "id" or "_id" field (string or int).
//
// Returns false when no key can be derived: the value must then be treated as
// an inline scalar, never as a reference.
func (c *Codec) KeyOf(v Value) (string, bool) {
	switch val := v.(type) {
	case Link:
		return string(val), IsKey(string(val))
	case String:
		return string(val), IsKey(string(val))
	case Object:
		return c.keyOfObject(val)
	default:
		return "", false
	}
}

func (c *Codec) keyOfObject(obj Object) (string, bool) {
	typ, ok := obj[c.typeField()].(String)
	if !ok || typ == "" {
		return "", false
	}

	if c != nil {
		if fn, ok := c.KeyFuncs[string(typ)]; ok {
			id, ok := fn(obj)
			if !ok || id == "" {
				return "", false
			}
			return joinKey(string(typ), id)
		}
	}

	for _, field := range []string{DefaultIDField, FallbackIDField} {
		if id, ok := IDString(obj[field]); ok {
			return joinKey(string(typ), id)
		}
	}
	return "", false
}

func joinKey(typ, id string) (string, bool) {
	key := typ + ":" + EscapeSegment(id)
	return key, IsKey(key)
}

// IDString renders a scalar id value as a key segment.
func IDString(v Value) (string, bool) {
	switch val := v.(type) {
	case String:
		return string(val), val != ""
	case Int:
		return strconv.FormatInt(int64(val), 10), true
	default:
		return "", false
	}
}

// EntityOfKey yields the minimal {type, id} stub for a key, with the id
// segment unescaped. Returns nil when key does not match the grammar.
func (c *Codec) EntityOfKey(key string) Object {
	typ, id, ok := SplitKey(key)
	if !ok {
		return nil
	}
	return Object{
		c.typeField():  String(typ),
		DefaultIDField: String(UnescapeSegment(id)),
	}
}

// IsKey reports whether s matches the key grammar.
func IsKey(s string) bool {
	return keyGrammar.MatchString(s)
}

// SplitKey splits a key into its type and id segments.
func SplitKey(key string) (typ, id string, ok bool) {
	if !IsKey(key) {
		return "", "", false
	}
	typ, id, _ = strings.Cut(key, ":")
	return typ, id, true
}

// TypeOf returns the type segment of a key, or "" for invalid keys.
func TypeOf(key string) string {
	typ, _, _ := SplitKey(key)
	return typ
}

// SyntheticKey builds the key of an anonymous nested object owned by owner.
// Each path segment is escaped.
func SyntheticKey(owner string, path ...string) string {
	segs := make([]string, len(path))
	for i, p := range path {
		segs[i] = EscapeSegment(p)
	}
	return owner + SyntheticSep + strings.Join(segs, SyntheticSep)
}

// IsUnder reports whether key lies in owner's synthetic namespace.
func IsUnder(owner, key string) bool {
	return len(key) > len(owner)+len(SyntheticSep) &&
		strings.HasPrefix(key, owner+SyntheticSep)
}
