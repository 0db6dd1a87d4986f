package engine

import (
	"github.com/roach88/linkgraph/internal/ir"
)

// Resolve returns the shallow tree of target: its record with anonymous
// nested objects inlined and references to other entities left as bare
// ir.Link values.
//
// Returns nil when target has no valid key or nothing is stored for it.
// The result is a fresh copy; modifying it never affects the cache.
func (c *Cache) Resolve(target ir.Value) ir.Object {
	key, ok := c.codec.KeyOf(target)
	if !ok {
		return nil
	}
	return c.resolveKey(key)
}

// ResolveSafe is Resolve that falls back to target itself when nothing is
// cached for it.
func (c *Cache) ResolveSafe(target ir.Value) ir.Value {
	if rec := c.Resolve(target); rec != nil {
		return rec
	}
	return target
}

// Parents returns the keys currently referencing target, sorted.
func (c *Cache) Parents(target ir.Value) []string {
	key, ok := c.codec.KeyOf(target)
	if !ok {
		return []string{}
	}
	return c.store.Parents(key)
}

// ResolveParents resolves every current referrer of target, in key order.
// Referrers without a stored record are skipped.
func (c *Cache) ResolveParents(target ir.Value) []ir.Object {
	parents := c.Parents(target)
	out := make([]ir.Object, 0, len(parents))
	for _, p := range parents {
		if rec := c.resolveKey(p); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// InspectFields returns every stored key of the given type, sorted.
// Synthetic keys are never listed.
func (c *Cache) InspectFields(typ string) []string {
	return c.store.TypeKeys(typ)
}

func (c *Cache) resolveKey(key string) ir.Object {
	rec, ok := c.store.Get(key)
	if !ok {
		return nil
	}
	out := make(ir.Object, len(rec))
	for name, v := range rec {
		out[name] = c.resolveValue(key, v)
	}
	return out
}

// resolveValue inlines links into owner's own synthetic namespace.
// Synthetic keys are strictly longer than their owner, so recursion ends.
func (c *Cache) resolveValue(owner string, v ir.Value) ir.Value {
	switch val := v.(type) {
	case ir.Link:
		key := string(val)
		if ir.IsUnder(owner, key) && c.store.IsSynthetic(key) {
			if rec := c.resolveKey(key); rec != nil {
				return rec
			}
		}
		return val
	case ir.Array:
		out := make(ir.Array, len(val))
		for i, elem := range val {
			out[i] = c.resolveValue(owner, elem)
		}
		return out
	default:
		return ir.Clone(v)
	}
}
