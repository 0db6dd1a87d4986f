package engine

import (
	"slices"

	"github.com/roach88/linkgraph/internal/ir"
)

// Invalidate evicts target regardless of who references it.
//
// The key and all its edges are removed. Every direct referrer has the
// reference scrubbed (array elements dropped, scalar fields set to null)
// and is re-committed. Each transitive referrer is notified once, then the
// key's own subscribers receive ir.Null{}. Records orphaned by the eviction
// are swept before Invalidate returns.
//
// Unknown or malformed targets are a no-op.
func (c *Cache) Invalidate(target ir.Value) error {
	if c.fatal != nil {
		return c.fatal
	}
	key, ok := c.codec.KeyOf(target)
	if !ok || !c.store.Tracked(key) {
		return nil
	}

	flow := c.flowGen.Generate()
	closure := c.ancestors(key)
	direct := c.store.Parents(key)

	c.store.Delete(key)
	for _, p := range direct {
		rec, ok := c.store.Get(p)
		if !ok {
			continue
		}
		cleaned := scrub(rec, key)
		c.store.Put(p, cleaned, c.store.IsSynthetic(p))
		c.store.SetChildren(p, ir.Links(cleaned))
	}

	for _, a := range closure {
		isDirect := slices.Contains(direct, a)
		if err := c.deliverKey(flow, a, a, nil, isDirect, false, 0); err != nil {
			return err
		}
	}
	if err := c.deliverKey(flow, key, key, ir.Null{}, true, false, 0); err != nil {
		return err
	}

	removed := c.store.Sweep()
	c.logger.Debug("key invalidated",
		"key", key,
		"flow_token", flow,
		"referrers", len(closure),
		"removed", len(removed),
	)
	return nil
}

// ancestors returns the transitive referrers of key, nearest first, each once.
// key itself is excluded even when the graph cycles back to it.
func (c *Cache) ancestors(key string) []string {
	seen := map[string]struct{}{key: {}}
	var out []string
	frontier := []string{key}
	for len(frontier) > 0 {
		var next []string
		for _, k := range frontier {
			for _, p := range c.store.Parents(k) {
				if _, ok := seen[p]; ok {
					continue
				}
				seen[p] = struct{}{}
				out = append(out, p)
				next = append(next, p)
			}
		}
		frontier = next
	}
	return out
}

// scrub removes references to dead from a record copy.
func scrub(rec ir.Object, dead string) ir.Object {
	out := make(ir.Object, len(rec))
	for name, v := range rec {
		out[name] = scrubValue(v, dead)
	}
	return out
}

func scrubValue(v ir.Value, dead string) ir.Value {
	switch val := v.(type) {
	case ir.Link:
		if string(val) == dead {
			return ir.Null{}
		}
	case ir.Array:
		out := make(ir.Array, 0, len(val))
		for _, elem := range val {
			if l, ok := elem.(ir.Link); ok && string(l) == dead {
				continue
			}
			out = append(out, scrubValue(elem, dead))
		}
		return out
	}
	return v
}
