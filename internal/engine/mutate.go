package engine

import (
	"bytes"
	"reflect"
	"slices"
	"strconv"

	"github.com/roach88/linkgraph/internal/ir"
)

// Data is the payload of a mutation: either a field patch or an updater.
// It is a sealed interface; only Fields and UpdateFunc implement it.
type Data interface {
	data()
}

// Fields is a field patch. With the default options it is shallow-merged
// over the previous record.
type Fields ir.Object

func (Fields) data() {}

// UpdateFunc computes the next fields from the current resolved value
// (nil when the key is absent). Arrays it returns are taken as complete and
// are not appended to the previous ones.
type UpdateFunc func(current ir.Object) ir.Object

func (UpdateFunc) data() {}

// MutateOptions controls a single mutation.
type MutateOptions struct {
	// Replace discards the previous fields of the target instead of merging.
	Replace bool

	// Dedup removes repeated array elements after normalization.
	Dedup bool

	// Parent, when set, names a stored record that already links the
	// target. The mutation is then treated as nested: no garbage sweep runs
	// before it returns.
	Parent string
}

// MutateOption configures MutateOptions.
type MutateOption func(*MutateOptions)

// WithReplace discards previous fields instead of merging.
func WithReplace() MutateOption {
	return func(o *MutateOptions) {
		o.Replace = true
	}
}

// WithDedup toggles array deduplication (default on).
func WithDedup(dedup bool) MutateOption {
	return func(o *MutateOptions) {
		o.Dedup = dedup
	}
}

// WithParent marks the mutation as nested under an owner whose record links
// the target. Mutate fails with INVALID_PARENT when it does not.
func WithParent(key string) MutateOption {
	return func(o *MutateOptions) {
		o.Parent = key
	}
}

// MutateFunc applies a resolved mutation. It is the unit middleware wraps.
type MutateFunc func(key string, data Data, opts MutateOptions) (string, error)

// Middleware intercepts public mutations. It may rewrite the arguments,
// short-circuit, or call next.
type Middleware func(next MutateFunc, key string, data Data, opts MutateOptions) (string, error)

// flowState carries the bookkeeping of one outermost mutation.
type flowState struct {
	token        string
	appendArrays bool
	changed      []string
	changedSet   map[string]struct{}
}

func newFlowState(token string) *flowState {
	return &flowState{
		token:        token,
		appendArrays: true,
		changedSet:   make(map[string]struct{}),
	}
}

func (fs *flowState) markChanged(key string) {
	if _, ok := fs.changedSet[key]; ok {
		return
	}
	fs.changedSet[key] = struct{}{}
	fs.changed = append(fs.changed, key)
}

// forget removes key and the synthetic keys under it from the changed set.
func (fs *flowState) forget(key string) {
	kept := fs.changed[:0]
	for _, k := range fs.changed {
		if k == key || ir.IsUnder(key, k) {
			delete(fs.changedSet, k)
			continue
		}
		kept = append(kept, k)
	}
	fs.changed = kept
}

// Mutate normalizes data into the cache under target's key.
//
// Target is an entity (ir.Object) or a key (ir.Link / ir.String). With an
// entity target and nil data the entity itself is written.
//
// Nested identified entities are written under their own keys and replaced
// by links; anonymous nested objects get synthetic keys under the owner.
// Changed keys are notified once the whole tree is committed, then orphaned
// records are swept.
//
// Returns the target key, or "" when target has no identity (nothing is
// written). Returns a RuntimeError for self-referencing data or an invalid
// parent, or the fatal DEPTH_EXCEEDED error of a poisoned cache.
func (c *Cache) Mutate(target ir.Value, data Data, opts ...MutateOption) (string, error) {
	key, ok := c.codec.KeyOf(target)
	if !ok {
		c.logger.Debug("mutation skipped, target has no identity")
		return "", nil
	}
	if data == nil {
		if obj, ok := target.(ir.Object); ok {
			data = Fields(obj)
		}
	}

	o := MutateOptions{Dedup: true}
	for _, opt := range opts {
		opt(&o)
	}
	return c.mutate(key, data, o)
}

// mutateRoot runs one outermost mutation: normalize, commit, notify, sweep.
func (c *Cache) mutateRoot(key string, data Data, opts MutateOptions) (string, error) {
	if c.fatal != nil {
		return "", c.fatal
	}

	fs := newFlowState(c.flowGen.Generate())
	fields := c.dataFields(key, data)
	if _, ok := data.(UpdateFunc); ok {
		fs.appendArrays = false
	}

	if err := checkAcyclic(fs.token, key, fields); err != nil {
		c.logger.Warn("mutation rejected", "key", key, "flow_token", fs.token, "error", err)
		return "", err
	}

	if opts.Parent != "" && !c.links(opts.Parent, key) {
		err := NewInvalidParentError(fs.token, key, opts.Parent)
		c.logger.Warn("mutation rejected", "key", key, "flow_token", fs.token, "error", err)
		return "", err
	}

	c.mutateKey(fs, key, c.store.IsSynthetic(key), fields, opts)

	if err := c.settle(fs, key, opts.Parent == ""); err != nil {
		return "", err
	}
	return key, nil
}

// links reports whether the stored record of parent holds a link to key.
func (c *Cache) links(parent, key string) bool {
	rec, ok := c.store.Get(parent)
	if !ok {
		return false
	}
	return slices.Contains(ir.Links(rec), key)
}

// dataFields turns a Data payload into the field set to normalize.
func (c *Cache) dataFields(key string, data Data) ir.Object {
	switch d := data.(type) {
	case Fields:
		return ir.Object(d)
	case UpdateFunc:
		if next := d(c.resolveKey(key)); next != nil {
			return next
		}
	}
	return ir.Object{}
}

// mutateKey normalizes fields and commits the record of key when its encoding
// changed.
// Children are committed before their owner.
func (c *Cache) mutateKey(fs *flowState, key string, synthetic bool, fields ir.Object, opts MutateOptions) {
	prev, had := c.store.Get(key)
	merge := had && !opts.Replace

	normalized := make(ir.Object, len(fields))
	for _, name := range fields.SortedKeys() {
		var prevArr ir.Array
		if _, isArr := fields[name].(ir.Array); isArr && merge && fs.appendArrays {
			prevArr, _ = prev[name].(ir.Array)
		}

		v := c.normalize(fs, key, []string{name}, fields[name], len(prevArr), opts)
		if arr, ok := v.(ir.Array); ok {
			if len(prevArr) > 0 {
				arr = append(slices.Clone(prevArr), arr...)
			}
			if opts.Dedup {
				arr = c.dedupe(fs, key, arr)
			}
			v = arr
		}
		normalized[name] = v
	}

	// Nested writes may have touched key itself; merge over the latest record.
	prev, had = c.store.Get(key)
	next := make(ir.Object, len(prev)+len(normalized))
	if had && !opts.Replace {
		for name, v := range prev {
			next[name] = v
		}
	}
	for name, v := range normalized {
		next[name] = v
	}

	// Order and multiplicity of array elements are stored even when they do
	// not count as a change for observers.
	if had && sameRecord(prev, next) {
		return
	}
	c.store.Put(key, next, synthetic)
	c.store.SetChildren(key, ir.Links(next))
	changed := !had || !ir.RecordEqual(prev, next)
	if changed {
		fs.markChanged(key)
	}
	c.logger.Debug("record committed", "key", key, "flow_token", fs.token, "synthetic", synthetic, "changed", changed)
}

// sameRecord reports whether a and b encode to identical canonical bytes.
func sameRecord(a, b ir.Object) bool {
	ab, err := ir.MarshalCanonical(a)
	if err != nil {
		return false
	}
	bb, err := ir.MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// normalize replaces nested objects by links, writing them on the way.
// offset shifts the index of top-level array elements so appended elements
// get fresh synthetic keys.
func (c *Cache) normalize(fs *flowState, owner string, path []string, v ir.Value, offset int, opts MutateOptions) ir.Value {
	switch val := v.(type) {
	case nil:
		return ir.Null{}
	case ir.Object:
		if key, ok := c.codec.KeyOf(val); ok {
			c.mutateKey(fs, key, false, val, MutateOptions{Dedup: opts.Dedup})
			return ir.Link(key)
		}
		skey := ir.SyntheticKey(owner, path...)
		c.mutateKey(fs, skey, true, val, MutateOptions{Replace: opts.Replace, Dedup: opts.Dedup})
		return ir.Link(skey)
	case ir.Array:
		out := make(ir.Array, len(val))
		for i, elem := range val {
			elemPath := append(slices.Clone(path), strconv.Itoa(offset+i))
			out[i] = c.normalize(fs, owner, elemPath, elem, 0, opts)
		}
		return out
	case ir.Link:
		if !ir.IsKey(string(val)) {
			return ir.String(val)
		}
		return val
	default:
		return v
	}
}

// dedupe keeps the first occurrence of each element. Synthetic elements of
// owner compare by their resolved content, so re-sending the same anonymous
// elements does not grow the array; the dropped copies are released for
// collection and no longer count as changed in this flow.
func (c *Cache) dedupe(fs *flowState, owner string, arr ir.Array) ir.Array {
	seen := make(map[string]struct{}, len(arr))
	out := make(ir.Array, 0, len(arr))
	for _, elem := range arr {
		var ident ir.Value = elem
		link, isLink := elem.(ir.Link)
		inline := isLink && ir.IsUnder(owner, string(link)) && c.store.IsSynthetic(string(link))
		if inline {
			if rec := c.resolveKey(string(link)); rec != nil {
				ident = rec
			}
		}

		b, err := ir.MarshalCanonical(ident)
		if err != nil {
			out = append(out, elem)
			continue
		}
		if _, dup := seen[string(b)]; dup {
			if inline {
				c.store.Release(string(link))
				fs.forget(string(link))
			}
			continue
		}
		seen[string(b)] = struct{}{}
		out = append(out, elem)
	}
	return out
}

// checkAcyclic rejects data in which an object or array contains itself.
func checkAcyclic(flowToken, key string, fields ir.Object) error {
	return walkAcyclic(NewPathTracker[uintptr](), flowToken, key, key, fields)
}

func walkAcyclic(t *PathTracker[uintptr], flowToken, key, label string, v ir.Value) error {
	if id, ok := identity(v); ok {
		if t.WouldCycle(id) {
			return NewCyclicInputError(flowToken, key, append(t.Path(), label))
		}
		t.Push(id, label)
		defer t.Pop(id)
	}

	switch val := v.(type) {
	case ir.Object:
		for _, name := range val.SortedKeys() {
			if err := walkAcyclic(t, flowToken, key, name, val[name]); err != nil {
				return err
			}
		}
	case ir.Array:
		for i, elem := range val {
			if err := walkAcyclic(t, flowToken, key, strconv.Itoa(i), elem); err != nil {
				return err
			}
		}
	}
	return nil
}

// identity returns the backing pointer of a map or non-empty slice value.
func identity(v ir.Value) (uintptr, bool) {
	switch val := v.(type) {
	case ir.Object:
		if val == nil {
			return 0, false
		}
		return reflect.ValueOf(val).Pointer(), true
	case ir.Array:
		if len(val) == 0 {
			return 0, false
		}
		return reflect.ValueOf(val).Pointer(), true
	}
	return 0, false
}
