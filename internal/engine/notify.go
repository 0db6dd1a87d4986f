package engine

import (
	"bytes"
	"context"
	"slices"

	"github.com/roach88/linkgraph/internal/ir"
)

// Notification is delivered to subscribers when a key or something it
// references changed.
type Notification struct {
	// Key is the subscribed key (for wildcard subscribers, the key of the
	// outermost mutation).
	Key string

	// Value is the freshly resolved value of Key, ir.Null{} when it is gone,
	// or the selector's result for selector subscriptions.
	Value ir.Value

	// Direct is true when Key's own record changed, false when the change
	// happened somewhere below it.
	Direct bool

	// Flow is the token of the mutation or invalidation that caused it.
	Flow string

	// Seq is the logical clock value of this delivery.
	Seq int64
}

// Callback receives notifications.
type Callback func(Notification)

// Selector projects a resolved value before delivery.
type Selector func(ir.Value) ir.Value

// SubscribeOptions controls a subscription.
type SubscribeOptions struct {
	// Selector, when set, narrows what the subscriber sees; deliveries are
	// skipped while the selected value is unchanged.
	Selector Selector

	// DirectChangesOnly skips notifications bubbled up from descendants.
	DirectChangesOnly bool

	// Signal cancels the subscription when done.
	Signal context.Context
}

// SubscribeOption configures SubscribeOptions.
type SubscribeOption func(*SubscribeOptions)

// WithSelector delivers fn(value) and only when it changed.
func WithSelector(fn Selector) SubscribeOption {
	return func(o *SubscribeOptions) {
		o.Selector = fn
	}
}

// WithDirectChangesOnly ignores changes below the subscribed key.
func WithDirectChangesOnly() SubscribeOption {
	return func(o *SubscribeOptions) {
		o.DirectChangesOnly = true
	}
}

// WithSignal removes the subscription once ctx is done. Removal happens on
// the next delivery attempt; no goroutine watches ctx.
func WithSignal(ctx context.Context) SubscribeOption {
	return func(o *SubscribeOptions) {
		o.Signal = ctx
	}
}

type subscription struct {
	id     int
	key    string
	cb     Callback
	opts   SubscribeOptions
	active bool

	// last canonical selector result, when a selector is set
	last []byte
}

// Subscribe registers cb for changes to target, which is an entity, a key,
// or ir.String(Wildcard) for every mutation.
//
// Returns the function that removes the subscription. An unresolvable
// target, a nil callback or an already cancelled signal yield a no-op.
func (c *Cache) Subscribe(target ir.Value, cb Callback, opts ...SubscribeOption) (unsubscribe func()) {
	noop := func() {}
	if cb == nil {
		return noop
	}

	key, ok := c.subscriptionKey(target)
	if !ok {
		return noop
	}

	var o SubscribeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.Signal != nil && o.Signal.Err() != nil {
		return noop
	}

	c.nextSub++
	s := &subscription{id: c.nextSub, key: key, cb: cb, opts: o, active: true}
	if o.Selector != nil && key != Wildcard {
		s.last = canonicalBytes(o.Selector(c.current(key)))
	}
	c.subs[key] = append(c.subs[key], s)

	return func() { c.unsubscribe(s) }
}

func (c *Cache) subscriptionKey(target ir.Value) (string, bool) {
	switch t := target.(type) {
	case ir.String:
		if string(t) == Wildcard {
			return Wildcard, true
		}
	case ir.Link:
		if string(t) == Wildcard {
			return Wildcard, true
		}
	}
	return c.codec.KeyOf(target)
}

func (c *Cache) unsubscribe(s *subscription) {
	if !s.active {
		return
	}
	s.active = false
	subs := slices.DeleteFunc(c.subs[s.key], func(other *subscription) bool {
		return other == s
	})
	if len(subs) == 0 {
		delete(c.subs, s.key)
		return
	}
	c.subs[s.key] = subs
}

// Subscribers returns the number of live subscriptions on key.
func (c *Cache) Subscribers(key string) int {
	return len(c.subs[key])
}

// current returns the resolved value of key, or ir.Null{} when absent.
func (c *Cache) current(key string) ir.Value {
	if rec := c.resolveKey(key); rec != nil {
		return rec
	}
	return ir.Null{}
}

// cascade walks parent edges upward from every changed key of one flow.
type cascade struct {
	flow     string
	path     *PathTracker[string]
	visited  map[string]struct{}
	directed map[string]struct{}
}

// settle delivers the notifications of a finished flow, then sweeps.
func (c *Cache) settle(fs *flowState, rootKey string, sweep bool) error {
	if len(fs.changed) > 0 {
		cs := &cascade{
			flow:     fs.token,
			path:     NewPathTracker[string](),
			visited:  make(map[string]struct{}),
			directed: make(map[string]struct{}),
		}
		// Owners commit after their children; walking the changed keys in
		// reverse reaches each owner directly before any child bubbles into it.
		for i := len(fs.changed) - 1; i >= 0; i-- {
			if err := c.notify(cs, fs.changed[i], true); err != nil {
				return err
			}
		}
		if err := c.deliverKey(fs.token, Wildcard, rootKey, nil, true, false, 0); err != nil {
			return err
		}
	}

	var removed []string
	if sweep {
		removed = c.store.Sweep()
	}
	c.logger.Debug("mutation settled",
		"key", rootKey,
		"flow_token", fs.token,
		"changed", len(fs.changed),
		"removed", len(removed),
	)
	return nil
}

// notify delivers to key's subscribers, then to every current parent,
// each key at most once per cascade.
//
// A key already visited through another path only gets its direct-only
// subscribers served, when this visit is the direct one. A key found on its
// own path, or a path past the depth budget, is fatal.
func (c *Cache) notify(cs *cascade, key string, direct bool) error {
	if cs.path.WouldCycle(key) || c.budget.Exceeded(cs.path.Depth()+1) {
		return c.poison(NewDepthError(cs.flow, key, cs.path.Path(), c.budget.Max()))
	}

	if _, seen := cs.visited[key]; seen {
		if _, done := cs.directed[key]; direct && !done {
			cs.directed[key] = struct{}{}
			return c.deliverKey(cs.flow, key, key, nil, true, true, cs.path.Depth())
		}
		return nil
	}
	cs.visited[key] = struct{}{}
	if direct {
		cs.directed[key] = struct{}{}
	}

	cs.path.Push(key, key)
	defer cs.path.Pop(key)

	if err := c.deliverKey(cs.flow, key, key, nil, direct, false, cs.path.Depth()); err != nil {
		return err
	}
	for _, parent := range c.store.Parents(key) {
		if err := c.notify(cs, parent, false); err != nil {
			return err
		}
	}
	return nil
}

// deliverKey calls every live subscriber registered under subKey.
// A nil value is resolved from key on demand.
// With onlyDirectSubs set, only DirectChangesOnly subscribers are served.
func (c *Cache) deliverKey(flow, subKey, key string, value ir.Value, direct, onlyDirectSubs bool, depth int) error {
	subs := slices.Clone(c.subs[subKey])
	if len(subs) == 0 {
		return nil
	}
	if value == nil {
		value = c.current(key)
	}
	for _, s := range subs {
		if onlyDirectSubs && !s.opts.DirectChangesOnly {
			continue
		}
		c.deliver(flow, s, key, value, direct, depth)
		if c.fatal != nil {
			return c.fatal
		}
	}
	return nil
}

func (c *Cache) deliver(flow string, s *subscription, key string, value ir.Value, direct bool, depth int) {
	if !s.active {
		return
	}
	if s.opts.Signal != nil && s.opts.Signal.Err() != nil {
		c.unsubscribe(s)
		return
	}
	if s.opts.DirectChangesOnly && !direct {
		return
	}

	value = ir.Clone(value)
	if s.opts.Selector != nil {
		value = s.opts.Selector(value)
		selected := canonicalBytes(value)
		if s.last != nil && bytes.Equal(selected, s.last) {
			return
		}
		s.last = selected
	}

	refund := c.budget.Spend(depth)
	defer refund()
	s.cb(Notification{
		Key:    key,
		Value:  value,
		Direct: direct,
		Flow:   flow,
		Seq:    c.clock.Next(),
	})
}

// poison records a fatal error; later writes return it.
func (c *Cache) poison(err *RuntimeError) error {
	if c.fatal == nil {
		c.fatal = err
		c.logger.Error("notification depth exceeded",
			"key", err.Key,
			"flow_token", err.FlowToken,
			"path", err.Path,
		)
	}
	return c.fatal
}

func canonicalBytes(v ir.Value) []byte {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return nil
	}
	return b
}
