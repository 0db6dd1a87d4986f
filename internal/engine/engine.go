package engine

import (
	"io"
	"log/slog"

	"github.com/roach88/linkgraph/internal/ir"
	"github.com/roach88/linkgraph/internal/store"
)

// DefaultMaxNotifyDepth bounds the combined length of notification paths.
const DefaultMaxNotifyDepth = 64

// Wildcard is the subscription target that observes every mutation.
const Wildcard = "*"

// Cache is a normalized object-graph cache.
//
// Writes are flattened into one record per link key; reads rebuild the
// shallow tree of a key; subscribers are told about changes to a key and,
// transitively, to everything it references.
//
// A Cache is owned by one goroutine. It does not lock; callers that share
// one across goroutines must serialize access themselves.
type Cache struct {
	store   *store.Store
	codec   *ir.Codec
	logger  *slog.Logger
	clock   Sequencer
	flowGen FlowTokenGenerator
	budget  *DepthBudget

	middleware []Middleware
	mutate     MutateFunc

	subs    map[string][]*subscription
	nextSub int

	// fatal poisons the cache after DEPTH_EXCEEDED.
	fatal error
}

// Option configures a Cache.
type Option func(*Cache)

// WithCodec replaces the default key codec.
func WithCodec(codec *ir.Codec) Option {
	return func(c *Cache) {
		c.codec = codec
	}
}

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithClock sets the sequencer stamping notifications.
func WithClock(clock Sequencer) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

// WithFlowGenerator sets the generator for per-mutation flow tokens.
func WithFlowGenerator(gen FlowTokenGenerator) Option {
	return func(c *Cache) {
		c.flowGen = gen
	}
}

// WithMaxNotifyDepth sets the maximum combined notification path length.
// Non-positive values keep the default.
func WithMaxNotifyDepth(depth int) Option {
	return func(c *Cache) {
		if depth > 0 {
			c.budget = NewDepthBudget(depth)
		}
	}
}

// WithMiddleware registers mutation middleware, outermost first.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *Cache) {
		c.middleware = append(c.middleware, mw...)
	}
}

// New creates an empty cache.
//
// Example:
//
//	cache := engine.New(
//	    engine.WithFlowGenerator(engine.NewFixedGenerator("flow-1")),
//	    engine.WithMaxNotifyDepth(32),
//	)
func New(opts ...Option) *Cache {
	c := &Cache{
		store:   store.New(),
		codec:   ir.NewCodec(),
		logger:  slog.Default(),
		clock:   NewClock(),
		flowGen: UUIDv7Generator{},
		budget:  NewDepthBudget(DefaultMaxNotifyDepth),
		subs:    make(map[string][]*subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c.rebuildChain()
	return c
}

// Use appends middleware to the mutation chain. Middleware registered first
// runs outermost.
func (c *Cache) Use(mw ...Middleware) {
	c.middleware = append(c.middleware, mw...)
	c.rebuildChain()
}

func (c *Cache) rebuildChain() {
	next := MutateFunc(c.mutateRoot)
	for i := len(c.middleware) - 1; i >= 0; i-- {
		mw := c.middleware[i]
		inner := next
		next = func(key string, data Data, opts MutateOptions) (string, error) {
			return mw(inner, key, data, opts)
		}
	}
	c.mutate = next
}

// Codec returns the key codec in use.
func (c *Cache) Codec() *ir.Codec {
	return c.codec
}

// Logger returns the structured logger in use.
func (c *Cache) Logger() *slog.Logger {
	return c.logger
}

// Err returns the fatal error that poisoned the cache, or nil.
func (c *Cache) Err() error {
	return c.fatal
}

// KeyOf derives the link key of an entity or key reference.
func (c *Cache) KeyOf(v ir.Value) (string, bool) {
	return c.codec.KeyOf(v)
}

// EntityOf builds the minimal entity {type, id} for key, or nil when key is
// malformed.
func (c *Cache) EntityOf(key string) ir.Object {
	return c.codec.EntityOfKey(key)
}

// RefCount returns the number of distinct current parents of key.
func (c *Cache) RefCount(key string) int {
	return c.store.RefCount(key)
}

// Has reports whether a record is stored under key.
func (c *Cache) Has(key string) bool {
	return c.store.Has(key)
}

// Keys returns every stored key, sorted.
func (c *Cache) Keys() []string {
	return c.store.Keys()
}

// Sweep runs the garbage collector now and returns the reclaimed keys.
// Mutate and Invalidate already sweep before returning; an explicit Sweep
// only matters after WithParent mutations, which leave orphans queued.
func (c *Cache) Sweep() []string {
	removed := c.store.Sweep()
	if len(removed) > 0 {
		c.logger.Debug("cache swept", "removed", len(removed))
	}
	return removed
}

// Stats returns record, edge and pending-garbage counts.
func (c *Cache) Stats() store.Stats {
	return c.store.Stats()
}

// Snapshot returns a deep copy of every stored record.
func (c *Cache) Snapshot() map[string]ir.Object {
	return c.store.Snapshot()
}

// Digest fingerprints the whole record set.
func (c *Cache) Digest() (string, error) {
	return c.store.Digest()
}

// CheckConsistency verifies the reference counting invariant and that the
// reference graph mirrors the links held in stored records.
func (c *Cache) CheckConsistency() error {
	if err := c.store.CheckRefCounts(); err != nil {
		return err
	}
	return c.store.CheckEdges()
}
