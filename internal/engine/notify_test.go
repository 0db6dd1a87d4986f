package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linkgraph/internal/ir"
)

// =============================================================================
// Delivery
// =============================================================================

func TestNotify_NoOpSuppression(t *testing.T) {
	c := newTestCache(t)
	user := entity("User", "1", ir.Object{"name": ir.String("Ada"), "meta": ir.Object{"x": ir.Int(1)}})
	mustMutate(t, c, user, nil)

	rec := &recorder{}
	all := &recorder{}
	c.Subscribe(link("User:1"), rec.cb)
	c.Subscribe(ir.String(Wildcard), all.cb)

	mustMutate(t, c, user, nil)

	assert.Zero(t, rec.count())
	assert.Zero(t, all.count())
}

func TestNotify_DirectChange(t *testing.T) {
	c := newTestCache(t)
	mustMutate(t, c, entity("User", "1", ir.Object{"name": ir.String("Ada")}), nil)
	rec := &recorder{}
	c.Subscribe(link("User:1"), rec.cb)

	mustMutate(t, c, link("User:1"), Fields{"name": ir.String("Grace")})

	require.Equal(t, 1, rec.count())
	n := rec.last()
	assert.Equal(t, "User:1", n.Key)
	assert.True(t, n.Direct)
	assert.Equal(t, "flow-2", n.Flow)
	assert.Equal(t, int64(1), n.Seq)
	assert.Equal(t, ir.String("Grace"), n.Value.(ir.Object)["name"])
}

func TestNotify_UpwardCascadeExactlyOnce(t *testing.T) {
	c := newTestCache(t)
	// Root -> A -> C and Root -> B -> C.
	mustMutate(t, c, entity("Root", "1", ir.Object{
		"left":  entity("A", "1", ir.Object{"leaf": entity("C", "1", ir.Object{"n": ir.Int(1)})}),
		"right": entity("B", "1", ir.Object{"leaf": link("C:1")}),
	}), nil)

	root, a, leaf := &recorder{}, &recorder{}, &recorder{}
	c.Subscribe(link("Root:1"), root.cb)
	c.Subscribe(link("A:1"), a.cb)
	c.Subscribe(link("C:1"), leaf.cb)

	mustMutate(t, c, link("C:1"), Fields{"n": ir.Int(2)})

	assert.Equal(t, 1, leaf.count())
	assert.True(t, leaf.last().Direct)
	assert.Equal(t, 1, a.count())
	assert.False(t, a.last().Direct)
	assert.Equal(t, 1, root.count(), "diamond ancestors are notified once")
	assert.False(t, root.last().Direct)
}

func TestNotify_UnrelatedParentFieldDoesNotNotifyChild(t *testing.T) {
	c := newTestCache(t)
	mustMutate(t, c, entity("Root", "1", ir.Object{
		"child": entity("Child", "1", ir.Object{"n": ir.Int(1)}),
		"title": ir.String("x"),
	}), nil)
	child := &recorder{}
	c.Subscribe(link("Child:1"), child.cb)

	mustMutate(t, c, link("Root:1"), Fields{"title": ir.String("y")})

	assert.Zero(t, child.count())
}

func TestNotify_OwnerAndChildChangedTogether(t *testing.T) {
	c := newTestCache(t)
	mustMutate(t, c, entity("Root", "1", ir.Object{
		"child": entity("Child", "1", ir.Object{"n": ir.Int(1)}),
		"title": ir.String("x"),
	}), nil)
	all, direct := &recorder{}, &recorder{}
	c.Subscribe(link("Root:1"), all.cb)
	c.Subscribe(link("Root:1"), direct.cb, WithDirectChangesOnly())

	mustMutate(t, c, entity("Root", "1", ir.Object{
		"child": entity("Child", "1", ir.Object{"n": ir.Int(2)}),
		"title": ir.String("y"),
	}), nil)

	require.Equal(t, 1, all.count())
	assert.True(t, all.last().Direct)
	require.Equal(t, 1, direct.count())
	assert.True(t, direct.last().Direct)
}

func TestNotify_SyntheticChangeBubblesToOwner(t *testing.T) {
	c := newTestCache(t)
	mustMutate(t, c, entity("User", "1", ir.Object{"profile": ir.Object{"bio": ir.String("a")}}), nil)
	rec := &recorder{}
	c.Subscribe(link("User:1"), rec.cb)

	mustMutate(t, c, link("User:1"), Fields{"profile": ir.Object{"bio": ir.String("b")}})

	require.Equal(t, 1, rec.count())
	assert.False(t, rec.last().Direct, "only the synthetic record changed")
	assert.Equal(t, ir.Object{"bio": ir.String("b")}, rec.last().Value.(ir.Object)["profile"])
}

// =============================================================================
// Subscription options
// =============================================================================

func TestSubscribe_Selector(t *testing.T) {
	c := newTestCache(t)
	mustMutate(t, c, entity("User", "1", ir.Object{"name": ir.String("Ada"), "age": ir.Int(1)}), nil)

	rec := &recorder{}
	c.Subscribe(link("User:1"), rec.cb, WithSelector(func(v ir.Value) ir.Value {
		obj, _ := v.(ir.Object)
		return obj["name"]
	}))

	mustMutate(t, c, link("User:1"), Fields{"age": ir.Int(2)})
	assert.Zero(t, rec.count(), "selected value unchanged")

	mustMutate(t, c, link("User:1"), Fields{"name": ir.String("Grace")})
	require.Equal(t, 1, rec.count())
	assert.Equal(t, ir.String("Grace"), rec.last().Value)
}

func TestSubscribe_DirectChangesOnly(t *testing.T) {
	c := newTestCache(t)
	mustMutate(t, c, entity("Root", "1", ir.Object{"child": entity("Child", "1", nil)}), nil)
	rec := &recorder{}
	c.Subscribe(link("Root:1"), rec.cb, WithDirectChangesOnly())

	mustMutate(t, c, link("Child:1"), Fields{"n": ir.Int(1)})
	assert.Zero(t, rec.count())

	mustMutate(t, c, link("Root:1"), Fields{"title": ir.String("t")})
	assert.Equal(t, 1, rec.count())
}

func TestSubscribe_Signal(t *testing.T) {
	c := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	c.Subscribe(link("User:1"), rec.cb, WithSignal(ctx))

	mustMutate(t, c, link("User:1"), Fields{"n": ir.Int(1)})
	require.Equal(t, 1, rec.count())

	cancel()
	mustMutate(t, c, link("User:1"), Fields{"n": ir.Int(2)})
	assert.Equal(t, 1, rec.count())
	assert.Zero(t, c.Subscribers("User:1"), "removed on the next delivery attempt")
}

func TestSubscribe_CancelledSignalIsNoop(t *testing.T) {
	c := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	unsubscribe := c.Subscribe(link("User:1"), (&recorder{}).cb, WithSignal(ctx))

	assert.Zero(t, c.Subscribers("User:1"))
	assert.NotPanics(t, unsubscribe)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	c := newTestCache(t)
	rec := &recorder{}
	unsubscribe := c.Subscribe(link("User:1"), rec.cb)

	unsubscribe()
	unsubscribe()
	mustMutate(t, c, link("User:1"), Fields{"n": ir.Int(1)})

	assert.Zero(t, rec.count())
	assert.Zero(t, c.Subscribers("User:1"))
}

func TestSubscribe_UnsubscribeDuringDelivery(t *testing.T) {
	c := newTestCache(t)
	second := &recorder{}
	var unsubscribeSecond func()
	c.Subscribe(link("User:1"), func(Notification) { unsubscribeSecond() })
	unsubscribeSecond = c.Subscribe(link("User:1"), second.cb)

	mustMutate(t, c, link("User:1"), Fields{"n": ir.Int(1)})

	assert.Zero(t, second.count())
}

func TestSubscribe_UnresolvableTarget(t *testing.T) {
	c := newTestCache(t)

	unsubscribe := c.Subscribe(ir.Object{"name": ir.String("anon")}, (&recorder{}).cb)

	assert.NotPanics(t, unsubscribe)
	assert.Empty(t, c.subs)
}

func TestSubscribe_Wildcard(t *testing.T) {
	c := newTestCache(t)
	rec := &recorder{}
	c.Subscribe(ir.String(Wildcard), rec.cb)

	mustMutate(t, c, entity("User", "1", ir.Object{"friend": entity("User", "2", nil)}), nil)

	require.Equal(t, 1, rec.count(), "one delivery per mutation")
	assert.Equal(t, "User:1", rec.last().Key)
	assert.Equal(t, link("User:2"), rec.last().Value.(ir.Object)["friend"])
}

func TestSubscribe_SeqIncreases(t *testing.T) {
	c := newTestCache(t)
	a, b := &recorder{}, &recorder{}
	c.Subscribe(link("User:1"), a.cb)
	c.Subscribe(link("User:1"), b.cb)

	mustMutate(t, c, link("User:1"), Fields{"n": ir.Int(1)})
	mustMutate(t, c, link("User:1"), Fields{"n": ir.Int(2)})

	require.Equal(t, 2, a.count())
	require.Equal(t, 2, b.count())
	assert.Equal(t, []int64{1, 3}, []int64{a.got[0].Seq, a.got[1].Seq})
	assert.Equal(t, []int64{2, 4}, []int64{b.got[0].Seq, b.got[1].Seq})
}

func TestSubscribe_ValueIsACopy(t *testing.T) {
	c := newTestCache(t)
	mustMutate(t, c, entity("User", "1", nil), nil)
	c.Subscribe(link("User:1"), func(n Notification) {
		n.Value.(ir.Object)["name"] = ir.String("tampered")
	})

	mustMutate(t, c, link("User:1"), Fields{"age": ir.Int(1)})

	assert.NotContains(t, c.Resolve(link("User:1")), "name")
}

// =============================================================================
// Re-entrancy and depth
// =============================================================================

func TestNotify_ReentrantMutation(t *testing.T) {
	c := newTestCache(t)
	c.Subscribe(link("User:1"), func(n Notification) {
		name := n.Value.(ir.Object)["name"]
		_, err := c.Mutate(link("Audit:1"), Fields{"last": name})
		assert.NoError(t, err)
	})
	audit := &recorder{}
	c.Subscribe(link("Audit:1"), audit.cb)

	mustMutate(t, c, entity("User", "1", ir.Object{"name": ir.String("Ada")}), nil)

	assert.Equal(t, ir.String("Ada"), c.Resolve(link("Audit:1"))["last"])
	assert.Equal(t, 1, audit.count())
}

func TestNotify_ReferenceCycleIsFatal(t *testing.T) {
	c := newTestCache(t)
	mustMutate(t, c, entity("A", "1", ir.Object{"peer": link("B:1")}), nil)

	_, err := c.Mutate(entity("B", "1", ir.Object{"peer": link("A:1")}), nil)

	require.Error(t, err)
	assert.True(t, IsDepthError(err))
	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, []string{"B:1", "A:1", "B:1"}, re.Path)

	// The cache is poisoned.
	assert.Equal(t, err, c.Err())
	_, again := c.Mutate(entity("User", "1", nil), nil)
	assert.Equal(t, err, again)
	assert.Equal(t, err, c.Invalidate(link("A:1")))
	assert.False(t, c.Has("User:1"))
}

// chain builds K:0 -> K:1 -> ... -> K:(n-1).
func chain(n int) ir.Object {
	var node ir.Object
	for i := n - 1; i >= 0; i-- {
		fields := ir.Object{}
		if node != nil {
			fields["next"] = node
		}
		node = entity("K", itoa(i), fields)
	}
	return node
}

func itoa(i int) string {
	return string(rune('0' + i))
}

func TestNotify_MaxDepth(t *testing.T) {
	within := newTestCache(t, WithMaxNotifyDepth(3))
	mustMutate(t, within, chain(3), nil)
	mustMutate(t, within, link("K:2"), Fields{"n": ir.Int(1)})
	assert.NoError(t, within.Err())

	over := newTestCache(t, WithMaxNotifyDepth(3))
	mustMutate(t, over, chain(4), nil)
	_, err := over.Mutate(link("K:3"), Fields{"n": ir.Int(1)})

	assert.True(t, IsDepthError(err))
	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, []string{"K:3", "K:2", "K:1", "K:0"}, re.Path)
}

func TestNotify_PingPongCallbacksExhaustBudget(t *testing.T) {
	c := newTestCache(t, WithMaxNotifyDepth(16))
	n := 0
	c.Subscribe(link("A:1"), func(Notification) {
		n++
		_, _ = c.Mutate(link("B:1"), Fields{"n": ir.Int(int64(n))})
	})
	c.Subscribe(link("B:1"), func(Notification) {
		n++
		_, _ = c.Mutate(link("A:1"), Fields{"n": ir.Int(int64(n))})
	})

	_, err := c.Mutate(link("A:1"), Fields{"n": ir.Int(0)})

	assert.True(t, IsDepthError(err))
	assert.Error(t, c.Err())
	assert.Less(t, n, 20)
}
