package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linkgraph/internal/engine"
	"github.com/roach88/linkgraph/internal/ir"
	"github.com/roach88/linkgraph/internal/testutil"
)

func intp(n int) *int { return &n }

func seededCache(t *testing.T) *engine.Cache {
	t.Helper()
	c := engine.New(engine.WithLogger(testutil.DiscardLogger()))
	_, err := c.Mutate(testutil.Entity("Team", "1", ir.Object{
		"lead": testutil.Entity("User", "1", ir.Object{"name": ir.String("Ada")}),
	}), nil)
	require.NoError(t, err)
	return c
}

func TestAssertResolve(t *testing.T) {
	c := seededCache(t)

	ok := Assertion{Type: AssertResolve, Key: "User:1", Expect: map[string]any{"type": "User", "id": "1", "name": "Ada"}}
	wrong := Assertion{Type: AssertResolve, Key: "User:1", Expect: map[string]any{"name": "Bob"}}
	missing := Assertion{Type: AssertResolve, Key: "User:9", Expect: map[string]any{}}

	errs := EvaluateAssertions(NewResult(), []Assertion{ok, wrong, missing}, c)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], `Actual: User:1 = {"id":"1","name":"Ada","type":"User"}`)
	assert.Contains(t, errs[1], "key not found")
}

func TestAssertResolveLinks(t *testing.T) {
	c := seededCache(t)

	errs := EvaluateAssertions(NewResult(), []Assertion{{
		Type:   AssertResolve,
		Key:    "Team:1",
		Expect: map[string]any{"type": "Team", "id": "1", "lead": map[string]any{"$ref": "User:1"}},
	}}, c)

	assert.Empty(t, errs)
}

func TestAssertAbsentAndRefCount(t *testing.T) {
	c := seededCache(t)

	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertAbsent, Key: "User:2"},
		{Type: AssertAbsent, Key: "User:1"},
		{Type: AssertRefCount, Key: "User:1", Count: intp(1)},
		{Type: AssertRefCount, Key: "Team:1", Count: intp(1)},
	}, c)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "User:1 absent")
	assert.Contains(t, errs[1], "refcount(Team:1) = 0")
}

func TestAssertKeyLists(t *testing.T) {
	c := seededCache(t)

	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertParents, Key: "User:1", Keys: []string{"Team:1"}},
		{Type: AssertParents, Key: "Team:1", Keys: []string{"Org:1"}},
		{Type: AssertTypeKeys, EntityType: "User", Keys: []string{"User:1"}},
		{Type: AssertTypeKeys, EntityType: "Org"},
	}, c)

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Assertion failed: parents")
}

func TestAssertNotified(t *testing.T) {
	c := seededCache(t)
	result := NewResult()
	result.AddNotificationTrace(1, "s", "User:1", ir.String("a"), true, "flow-1", 1)
	result.AddNotificationTrace(2, "s", "User:1", ir.String("b"), false, "flow-2", 2)
	result.AddNotificationTrace(2, "other", "User:2", ir.Null{}, true, "flow-2", 3)

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertNotified, Subscription: "s", Count: intp(2), Expect: "b"},
		{Type: AssertNotified, Subscription: "s", Count: intp(2), Expect: "a"},
		{Type: AssertNotified, Subscription: "s", Count: intp(1)},
		{Type: AssertNotified, Subscription: "none", Count: intp(0)},
		{Type: AssertNotified, Subscription: "none", Count: intp(0), Expect: "x"},
	}, c)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], `last value "b"`)
	assert.Contains(t, errs[1], "2 notifications")
	assert.Contains(t, errs[1], "[1] step 1 User:1")
	assert.Contains(t, errs[2], "no notifications")
}

func TestAssertUnknownType(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "vibes"}}, seededCache(t))

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "vibes"`)
}

func TestAssertionErrorFormat(t *testing.T) {
	err := &AssertionError{Type: AssertRefCount, Expected: "1", Actual: "2"}

	assert.Equal(t, "Assertion failed: refcount\n  Expected: 1\n  Actual: 2\n", err.Error())
}
