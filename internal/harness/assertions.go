package harness

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/linkgraph/internal/engine"
	"github.com/roach88/linkgraph/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Relevant trace events, if any
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nNotifications:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] step %d %s %s direct=%t\n",
				i+1, event.Step, event.Key, canonicalString(event.Value), event.Direct)
		}
	}

	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the result and the
// final cache state.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, cache *engine.Cache) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertResolve:
			err = assertResolve(cache, assertion)
		case AssertAbsent:
			err = assertAbsent(cache, assertion)
		case AssertRefCount:
			err = assertRefCount(cache, assertion)
		case AssertParents:
			err = assertKeys(AssertParents, assertion.Key, assertion.Keys, cache.Parents(ir.Link(assertion.Key)))
		case AssertTypeKeys:
			err = assertKeys(AssertTypeKeys, assertion.EntityType, assertion.Keys, cache.InspectFields(assertion.EntityType))
		case AssertNotified:
			err = assertNotified(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

func assertResolve(cache *engine.Cache, assertion Assertion) error {
	want, err := ir.FromAny(assertion.Expect)
	if err != nil {
		return fmt.Errorf("resolve %s: expect: %w", assertion.Key, err)
	}

	got := cache.Resolve(ir.Link(assertion.Key))
	if got == nil {
		return &AssertionError{
			Type:     AssertResolve,
			Expected: fmt.Sprintf("%s = %s", assertion.Key, canonicalString(want)),
			Actual:   "key not found",
		}
	}

	if !bytes.Equal(ir.MustMarshalCanonical(want), ir.MustMarshalCanonical(got)) {
		return &AssertionError{
			Type:     AssertResolve,
			Expected: fmt.Sprintf("%s = %s", assertion.Key, canonicalString(want)),
			Actual:   fmt.Sprintf("%s = %s", assertion.Key, canonicalString(got)),
		}
	}
	return nil
}

func assertAbsent(cache *engine.Cache, assertion Assertion) error {
	if cache.Has(assertion.Key) {
		return &AssertionError{
			Type:     AssertAbsent,
			Expected: fmt.Sprintf("%s absent", assertion.Key),
			Actual:   fmt.Sprintf("%s = %s", assertion.Key, canonicalString(cache.Resolve(ir.Link(assertion.Key)))),
		}
	}
	return nil
}

func assertRefCount(cache *engine.Cache, assertion Assertion) error {
	if got := cache.RefCount(assertion.Key); got != *assertion.Count {
		return &AssertionError{
			Type:     AssertRefCount,
			Expected: fmt.Sprintf("refcount(%s) = %d", assertion.Key, *assertion.Count),
			Actual:   fmt.Sprintf("refcount(%s) = %d", assertion.Key, got),
		}
	}
	return nil
}

// assertKeys compares key lists as sets.
func assertKeys(typ, subject string, want, got []string) error {
	want = slices.Sorted(slices.Values(want))
	got = slices.Sorted(slices.Values(got))
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%s: %v", subject, want),
		Actual:   fmt.Sprintf("%s: %v", subject, got),
	}
}

func assertNotified(result *Result, assertion Assertion) error {
	events := result.Notifications(assertion.Subscription)

	if len(events) != *assertion.Count {
		return &AssertionError{
			Type:     AssertNotified,
			Expected: fmt.Sprintf("%d notifications to %s", *assertion.Count, assertion.Subscription),
			Actual:   fmt.Sprintf("%d notifications", len(events)),
			Trace:    events,
		}
	}

	if assertion.Expect == nil {
		return nil
	}
	if len(events) == 0 {
		return &AssertionError{
			Type:     AssertNotified,
			Expected: fmt.Sprintf("last notification to %s carries a value", assertion.Subscription),
			Actual:   "no notifications",
		}
	}

	want, err := ir.FromAny(assertion.Expect)
	if err != nil {
		return fmt.Errorf("notified %s: expect: %w", assertion.Subscription, err)
	}
	last := events[len(events)-1].Value
	if !bytes.Equal(ir.MustMarshalCanonical(want), ir.MustMarshalCanonical(last)) {
		return &AssertionError{
			Type:     AssertNotified,
			Expected: fmt.Sprintf("last value %s", canonicalString(want)),
			Actual:   fmt.Sprintf("last value %s", canonicalString(last)),
			Trace:    events,
		}
	}
	return nil
}

func canonicalString(v ir.Value) string {
	if v == nil {
		return "null"
	}
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
