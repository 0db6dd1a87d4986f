package harness

import (
	"github.com/roach88/linkgraph/internal/ir"
	"github.com/roach88/linkgraph/internal/store"
)

// Trace event types.
const (
	EventStep         = "step"
	EventNotification = "notification"
)

// TraceEvent is either a step summary or a delivered notification.
type TraceEvent struct {
	Type string `json:"type"`
	Step int    `json:"step"`

	// Step fields.
	Op      string   `json:"op,omitempty"`
	Key     string   `json:"key,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Error   string   `json:"error,omitempty"`

	// Notification fields. Key is shared.
	Subscription string   `json:"subscription,omitempty"`
	Value        ir.Value `json:"value,omitempty"`
	Direct       bool     `json:"direct,omitempty"`
	Flow         string   `json:"flow,omitempty"`
	Seq          int64    `json:"seq,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step behaved as expected and all assertions match.
	Pass bool `json:"pass"`

	// Trace contains step summaries and notifications in delivery order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Digest fingerprints the final store contents.
	Digest string `json:"digest,omitempty"`

	// Stats counts the final records, edges and pending garbage.
	Stats store.Stats `json:"stats"`

	// Snapshot holds the final normalized records by key.
	Snapshot map[string]ir.Object `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStepTrace appends a step summary and returns its index so the key can
// be filled in once the step has run.
func (r *Result) AddStepTrace(step int, op string) int {
	r.Trace = append(r.Trace, TraceEvent{Type: EventStep, Step: step, Op: op})
	return len(r.Trace) - 1
}

// AddNotificationTrace appends a delivered notification.
func (r *Result) AddNotificationTrace(step int, subscription string, key string, value ir.Value, direct bool, flow string, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:         EventNotification,
		Step:         step,
		Subscription: subscription,
		Key:          key,
		Value:        value,
		Direct:       direct,
		Flow:         flow,
		Seq:          seq,
	})
}

// Notifications returns the notifications delivered to subscription.
func (r *Result) Notifications(subscription string) []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Type == EventNotification && e.Subscription == subscription {
			out = append(out, e)
		}
	}
	return out
}
