package harness

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/linkgraph/internal/engine"
	"github.com/roach88/linkgraph/internal/ir"
	"github.com/roach88/linkgraph/internal/schema"
	"github.com/roach88/linkgraph/internal/testutil"
)

// ErrCodeValidation is reported for mutations the schema rejected.
const ErrCodeValidation = "VALIDATION"

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and flow tokens.
type Harness struct {
	cache  *engine.Cache
	logger *slog.Logger
	result *Result
	subs   map[string]func()
	step   int
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh cache for isolation. Deterministic
// helpers ensure reproducible traces. Extra options are applied after the
// scenario's own, so callers can install a logger.
//
// Execution flow:
// 1. Compile the schema, if any, into cache options
// 2. Execute steps, tracing every notification
// 3. Evaluate assertions against the trace and final state
//
// Returns an error only when the scenario cannot be executed; failed
// expectations are reported in the result.
func Run(scenario *Scenario, opts ...engine.Option) (*Result, error) {
	clock := testutil.NewDeterministicClock()
	flowGen := testutil.NewSequenceFlowGenerator("flow")

	cacheOpts := []engine.Option{
		engine.WithLogger(testutil.DiscardLogger()),
		engine.WithClock(clock),
		engine.WithFlowGenerator(flowGen),
	}
	if scenario.Schema != "" {
		s, err := schema.LoadFile(scenario.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to load schema: %w", err)
		}
		cacheOpts = append(cacheOpts, s.Options()...)
	}
	if scenario.MaxNotifyDepth > 0 {
		cacheOpts = append(cacheOpts, engine.WithMaxNotifyDepth(scenario.MaxNotifyDepth))
	}
	cacheOpts = append(cacheOpts, opts...)

	cache := engine.New(cacheOpts...)
	h := &Harness{
		cache:  cache,
		logger: cache.Logger(),
		result: NewResult(),
		subs:   make(map[string]func()),
	}

	for i, step := range scenario.Steps {
		h.step = i
		if err := h.execute(step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, h.cache) {
		h.result.AddError(msg)
	}

	digest, err := h.cache.Digest()
	if err != nil {
		return nil, fmt.Errorf("failed to digest store: %w", err)
	}
	h.result.Digest = digest
	h.result.Stats = h.cache.Stats()
	h.result.Snapshot = h.cache.Snapshot()

	return h.result, nil
}

// execute runs one step. Cache errors are checked against ExpectError and
// recorded; only malformed steps abort the run.
func (h *Harness) execute(step Step) error {
	idx := h.result.AddStepTrace(h.step, step.Op)

	var (
		key string
		err error
	)
	switch step.Op {
	case OpMutate:
		key, err = h.mutate(step)
	case OpUpdate:
		key, err = h.update(step)
	case OpInvalidate:
		key, err = h.invalidate(step)
	case OpSubscribe:
		key, err = h.subscribe(step)
	case OpUnsubscribe:
		h.unsubscribe(step)
	case OpSweep:
		h.result.Trace[idx].Removed = h.cache.Sweep()
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	var stepErr *stepError
	if errors.As(err, &stepErr) {
		return stepErr.err
	}

	h.result.Trace[idx].Key = key
	code := ErrorCode(err)
	h.result.Trace[idx].Error = code

	switch {
	case code != step.ExpectError && step.ExpectError != "":
		h.result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %q", h.step, step.Op, step.ExpectError, code))
	case code != "" && step.ExpectError == "":
		h.result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", h.step, step.Op, err))
	}

	h.logger.Debug("scenario step completed",
		"step", h.step,
		"op", step.Op,
		"key", key,
		"error", code,
	)
	return nil
}

// stepError marks a malformed step, as opposed to a cache error.
type stepError struct{ err error }

func (e *stepError) Error() string { return e.err.Error() }

func (h *Harness) mutate(step Step) (string, error) {
	target, err := toValue(step.Target)
	if err != nil {
		return "", &stepError{fmt.Errorf("target: %w", err)}
	}

	var data engine.Data
	if step.Data != nil {
		fields, err := toObject(step.Data)
		if err != nil {
			return "", &stepError{fmt.Errorf("data: %w", err)}
		}
		data = engine.Fields(fields)
	}

	var opts []engine.MutateOption
	if step.Replace {
		opts = append(opts, engine.WithReplace())
	}
	if step.Dedup != nil {
		opts = append(opts, engine.WithDedup(*step.Dedup))
	}
	if step.Parent != "" {
		opts = append(opts, engine.WithParent(step.Parent))
	}
	return h.cache.Mutate(target, data, opts...)
}

// update merges Data into the current record through an updater function.
func (h *Harness) update(step Step) (string, error) {
	target, err := toValue(step.Target)
	if err != nil {
		return "", &stepError{fmt.Errorf("target: %w", err)}
	}
	set, err := toObject(step.Data)
	if err != nil {
		return "", &stepError{fmt.Errorf("data: %w", err)}
	}

	return h.cache.Mutate(target, engine.UpdateFunc(func(cur ir.Object) ir.Object {
		if cur == nil {
			cur = ir.Object{}
		}
		for k, v := range set {
			cur[k] = ir.Clone(v)
		}
		return cur
	}))
}

func (h *Harness) invalidate(step Step) (string, error) {
	target, err := toValue(step.Target)
	if err != nil {
		return "", &stepError{fmt.Errorf("target: %w", err)}
	}
	key, _ := h.cache.KeyOf(target)
	if !h.cache.Has(key) {
		key = ""
	}
	return key, h.cache.Invalidate(target)
}

func (h *Harness) subscribe(step Step) (string, error) {
	target, err := toValue(step.Target)
	if err != nil {
		return "", &stepError{fmt.Errorf("target: %w", err)}
	}

	var opts []engine.SubscribeOption
	if step.Selector != "" {
		sel, err := CompileSelector(step.Selector)
		if err != nil {
			return "", &stepError{err}
		}
		opts = append(opts, engine.WithSelector(sel))
	}
	if step.DirectOnly {
		opts = append(opts, engine.WithDirectChangesOnly())
	}

	id := step.ID
	h.subs[id] = h.cache.Subscribe(target, func(n engine.Notification) {
		h.result.AddNotificationTrace(h.step, id, n.Key, n.Value, n.Direct, n.Flow, n.Seq)
	}, opts...)

	key, _ := h.cache.KeyOf(target)
	if s, ok := target.(ir.String); ok && string(s) == engine.Wildcard {
		key = engine.Wildcard
	}
	return key, nil
}

func (h *Harness) unsubscribe(step Step) {
	if unsub, ok := h.subs[step.ID]; ok {
		unsub()
	}
}

// ErrorCode names the failure class of a cache error, or "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	var ve schema.ValidationErrors
	if errors.As(err, &ve) {
		return ErrCodeValidation
	}
	return "ERROR"
}

// toValue converts a YAML-decoded target or field value.
func toValue(v any) (ir.Value, error) {
	return ir.FromAny(v)
}

// toObject converts a YAML-decoded mapping into an object.
func toObject(m map[string]any) (ir.Object, error) {
	if m == nil {
		return ir.Object{}, nil
	}
	obj := make(ir.Object, len(m))
	for k, v := range m {
		conv, err := ir.FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		obj[k] = conv
	}
	return obj, nil
}
