package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios drive a cache through a sequence of steps and assert on the
// resulting notification trace and final graph state.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden traces are stored
	// under this name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is an optional CUE schema path, relative to the scenario file.
	Schema string `yaml:"schema,omitempty"`

	// MaxNotifyDepth overrides the notification depth budget.
	MaxNotifyDepth int `yaml:"max_notify_depth,omitempty"`

	// Steps run in order against a fresh cache.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one cache operation.
type Step struct {
	// Op is one of mutate, update, invalidate, subscribe, unsubscribe, sweep.
	Op string `yaml:"op"`

	// Target is a key string or an entity map. A map of the form
	// {$ref: key} is a link.
	Target any `yaml:"target,omitempty"`

	// Data is the field patch for mutate, or the fields an update sets.
	Data map[string]any `yaml:"data,omitempty"`

	Replace bool   `yaml:"replace,omitempty"`
	Dedup   *bool  `yaml:"dedup,omitempty"`
	Parent  string `yaml:"parent,omitempty"`

	// ID names a subscription for subscribe, unsubscribe and the notified
	// assertion.
	ID string `yaml:"id,omitempty"`

	// Selector is an expr-lang expression over `value`.
	Selector string `yaml:"selector,omitempty"`

	DirectOnly bool `yaml:"direct_only,omitempty"`

	// ExpectError is the error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step operations.
const (
	OpMutate      = "mutate"
	OpUpdate      = "update"
	OpInvalidate  = "invalidate"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpSweep       = "sweep"
)

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "resolve": Key resolves to exactly Expect
	// - "absent": Key has no record
	// - "refcount": Key has exactly Count parents
	// - "parents": Key's parents are exactly Keys
	// - "notified": Subscription received Count notifications, the last
	//   one carrying Expect when given
	// - "type_keys": EntityType has exactly Keys
	Type string `yaml:"type"`

	Key          string   `yaml:"key,omitempty"`
	Expect       any      `yaml:"expect,omitempty"`
	Count        *int     `yaml:"count,omitempty"`
	Keys         []string `yaml:"keys,omitempty"`
	Subscription string   `yaml:"subscription,omitempty"`
	EntityType   string   `yaml:"entity_type,omitempty"`
}

// Assertion type constants.
const (
	AssertResolve  = "resolve"
	AssertAbsent   = "absent"
	AssertRefCount = "refcount"
	AssertParents  = "parents"
	AssertNotified = "notified"
	AssertTypeKeys = "type_keys"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The schema path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}
	if scenario.Schema != "" {
		if _, err := os.Stat(scenario.Schema); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: schema file not found: %s", scenario.Schema)
		}
	}

	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.MaxNotifyDepth < 0 {
		return fmt.Errorf("max_notify_depth must be non-negative")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	ids := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(i, &step, ids); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, ids); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s *Step, ids map[string]bool) error {
	switch s.Op {
	case OpMutate, OpInvalidate:
		if s.Target == nil {
			return fmt.Errorf("steps[%d]: target is required for %s", index, s.Op)
		}
	case OpUpdate:
		if s.Target == nil {
			return fmt.Errorf("steps[%d]: target is required for update", index)
		}
		if s.Data == nil {
			return fmt.Errorf("steps[%d]: data is required for update", index)
		}
	case OpSubscribe:
		if s.Target == nil {
			return fmt.Errorf("steps[%d]: target is required for subscribe", index)
		}
		if s.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for subscribe", index)
		}
		if ids[s.ID] {
			return fmt.Errorf("steps[%d]: duplicate subscription id %q", index, s.ID)
		}
		ids[s.ID] = true
	case OpUnsubscribe:
		if !ids[s.ID] {
			return fmt.Errorf("steps[%d]: unknown subscription id %q", index, s.ID)
		}
	case OpSweep:
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, ids map[string]bool) error {
	switch a.Type {
	case AssertResolve:
		if a.Key == "" || a.Expect == nil {
			return fmt.Errorf("assertions[%d]: key and expect are required for resolve", index)
		}
	case AssertAbsent, AssertParents:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for %s", index, a.Type)
		}
	case AssertRefCount:
		if a.Key == "" || a.Count == nil {
			return fmt.Errorf("assertions[%d]: key and count are required for refcount", index)
		}
	case AssertNotified:
		if !ids[a.Subscription] {
			return fmt.Errorf("assertions[%d]: unknown subscription %q", index, a.Subscription)
		}
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for notified", index)
		}
	case AssertTypeKeys:
		if a.EntityType == "" {
			return fmt.Errorf("assertions[%d]: entity_type is required for type_keys", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count != nil && *a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
