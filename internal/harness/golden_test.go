package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linkgraph/internal/ir"
)

func TestRunWithGolden_Scenarios(t *testing.T) {
	for _, name := range []string{"diamond_cascade", "reference_cycle"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunIsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/diamond_cascade.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalTrace(scenario.Name, first)
	require.NoError(t, err)
	b, err := MarshalTrace(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, first.Digest, second.Digest)
}

func TestMarshalTrace(t *testing.T) {
	result := NewResult()
	idx := result.AddStepTrace(0, OpSweep)
	result.Trace[idx].Removed = []string{"A:1"}
	result.AddNotificationTrace(0, "s", "B:1", nil, false, "flow-1", 1)

	got, err := MarshalTrace("t", result)
	require.NoError(t, err)

	assert.Equal(t,
		`{"scenario_name":"t","trace":[`+
			`{"op":"sweep","removed":["A:1"],"step":0,"type":"step"},`+
			`{"direct":false,"flow":"flow-1","key":"B:1","seq":1,"step":0,"subscription":"s","type":"notification","value":null}]}`,
		string(got))
}

func TestAssertGolden_UsesCanonicalValues(t *testing.T) {
	result := NewResult()
	result.AddNotificationTrace(0, "s", "A:1", ir.Object{"z": ir.Int(1), "a": ir.Link("B:1")}, true, "flow-1", 1)

	got, err := MarshalTrace("values", result)
	require.NoError(t, err)
	assert.Contains(t, string(got), `"value":{"a":{"$ref":"B:1"},"z":1}`)
}
