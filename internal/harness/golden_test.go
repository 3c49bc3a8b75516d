package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestMarshalSnapshot_Format(t *testing.T) {
	code := uint32(0)
	data, err := MarshalSnapshot(TraceSnapshot{
		ScenarioName: "tiny",
		Trace: []TraceEvent{{
			Step:   1,
			Op:     OpUpdate,
			As:     "alice",
			TxID:   "tx-0001",
			Seq:    1,
			Status: "failed",
			Error:  "DataTooLarge",
			Code:   &code,
		}},
	})
	require.NoError(t, err)

	want := `{
  "scenario_name": "tiny",
  "trace": [
    {
      "step": 1,
      "op": "update",
      "as": "alice",
      "tx_id": "tx-0001",
      "seq": 1,
      "status": "failed",
      "error": "DataTooLarge",
      "code": 0
    }
  ]
}
`
	assert.Equal(t, want, string(data))
}
