package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/create_update.yaml")
	require.NoError(t, err)

	assert.Equal(t, "create_update", scenario.Name)
	require.Len(t, scenario.Setup, 1)
	assert.Equal(t, uint64(1_000_000_000), scenario.Setup[0].Lamports)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, Step{Op: OpUpdate, As: "alice", Name: "Ann", Message: "Hello again", Expect: OutcomeOK}, scenario.Steps[1])
	require.Len(t, scenario.Assertions, 3)
	assert.Equal(t, AssertBalance, scenario.Assertions[1].Type)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/missing.yaml")
	assert.Error(t, err)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\ndescription: y\nstep: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "description: y\nsteps: [{op: create, as: a, expect: ok}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nsteps: [{op: create, as: a, expect: ok}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: x\ndescription: y\n",
			wantErr: "steps list is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: x\ndescription: y\nsteps: [{op: delete, as: a, expect: ok}]\n",
			wantErr: `unknown op "delete"`,
		},
		{
			name:    "missing actor",
			yaml:    "name: x\ndescription: y\nsteps: [{op: create, expect: ok}]\n",
			wantErr: "as is required",
		},
		{
			name:    "unknown outcome",
			yaml:    "name: x\ndescription: y\nsteps: [{op: create, as: a, expect: Boom}]\n",
			wantErr: `unknown expect "Boom"`,
		},
		{
			name:    "name and name_len",
			yaml:    "name: x\ndescription: y\nsteps: [{op: create, as: a, name: n, name_len: 3, expect: ok}]\n",
			wantErr: "exclusive",
		},
		{
			name:    "data on create",
			yaml:    "name: x\ndescription: y\nsteps: [{op: create, as: a, data: '00', expect: ok}]\n",
			wantErr: "only valid for raw",
		},
		{
			name:    "setup without identity",
			yaml:    "name: x\ndescription: y\nsetup: [{lamports: 5}]\nsteps: [{op: create, as: a, expect: ok}]\n",
			wantErr: "airdrop identity is required",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\ndescription: y\nsteps: [{op: create, as: a, expect: ok}]\nassertions: [{type: final_state}]\n",
			wantErr: `unknown assertion type "final_state"`,
		},
		{
			name:    "record without identity",
			yaml:    "name: x\ndescription: y\nsteps: [{op: create, as: a, expect: ok}]\nassertions: [{type: record}]\n",
			wantErr: "identity is required",
		},
		{
			name:    "bad status filter",
			yaml:    "name: x\ndescription: y\nsteps: [{op: create, as: a, expect: ok}]\nassertions: [{type: tx_count, status: pending}]\n",
			wantErr: `unknown status "pending"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_AcceptsEveryOutcome(t *testing.T) {
	for _, outcome := range []string{OutcomeOK, OutcomeSignatureVerification, OutcomeUnknownProgram, "DataTooLarge", "MissingAccounts"} {
		_, err := ParseScenario([]byte("name: x\ndescription: y\nsteps: [{op: raw, as: a, expect: " + outcome + "}]\n"))
		assert.NoError(t, err, outcome)
	}
}
