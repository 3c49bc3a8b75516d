package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/introbook/internal/failure"
	"github.com/roach88/introbook/internal/ledger"
)

// Scenario defines a record program scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// StrictUpdate enables the address check on update.
	StrictUpdate bool `yaml:"strict_update,omitempty"`

	// Setup funds identities before any step runs.
	Setup []SetupStep `yaml:"setup,omitempty"`

	// Steps are submitted in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final ledger state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SetupStep funds an identity's account.
type SetupStep struct {
	Airdrop  string `yaml:"airdrop"`
	Lamports uint64 `yaml:"lamports"`
}

// Step is one submitted transaction.
type Step struct {
	Op         string `yaml:"op"`
	As         string `yaml:"as"`
	Name       string `yaml:"name,omitempty"`
	Message    string `yaml:"message,omitempty"`
	NameLen    int    `yaml:"name_len,omitempty"`
	MessageLen int    `yaml:"message_len,omitempty"`
	Slot       string `yaml:"slot,omitempty"`
	Unsigned   bool   `yaml:"unsigned,omitempty"`
	Data       string `yaml:"data,omitempty"`
	Expect     string `yaml:"expect"`
}

// Step operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpRaw    = "raw"
)

// Outcomes beyond the failure kinds.
const (
	OutcomeOK                    = "ok"
	OutcomeSignatureVerification = "SignatureVerification"
	OutcomeUnknownProgram        = "UnknownProgram"
)

// Assertion validates final ledger state.
type Assertion struct {
	// Type is one of record, no_slot, balance, tx_count.
	Type string `yaml:"type"`

	// Identity selects the account or slot (record, no_slot, balance).
	Identity string `yaml:"identity,omitempty"`

	// Name and Message are the expected record fields (record).
	Name    string `yaml:"name,omitempty"`
	Message string `yaml:"message,omitempty"`

	// Lamports is the expected balance (balance).
	Lamports uint64 `yaml:"lamports,omitempty"`

	// Count is the expected number of log entries (tx_count).
	Count int `yaml:"count,omitempty"`

	// Status filters tx_count to "ok" or "failed" entries.
	Status string `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertRecord  = "record"
	AssertNoSlot  = "no_slot"
	AssertBalance = "balance"
	AssertTxCount = "tx_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
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
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if step.Airdrop == "" {
			return fmt.Errorf("setup[%d]: airdrop identity is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	switch step.Op {
	case OpCreate, OpUpdate:
		if step.Data != "" {
			return fmt.Errorf("steps[%d]: data is only valid for raw steps", index)
		}
		if step.NameLen > 0 && step.Name != "" {
			return fmt.Errorf("steps[%d]: name and name_len are exclusive", index)
		}
		if step.MessageLen > 0 && step.Message != "" {
			return fmt.Errorf("steps[%d]: message and message_len are exclusive", index)
		}
		if step.NameLen < 0 || step.MessageLen < 0 {
			return fmt.Errorf("steps[%d]: lengths must be non-negative", index)
		}
	case OpRaw:
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}

	if step.As == "" {
		return fmt.Errorf("steps[%d]: as is required", index)
	}
	if !validOutcome(step.Expect) {
		return fmt.Errorf("steps[%d]: unknown expect %q", index, step.Expect)
	}
	return nil
}

func validOutcome(s string) bool {
	switch s {
	case OutcomeOK, OutcomeSignatureVerification, OutcomeUnknownProgram:
		return true
	}
	_, ok := failure.ParseKind(s)
	return ok
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertRecord, AssertNoSlot, AssertBalance:
		if a.Identity == "" {
			return fmt.Errorf("assertions[%d]: identity is required for %s", index, a.Type)
		}
	case AssertTxCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for tx_count", index)
		}
		if a.Status != "" && a.Status != ledger.StatusOK && a.Status != ledger.StatusFailed {
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
