package harness

import "github.com/roach88/introbook/internal/record"

// TraceEvent records one submitted step and the target slot afterwards.
type TraceEvent struct {
	Step   int            `json:"step"`
	Op     string         `json:"op"`
	As     string         `json:"as"`
	TxID   string         `json:"tx_id"`
	Seq    int64          `json:"seq"`
	Status string         `json:"status"`
	Error  string         `json:"error,omitempty"`
	Code   *uint32        `json:"code,omitempty"`
	Record *record.Record `json:"record,omitempty"`

	// RecordError is set when the slot is program-owned but does not decode.
	RecordError string `json:"record_error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step outcome and assertion matched.
	Pass bool `json:"pass"`

	// Trace holds one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
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
