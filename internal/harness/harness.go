package harness

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/introbook/internal/address"
	"github.com/roach88/introbook/internal/failure"
	"github.com/roach88/introbook/internal/instruction"
	"github.com/roach88/introbook/internal/ledger"
	"github.com/roach88/introbook/internal/program"
	"github.com/roach88/introbook/internal/record"
	"github.com/roach88/introbook/internal/runtime"
	"github.com/roach88/introbook/internal/testutil"
)

// ProgramID is the namespace scenarios run under.
var ProgramID = address.HashKey("introbook/harness")

// Harness executes one scenario against its own ledger.
type Harness struct {
	store      *ledger.Store
	runtime    *runtime.Runtime
	identities map[string]ed25519.PrivateKey
	logger     *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory ledger for isolation. The
// returned error reports infrastructure failures only; step and assertion
// mismatches are recorded in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := ledger.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory ledger: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Harness{
		store: st,
		runtime: runtime.New(st, runtime.Options{
			ProgramID: ProgramID,
			Program:   program.Options{StrictUpdate: scenario.StrictUpdate},
			IDs:       testutil.NewSequentialIDGenerator("tx"),
			Logger:    logger,
		}),
		identities: make(map[string]ed25519.PrivateKey),
		logger:     logger,
	}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) key(label string) ed25519.PrivateKey {
	if priv, ok := h.identities[label]; ok {
		return priv
	}
	priv := testutil.Keypair(label)
	h.identities[label] = priv
	return priv
}

func (h *Harness) identity(label string) address.PublicKey {
	var pub address.PublicKey
	copy(pub[:], h.key(label).Public().(ed25519.PublicKey))
	return pub
}

func (h *Harness) slot(label string) (address.PublicKey, error) {
	addr, _, err := address.Derive(h.identity(label), ProgramID)
	return addr, err
}

func (h *Harness) executeSetup(ctx context.Context, setup []SetupStep) error {
	for i, step := range setup {
		if _, err := h.store.Airdrop(ctx, h.identity(step.Airdrop), step.Lamports); err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}
		h.logger.Info("setup step completed", "step", i, "airdrop", step.Airdrop, "lamports", step.Lamports)
	}
	return nil
}

func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		ix, target, err := h.buildInstruction(step)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		var signers []ed25519.PrivateKey
		if !step.Unsigned {
			signers = append(signers, h.key(step.As))
		}
		tx, err := runtime.NewTransaction(ix, signers...)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		receipt, submitErr := h.runtime.Submit(ctx, tx)
		if submitErr != nil && receipt.Status == "" {
			return fmt.Errorf("step %d: %w", i, submitErr)
		}

		event := TraceEvent{
			Step:   i + 1,
			Op:     step.Op,
			As:     step.As,
			TxID:   receipt.ID,
			Seq:    receipt.Seq,
			Status: receipt.Status,
			Error:  outcomeName(submitErr),
		}
		if kind, ok := failure.KindOf(submitErr); ok {
			code := kind.Code()
			event.Code = &code
		}
		rec, err := h.readRecord(ctx, target)
		switch {
		case errors.Is(err, failure.ErrMalformedRecord):
			event.RecordError = err.Error()
		case err != nil:
			return fmt.Errorf("step %d: %w", i, err)
		default:
			event.Record = rec
		}
		result.Trace = append(result.Trace, event)

		got := event.Error
		if got == "" {
			got = OutcomeOK
		}
		if got != step.Expect {
			result.AddError(fmt.Sprintf("step %d (%s as %s): expected %s, got %s", i+1, step.Op, step.As, step.Expect, got))
		}
	}
	return nil
}

func (h *Harness) buildInstruction(step Step) (runtime.Instruction, address.PublicKey, error) {
	identity := h.identity(step.As)
	owner := step.As
	if step.Slot != "" {
		owner = step.Slot
	}
	target, err := h.slot(owner)
	if err != nil {
		return runtime.Instruction{}, address.PublicKey{}, err
	}

	var data []byte
	switch step.Op {
	case OpCreate:
		data = instruction.Encode(instruction.NewCreate(field(step.Name, step.NameLen, 'n'), field(step.Message, step.MessageLen, 'm')))
	case OpUpdate:
		data = instruction.Encode(instruction.NewUpdate(field(step.Name, step.NameLen, 'n'), field(step.Message, step.MessageLen, 'm')))
	case OpRaw:
		if data, err = hex.DecodeString(step.Data); err != nil {
			return runtime.Instruction{}, address.PublicKey{}, fmt.Errorf("raw data: %w", err)
		}
	default:
		return runtime.Instruction{}, address.PublicKey{}, fmt.Errorf("unknown op %q", step.Op)
	}

	return runtime.RawInstruction(ProgramID, identity, target, !step.Unsigned, data), target, nil
}

func field(value string, n int, fill byte) string {
	if n > 0 {
		return strings.Repeat(string(fill), n)
	}
	return value
}

// readRecord returns the record held at slot, or nil if the slot is not
// program-owned. A program-owned slot that does not decode is an error.
func (h *Harness) readRecord(ctx context.Context, slot address.PublicKey) (*record.Record, error) {
	acct, found, err := h.store.GetAccount(ctx, slot)
	if err != nil {
		return nil, err
	}
	if !found || acct.Owner != ProgramID {
		return nil, nil
	}
	r, err := record.Deserialize(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("slot %s: %w", slot, err)
	}
	return &r, nil
}

func outcomeName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, runtime.ErrSignatureVerification):
		return OutcomeSignatureVerification
	case errors.Is(err, runtime.ErrUnknownProgram):
		return OutcomeUnknownProgram
	}
	if kind, ok := failure.KindOf(err); ok {
		return kind.String()
	}
	return err.Error()
}
