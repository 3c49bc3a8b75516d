package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/introbook/internal/record"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// evaluateAssertions returns one message per failed assertion.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion) []string {
	var msgs []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, a); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertRecord:
		return h.assertRecord(ctx, a)
	case AssertNoSlot:
		return h.assertNoSlot(ctx, a)
	case AssertBalance:
		return h.assertBalance(ctx, a)
	case AssertTxCount:
		return h.assertTxCount(ctx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func (h *Harness) assertRecord(ctx context.Context, a Assertion) error {
	slot, err := h.slot(a.Identity)
	if err != nil {
		return err
	}
	got, err := h.readRecord(ctx, slot)
	if err != nil {
		return err
	}

	want := record.Record{Initialized: true, Name: a.Name, Message: a.Message}
	if got == nil {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("%s's slot holds %+v", a.Identity, want),
			Actual:   "no record",
		}
	}
	if *got != want {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("%+v", want),
			Actual:   fmt.Sprintf("%+v", *got),
		}
	}
	return nil
}

func (h *Harness) assertNoSlot(ctx context.Context, a Assertion) error {
	slot, err := h.slot(a.Identity)
	if err != nil {
		return err
	}
	acct, found, err := h.store.GetAccount(ctx, slot)
	if err != nil {
		return err
	}
	if found {
		return &AssertionError{
			Type:     AssertNoSlot,
			Expected: fmt.Sprintf("no slot for %s", a.Identity),
			Actual:   fmt.Sprintf("slot %s owned by %s with %d lamports", slot, acct.Owner, acct.Lamports),
		}
	}
	return nil
}

func (h *Harness) assertBalance(ctx context.Context, a Assertion) error {
	acct, _, err := h.store.GetAccount(ctx, h.identity(a.Identity))
	if err != nil {
		return err
	}
	if acct.Lamports != a.Lamports {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("%s holds %d lamports", a.Identity, a.Lamports),
			Actual:   fmt.Sprintf("%d lamports", acct.Lamports),
		}
	}
	return nil
}

func (h *Harness) assertTxCount(ctx context.Context, a Assertion) error {
	txs, err := h.store.ListTransactions(ctx, 0)
	if err != nil {
		return err
	}
	count := 0
	for _, tx := range txs {
		if a.Status == "" || tx.Status == a.Status {
			count++
		}
	}
	if count != a.Count {
		filter := "transactions"
		if a.Status != "" {
			filter = a.Status + " transactions"
		}
		return &AssertionError{
			Type:     AssertTxCount,
			Expected: fmt.Sprintf("%d %s", a.Count, filter),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}
