package cli

import (
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/introbook/internal/failure"
	"github.com/roach88/introbook/internal/ledger"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// HistoryEntry is one transaction log entry.
type HistoryEntry struct {
	Seq          int64    `json:"seq"`
	ID           string   `json:"id"`
	Status       string   `json:"status"`
	Signers      []string `json:"signers"`
	Instruction  string   `json:"instruction"`
	ErrorCode    *uint32  `json:"error_code,omitempty"`
	ErrorKind    string   `json:"error_kind,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Logs         []string `json:"logs,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the transaction log",
		Long: `List submitted transactions, newest first, including rejected ones.

Example:
  introbook history --limit 5 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "show the most recent N transactions (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	sess, err := opts.openSession(cmd, out)
	if err != nil {
		return err
	}
	defer sess.Close()

	txs, err := sess.store.ListTransactions(cmd.Context(), opts.Limit)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeLedger, "failed to read transaction log", err.Error(), err)
	}
	slices.Reverse(txs)

	entries := make([]HistoryEntry, 0, len(txs))
	for _, tx := range txs {
		entries = append(entries, historyEntry(tx, opts.Verbose))
	}

	if out.JSON() {
		return out.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out.Writer, "No transactions.")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("%4d  %s  %-6s", e.Seq, e.ID, e.Status)
		if e.ErrorKind != "" {
			line += fmt.Sprintf("  %s (code %d)", e.ErrorKind, *e.ErrorCode)
		} else if e.ErrorMessage != "" {
			line += "  " + e.ErrorMessage
		}
		fmt.Fprintln(out.Writer, line)
		for _, l := range e.Logs {
			fmt.Fprintf(out.Writer, "        %s\n", l)
		}
	}
	return nil
}

func historyEntry(tx ledger.TransactionRecord, withLogs bool) HistoryEntry {
	e := HistoryEntry{
		Seq:          tx.Seq,
		ID:           tx.ID,
		Status:       tx.Status,
		Signers:      make([]string, 0, len(tx.Signers)),
		Instruction:  hex.EncodeToString(tx.Instruction),
		ErrorCode:    tx.ErrorCode,
		ErrorMessage: tx.ErrorMessage,
	}
	for _, s := range tx.Signers {
		e.Signers = append(e.Signers, s.String())
	}
	if tx.ErrorCode != nil {
		e.ErrorKind = failure.Kind(*tx.ErrorCode).String()
	}
	if withLogs {
		e.Logs = tx.Logs
	}
	return e
}
