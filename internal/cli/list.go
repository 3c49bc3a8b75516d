package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/introbook/internal/record"
)

// ListEntry is one record slot owned by the program.
type ListEntry struct {
	Slot       string         `json:"slot"`
	Lamports   uint64         `json:"lamports"`
	UpdatedSeq int64          `json:"updated_seq"`
	Record     *record.Record `json:"record,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every record slot owned by the program",
		Long: `List all slots owned by the configured program in address order.

Slots whose data does not decode are listed with the decoding error.

Example:
  introbook list --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
	return cmd
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	sess, err := opts.openSession(cmd, out)
	if err != nil {
		return err
	}
	defer sess.Close()

	accounts, err := sess.store.ListAccounts(cmd.Context(), sess.programID)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeLedger, "failed to list slots", err.Error(), err)
	}

	entries := make([]ListEntry, 0, len(accounts))
	for _, acct := range accounts {
		e := ListEntry{
			Slot:       acct.Address.String(),
			Lamports:   acct.Lamports,
			UpdatedSeq: acct.UpdatedSeq,
		}
		if rec, err := record.Deserialize(acct.Data); err != nil {
			e.Error = err.Error()
		} else {
			e.Record = &rec
		}
		entries = append(entries, e)
	}

	if out.JSON() {
		return out.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out.Writer, "No record slots.")
		return nil
	}
	for _, e := range entries {
		if e.Record == nil {
			fmt.Fprintf(out.Writer, "%s  (invalid: %s)\n", e.Slot, e.Error)
			continue
		}
		fmt.Fprintf(out.Writer, "%s  %s: %s\n", e.Slot, e.Record.Name, e.Record.Message)
	}
	return nil
}
