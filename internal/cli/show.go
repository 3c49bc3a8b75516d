package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/introbook/internal/address"
	"github.com/roach88/introbook/internal/record"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Slot string
}

// ShowResult is the show command output.
type ShowResult struct {
	Slot       string        `json:"slot"`
	Owner      string        `json:"owner"`
	Lamports   uint64        `json:"lamports"`
	UpdatedSeq int64         `json:"updated_seq"`
	Record     record.Record `json:"record"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [identity]",
		Short: "Print the record held for an identity",
		Long: `Decode and print a record slot.

The slot is derived from the identity (a base58 public key or a keypair
file) unless --slot names it directly.

Examples:
  introbook show alice.json
  introbook show --slot 7Hh2...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Slot, "slot", "", "slot address to read")

	return cmd
}

func runShow(opts *ShowOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	if (len(args) == 1) == (opts.Slot != "") {
		return out.Fail(ExitCommandError, ErrCodeInput, "specify exactly one of <identity> or --slot", nil, nil)
	}

	sess, err := opts.openSession(cmd, out)
	if err != nil {
		return err
	}
	defer sess.Close()

	var slot address.PublicKey
	if opts.Slot != "" {
		if slot, err = address.ParsePublicKey(opts.Slot); err != nil {
			return out.Fail(ExitCommandError, ErrCodeInput, "invalid --slot", err.Error(), err)
		}
	} else {
		identity, err := resolveIdentity(args[0])
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeInput, "invalid identity", err.Error(), err)
		}
		if slot, _, err = address.Derive(identity, sess.programID); err != nil {
			return out.Fail(ExitFailure, ErrCodeGeneric, "derivation failed", err.Error(), err)
		}
	}

	acct, found, err := sess.store.GetAccount(cmd.Context(), slot)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeLedger, "failed to read slot", err.Error(), err)
	}
	if !found {
		return out.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no account at %s", slot), nil, nil)
	}
	if acct.Owner != sess.programID {
		return out.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("%s is not a record slot (owner %s)", slot, acct.Owner), nil, nil)
	}

	rec, err := record.Deserialize(acct.Data)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeGeneric, "slot does not hold a valid record", err.Error(), err)
	}

	result := ShowResult{
		Slot:       slot.String(),
		Owner:      acct.Owner.String(),
		Lamports:   acct.Lamports,
		UpdatedSeq: acct.UpdatedSeq,
		Record:     rec,
	}
	if out.JSON() {
		return out.Success(result)
	}
	fmt.Fprintf(out.Writer, "Slot:    %s\n", result.Slot)
	fmt.Fprintf(out.Writer, "Name:    %s\n", rec.Name)
	fmt.Fprintf(out.Writer, "Message: %s\n", rec.Message)
	if !rec.Initialized {
		fmt.Fprintln(out.Writer, "(not initialized)")
	}
	out.VerboseLog("lamports %d, updated at seq %d", result.Lamports, result.UpdatedSeq)
	return nil
}
