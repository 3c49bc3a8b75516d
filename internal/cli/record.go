package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/introbook/internal/address"
	"github.com/roach88/introbook/internal/failure"
	"github.com/roach88/introbook/internal/instruction"
	"github.com/roach88/introbook/internal/keys"
	"github.com/roach88/introbook/internal/record"
	"github.com/roach88/introbook/internal/runtime"
)

// RecordOptions holds flags for the create and update commands.
type RecordOptions struct {
	*RootOptions
	Keypair string
	Name    string
	Message string
	Slot    string
}

// SubmitResult describes a submitted transaction.
type SubmitResult struct {
	TxID   string   `json:"tx_id"`
	Seq    int64    `json:"seq"`
	Status string   `json:"status"`
	Signer string   `json:"signer"`
	Slot   string   `json:"slot"`
	Logs   []string `json:"logs,omitempty"`
}

// TransactionFailure is the error detail for a rejected transaction.
type TransactionFailure struct {
	TxID  string  `json:"tx_id,omitempty"`
	Seq   int64   `json:"seq,omitempty"`
	Kind  string  `json:"kind,omitempty"`
	Code  *uint32 `json:"program_code,omitempty"`
	Cause string  `json:"cause"`
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the signer's record",
		Long: `Allocate the signer's record slot and store the first record.

The signer pays the rent-exempt balance for the slot. A slot can be
created once per identity.

Example:
  introbook create --keypair alice.json --name Ann --message Hi`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitRecord(opts, instruction.OpCreate, cmd)
		},
	}
	addRecordFlags(cmd, opts)
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Overwrite a record",
		Long: `Replace the name and message of an existing record.

By default the signer's own slot is updated. --slot targets another
program-owned slot; whether that is accepted depends on strict_update.

Example:
  introbook update --keypair alice.json --name Ann --message "Hello again"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitRecord(opts, instruction.OpUpdate, cmd)
		},
	}
	addRecordFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.Slot, "slot", "", "slot address to update (defaults to the signer's slot)")
	return cmd
}

func addRecordFlags(cmd *cobra.Command, opts *RecordOptions) {
	cmd.Flags().StringVarP(&opts.Keypair, "keypair", "k", "", "signer keypair file (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "record name")
	cmd.Flags().StringVar(&opts.Message, "message", "", "record message")
	_ = cmd.MarkFlagRequired("keypair")
}

func submitRecord(opts *RecordOptions, op instruction.Opcode, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	kp, err := keys.Load(opts.Keypair)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeKeypair, "failed to load keypair", err.Error(), err)
	}

	var slot *address.PublicKey
	if opts.Slot != "" {
		key, err := address.ParsePublicKey(opts.Slot)
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeInput, "invalid --slot", err.Error(), err)
		}
		slot = &key
	}

	command := instruction.Command{
		Op:      op,
		Name:    norm.NFC.String(opts.Name),
		Message: norm.NFC.String(opts.Message),
	}
	if !record.Fits(command.Name, command.Message) {
		out.VerboseLog("record needs %d bytes, slot holds %d", record.SerializedLen(command.Name, command.Message), record.Capacity)
	}

	sess, err := opts.openSession(cmd, out)
	if err != nil {
		return err
	}
	defer sess.Close()

	ix, err := runtime.SlotInstruction(sess.programID, kp.Public(), slot, true, command)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeGeneric, "failed to build instruction", err.Error(), err)
	}
	tx, err := runtime.NewTransaction(ix, kp.PrivateKey())
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeGeneric, "failed to sign transaction", err.Error(), err)
	}

	receipt, err := sess.runtime.Submit(cmd.Context(), tx)
	if err != nil {
		if receipt.Status == "" {
			return out.Fail(ExitCommandError, ErrCodeLedger, "ledger error", err.Error(), err)
		}
		return reportRejected(out, op, receipt, err)
	}

	result := SubmitResult{
		TxID:   receipt.ID,
		Seq:    receipt.Seq,
		Status: receipt.Status,
		Signer: kp.Public().String(),
		Slot:   ix.Accounts[1].PublicKey.String(),
	}
	if opts.Verbose {
		result.Logs = receipt.Logs
	}
	if out.JSON() {
		return out.Success(result)
	}
	fmt.Fprintf(out.Writer, "✓ %s tx %s (seq %d)\n", op, result.TxID, result.Seq)
	fmt.Fprintf(out.Writer, "  slot: %s\n", result.Slot)
	for _, line := range result.Logs {
		fmt.Fprintf(out.Writer, "  log: %s\n", line)
	}
	return nil
}

func reportRejected(out *OutputFormatter, op instruction.Opcode, receipt runtime.Receipt, cause error) error {
	details := TransactionFailure{
		TxID:  receipt.ID,
		Seq:   receipt.Seq,
		Cause: cause.Error(),
	}
	var message string
	var ferr *failure.Error
	if errors.As(cause, &ferr) {
		code := ferr.Kind.Code()
		details.Kind = ferr.Kind.String()
		details.Code = &code
		message = fmt.Sprintf("%s rejected: %s (code %d)", op, ferr.Kind, code)
	} else {
		message = fmt.Sprintf("%s rejected: %v", op, cause)
	}

	if out.Verbose && !out.JSON() {
		for _, line := range receipt.Logs {
			out.VerboseLog("log: %s", line)
		}
	}
	return out.Fail(ExitFailure, ErrCodeTransaction, message, details, cause)
}
