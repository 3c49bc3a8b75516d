package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/introbook/internal/address"
)

// DeriveResult is the derive command output.
type DeriveResult struct {
	Identity  string `json:"identity"`
	ProgramID string `json:"program_id"`
	Slot      string `json:"slot"`
	Bump      uint8  `json:"bump"`
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive <identity>",
		Short: "Print an identity's record slot address",
		Long: `Print the derived slot address and bump for an identity.

The identity is a base58 public key or a keypair file. The address
depends on the configured program id.

Example:
  introbook derive alice.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runDerive(opts *RootOptions, arg string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	_, programID, err := opts.loadConfig()
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err.Error(), err)
	}
	identity, err := resolveIdentity(arg)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInput, "invalid identity", err.Error(), err)
	}

	slot, bump, err := address.Derive(identity, programID)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeGeneric, "derivation failed", err.Error(), err)
	}

	result := DeriveResult{
		Identity:  identity.String(),
		ProgramID: programID.String(),
		Slot:      slot.String(),
		Bump:      bump,
	}
	if out.JSON() {
		return out.Success(result)
	}
	fmt.Fprintf(out.Writer, "Slot: %s\n", result.Slot)
	fmt.Fprintf(out.Writer, "Bump: %d\n", result.Bump)
	out.VerboseLog("identity %s, program %s", result.Identity, result.ProgramID)
	return nil
}
