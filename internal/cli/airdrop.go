package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AirdropOptions holds flags for the airdrop command.
type AirdropOptions struct {
	*RootOptions
	Lamports uint64
}

// AirdropResult is the airdrop command output.
type AirdropResult struct {
	Address  string `json:"address"`
	Credited uint64 `json:"credited"`
	Balance  uint64 `json:"balance"`
}

// NewAirdropCommand creates the airdrop command.
func NewAirdropCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AirdropOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "airdrop <address>",
		Short: "Fund an account on the local ledger",
		Long: `Credit lamports to an account so it can pay for record slots.

The address is a base58 public key or a keypair file.

Example:
  introbook airdrop alice.json --lamports 1000000000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAirdrop(opts, args[0], cmd)
		},
	}

	cmd.Flags().Uint64Var(&opts.Lamports, "lamports", 1_000_000_000, "lamports to credit")

	return cmd
}

func runAirdrop(opts *AirdropOptions, arg string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	addr, err := resolveIdentity(arg)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInput, "invalid address", err.Error(), err)
	}
	if opts.Lamports == 0 {
		return out.Fail(ExitCommandError, ErrCodeInput, "--lamports must be positive", nil, nil)
	}

	sess, err := opts.openSession(cmd, out)
	if err != nil {
		return err
	}
	defer sess.Close()

	acct, err := sess.store.Airdrop(cmd.Context(), addr, opts.Lamports)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeLedger, "airdrop failed", err.Error(), err)
	}

	result := AirdropResult{Address: addr.String(), Credited: opts.Lamports, Balance: acct.Lamports}
	if out.JSON() {
		return out.Success(result)
	}
	fmt.Fprintf(out.Writer, "Credited %d lamports to %s (balance %d)\n", result.Credited, result.Address, result.Balance)
	return nil
}
