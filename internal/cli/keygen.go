package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/introbook/internal/keys"
)

// KeygenOptions holds flags for the keygen command.
type KeygenOptions struct {
	*RootOptions
	Out   string
	Force bool
}

// KeygenResult is the keygen command output.
type KeygenResult struct {
	PublicKey string `json:"public_key"`
	Path      string `json:"path"`
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeygenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an identity keypair",
		Long: `Generate a new ed25519 identity and write it to a keypair file.

The file holds the 64 private key bytes as a JSON array and is created
with owner-only permissions.

Example:
  introbook keygen --out alice.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "keypair file to write (required)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing file")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runKeygen(opts *KeygenOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	kp, err := keys.Generate(nil)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeKeypair, "failed to generate keypair", err.Error(), err)
	}
	if err := keys.Save(opts.Out, kp, opts.Force); err != nil {
		return out.Fail(ExitCommandError, ErrCodeKeypair, "failed to write keypair", err.Error(), err)
	}

	result := KeygenResult{PublicKey: kp.Public().String(), Path: opts.Out}
	if out.JSON() {
		return out.Success(result)
	}
	fmt.Fprintf(out.Writer, "Wrote %s\n", result.Path)
	fmt.Fprintf(out.Writer, "Public key: %s\n", result.PublicKey)
	return nil
}
