// Package relayctl implements the relayctl command tree for administering a
// running relay over its HTTP admin API.
package relayctl

import (
	"fmt"
	"slices"

	"github.com/dmitrijs2005/vaultrelay/internal/adminclient"
	"github.com/spf13/cobra"
)

// DefaultServer is used when --server is not given.
const DefaultServer = "http://localhost:3000"

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server string
	Secret string
	Format string // "json" | "text"
}

// NewRootCommand creates the root command for relayctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "relayctl",
		Short: "Administer a vault relay",
		Long:  "Manage activation keys and vaults on a running vault relay through its admin API.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", DefaultServer, "relay base URL")
	cmd.PersistentFlags().StringVar(&opts.Secret, "secret", "", "admin secret (falls back to $RELAY_ADMIN_SECRET, then a prompt)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewKeysCommand(opts))
	cmd.AddCommand(NewVaultsCommand(opts))
	cmd.AddCommand(NewHealthCommand(opts))

	return cmd
}

// adminClient returns a client carrying the resolved admin secret.
func (o *RootOptions) adminClient(cmd *cobra.Command) (*adminclient.Client, error) {
	secret, err := resolveSecret(o.Secret, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return adminclient.New(o.Server, secret), nil
}
