package relayctl

import (
	"fmt"

	"github.com/dmitrijs2005/vaultrelay/internal/adminclient"
	"github.com/spf13/cobra"
)

// NewHealthCommand creates the health command. It needs no secret.
func NewHealthCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "health",
		Short:        "Check that the relay is up",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := adminclient.New(rootOpts.Server, "").Health(cmd.Context())
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), h)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", h.Status, h.Timestamp)
			return err
		},
	}
}
