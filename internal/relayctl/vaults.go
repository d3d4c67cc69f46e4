package relayctl

import (
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/vaultrelay/internal/adminclient"
	"github.com/spf13/cobra"
)

// NewVaultsCommand creates the vaults command group.
func NewVaultsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vaults",
		Short: "Inspect and remove vaults",
	}

	cmd.AddCommand(newVaultsListCommand(rootOpts))
	cmd.AddCommand(newVaultsDeleteCommand(rootOpts))

	return cmd
}

func newVaultsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "list",
		Short:        "List vaults with file counts and sizes",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.adminClient(cmd)
			if err != nil {
				return err
			}
			vaults, err := c.ListVaults(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, vaults)
			}
			if len(vaults) == 0 {
				_, err := fmt.Fprintln(out, "no vaults")
				return err
			}
			rows := [][]string{{"VAULT", "CREATED", "FILES", "BYTES"}}
			for _, v := range vaults {
				rows = append(rows, []string{
					v.ID,
					formatTime(&v.CreatedAt),
					strconv.FormatInt(v.FileCount, 10),
					strconv.FormatInt(v.TotalSize, 10),
				})
			}
			return table(out, rows)
		},
	}
}

func newVaultsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "delete <vault-id>",
		Short:        "Delete a vault and all of its files",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.adminClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.DeleteVault(cmd.Context(), args[0])
			if err != nil {
				if adminclient.IsNotFound(err) {
					return fmt.Errorf("vault %q not found", args[0])
				}
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted vault %s (%d files removed)\n", res.VaultID, res.FilesRemoved)
			return err
		},
	}
}
