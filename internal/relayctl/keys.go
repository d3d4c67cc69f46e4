package relayctl

import (
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/vaultrelay/internal/adminclient"
	"github.com/spf13/cobra"
)

// NewKeysCommand creates the keys command group.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage activation keys",
	}

	cmd.AddCommand(newKeysListCommand(rootOpts))
	cmd.AddCommand(newKeysAddCommand(rootOpts))
	cmd.AddCommand(newKeysDeactivateCommand(rootOpts))

	return cmd
}

func newKeysListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "list",
		Short:        "List activation keys",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.adminClient(cmd)
			if err != nil {
				return err
			}
			keys, err := c.ListKeys(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, keys)
			}
			if len(keys) == 0 {
				_, err := fmt.Fprintln(out, "no activation keys")
				return err
			}
			rows := [][]string{{"KEY", "ACTIVE", "CLAIMED BY", "CLAIMED AT", "NOTE"}}
			for _, k := range keys {
				rows = append(rows, []string{k.Key, strconv.FormatBool(k.Active), orDash(k.ClaimedBy), formatTime(k.ClaimedAt), k.Note})
			}
			return table(out, rows)
		},
	}
}

func newKeysAddCommand(rootOpts *RootOptions) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "add [key]",
		Short: "Create an activation key",
		Long: `Create an activation key.

Without an argument the server generates a random key.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			}

			c, err := rootOpts.adminClient(cmd)
			if err != nil {
				return err
			}
			k, err := c.AddKey(cmd.Context(), key, note)
			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), k)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created activation key %s\n", k.Key)
			return err
		},
	}

	cmd.Flags().StringVarP(&note, "note", "n", "", "free-form note stored with the key")

	return cmd
}

func newKeysDeactivateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "deactivate <key>",
		Short:        "Deactivate an activation key",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.adminClient(cmd)
			if err != nil {
				return err
			}
			if err := c.DeactivateKey(cmd.Context(), args[0]); err != nil {
				if adminclient.IsNotFound(err) {
					return fmt.Errorf("activation key %q not found", args[0])
				}
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"deactivated": true, "key": args[0]})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deactivated activation key %s\n", args[0])
			return err
		},
	}
}
