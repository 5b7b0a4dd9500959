package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ignoreCmd = &cobra.Command{
	Use:   "ignore",
	Short: "Manage ignore patterns (.pocketignore)",
}

var ignoreAddCmd = &cobra.Command{
	Use:   "add <pattern>...",
	Short: "Add permanent ignore patterns",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, p := range args {
			if err := Repo.IgnoreAdd(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ignoring %s\n", p)
		}
		return nil
	},
}

var ignoreRemoveCmd = &cobra.Command{
	Use:   "remove <pattern>...",
	Short: "Remove permanent ignore patterns",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, p := range args {
			if err := Repo.IgnoreRemove(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "no longer ignoring %s\n", p)
		}
		return nil
	},
}

var ignoreListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ignore patterns in the order they apply",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, p := range Repo.IgnoreList() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", faint(string(p.Source)), p.Pattern)
		}
		return nil
	},
}

func init() {
	ignoreCmd.AddCommand(ignoreAddCmd, ignoreRemoveCmd, ignoreListCmd)
	rootCmd.AddCommand(ignoreCmd)
}
