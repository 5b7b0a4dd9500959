package commands

import (
	"github.com/spf13/cobra"
)

var catRaw bool

var catCmd = &cobra.Command{
	Use:   "cat <id|timeline>",
	Short: "Print an object (shove, tree, file) by id, short id or timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return Repo.Cat(cmd.Context(), args[0], cmd.OutOrStdout(), catRaw)
	},
}

func init() {
	catCmd.Flags().BoolVarP(&catRaw, "raw", "r", false, "Print raw bytes instead of a formatted view")
	rootCmd.AddCommand(catCmd)
}
