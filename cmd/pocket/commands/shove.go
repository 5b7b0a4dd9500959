package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var shoveMessage string

var shoveCmd = &cobra.Command{
	Use:   "shove",
	Short: "Record the pile as a new shove on the current timeline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := Repo.Shove(cmd.Context(), shoveMessage)
		if err != nil {
			return err
		}
		tl, err := Repo.ActiveTimeline(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ [%s %s] %s\n", tl, colorYellow(s.ID().Short()), firstLine(s.Message))
		return nil
	},
}

func init() {
	shoveCmd.Flags().StringVarP(&shoveMessage, "message", "m", "", "Shove message")
	_ = shoveCmd.MarkFlagRequired("message")
	rootCmd.AddCommand(shoveCmd)
}
