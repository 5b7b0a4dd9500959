package commands

import (
	"fmt"

	"pocket/pkg/app"

	"github.com/spf13/cobra"
)

var newRepoCmd = &cobra.Command{
	Use:   "new-repo [dir]",
	Short: "Create an empty pocket repository",
	Long:  `Create .pocket (objects, shoves, state database, default config) and the default timeline.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		repo, err := app.Init(cmd.Context(), dir, app.Options{Viper: v, Verbose: verbose})
		if err != nil {
			return err
		}
		Repo = repo
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Initialized empty pocket repository in %s (timeline %s)\n",
			repo.Root(), bold(repo.Config.Core.DefaultTimeline))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(newRepoCmd)
}
