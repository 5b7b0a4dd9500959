package commands

import (
	"errors"
	"fmt"
	"os"

	"pocket/pkg/app"
	"pocket/pkg/merge"

	"github.com/spf13/cobra"
)

var (
	mergeStrategy string
	mergeFFOnly   bool
	mergeNoFF     bool
	mergeMessage  string
	mergeAbort    bool
	mergeContinue bool

	resolveOurs   bool
	resolveTheirs bool
	resolveFile   string
	resolveDelete bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge <timeline>",
	Short: "Merge another timeline into the current one",
	Long: `Fast-forwards when possible, otherwise performs a three-way merge.
Conflicts are recorded (never written as markers); resolve them with
'pocket resolve' and finish with 'pocket merge --continue'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		switch {
		case mergeAbort:
			if err := Repo.AbortMerge(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "Merge aborted")
			return nil
		case mergeContinue:
			s, err := Repo.FinishMerge(ctx, mergeMessage)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✅ Merge shove %s\n", colorYellow(s.ID().Short()))
			return nil
		case len(args) == 0:
			return errors.New("timeline to merge is required")
		}

		opts := app.MergeOptions{Strategy: mergeStrategy, Message: mergeMessage}
		switch {
		case mergeFFOnly && mergeNoFF:
			return errors.New("--ff-only and --no-ff are mutually exclusive")
		case mergeFFOnly:
			opts.Mode = merge.FastForwardOnly
		case mergeNoFF:
			opts.Mode = merge.AlwaysCreateShove
		}

		res, err := Repo.Merge(ctx, args[0], opts)
		if res != nil && len(res.Conflicts) > 0 {
			fmt.Fprintln(out, colorYellow("Automatic merge failed; resolve these paths:"))
			for _, c := range res.Conflicts {
				fmt.Fprintf(out, "  %s %s\n", colorRed("conflict:"), c.Path)
			}
		}
		if err != nil {
			return err
		}
		switch res.Kind {
		case merge.UpToDate:
			fmt.Fprintln(out, "Already up to date.")
		case merge.FastForward:
			fmt.Fprintf(out, "Fast-forward to %s\n", colorYellow(res.Head.Short()))
		default:
			fmt.Fprintf(out, "✅ Merge shove %s\n", colorYellow(res.Head.Short()))
		}
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <path>",
	Short: "Choose the final content of a conflicting path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var res merge.Resolution
		chosen := 0
		if resolveOurs {
			res.Kind = merge.UseOurs
			chosen++
		}
		if resolveTheirs {
			res.Kind = merge.UseTheirs
			chosen++
		}
		if resolveDelete {
			res.Kind = merge.UseDelete
			chosen++
		}
		if resolveFile != "" {
			data, err := os.ReadFile(resolveFile)
			if err != nil {
				return fmt.Errorf("failed to read resolution file: %w", err)
			}
			res = merge.Resolution{Kind: merge.UseContent, Content: data}
			chosen++
		}
		if chosen != 1 {
			return errors.New("choose exactly one of --ours, --theirs, --file, --delete")
		}
		if err := Repo.Resolve(cmd.Context(), args[0], res); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Resolved %s (%s)\n", args[0], res.Kind)
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeStrategy, "strategy", "s", "", "Conflict strategy: three-way, ours, theirs")
	mergeCmd.Flags().BoolVar(&mergeFFOnly, "ff-only", false, "Refuse to merge unless fast-forward is possible")
	mergeCmd.Flags().BoolVar(&mergeNoFF, "no-ff", false, "Always create a merge shove")
	mergeCmd.Flags().StringVarP(&mergeMessage, "message", "m", "", "Merge shove message")
	mergeCmd.Flags().BoolVar(&mergeAbort, "abort", false, "Abort the merge in progress")
	mergeCmd.Flags().BoolVar(&mergeContinue, "continue", false, "Finish the merge after resolving conflicts")

	resolveCmd.Flags().BoolVar(&resolveOurs, "ours", false, "Keep the current timeline's version")
	resolveCmd.Flags().BoolVar(&resolveTheirs, "theirs", false, "Take the merged timeline's version")
	resolveCmd.Flags().StringVar(&resolveFile, "file", "", "Use the content of this file")
	resolveCmd.Flags().BoolVar(&resolveDelete, "delete", false, "Delete the path")
	rootCmd.AddCommand(mergeCmd, resolveCmd)
}
