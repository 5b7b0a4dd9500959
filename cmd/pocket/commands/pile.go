package commands

import (
	"errors"
	"fmt"

	"pocket/pkg/pile"

	"github.com/spf13/cobra"
)

var (
	pileAll     bool
	pilePattern string
	pileForce   bool
	unpileAll   bool
)

var pileCmd = &cobra.Command{
	Use:   "pile [paths...]",
	Short: "Stage file contents for the next shove",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var (
			res *pile.Result
			err error
		)
		switch {
		case pilePattern != "":
			res, err = Repo.PilePattern(ctx, pilePattern, pileForce)
		case pileAll:
			res, err = Repo.PileAll(ctx, pileForce)
		case len(args) > 0:
			res, err = Repo.Pile(ctx, args, pileForce)
		default:
			return errors.New("nothing specified (give paths, --all or --pattern)")
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, e := range res.Staged {
			fmt.Fprintf(out, "%s %s\n", colorGreen(fmt.Sprintf("%-9s", e.Status)), e.Path)
		}
		for _, p := range res.Unstaged {
			fmt.Fprintf(out, "%s %s\n", faint("unpiled  "), p)
		}
		for _, p := range res.Skipped {
			fmt.Fprintf(out, "%s %s\n", colorYellow("ignored  "), p)
		}
		if len(res.Skipped) > 0 {
			fmt.Fprintln(out, faint("(use --force to pile ignored files)"))
		}
		if len(res.Staged)+len(res.Unstaged) == 0 {
			fmt.Fprintln(out, "⚠️  No changes piled.")
		}
		return nil
	},
}

var unpileCmd = &cobra.Command{
	Use:   "unpile [paths...]",
	Short: "Remove paths from the pile (the working tree is untouched)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			removed []string
			err     error
		)
		switch {
		case unpileAll:
			removed, err = Repo.UnpileAll(cmd.Context())
		case len(args) > 0:
			removed, err = Repo.Unpile(cmd.Context(), args)
		default:
			return errors.New("nothing specified (give paths or --all)")
		}
		if err != nil {
			return err
		}
		for _, p := range removed {
			fmt.Fprintf(cmd.OutOrStdout(), "unpiled %s\n", p)
		}
		return nil
	},
}

func init() {
	pileCmd.Flags().BoolVarP(&pileAll, "all", "a", false, "Pile every change in the working tree")
	pileCmd.Flags().StringVarP(&pilePattern, "pattern", "p", "", "Pile files matching a glob (e.g. \"src/**.go\")")
	pileCmd.Flags().BoolVarP(&pileForce, "force", "f", false, "Also pile ignored files")
	unpileCmd.Flags().BoolVarP(&unpileAll, "all", "a", false, "Empty the pile")
	rootCmd.AddCommand(pileCmd, unpileCmd)
}
