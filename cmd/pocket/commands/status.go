package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the timeline, the pile and changes in the working tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := Repo.Status(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		head := "no shoves yet"
		if !st.Head.IsZero() {
			head = st.Head.Short()
		}
		fmt.Fprintf(out, "On timeline %s (%s)\n", bold(st.Timeline), faint(head))

		if st.Merging != nil {
			fmt.Fprintf(out, "\nMerging %s into %s\n", st.Merging.Source, st.Merging.Target)
			if len(st.Conflicts) == 0 {
				fmt.Fprintln(out, colorGreen("  all conflicts resolved (run 'pocket merge --continue')"))
			}
			for _, c := range st.Conflicts {
				fmt.Fprintf(out, "  %s %s\n", colorRed("conflict:"), c.Path)
			}
		}

		if st.Clean() {
			fmt.Fprintln(out, "\nNothing to shove, working tree clean")
			return nil
		}
		if len(st.Staged) > 0 {
			fmt.Fprintln(out, "\nPiled for next shove:")
			for _, e := range st.Staged {
				line := fmt.Sprintf("  %-9s %s", string(e.Status)+":", e.Path)
				if e.RenamedFrom != "" {
					line += " (from " + e.RenamedFrom + ")"
				}
				fmt.Fprintln(out, colorGreen(line))
			}
		}
		if len(st.Modified)+len(st.Deleted) > 0 {
			fmt.Fprintln(out, "\nNot piled:")
			for _, p := range st.Modified {
				fmt.Fprintln(out, colorRed("  modified: "+p))
			}
			for _, p := range st.Deleted {
				fmt.Fprintln(out, colorRed("  deleted:  "+p))
			}
		}
		if len(st.Untracked) > 0 {
			fmt.Fprintln(out, "\nUntracked:")
			for _, p := range st.Untracked {
				fmt.Fprintln(out, colorRed("  "+p))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
