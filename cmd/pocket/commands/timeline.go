package commands

import (
	"errors"
	"fmt"

	"pocket/pkg/app"
	"pocket/pkg/types"

	"github.com/spf13/cobra"
)

var (
	timelineFrom string
	switchForce  bool
	switchStash  bool
	trackUnset   bool
)

var timelineCmd = &cobra.Command{
	Use:     "timeline",
	Aliases: []string{"tl"},
	Short:   "Create, switch, list and delete timelines",
}

var timelineNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a timeline at the current head (or --from)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := Repo.CreateTimeline(cmd.Context(), args[0], timelineFrom); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Created timeline %s\n", bold(args[0]))
		return nil
	},
}

var timelineSwitchCmd = &cobra.Command{
	Use:   "switch <name>",
	Short: "Switch to another timeline and update the working tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := app.SwitchNormal
		switch {
		case switchForce && switchStash:
			return errors.New("--force and --stash are mutually exclusive")
		case switchForce:
			mode = app.SwitchForce
		case switchStash:
			mode = app.SwitchStash
		}
		if err := Repo.Switch(cmd.Context(), args[0], mode); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Switched to timeline %s\n", bold(args[0]))
		return nil
	},
}

var timelineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List timelines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tls, err := Repo.ListTimelines(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, tl := range tls {
			marker, name := "  ", tl.Name
			if tl.Active {
				marker, name = "* ", colorGreen(tl.Name)
			}
			head := "(empty)"
			if tl.Head != "" {
				head = types.Hash(tl.Head).Short()
			}
			line := fmt.Sprintf("%s%s %s", marker, name, faint(head))
			if tl.RemoteName != "" {
				line += colorCyan(fmt.Sprintf(" [%s/%s]", tl.RemoteName, tl.RemoteTimeline))
			}
			if tl.Stashed {
				line += colorYellow(" (stashed pile)")
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

var timelineDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a timeline (its shoves are kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := Repo.DeleteTimeline(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted timeline %s\n", args[0])
		return nil
	},
}

var timelineTrackCmd = &cobra.Command{
	Use:   "track <name> [remote] [remote-timeline]",
	Short: "Record which remote timeline a timeline follows",
	Args:  cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		var remote, remoteTimeline string
		if !trackUnset {
			if len(args) < 2 {
				return errors.New("remote is required (or pass --unset)")
			}
			remote, remoteTimeline = args[1], name
			if len(args) == 3 {
				remoteTimeline = args[2]
			}
		}
		if err := Repo.TrackRemote(cmd.Context(), name, remote, remoteTimeline); err != nil {
			return err
		}
		if trackUnset {
			fmt.Fprintf(cmd.OutOrStdout(), "%s no longer tracks a remote\n", name)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s now tracks %s/%s\n", name, remote, remoteTimeline)
		}
		return nil
	},
}

func init() {
	timelineNewCmd.Flags().StringVar(&timelineFrom, "from", "", "Timeline or shove to start from")
	timelineSwitchCmd.Flags().BoolVarP(&switchForce, "force", "f", false, "Discard the pile and overwrite local changes")
	timelineSwitchCmd.Flags().BoolVar(&switchStash, "stash", false, "Keep the pile with the current timeline")
	timelineTrackCmd.Flags().BoolVar(&trackUnset, "unset", false, "Remove remote tracking")

	timelineCmd.AddCommand(timelineNewCmd, timelineSwitchCmd, timelineListCmd, timelineDeleteCmd, timelineTrackCmd)
	rootCmd.AddCommand(timelineCmd)
}
