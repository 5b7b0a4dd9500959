package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"pocket/pkg/app"
	"pocket/pkg/core"
	"pocket/pkg/history"

	"github.com/spf13/cobra"
)

var (
	logGraph    bool
	logLimit    int
	logTimeline string
	logAuthor   string
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show shove history",
	Long:  `Display history newest first; a shove always appears before its parents.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if logGraph {
			nodes, err := Repo.Graph(ctx, logTimeline)
			if err != nil {
				return err
			}
			if len(nodes) == 0 {
				fmt.Fprintln(out, "No shoves yet.")
			}
			printGraph(out, nodes, logLimit)
			return nil
		}

		seq, err := Repo.Log(ctx, app.LogOptions{Timeline: logTimeline, Limit: logLimit, Author: logAuthor})
		if err != nil {
			return err
		}
		n := 0
		for s, err := range seq {
			if err != nil {
				return err
			}
			printShoveLog(out, s)
			n++
		}
		if n == 0 {
			fmt.Fprintln(out, "No shoves yet.")
		}
		return nil
	},
}

// printShoveLog 格式化输出 (仿 Git 格式)
func printShoveLog(w io.Writer, s *core.Shove) {
	header := "shove " + s.ID().String()
	if s.IsMerge() {
		parents := make([]string, 0, len(s.Parents))
		for _, p := range s.ParentIDs() {
			parents = append(parents, p.Short())
		}
		header += faint(" (merge " + strings.Join(parents, " ") + ")")
	}
	fmt.Fprintln(w, colorYellow(header))
	fmt.Fprintf(w, "Author: %s\n", s.Author)
	fmt.Fprintf(w, "Date:   %s\n", time.Unix(s.Timestamp, 0).Format(time.RFC1123))
	fmt.Fprintf(w, "\n    %s\n\n", strings.ReplaceAll(s.Message, "\n", "\n    "))
}

// printGraph 每列一条竖线，当前节点所在列画 ●，合并节点画 ◆
func printGraph(w io.Writer, nodes []history.GraphNode, limit int) {
	width := 0
	for _, n := range nodes {
		width = max(width, n.Lane+1)
	}
	for i, n := range nodes {
		if limit > 0 && i >= limit {
			return
		}
		var b strings.Builder
		for lane := range width {
			switch {
			case lane != n.Lane:
				b.WriteString("│ ")
			case n.IsMerge:
				b.WriteString(colorCyan("◆ "))
			default:
				b.WriteString(colorCyan("● "))
			}
		}
		fmt.Fprintf(w, "%s%s %s", b.String(), colorYellow(n.Shove.ID().Short()), firstLine(n.Shove.Message))
		if n.IsFork {
			fmt.Fprint(w, faint(" (fork)"))
		}
		fmt.Fprintln(w)
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func init() {
	logCmd.Flags().BoolVar(&logGraph, "graph", false, "Draw the shove graph")
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 0, "Limit the number of shoves")
	logCmd.Flags().StringVarP(&logTimeline, "timeline", "t", "", "Start from this timeline or shove (default: current)")
	logCmd.Flags().StringVar(&logAuthor, "author", "", "Only shoves by this author name or email")
	rootCmd.AddCommand(logCmd)
}
