package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/systemshift/ledger/internal/config"
	"github.com/systemshift/ledger/internal/dag"
)

func newLogCmd(a *app) *cobra.Command {
	var (
		graph bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show commit history",
		Long: `Show the first-parent history of HEAD. With --graph, every commit
reachable from HEAD is listed in topological order, so a merge is shown
before either of its parents.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("number") {
				limit = config.GetLogLimit()
			}
			var entries []dag.LogEntry
			if graph {
				entries, err = repo.Graph(limit)
			} else {
				entries, err = repo.Log(limit)
			}
			if err != nil {
				return err
			}
			for _, e := range entries {
				printLogEntry(cmd.OutOrStdout(), e)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&graph, "graph", false, "topological order over all parents")
	cmd.Flags().IntVarP(&limit, "number", "n", 0, "maximum number of commits (default from log.limit)")
	return cmd
}

func printLogEntry(w io.Writer, e dag.LogEntry) {
	fmt.Fprintln(w, color.YellowString("commit %s", e.ID))
	if e.IsMerge() {
		short := make([]string, len(e.Parents))
		for i, p := range e.Parents {
			short[i] = shortID(p)
		}
		fmt.Fprintf(w, "Merge:  %s\n", strings.Join(short, " "))
	}
	fmt.Fprintf(w, "Author: %s\n", e.Author)
	fmt.Fprintf(w, "Date:   %s\n\n", time.Unix(e.Timestamp, 0).Format(time.RFC1123Z))
	for _, line := range strings.Split(e.Message, "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
	fmt.Fprintln(w)
}
