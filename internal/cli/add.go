package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/systemshift/ledger/internal/dag"
)

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <pattern>...",
		Short: "Stage files matching glob patterns",
		Long: `Stage every working-tree file matching a pattern. A pattern matches a
path or any trailing part of it, so "*.txt" matches "docs/a.txt".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open()
			if err != nil {
				return err
			}
			for _, pattern := range args {
				entries, err := repo.Add(pattern)
				if err != nil {
					return err
				}
				printStaged(cmd.OutOrStdout(), pattern, entries)
			}
			return nil
		},
	}
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <pattern>...",
		Short: "Stage the removal of tracked files",
		Long: `Stage the deletion of every tracked file matching a pattern and remove
it from the working tree. Files that were only staged for addition are
unstaged instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open()
			if err != nil {
				return err
			}
			for _, pattern := range args {
				entries, err := repo.Remove(pattern)
				if err != nil {
					return err
				}
				printStaged(cmd.OutOrStdout(), pattern, entries)
			}
			return nil
		},
	}
}

func printStaged(w io.Writer, pattern string, entries []dag.StagingEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, color.YellowString("no files matched %q", pattern))
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s %s\n", statusLabel(e.Status), e.Path)
	}
}

func statusLabel(s dag.StagingStatus) string {
	switch s {
	case dag.StatusAdded:
		return color.GreenString("%-9s", s)
	case dag.StatusDeleted:
		return color.RedString("%-9s", s)
	default:
		return color.YellowString("%-9s", s)
	}
}
