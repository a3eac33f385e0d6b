package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/systemshift/ledger/internal/dag"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show HEAD, staged and unstaged changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open()
			if err != nil {
				return err
			}
			report, err := repo.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if name, ok := report.Head.Branch(); ok {
				fmt.Fprintf(out, "On branch %s at %s\n", name, shortID(report.Commit))
			} else {
				fmt.Fprintf(out, "HEAD detached at %s\n", shortID(report.Commit))
			}
			if len(report.Staged) == 0 {
				fmt.Fprintln(out, "nothing staged")
			} else {
				fmt.Fprintln(out, "Changes to be committed:")
				printEntries(out, report.Staged, true)
			}
			if len(report.Unstaged) > 0 {
				fmt.Fprintln(out, "Changes not staged:")
				printEntries(out, report.Unstaged, false)
			}
			if len(report.Pending) > 0 {
				fmt.Fprintln(out, "Pending merge resolutions:")
				for _, p := range report.Pending {
					if p.HasMarkers {
						fmt.Fprintf(out, "  %s %s\n", p.Path, color.RedString("(still has conflict markers)"))
					} else {
						fmt.Fprintf(out, "  %s\n", p.Path)
					}
				}
			}
			return nil
		},
	}
}

func printEntries(w io.Writer, entries []dag.StagingEntry, withHash bool) {
	table := tablewriter.NewWriter(w)
	if withHash {
		table.SetHeader([]string{"Status", "Path", "Hash"})
	} else {
		table.SetHeader([]string{"Status", "Path"})
	}
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, e := range entries {
		row := []string{statusLabel(e.Status), e.Path}
		if withHash {
			row = append(row, shortID(e.Hash))
		}
		table.Append(row)
	}
	table.Render()
}
