package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/systemshift/ledger/internal/dag"
)

func newMergeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <branch|commit>",
		Short: "Merge another line of history into the current one",
		Long: `Three-way merge against the nearest common ancestor. The merge stops at
the first conflicted file and leaves it, with conflict markers, under
.ledger/merge/. Edit that file and run merge again to use it as the
resolution.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			res, err := repo.Merge(args[0])
			var conflict *dag.ConflictError
			if errors.As(err, &conflict) {
				fmt.Fprintf(out, "%s in %s\n", color.RedString("CONFLICT"), conflict.Path)
				fmt.Fprintf(out, "Resolve %s and run merge again.\n", conflict.ScratchPath)
				return err
			}
			if err != nil {
				return err
			}
			for _, p := range res.AutoMerged {
				fmt.Fprintf(out, "Auto-merging %s\n", p)
			}
			for _, p := range res.Resolved {
				fmt.Fprintf(out, "Using resolution for %s\n", p)
			}
			fmt.Fprintf(out, "Merged %s (base %s) as %s\n", args[0], shortID(res.Base), color.GreenString(shortID(res.CommitID)))
			return nil
		},
	}
}
