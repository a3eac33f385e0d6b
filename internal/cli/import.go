package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systemshift/ledger/internal/gitimport"
)

func newImportCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "import <git-dir>",
		Short: "Import the branches and history of a git repository",
		Long: `Convert every local branch of a git repository, ancestors first, and
point branches of the same name at the converted heads. A branch that
already has commits of its own is not moved unless --force is given. If the
checked-out branch moves, the working tree is rebuilt from its new head.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open()
			if err != nil {
				return err
			}
			before, err := repo.ResolveCurrentCommit()
			if err != nil {
				return err
			}
			stats, err := gitimport.Import(cmd.Context(), args[0], repo, gitimport.Options{
				Logger: a.logger,
				Force:  force,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d commits on %d branches\n", stats.Commits, stats.Branches)

			after, err := repo.ResolveCurrentCommit()
			if err != nil {
				return err
			}
			if after == before {
				return nil
			}
			if err := repo.RebuildWorkingTree(before); err != nil {
				return fmt.Errorf("refresh working tree: %w", err)
			}
			current, err := repo.CurrentBranch()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Working tree now at %s\n", current)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "move branches that already have commits")
	return cmd
}
