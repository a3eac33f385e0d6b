package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/systemshift/ledger/internal/dag"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create an empty repository in the working directory",
		Long: `Create the .ledger metadata directory with an empty root commit,
a "main" branch pointing at it, and an empty staging area.

Fails if the directory or one of its parents is already a repository.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := dag.Init(a.dir, a.options())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty repository in %s\n", filepath.Join(repo.Root(), dag.MetaDirName))
			return nil
		},
	}
}
