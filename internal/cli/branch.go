package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newBranchCmd(a *app) *cobra.Command {
	var (
		create string
		del    string
		list   bool
	)
	cmd := &cobra.Command{
		Use:   "branch [-c <name> [start]] [-d <name>] [-l]",
		Short: "Create, delete or list branches",
		Long: `Create a branch at the current commit (or at start), delete a branch
other than the checked-out one, or list branches. Listing is the default.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if create != "" && del != "" {
				return errors.New("--create and --delete are mutually exclusive")
			}
			if len(args) > 0 && create == "" {
				return errors.New("a start point is only accepted with --create")
			}
			repo, err := a.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch {
			case create != "":
				start := ""
				if len(args) > 0 {
					start = args[0]
				}
				id, err := repo.CreateBranch(create, start)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Created branch %s at %s\n", create, shortID(id))
			case del != "":
				if err := repo.DeleteBranch(del); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted branch %s\n", del)
			}
			if !list && (create != "" || del != "") {
				return nil
			}

			branches, err := repo.ListBranches()
			if err != nil {
				return err
			}
			for _, b := range branches {
				if b.Current {
					fmt.Fprintf(out, "* %s %s\n", color.GreenString(b.Name), shortID(b.Commit))
				} else {
					fmt.Fprintf(out, "  %s %s\n", b.Name, shortID(b.Commit))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&create, "create", "c", "", "create a branch")
	cmd.Flags().StringVarP(&del, "delete", "d", "", "delete a branch")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list branches")
	return cmd
}
