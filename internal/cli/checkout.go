package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckoutCmd(a *app) *cobra.Command {
	var (
		create bool
		start  string
	)
	cmd := &cobra.Command{
		Use:   "checkout [-b] <branch|commit>",
		Short: "Switch branches or detach HEAD at a commit",
		Long: `Rebuild the working tree from a branch or commit. With -b the branch is
created first at --start (default: the current commit). A commit id that is
not a branch name detaches HEAD. The staging area must be empty.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open()
			if err != nil {
				return err
			}
			if err := repo.Checkout(args[0], create, start); err != nil {
				return err
			}
			head, err := repo.Head()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), describeHead(head.String()))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&create, "branch", "b", false, "create the branch before switching")
	cmd.Flags().StringVarP(&start, "start", "s", "", "start point for -b (branch or commit)")
	return cmd
}

func newSwitchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <branch>",
		Short: "Switch to an existing branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open()
			if err != nil {
				return err
			}
			if err := repo.Switch(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to branch %s\n", args[0])
			return nil
		},
	}
}

func describeHead(head string) string {
	return "HEAD is now " + head
}
