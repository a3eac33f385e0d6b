package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCommitCmd(a *app) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "commit -m <message>",
		Short: "Record the staged changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open()
			if err != nil {
				return err
			}
			id, err := repo.Commit(message)
			if err != nil {
				return err
			}
			where := shortID(id)
			if name, err := repo.CurrentBranch(); err == nil && name != "" {
				where = name + " " + where
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", where, message)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}
