package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	ledgerfuse "github.com/systemshift/ledger/internal/fuse"
)

func newMountCmd(a *app) *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "mount <dir>",
		Short: "Mount a read-only view of the repository",
		Long: `Mount the repository with FUSE. The view contains HEAD, branches/<name>/
(the tree of each branch head), commits/<id>/ and log/<n> (the n-th
first-parent ancestor of HEAD as JSON). Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open()
			if err != nil {
				return err
			}
			mountpoint := args[0]
			if err := os.MkdirAll(mountpoint, 0755); err != nil {
				return fmt.Errorf("create mountpoint: %w", err)
			}

			a.logger.Info("mounting", "root", repo.Root(), "mountpoint", mountpoint)
			server, err := ledgerfuse.MountFS(mountpoint, repo, ledgerfuse.MountOptions{Debug: debug})
			if err != nil {
				return fmt.Errorf("mount failed: %w", err)
			}

			go func() {
				<-cmd.Context().Done()
				a.logger.Info("shutting down")
				if err := server.Unmount(); err != nil {
					a.logger.Error("unmount", "error", err)
				}
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Mounted at %s (pid %d)\n", mountpoint, os.Getpid())
			server.Wait()
			return nil
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "log FUSE traffic")
	return cmd
}
