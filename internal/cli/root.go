// Package cli implements the ledger command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/systemshift/ledger/internal/config"
	"github.com/systemshift/ledger/internal/dag"
)

// app holds state shared by every command of one invocation.
type app struct {
	cfgFile string
	dir     string
	logger  *slog.Logger
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "ledger",
		Short: "A small local version-control engine",
		Long: `ledger keeps the history of a directory tree:
  - content-addressed, compressed blobs
  - immutable commits with branches and a HEAD pointer
  - a staging area fed by add and rm
  - three-way line merges with conflict markers`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.config/ledger/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&a.dir, "dir", "C", ".", "run as if started in this directory")

	rootCmd.AddCommand(
		newInitCmd(a),
		newAddCmd(a),
		newRmCmd(a),
		newStatusCmd(a),
		newCommitCmd(a),
		newCheckoutCmd(a),
		newSwitchCmd(a),
		newMergeCmd(a),
		newLogCmd(a),
		newBranchCmd(a),
		newImportCmd(a),
		newMountCmd(a),
	)
	return rootCmd
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		stop()
		os.Exit(1)
	}
}

func (a *app) initConfig(cmd *cobra.Command) error {
	if a.cfgFile != "" {
		viper.SetConfigFile(a.cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "ledger"))
		viper.SetConfigType("toml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("LEDGER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	config.SetDefaults()

	readErr := viper.ReadInConfig()
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: config.GetLogLevel(),
	}))
	switch {
	case readErr == nil:
		a.logger.Debug("using config file", "path", viper.ConfigFileUsed())
	case a.cfgFile != "":
		return fmt.Errorf("read config %s: %w", a.cfgFile, readErr)
	}
	return nil
}

func (a *app) options() dag.Options {
	return dag.Options{
		Author:          config.GetUserName(),
		Logger:          a.logger,
		CommitCacheSize: config.GetCommitCacheSize(),
	}
}

// open finds the repository containing the working directory.
func (a *app) open() (*dag.Repository, error) {
	return dag.Find(a.dir, a.options())
}

func shortID(id string) string {
	if len(id) > 12 && id != dag.EmptyCommit {
		return id[:12]
	}
	return id
}
