package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/h0rv/ghpsync/internal/auth"
	"github.com/h0rv/ghpsync/internal/config"
	"github.com/h0rv/ghpsync/internal/gh"
	"github.com/h0rv/ghpsync/internal/logging"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ghpsync",
		Short: "Sync GitHub Projects v2 items to Jira issues",
		Long: `ghpsync creates Jira issues for the items of a GitHub project (v2) and
mirrors their status moves as Jira workflow transitions.

Authentication:
  GitHub: --gh-token, GITHUB_TOKEN, or 'gh auth login'
  Jira:   --jira-token or JIRA_TOKEN (add --jira-email for email:token auth)

Every flag can also be set as GHPSYNC_<FLAG> (dashes become underscores) or
in the YAML file given with --config.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	config.AddGlobalFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newSyncCmd(),
		newProjectsCmd(),
		newStatusCmd(),
		newOpenCmd(),
		newCheckCmd(),
	)
	return rootCmd
}

// session is what every command needs after flags are parsed.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	close  func() error
}

func setup(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, closeLog := logging.New(logging.Options{
		Verbose: cfg.Verbose,
		File:    cfg.LogFile,
		Console: cmd.ErrOrStderr(),
	})
	logger.Debug("configuration loaded",
		slog.String("command", cmd.Name()),
		slog.String("config", cfg.ConfigFile),
		slog.String("data_dir", cfg.DataDir))

	return &session{cfg: cfg, logger: logger, close: closeLog}, nil
}

func (s *session) github() (*gh.Client, error) {
	token, err := auth.GitHubToken(s.cfg.GitHubToken)
	if err != nil {
		return nil, err
	}
	return gh.New(token), nil
}
