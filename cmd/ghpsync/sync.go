package main

import (
	"github.com/h0rv/ghpsync/internal/auth"
	"github.com/h0rv/ghpsync/internal/config"
	"github.com/h0rv/ghpsync/internal/jira"
	"github.com/h0rv/ghpsync/internal/store"
	"github.com/h0rv/ghpsync/internal/syncer"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Create Jira issues for project items and mirror status moves",
		Long: `sync validates the project's fields, then creates a Jira issue for every
item without one and writes the issue URL back to the item's "Jira URL"
field. Forward status moves (Todo -> In Progress -> Done) are applied as the
configured Jira transitions.

With --sleep-time the project is polled until interrupted; otherwise a
single pass runs.`,
		Args: cobra.NoArgs,
		RunE: runSync,
	}
	config.AddSyncFlags(cmd.Flags())
	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	opts := rt.cfg.Sync
	if err := opts.Validate(); err != nil {
		return err
	}

	github, err := rt.github()
	if err != nil {
		return err
	}
	jiraToken, err := auth.JiraToken(rt.cfg.JiraToken)
	if err != nil {
		return err
	}

	st := store.New(rt.cfg.DataDir)
	unlock, err := st.Lock(opts.GitHubProjectID)
	if err != nil {
		return err
	}
	defer unlock()

	jiraClient := jira.New(opts.JiraSubdomain, jiraToken,
		jira.WithEmail(rt.cfg.JiraEmail),
		jira.WithLogger(rt.logger))

	s := syncer.New(github, jiraClient, st, syncer.Options{
		ProjectID:         opts.GitHubProjectID,
		JiraProjectKey:    opts.JiraProjectKey,
		JiraSubdomain:     opts.JiraSubdomain,
		IssuePrefix:       opts.IssuePrefix,
		EstimateField:     opts.EstimateField,
		TransitionsToWIP:  opts.TransitionsToWIP,
		TransitionsToDone: opts.TransitionsToDone,
		AssigneeEmails:    opts.AssigneesMap,
		Interval:          opts.SleepTime,
	}, rt.logger)

	return s.Run(cmd.Context())
}
