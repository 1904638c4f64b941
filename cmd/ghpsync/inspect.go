package main

import (
	"fmt"
	"log/slog"

	"github.com/h0rv/ghpsync/internal/config"
	"github.com/h0rv/ghpsync/internal/jira"
	"github.com/h0rv/ghpsync/internal/schema"
	"github.com/h0rv/ghpsync/internal/store"
	"github.com/h0rv/ghpsync/internal/tui"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var titleWidth int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the locally stored snapshot of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.cfg.RequireProject(); err != nil {
				return err
			}
			project, err := store.New(rt.cfg.DataDir).Load(rt.cfg.Sync.GitHubProjectID)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), tui.RenderStatus(project, titleWidth))
			return nil
		},
	}

	config.AddProjectFlag(cmd.Flags())
	cmd.Flags().IntVar(&titleWidth, "title-width", tui.DefaultTitleWidth, "truncate titles to this many columns")
	return cmd
}

func newOpenCmd() *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "open <item-id>",
		Short: "Open the Jira issue linked to a stored project item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.cfg.RequireProject(); err != nil {
				return err
			}
			project, err := store.New(rt.cfg.DataDir).Load(rt.cfg.Sync.GitHubProjectID)
			if err != nil {
				return err
			}

			item, ok := project.Item(args[0])
			if !ok {
				return fmt.Errorf("item %s is not stored for project %s", args[0], project.ID)
			}
			url := item.URL()
			if url == "" {
				return fmt.Errorf("item %s has no Jira issue yet", item.ID)
			}

			fmt.Fprintln(cmd.OutOrStdout(), url)
			if printOnly {
				return nil
			}
			return browser.OpenURL(url)
		},
	}

	config.AddProjectFlag(cmd.Flags())
	cmd.Flags().BoolVar(&printOnly, "print", false, "only print the issue URL")
	return cmd
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a project's fields without changing anything",
		Long: `check fetches the project's fields and items, validates the fields sync
depends on and reports how many items are already linked to the configured
Jira site. Nothing is written to GitHub, Jira or the data directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.cfg.RequireProject(); err != nil {
				return err
			}
			projectID := rt.cfg.Sync.GitHubProjectID

			client, err := rt.github()
			if err != nil {
				return err
			}

			fields, err := client.GetProjectFields(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			fieldSchema, err := schema.Validate(fields)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, tui.RenderSchema(fieldSchema))

			items, err := client.GetProjectItems(cmd.Context(), projectID, fieldSchema)
			if err != nil {
				return err
			}

			subdomain := rt.cfg.Sync.JiraSubdomain
			linked, untyped := 0, 0
			for _, item := range items {
				if _, ok := jira.IssueKeyFromURL(subdomain, item.URL()); ok {
					linked++
				}
				if item.IssueType() == "" {
					untyped++
				}
			}
			rt.logger.Debug("project checked",
				slog.String("project", projectID),
				slog.Int("items", len(items)))

			fmt.Fprintf(out, "%d items, %d without a Jira issue type", len(items), untyped)
			if subdomain != "" {
				fmt.Fprintf(out, ", %d linked to %s", linked, jira.SiteURL(subdomain))
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	config.AddProjectFlag(cmd.Flags())
	cmd.Flags().String(config.KeyJiraSubdomain, "", "Jira Cloud subdomain used to count linked items")
	return cmd
}
