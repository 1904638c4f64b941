package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/h0rv/ghpsync/internal/config"
	"github.com/h0rv/ghpsync/internal/domain"
	"github.com/h0rv/ghpsync/internal/tui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Inspect GitHub projects",
	}
	cmd.AddCommand(newProjectsListCmd())
	return cmd
}

func newProjectsListCmd() *cobra.Command {
	var (
		org    string
		user   string
		output string
		pick   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the projects of an organization or user",
		Long: `list prints the projects (v2) of an organization or a user, including the
node id to pass as --gh-project-id. With --pick an interactive picker opens
and only the chosen project id is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			client, err := rt.github()
			if err != nil {
				return err
			}

			load := func(ctx context.Context) ([]domain.ProjectSummary, error) {
				if org != "" {
					rt.logger.Debug("listing organization projects", slog.String("org", org))
					return client.ListOrganizationProjects(ctx, org)
				}
				rt.logger.Debug("listing user projects", slog.String("user", user))
				return client.ListUserProjects(ctx, user)
			}

			if pick {
				project, err := tui.PickProject(cmd.Context(), load)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), project.ID)
				return nil
			}

			projects, err := load(cmd.Context())
			if err != nil {
				return err
			}
			return writeProjects(cmd.OutOrStdout(), projects, output)
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "organization login")
	cmd.Flags().StringVar(&user, "user", "", "user login")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	cmd.Flags().BoolVar(&pick, "pick", false, "choose a project interactively and print its id")
	cmd.MarkFlagsMutuallyExclusive("org", "user")
	cmd.MarkFlagsOneRequired("org", "user")
	cmd.MarkFlagsMutuallyExclusive("pick", "output")
	return cmd
}

func writeProjects(w io.Writer, projects []domain.ProjectSummary, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(projects)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(projects); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: output format %q, want json or yaml", config.ErrInvalidOption, format)
	}
}
