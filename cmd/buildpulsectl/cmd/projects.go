package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// projectsCmd represents the projects command group
var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Project status commands",
	Long: `Commands for inspecting monitored projects.

Projects are created automatically from build events; there is nothing
to create or delete here.

Example:
  buildpulsectl projects list`,
}

// projectsListCmd lists all projects with their latest build status
var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects and their latest build status",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		projects, err := store.Projects().List(ctx)
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}

		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}

		// Print header
		fmt.Printf("\n%-24s  %-12s  %-20s  %s\n",
			"NAME", "LAST STATUS", "LAST BUILD", "LAST BUILD AT")
		fmt.Println(strings.Repeat("-", 84))

		for _, p := range projects {
			lastAt := "-"
			if !p.LastBuildAt.IsZero() {
				lastAt = p.LastBuildAt.Format("2006-01-02 15:04")
			}
			fmt.Printf("%-24s  %-12s  %-20s  %s\n",
				truncate(p.Name, 24),
				p.LastStatus,
				truncate(p.LastBuildID, 20),
				lastAt,
			)
		}
		fmt.Printf("\nTotal: %d project(s)\n", len(projects))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.AddCommand(projectsListCmd)
}
