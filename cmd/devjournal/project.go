package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/devjournal/internal/journal"
)

var (
	projName     string
	projLanguage string
)

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)

	projectAddCmd.Flags().StringVar(&projName, "name", "", "Project name (defaults to the directory name)")
	projectAddCmd.Flags().StringVar(&projLanguage, "language", "", "Primary language")
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage the project catalog",
}

var projectAddCmd = &cobra.Command{
	Use:   "add [path]",
	Short: "Register a project root with the journal",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return err
		}
		name := projName
		if name == "" {
			name = filepath.Base(abs)
		}

		p := journal.Project{
			ID:       uuid.New().String(),
			Name:     name,
			RootPath: abs,
			Language: projLanguage,
		}
		if err := app.store.UpsertProject(cmd.Context(), p); err != nil {
			return err
		}
		fmt.Printf("registered %s (%s) at %s\n", okStyle.Render(p.Name), p.ID, abs)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		projects, err := app.store.Projects(cmd.Context())
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println(dimStyle.Render("no projects registered"))
			return nil
		}

		rows := make([][]string, 0, len(projects))
		for _, p := range projects {
			rows = append(rows, []string{p.ID, p.Name, p.Language, p.RootPath})
		}
		table([]string{"ID", "NAME", "LANGUAGE", "ROOT"}, rows)
		return nil
	},
}

func joinTags(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}
	return strings.Join(tags, ",")
}
