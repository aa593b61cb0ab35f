package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/testyard/internal/alias"
	"github.com/zulandar/testyard/internal/config"
	"github.com/zulandar/testyard/internal/project"
	"gorm.io/gorm"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project management commands",
	}

	cmd.AddCommand(newProjectAddCmd())
	cmd.AddCommand(newProjectListCmd())
	return cmd
}

func newProjectAddCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a project",
		Long:  "Registers a project and prints the alias derived from its name.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectAdd(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to Testyard config file")
	return cmd
}

func runProjectAdd(cmd *cobra.Command, configPath, name string) error {
	_, gormDB, reg, err := connectWithRegistry(configPath)
	if err != nil {
		return err
	}

	p, err := project.Register(gormDB, reg, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered project %q with alias %s\n", p.Name, p.Alias)
	return nil
}

func newProjectListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to Testyard config file")
	return cmd
}

func runProjectList(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	projects, err := project.List(gormDB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(projects) == 0 {
		fmt.Fprintln(out, "No projects found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tALIAS\tCREATED")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Alias, p.CreatedAt.Format("2006-01-02"))
	}
	w.Flush()
	return nil
}

// connectWithRegistry connects and loads the alias registry from the
// projects table.
func connectWithRegistry(configPath string) (*config.Config, *gorm.DB, *alias.Registry, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	reg := alias.NewRegistry()
	if err := reg.Load(gormDB); err != nil {
		return nil, nil, nil, err
	}
	return cfg, gormDB, reg, nil
}
