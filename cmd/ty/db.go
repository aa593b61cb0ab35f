package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/testyard/internal/auth"
	"github.com/zulandar/testyard/internal/config"
	"github.com/zulandar/testyard/internal/db"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Testyard database",
		Long:  "Migrates all tables, applies pending operations and seeds the configured global admin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to Testyard config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s database %s\n", cfg.Database.Driver, describeDatabase(cfg.Database))

	if err := migrate(cmd, cfg, gormDB); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nTestyard database initialized successfully.")
	return nil
}

// migrate brings the schema up to date and seeds the admin. It is safe to
// run on every start.
func migrate(cmd *cobra.Command, cfg *config.Config, gormDB *gorm.DB) error {
	out := cmd.OutOrStdout()

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if cfg.AdminPassword == "" {
		fmt.Fprintln(out, "No admin password configured, skipping admin seed")
		return nil
	}
	seeded, err := auth.SeedAdmin(gormDB, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if seeded {
		fmt.Fprintf(out, "Seeded global admin %q\n", cfg.AdminUsername)
	}
	return nil
}

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", describeDatabase(cfg.Database), err)
	}

	return cfg, gormDB, nil
}

func describeDatabase(c config.DatabaseConfig) string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf("%s:%d/%s", c.URL, c.Port, c.Name)
}
