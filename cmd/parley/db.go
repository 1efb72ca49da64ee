package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/internal/challenge"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/db"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// connectFromConfig loads the config file and opens the database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Parley database",
		Long:  "Migrates all tables and seeds the built-in challenge templates.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s database\n", cfg.Database.Driver)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := challenge.SeedTemplates(gormDB); err != nil {
		return err
	}
	fmt.Fprintln(out, "Challenge templates seeded")

	fmt.Fprintln(out, "\nParley database initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop all tables and re-initialize the database",
		Long:  "Drops every Parley table, then re-migrates and re-seeds the challenge templates. All sessions and conversations are lost.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	if !skipConfirm && !confirmReset(cmd, cfg.Database.Driver) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	if err := gormDB.Migrator().DropTable(db.AllModels()...); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	fmt.Fprintf(out, "Dropped %d tables\n", len(db.AllModels()))

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if err := challenge.SeedTemplates(gormDB); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nParley database reset successfully.")
	return nil
}

func confirmReset(cmd *cobra.Command, driver string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintf(out, "WARNING: This will permanently delete all Parley data in the %s database.\n", driver)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
