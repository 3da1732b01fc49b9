// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authkeep/pkg/errutil"
)

// NewMigrateCmd creates the migrate subcommand. Without a subcommand it
// behaves like "migrate up".
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmdWithDeps(&MigrateDeps{})
}

func newMigrateCmdWithDeps(deps *MigrateDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back or inspect the users table schema migrations.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	}

	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL (default: $DATABASE_URL)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	})

	var confirmed bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops the users table)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateDown(cmd, deps, confirmed)
		},
	}
	down.Flags().BoolVar(&confirmed, "yes", false, "confirm dropping all data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateStatus(cmd, deps)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied and clear the dirty flag",
		Long: `Record VERSION as the current schema version without running any
migration. Use after fixing a migration that failed midway.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateForce(cmd, deps, args[0])
		},
	})

	return cmd
}

// openMigrator loads the database URL from configuration and creates a migrator.
func openMigrator(cmd *cobra.Command, deps *MigrateDeps) (Migrator, func(), error) {
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = defaultMigratorFactory
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}

	m, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return nil, nil, oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	closeFn := func() {
		if closeErr := m.Close(); closeErr != nil {
			errutil.LogError(slog.Default(), "error closing migrator", closeErr)
		}
	}
	return m, closeFn, nil
}

func runMigrateUp(cmd *cobra.Command, deps *MigrateDeps) error {
	m, closeFn, err := openMigrator(cmd, deps)
	if err != nil {
		return err
	}
	defer closeFn()

	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	v, _, err := m.Version()
	if err != nil {
		return err
	}
	cmd.Printf("Migrations completed successfully (version %d)\n", v)
	return nil
}

func runMigrateDown(cmd *cobra.Command, deps *MigrateDeps, confirmed bool) error {
	if !confirmed {
		return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops the users table; re-run with --yes")
	}

	m, closeFn, err := openMigrator(cmd, deps)
	if err != nil {
		return err
	}
	defer closeFn()

	cmd.Println("Rolling back migrations...")
	if err := m.Down(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
	}
	cmd.Println("All migrations rolled back")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, deps *MigrateDeps) error {
	m, closeFn, err := openMigrator(cmd, deps)
	if err != nil {
		return err
	}
	defer closeFn()

	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	pending, err := m.Pending()
	if err != nil {
		return err
	}

	state := "clean"
	if dirty {
		state = "dirty"
	}
	cmd.Printf("Current version: %d (%s)\n", v, state)
	if len(pending) == 0 {
		cmd.Println("Database is up to date")
		return nil
	}
	cmd.Printf("Pending migrations: %s\n", formatVersions(pending))
	return nil
}

func runMigrateForce(cmd *cobra.Command, deps *MigrateDeps, arg string) error {
	version, err := parseForceVersion(arg)
	if err != nil {
		return err
	}

	m, closeFn, err := openMigrator(cmd, deps)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := m.Force(version); err != nil {
		return err
	}
	cmd.Printf("Forced schema version to %d\n", version)
	return nil
}

// parseForceVersion parses the force argument. Trailing garbage after the
// leading integer is ignored; range checks are left to the migrator.
func parseForceVersion(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, oops.Code("INVALID_VERSION").Errorf("version is required")
	}
	var version int
	if _, err := fmt.Sscanf(s, "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("invalid version %q: must be an integer", s)
	}
	return version, nil
}

func formatVersions(versions []uint) string {
	parts := make([]string, len(versions))
	for i, v := range versions {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(parts, ", ")
}
