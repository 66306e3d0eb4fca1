package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diagnovera/diagnovera/internal/config"
	"github.com/diagnovera/diagnovera/internal/infrastructure/database/postgres"
)

func pgConfig(cfg config.DatabaseConfig) postgres.Config {
	return postgres.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		DBName:          cfg.DBName,
		SSLMode:         cfg.SSLMode,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}
}

func newMigrateCommand(rt *runtime) *cobra.Command {
	var migrationsPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&migrationsPath, "migrations", "", "migrations directory (default: database.migration_path)")

	resolvePath := func() string {
		if migrationsPath != "" {
			return migrationsPath
		}
		return rt.cfg.Database.MigrationPath
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := postgres.RunMigrations(pgConfig(rt.cfg.Database), resolvePath()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := postgres.RollbackMigration(pgConfig(rt.cfg.Database), resolvePath(), steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			version, dirty, err := postgres.MigrationStatus(pgConfig(rt.cfg.Database), resolvePath())
			if err != nil {
				return err
			}
			return rt.printResult(cmd, map[string]interface{}{
				"version": version,
				"dirty":   dirty,
			})
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}
