package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/parallelhq/parallel/internal/db"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDB(cmd, func(conn *sqlx.DB, driver string) error {
				if err := db.RunMigrations(conn.DB, driver); err != nil {
					return err
				}
				return printVersion(cmd, conn, driver)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDB(cmd, func(conn *sqlx.DB, driver string) error {
				if err := db.MigrateDown(conn.DB, driver); err != nil {
					return err
				}
				return printVersion(cmd, conn, driver)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDB(cmd, func(conn *sqlx.DB, driver string) error {
				return printVersion(cmd, conn, driver)
			})
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, conn *sqlx.DB, driver string) error {
	version, err := db.MigrationVersion(conn.DB, driver)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d\n", version)
	return nil
}
