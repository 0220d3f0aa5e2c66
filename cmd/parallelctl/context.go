package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/parallelhq/parallel/internal/app"
	"github.com/parallelhq/parallel/internal/config"
	"github.com/parallelhq/parallel/internal/db"
	"github.com/parallelhq/parallel/internal/logger"
)

type commandContext struct {
	jsonOutput bool
	verbose    bool

	loadConfig func() *config.Config
	openApp    func(ctx context.Context, cfg *config.Config) (*app.App, error)
	openDB     func(cfg *config.Config) (*sqlx.DB, error)
}

func newCommandContext() *commandContext {
	return &commandContext{
		loadConfig: config.Load,
		openApp:    app.New,
		openDB: func(cfg *config.Config) (*sqlx.DB, error) {
			return db.Init(cfg.DBDriver, cfg.DBConnection)
		},
	}
}

func (c *commandContext) initLogger(cmd *cobra.Command) {
	logger.Init(logger.Options{
		Development: c.verbose,
		Output:      cmd.ErrOrStderr(),
	})
}

// withApp boots the full service graph for one command and closes it afterwards.
func (c *commandContext) withApp(cmd *cobra.Command, fn func(*app.App) error) error {
	cfg := c.loadConfig()
	a, err := c.openApp(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open app: %w", err)
	}
	defer a.Close()
	return fn(a)
}

func (c *commandContext) withDB(cmd *cobra.Command, fn func(conn *sqlx.DB, driver string) error) error {
	cfg := c.loadConfig()
	conn, err := c.openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close(conn)
	return fn(conn, cfg.DBDriver)
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
