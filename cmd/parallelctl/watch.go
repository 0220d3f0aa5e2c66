package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/parallelhq/parallel/internal/rpcclient"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var baseURL string
	var session string
	var interval time.Duration
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "watch <analysis-id>",
		Short: "Poll an analysis until its report is complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if session == "" {
				session = os.Getenv("PARALLEL_SESSION")
			}
			if session == "" {
				return errors.New("a session token is required (--session or PARALLEL_SESSION)")
			}

			client, err := rpcclient.New(baseURL, session, rpcclient.WithPollInterval(interval))
			if err != nil {
				return err
			}

			runCtx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(runCtx, timeout)
				defer cancel()
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Watching analysis %s every %s\n", args[0], interval)
			done, err := client.WaitForCompletion(runCtx, args[0], func(c *rpcclient.Completion) {
				fmt.Fprintf(cmd.OutOrStdout(), "Analysis %s is %s\n", c.AnalysisID, c.Status)
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, done)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", envOr("PARALLEL_URL", "http://localhost:8090"), "Server base URL")
	cmd.Flags().StringVar(&session, "session", "", "Session cookie value")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Poll interval")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (0 waits forever)")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
