package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parallelhq/parallel/internal/app"
	"github.com/parallelhq/parallel/internal/model"
)

func newAnalysesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "analyses",
		Aliases: []string{"analysis"},
		Short:   "List and advance analyses",
	}
	cmd.AddCommand(newAnalysesListCommand(ctx))
	cmd.AddCommand(newAnalysesAdvanceCommand(ctx))
	return cmd
}

func newAnalysesListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List analyses, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				analyses, err := a.AnalysisService.Analyses(status, limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, analyses)
				}
				if len(analyses) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No analyses")
					return nil
				}

				rows := make([][]string, 0, len(analyses))
				for _, an := range analyses {
					rows = append(rows, []string{
						an.ID,
						an.UserID,
						an.Status,
						valueOr(an.MorphURL, "-"),
						formatTime(an.CreatedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "User", "Status", "Morph", "Created"},
					rows,
					nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (in_progress, ready, complete)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")
	return cmd
}

func newAnalysesAdvanceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "advance <analysis-id> <status>",
		Short: "Move an analysis forward (in_progress -> ready -> complete)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !model.ValidAnalysisStatus(args[1]) {
				return fmt.Errorf("unknown status %q", args[1])
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				analysis, err := a.AnalysisService.Advance(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, analysis)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Analysis %s is now %s\n", analysis.ID, analysis.Status)
				return nil
			})
		},
	}
}
