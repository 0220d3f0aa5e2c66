package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parallelhq/parallel/internal/app"
)

func newSubmissionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "Manage photo submissions",
	}
	cmd.AddCommand(newSubmissionsListCommand(ctx))
	cmd.AddCommand(newSubmissionsConvertCommand(ctx))
	return cmd
}

func newSubmissionsListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List photo submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				subs, err := a.SubmissionService.Submissions(status, limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, subs)
				}
				if len(subs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No submissions")
					return nil
				}

				rows := make([][]string, 0, len(subs))
				for _, s := range subs {
					rows = append(rows, []string{
						s.ID,
						s.UserID,
						s.Status,
						valueOr(s.AnalysisID, "-"),
						formatTime(s.CreatedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "User", "Status", "Analysis", "Created"},
					rows,
					nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "pending", "Filter by status (pending, converted, or empty for all)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")
	return cmd
}

func newSubmissionsConvertCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <submission-id>",
		Short: "Turn a pending submission into an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				analysis, err := a.SubmissionService.Convert(args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, analysis)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created analysis %s for user %s\n", analysis.ID, analysis.UserID)
				return nil
			})
		},
	}
}
