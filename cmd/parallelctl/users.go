package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parallelhq/parallel/internal/app"
	"github.com/parallelhq/parallel/internal/model"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users and manage roles",
	}
	cmd.AddCommand(newUsersListCommand(ctx))
	cmd.AddCommand(newUsersSetRoleCommand(ctx))
	cmd.AddCommand(newUsersDeleteCommand(ctx))
	return cmd
}

func newUsersListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				users, err := a.UserService.Users(limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, users)
				}

				rows := make([][]string, 0, len(users))
				for _, u := range users {
					rows = append(rows, []string{u.ID, u.Email, u.Name, u.Role, formatTime(u.CreatedAt)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Email", "Name", "Role", "Created"},
					rows,
					nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")
	return cmd
}

func newUsersSetRoleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <email> <role>",
		Short: "Set a user's role (user, reviewer, admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !model.ValidRole(args[1]) {
				return fmt.Errorf("unknown role %q", args[1])
			}

			return ctx.withApp(cmd, func(a *app.App) error {
				user, err := a.UserService.SetRole(args[0], args[1])
				if err != nil {
					return fmt.Errorf("set role for %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Email, user.Role)
				return nil
			})
		},
	}
}

func newUsersDeleteCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <email>",
		Short: "Delete a user and everything they own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete %s without --yes", args[0])
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				if err := a.UserService.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}
