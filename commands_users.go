package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"library-circulation/library"
)

func newUserCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage library users",
	}
	cmd.AddCommand(
		newUserAddCmd(opts),
		newUserListCmd(opts),
		newUserResetPasswordCmd(opts),
	)
	return cmd
}

// promptNewPassword reads a password twice and rejects blanks and mismatches.
func promptNewPassword(name string) (string, error) {
	password, err := readPassword(fmt.Sprintf("Enter password for %s: ", name))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if strings.TrimSpace(password) == "" {
		return "", library.Validationf("password cannot be empty")
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if confirm != password {
		return "", library.Validationf("passwords do not match")
	}
	return password, nil
}

func newUserAddCmd(opts *rootOptions) *cobra.Command {
	var (
		name, email, userType string
		noPassword            bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user (librarian; the first user needs no operator and must be a librarian)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" {
				return library.Validationf("--name and --email are required")
			}
			ut := library.UserType(strings.ToLower(userType))
			if !ut.Valid() {
				return library.Validationf("--type must be librarian or member, got %q", userType)
			}

			return opts.run(func(a *app) error {
				ctx := cmd.Context()
				if err := authorizeUserAdd(ctx, a, opts.operator, ut); err != nil {
					return err
				}

				var password string
				if !noPassword {
					p, err := promptNewPassword(name)
					if err != nil {
						return err
					}
					password = p
				}

				id, err := a.manager.AddUser(ctx, name, email, ut, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s '%s' with ID %d\n", ut, name, id)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "display name")
	f.StringVar(&email, "email", "", "email address (unique)")
	f.StringVar(&userType, "type", string(library.Member), "librarian or member")
	f.BoolVar(&noPassword, "no-password", false, "create the account without a local password")
	return cmd
}

// authorizeUserAdd lets anyone create the first account, which must be a librarian,
// and requires a librarian operator after that.
func authorizeUserAdd(ctx context.Context, a *app, operator int64, ut library.UserType) error {
	users, err := a.manager.GetAllUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		if ut != library.Librarian {
			return library.Validationf("the first user must be a librarian")
		}
		return nil
	}
	s, err := a.login(ctx, operator)
	if err != nil {
		return err
	}
	if !s.User.IsLibrarian() {
		return library.Forbiddenf("librarian access required")
	}
	return nil
}

func newUserListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users (librarian)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runAs(cmd.Context(), func(a *app, s *library.Session) error {
				if !s.User.IsLibrarian() {
					return library.Forbiddenf("librarian access required")
				}
				users, err := a.manager.GetAllUsers(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-5s %-25s %-30s %-10s %s\n", "ID", "Name", "Email", "Type", "Password Set")
				fmt.Fprintln(out, strings.Repeat("-", 85))
				for _, u := range users {
					passwordStatus := "No"
					if u.PasswordHash != "" {
						passwordStatus = "Yes"
					}
					fmt.Fprintf(out, "%-5d %-25s %-30s %-10s %s\n",
						u.ID, truncateString(u.Name, 25), truncateString(u.Email, 30), u.Type, passwordStatus)
				}
				return nil
			})
		},
	}
}

func newUserResetPasswordCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <user-id>",
		Short: "Set a new password for a user (librarian, or the user themself)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg("user ID", args[0])
			if err != nil {
				return err
			}
			return opts.runAs(cmd.Context(), func(a *app, s *library.Session) error {
				if !s.User.IsLibrarian() && s.User.ID != id {
					return library.Forbiddenf("members may only reset their own password")
				}
				user, err := a.manager.GetUser(cmd.Context(), id)
				if err != nil {
					return err
				}
				password, err := promptNewPassword(user.Name)
				if err != nil {
					return err
				}
				if err := a.manager.ResetPassword(cmd.Context(), id, password); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Password successfully reset for %s (ID: %d)\n", user.Name, id)
				return nil
			})
		},
	}
}
