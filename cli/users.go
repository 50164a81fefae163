package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"library-desk/library"
)

func newUsersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage library users (admin)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.open(); err != nil {
				return err
			}
			_, err := app.adminSession(cmd.Context())
			return err
		},
	}
	cmd.AddCommand(
		newUsersListCmd(app),
		newUsersAddCmd(app),
		newUsersUpdateCmd(app),
		newUsersDeleteCmd(app),
		newUsersPasswdCmd(app),
	)
	return cmd
}

func newUsersListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := app.lm.GetAllUsers(cmd.Context())
			if err != nil {
				return err
			}
			if app.jsonOutput {
				return printJSON(app.Out, users)
			}
			if len(users) == 0 {
				fmt.Fprintln(app.Out, "No users registered.")
				return nil
			}
			printUsers(app.Out, users)
			return nil
		},
	}
}

func newUsersAddCmd(app *App) *cobra.Command {
	var name, email, role string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if name, err = app.valueOrPrompt(name, "Name", ""); err != nil {
				return err
			}
			if email, err = app.valueOrPrompt(email, "Email", ""); err != nil {
				return err
			}
			password, confirm, err := app.newPassword("Password")
			if err != nil {
				return err
			}
			if password != confirm {
				return library.ErrPasswordMismatch
			}
			id, err := app.lm.CreateUser(cmd.Context(), name, email, password, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Added user '%s' with ID %d\n", name, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", "member", "member or admin")
	return cmd
}

func newUsersUpdateCmd(app *App) *cobra.Command {
	var name, email, role string
	cmd := &cobra.Command{
		Use:   "update USER_ID",
		Short: "Edit a user's name, email or role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			u, err := app.lm.GetUser(cmd.Context(), id)
			if err != nil {
				return err
			}
			if name, err = app.valueOrPrompt(name, "Name", u.Name); err != nil {
				return err
			}
			if email, err = app.valueOrPrompt(email, "Email", u.Email); err != nil {
				return err
			}
			if role, err = app.valueOrPrompt(role, "Role", string(u.Role)); err != nil {
				return err
			}
			if err := app.lm.UpdateUser(cmd.Context(), id, name, email, role); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Updated user ID %d.\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&email, "email", "", "new email")
	cmd.Flags().StringVar(&role, "role", "", "member or admin")
	return cmd
}

func newUsersDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete USER_ID",
		Short: "Delete a user without open loans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			if err := app.lm.DeleteUser(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Deleted user ID %d.\n", id)
			return nil
		},
	}
}

func newUsersPasswdCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd USER_ID",
		Short: "Reset a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			u, err := app.lm.GetUser(cmd.Context(), id)
			if err != nil {
				return err
			}
			password, err := app.ReadPassword(fmt.Sprintf("New password for %s: ", u.Name))
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			if err := app.lm.ResetPassword(cmd.Context(), id, password); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Password successfully reset for %s (ID: %d)\n", u.Name, id)
			return nil
		},
	}
}

func newProfileCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "View and edit your own account",
	}
	cmd.AddCommand(newProfileShowCmd(app), newProfileUpdateCmd(app), newProfilePasswdCmd(app))
	return cmd
}

func newProfileShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your account and loan counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			active, err := app.lm.CountActiveLoansByUser(cmd.Context(), sess.User.ID)
			if err != nil {
				return err
			}
			total, err := app.lm.CountLoansByUser(cmd.Context(), sess.User.ID)
			if err != nil {
				return err
			}
			if app.jsonOutput {
				return printJSON(app.Out, map[string]any{
					"user":         sess.User,
					"active_loans": active,
					"total_loans":  total,
					"loan_limit":   app.lm.MaxActiveLoans(),
				})
			}
			printUser(app.Out, sess.User)
			fmt.Fprintf(app.Out, "Loans: %d of %d active, %d total\n", active, app.lm.MaxActiveLoans(), total)
			return nil
		},
	}
}

func newProfileUpdateCmd(app *App) *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change your name or email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			if name, err = app.valueOrPrompt(name, "Name", sess.User.Name); err != nil {
				return err
			}
			if email, err = app.valueOrPrompt(email, "Email", sess.User.Email); err != nil {
				return err
			}
			if err := app.lm.UpdateProfile(cmd.Context(), sess, name, email); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "Profile updated.")
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&email, "email", "", "new email")
	return cmd
}

func newProfilePasswdCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			current, err := app.ReadPassword("Current password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password, confirm, err := app.newPassword("New password")
			if err != nil {
				return err
			}
			if err := app.lm.ChangePassword(cmd.Context(), sess, current, password, confirm); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "Password changed.")
			return nil
		},
	}
}
