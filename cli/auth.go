package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRegisterCmd(app *App) *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
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

			u, err := app.lm.Register(cmd.Context(), name, email, password, confirm)
			if err != nil {
				return err
			}
			if err := app.saveSession(app.lm.OpenSession(u)); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Registered %s <%s> as %s. You are now logged in.\n", u.Name, u.Email, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func newLoginCmd(app *App) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if email, err = app.valueOrPrompt(email, "Email", ""); err != nil {
				return err
			}
			password, err := app.ReadPassword("Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			sess, err := app.lm.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := app.saveSession(sess); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Welcome, %s (%s).\n", sess.User.Name, sess.User.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.clearSession(); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			if app.jsonOutput {
				return printJSON(app.Out, sess.User)
			}
			printUser(app.Out, sess.User)
			return nil
		},
	}
}
