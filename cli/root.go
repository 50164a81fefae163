package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the library-desk command tree around app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "library-desk",
		Short:         "Library management: catalog, members and loans",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}
	root.PersistentFlags().StringVar(&app.configFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().BoolVar(&app.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		newRegisterCmd(app),
		newLoginCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newBooksCmd(app),
		newUsersCmd(app),
		newProfileCmd(app),
		newLoansCmd(app),
		newOverdueCmd(app),
	)
	return root
}

// Execute runs the command line against app and always releases the database.
func Execute(ctx context.Context, app *App, args []string) error {
	root := NewRootCmd(app)
	root.SetArgs(args)
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)
	defer app.Close()
	return root.ExecuteContext(ctx)
}
