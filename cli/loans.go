package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"library-desk/library"
)

func newLoansCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "Borrow, return and review loans",
	}
	cmd.AddCommand(
		newLoansBorrowCmd(app),
		newLoansReturnCmd(app),
		newLoansMineCmd(app),
		newLoansListCmd(app),
		newLoansOverdueCmd(app),
		newLoansDeleteCmd(app),
	)
	return cmd
}

func (a *App) showLoans(loans []*library.Loan, empty string) error {
	if a.jsonOutput {
		return printJSON(a.Out, loans)
	}
	if len(loans) == 0 {
		fmt.Fprintln(a.Out, empty)
		return nil
	}
	printLoans(a.Out, loans)
	return nil
}

func newLoansBorrowCmd(app *App) *cobra.Command {
	var forUser int64
	cmd := &cobra.Command{
		Use:   "borrow BOOK_ID",
		Short: "Borrow a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			bookID, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			userID := sess.User.ID
			if forUser != 0 && forUser != userID {
				if err := sess.RequireAdmin(); err != nil {
					return err
				}
				userID = forUser
			}

			loanID, err := app.lm.BorrowBook(cmd.Context(), bookID, userID)
			if err != nil {
				return err
			}
			l, err := app.lm.GetLoan(cmd.Context(), loanID)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Book '%s' checked out to %s (loan %d), due %s\n",
				l.BookTitle, l.UserName, l.ID, formatDate(l.ReturnDate))
			return nil
		},
	}
	cmd.Flags().Int64Var(&forUser, "user", 0, "borrow on behalf of another user (admin)")
	return cmd
}

func newLoansReturnCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "return LOAN_ID",
		Short: "Return a borrowed book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			loanID, err := parseID(args[0], "loan")
			if err != nil {
				return err
			}
			if err := app.lm.ReturnOwnLoan(cmd.Context(), sess, loanID); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Loan %d returned.\n", loanID)
			return nil
		},
	}
}

func newLoansMineCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List your loans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			loans, err := app.lm.GetLoansByUser(cmd.Context(), sess.User.ID)
			if err != nil {
				return err
			}
			return app.showLoans(loans, "You have no loans.")
		},
	}
}

func newLoansListCmd(app *App) *cobra.Command {
	var active bool
	var userID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loans (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.adminSession(cmd.Context()); err != nil {
				return err
			}
			var (
				loans []*library.Loan
				err   error
			)
			switch {
			case userID != 0:
				loans, err = app.lm.GetLoansByUser(cmd.Context(), userID)
			case active:
				loans, err = app.lm.GetActiveLoans(cmd.Context())
			default:
				loans, err = app.lm.GetAllLoans(cmd.Context())
			}
			if err != nil {
				return err
			}
			return app.showLoans(loans, "No loans.")
		},
	}
	cmd.Flags().BoolVar(&active, "active", false, "only open loans")
	cmd.Flags().Int64Var(&userID, "user", 0, "only loans of this user")
	return cmd
}

func newLoansOverdueCmd(app *App) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List open loans older than --days (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.adminSession(cmd.Context()); err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = app.Config.Overdue.Days
			}
			loans, err := app.lm.GetOverdueLoans(cmd.Context(), days)
			if err != nil {
				return err
			}
			return app.showLoans(loans, fmt.Sprintf("No loans open for more than %d days.", days))
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "age in days after which an open loan is overdue (default from config)")
	return cmd
}

func newLoansDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete LOAN_ID",
		Short: "Delete a loan record (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.adminSession(cmd.Context()); err != nil {
				return err
			}
			loanID, err := parseID(args[0], "loan")
			if err != nil {
				return err
			}
			if err := app.lm.DeleteLoan(cmd.Context(), loanID); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Deleted loan %d.\n", loanID)
			return nil
		},
	}
}
