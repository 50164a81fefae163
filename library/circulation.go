package library

import (
	"context"
	"fmt"
	"time"
)

// ------------------ Loan workflow ------------------

// BorrowBook lends a book to a user. The book must exist and be available, the
// user must exist and hold fewer than MaxActiveLoans open loans.
//
// The loan-limit check runs before the borrow transaction, so two concurrent
// borrows by the same user may both pass it.
func (lm *LibraryManager) BorrowBook(ctx context.Context, bookID, userID int64) (int64, error) {
	b, err := lm.db.GetBook(ctx, bookID)
	if err != nil {
		return 0, err
	}
	if !b.IsAvailable() {
		return 0, fmt.Errorf("borrow %q: %w", b.Title, ErrBookUnavailable)
	}
	if _, err := lm.db.GetUser(ctx, userID); err != nil {
		return 0, err
	}
	active, err := lm.db.CountActiveLoansByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if active >= lm.maxActiveLoans {
		return 0, ErrLoanLimitReached
	}
	return lm.db.BorrowBook(ctx, bookID, userID)
}

// ReturnLoan closes an open loan and makes its book available again.
func (lm *LibraryManager) ReturnLoan(ctx context.Context, loanID int64) error {
	return lm.db.ReturnLoan(ctx, loanID)
}

// ReturnOwnLoan returns a loan on behalf of the session user. Members may only
// return their own loans; administrators may return any.
func (lm *LibraryManager) ReturnOwnLoan(ctx context.Context, sess *Session, loanID int64) error {
	if sess == nil || sess.User == nil {
		return ErrInvalidSession
	}
	l, err := lm.db.GetLoan(ctx, loanID)
	if err != nil {
		return err
	}
	if l.UserID != sess.User.ID && !sess.IsAdmin() {
		return ErrForbidden
	}
	return lm.db.ReturnLoan(ctx, loanID)
}

// DeleteLoan removes a loan record, restoring its book if the loan was open.
func (lm *LibraryManager) DeleteLoan(ctx context.Context, loanID int64) error {
	return lm.db.DeleteLoan(ctx, loanID)
}

// ------------------ Loan queries ------------------

func (lm *LibraryManager) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	return lm.db.GetLoan(ctx, id)
}

func (lm *LibraryManager) GetLoansByUser(ctx context.Context, userID int64) ([]*Loan, error) {
	return lm.db.GetLoansByUser(ctx, userID)
}

func (lm *LibraryManager) GetActiveLoans(ctx context.Context) ([]*Loan, error) {
	return lm.db.GetActiveLoans(ctx)
}

func (lm *LibraryManager) GetAllLoans(ctx context.Context) ([]*Loan, error) {
	return lm.db.GetAllLoans(ctx)
}

// GetOverdueLoans returns open loans that started more than days ago.
func (lm *LibraryManager) GetOverdueLoans(ctx context.Context, days int) ([]*Loan, error) {
	return lm.db.GetOverdueLoans(ctx, lm.overdueCutoff(days))
}

// IsUserOverdue reports whether the user holds an open loan whose age in
// whole days exceeds graceDays.
func (lm *LibraryManager) IsUserOverdue(ctx context.Context, userID int64, graceDays int) (bool, error) {
	loans, err := lm.db.GetLoansByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	now := lm.db.timestamp()
	for _, l := range loans {
		if !l.IsOpen() {
			continue
		}
		if int(now.Sub(l.LoanDate)/(24*time.Hour)) > graceDays {
			return true, nil
		}
	}
	return false, nil
}

func (lm *LibraryManager) IsBookLoaned(ctx context.Context, bookID int64) (bool, error) {
	return lm.db.IsBookLoaned(ctx, bookID)
}

func (lm *LibraryManager) CountActiveLoansByUser(ctx context.Context, userID int64) (int, error) {
	return lm.db.CountActiveLoansByUser(ctx, userID)
}

func (lm *LibraryManager) CountLoansByUser(ctx context.Context, userID int64) (int, error) {
	return lm.db.CountLoansByUser(ctx, userID)
}

// DueDate is the default return date for a loan starting at from.
func (lm *LibraryManager) DueDate(from time.Time) time.Time { return lm.db.DueDate(from) }

func (lm *LibraryManager) overdueCutoff(days int) time.Time {
	if days < 0 {
		days = 0
	}
	return lm.db.timestamp().Add(-time.Duration(days) * 24 * time.Hour)
}
