package library

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
)

const loanListQuery = `SELECT l.loan_id, l.book_id, l.user_id, l.loan_date, l.return_date, l.is_returned,
        b.title AS book_title, u.name AS user_name
    FROM loans l
    JOIN books b ON b.book_id = l.book_id
    JOIN users u ON u.user_id = l.user_id`

// ---------------------------------------------------------------------------
// Loan workflow
// ---------------------------------------------------------------------------

// BorrowBook records a new loan and marks the book on-loan in one transaction.
// Availability is re-read inside the transaction and the update is guarded on
// the book still being available, so two concurrent borrows of the same book
// cannot both commit.
func (d *Database) BorrowBook(ctx context.Context, bookID, userID int64) (int64, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, d.storageErr("begin borrow", err)
	}
	defer d.rollback(tx)

	var avail string
	err = tx.GetContext(ctx, &avail, tx.Rebind(`SELECT availability FROM books WHERE book_id=?`), bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrBookNotFound
	}
	if err != nil {
		return 0, d.storageErr("read availability", err)
	}
	if Availability(avail) != Available {
		return 0, ErrBookUnavailable
	}

	now := d.timestamp()
	loanID, err := d.insert(ctx, tx, "loan_id",
		`INSERT INTO loans(book_id, user_id, loan_date, return_date, is_returned) VALUES(?, ?, ?, ?, ?)`,
		bookID, userID, now, d.DueDate(now), false)
	if err != nil {
		return 0, d.storageErr("insert loan", err)
	}

	res, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE books SET availability=? WHERE book_id=? AND availability=?`),
		string(OnLoan), bookID, string(Available))
	if err != nil {
		return 0, d.storageErr("mark book on loan", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return 0, ErrBookUnavailable
	}

	if err := tx.Commit(); err != nil {
		return 0, d.storageErr("commit borrow", err)
	}
	d.logger.Info(logMsgBookLent, logAttrLoanID, loanID, logAttrBookID, bookID, logAttrUserID, userID)
	return loanID, nil
}

// ReturnLoan closes an open loan and makes its book available again.
func (d *Database) ReturnLoan(ctx context.Context, loanID int64) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return d.storageErr("begin return", err)
	}
	defer d.rollback(tx)

	var row struct {
		BookID   int64 `db:"book_id"`
		Returned bool  `db:"is_returned"`
	}
	err = tx.GetContext(ctx, &row, tx.Rebind(`SELECT book_id, is_returned FROM loans WHERE loan_id=?`), loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrLoanNotFound
	}
	if err != nil {
		return d.storageErr("read loan", err)
	}
	if row.Returned {
		return ErrLoanAlreadyReturned
	}

	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE loans SET return_date=?, is_returned=? WHERE loan_id=?`),
		d.timestamp(), true, loanID); err != nil {
		return d.storageErr("close loan", err)
	}
	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE books SET availability=? WHERE book_id=?`),
		string(Available), row.BookID); err != nil {
		return d.storageErr("mark book available", err)
	}

	if err := tx.Commit(); err != nil {
		return d.storageErr("commit return", err)
	}
	d.logger.Info(logMsgLoanReturned, logAttrLoanID, loanID, logAttrBookID, row.BookID)
	return nil
}

// DeleteLoan removes a loan record. If the loan was still open its book is
// restored to available in the same transaction.
func (d *Database) DeleteLoan(ctx context.Context, loanID int64) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return d.storageErr("begin delete loan", err)
	}
	defer d.rollback(tx)

	var row struct {
		BookID   int64 `db:"book_id"`
		Returned bool  `db:"is_returned"`
	}
	err = tx.GetContext(ctx, &row, tx.Rebind(`SELECT book_id, is_returned FROM loans WHERE loan_id=?`), loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrLoanNotFound
	}
	if err != nil {
		return d.storageErr("read loan", err)
	}

	if !row.Returned {
		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE books SET availability=? WHERE book_id=?`),
			string(Available), row.BookID); err != nil {
			return d.storageErr("mark book available", err)
		}
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM loans WHERE loan_id=?`), loanID); err != nil {
		return d.storageErr("delete loan", err)
	}

	if err := tx.Commit(); err != nil {
		return d.storageErr("commit delete loan", err)
	}
	d.logger.Info(logMsgLoanDeleted, logAttrLoanID, loanID, logAttrBookID, row.BookID)
	return nil
}

// ---------------------------------------------------------------------------
// Loan queries
// ---------------------------------------------------------------------------

// GetLoan fetches a single loan with its book title and user name.
func (d *Database) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	var l Loan
	err := d.db.GetContext(ctx, &l, d.rebind(loanListQuery+` WHERE l.loan_id=?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLoanNotFound
	}
	if err != nil {
		return nil, d.storageErr("get loan", err)
	}
	return &l, nil
}

// GetLoansByUser returns the user's loan history, newest first.
func (d *Database) GetLoansByUser(ctx context.Context, userID int64) ([]*Loan, error) {
	return d.selectLoans(ctx, "list user loans",
		loanListQuery+` WHERE l.user_id=? ORDER BY l.loan_date DESC, l.loan_id DESC`, userID)
}

// GetActiveLoans returns every open loan, oldest first.
func (d *Database) GetActiveLoans(ctx context.Context) ([]*Loan, error) {
	return d.selectLoans(ctx, "list active loans",
		loanListQuery+` WHERE l.is_returned=? ORDER BY l.loan_date, l.loan_id`, false)
}

// GetAllLoans returns the full loan history, newest first.
func (d *Database) GetAllLoans(ctx context.Context) ([]*Loan, error) {
	return d.selectLoans(ctx, "list loans",
		loanListQuery+` ORDER BY l.loan_date DESC, l.loan_id DESC`)
}

// GetOverdueLoans returns open loans that started before the cutoff, oldest first.
func (d *Database) GetOverdueLoans(ctx context.Context, before time.Time) ([]*Loan, error) {
	query, args, err := d.builder.From(goqu.T("loans").As("l")).
		Select(
			goqu.I("l.loan_id"), goqu.I("l.book_id"), goqu.I("l.user_id"),
			goqu.I("l.loan_date"), goqu.I("l.return_date"), goqu.I("l.is_returned"),
			goqu.I("b.title").As("book_title"), goqu.I("u.name").As("user_name"),
		).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.book_id").Eq(goqu.I("l.book_id")))).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.user_id").Eq(goqu.I("l.user_id")))).
		Where(
			goqu.I("l.is_returned").IsFalse(),
			goqu.I("l.loan_date").Lt(before.UTC()),
		).
		Order(goqu.I("l.loan_date").Asc(), goqu.I("l.loan_id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, d.storageErr("build overdue query", err)
	}
	loans := []*Loan{}
	if err := d.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, d.storageErr("list overdue loans", err)
	}
	return loans, nil
}

// IsBookLoaned reports whether an open loan references the book.
func (d *Database) IsBookLoaned(ctx context.Context, bookID int64) (bool, error) {
	var n int
	err := d.db.GetContext(ctx, &n,
		d.rebind(`SELECT COUNT(*) FROM loans WHERE book_id=? AND is_returned=?`), bookID, false)
	if err != nil {
		return false, d.storageErr("check book loaned", err)
	}
	return n > 0, nil
}

// CountActiveLoansByUser returns how many open loans the user holds.
func (d *Database) CountActiveLoansByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	err := d.db.GetContext(ctx, &n,
		d.rebind(`SELECT COUNT(*) FROM loans WHERE user_id=? AND is_returned=?`), userID, false)
	if err != nil {
		return 0, d.storageErr("count active loans", err)
	}
	return n, nil
}

// CountLoansByUser returns the size of the user's loan history.
func (d *Database) CountLoansByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := d.db.GetContext(ctx, &n, d.rebind(`SELECT COUNT(*) FROM loans WHERE user_id=?`), userID); err != nil {
		return 0, d.storageErr("count loans", err)
	}
	return n, nil
}

func (d *Database) selectLoans(ctx context.Context, op, query string, args ...any) ([]*Loan, error) {
	loans := []*Loan{}
	if err := d.db.SelectContext(ctx, &loans, d.rebind(query), args...); err != nil {
		return nil, d.storageErr(op, err)
	}
	return loans, nil
}
