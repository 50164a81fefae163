package library

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

const bookColumns = `book_id, title, author, genre, availability`

// AddBook inserts a new, available book and returns its id.
func (d *Database) AddBook(ctx context.Context, title, author, genre string) (int64, error) {
	id, err := d.insert(ctx, d.db, "book_id",
		`INSERT INTO books(title, author, genre, availability) VALUES(?, ?, ?, ?)`,
		title, author, genre, string(Available))
	if err != nil {
		return 0, d.storageErr("add book", err)
	}
	return id, nil
}

// UpdateBook rewrites the descriptive fields of a book. Availability is owned
// by the loan workflow and left untouched.
func (d *Database) UpdateBook(ctx context.Context, b *Book) error {
	_, err := d.db.ExecContext(ctx,
		d.rebind(`UPDATE books SET title=?, author=?, genre=? WHERE book_id=?`),
		b.Title, b.Author, b.Genre, b.ID)
	if err != nil {
		return d.storageErr("update book", err)
	}
	return nil
}

// DeleteBook removes a book. Loans referencing it cascade.
func (d *Database) DeleteBook(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, d.rebind(`DELETE FROM books WHERE book_id=?`), id)
	if err != nil {
		return d.storageErr("delete book", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrBookNotFound
	}
	return nil
}

// GetBook fetches a single book.
func (d *Database) GetBook(ctx context.Context, id int64) (*Book, error) {
	var b Book
	err := d.db.GetContext(ctx, &b, d.rebind(`SELECT `+bookColumns+` FROM books WHERE book_id=?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, d.storageErr("get book", err)
	}
	return &b, nil
}

// GetAllBooks returns the whole catalog ordered by title.
func (d *Database) GetAllBooks(ctx context.Context) ([]*Book, error) {
	books := []*Book{}
	if err := d.db.SelectContext(ctx, &books, `SELECT `+bookColumns+` FROM books ORDER BY title, book_id`); err != nil {
		return nil, d.storageErr("list books", err)
	}
	return books, nil
}

// GetAvailableBooks returns only books that can currently be borrowed.
func (d *Database) GetAvailableBooks(ctx context.Context) ([]*Book, error) {
	books := []*Book{}
	err := d.db.SelectContext(ctx, &books,
		d.rebind(`SELECT `+bookColumns+` FROM books WHERE availability=? ORDER BY title, book_id`), string(Available))
	if err != nil {
		return nil, d.storageErr("list available books", err)
	}
	return books, nil
}

// SearchBooks runs a case-insensitive substring match over the columns
// selected in q. The conditions are OR-combined in one query so a book matching
// several columns is returned once.
func (d *Database) SearchBooks(ctx context.Context, q BookQuery) ([]*Book, error) {
	ds := d.builder.From("books").
		Select("book_id", "title", "author", "genre", "availability").
		Order(goqu.C("title").Asc(), goqu.C("book_id").Asc()).
		Prepared(true)

	if q.Text != "" {
		pattern := "%" + q.Text + "%"
		columns := searchColumns(q)
		matches := make([]exp.Expression, 0, len(columns))
		for _, col := range columns {
			matches = append(matches, goqu.C(col).ILike(pattern))
		}
		ds = ds.Where(goqu.Or(matches...))
	}
	if q.OnlyAvailable {
		ds = ds.Where(goqu.C("availability").Eq(string(Available)))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, d.storageErr("build book search", err)
	}
	books := []*Book{}
	if err := d.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, d.storageErr("search books", err)
	}
	return books, nil
}

func searchColumns(q BookQuery) []string {
	var cols []string
	if q.Title {
		cols = append(cols, "title")
	}
	if q.Author {
		cols = append(cols, "author")
	}
	if q.Genre {
		cols = append(cols, "genre")
	}
	if len(cols) == 0 {
		cols = []string{"title", "author", "genre"}
	}
	return cols
}
