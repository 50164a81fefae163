package library

import (
	"context"
	"fmt"
	"strings"
)

// DefaultMaxActiveLoans is how many books a user may hold at once.
const DefaultMaxActiveLoans = 5

// LibraryManager is a thin façade over the Database, keeping CLI code simple.
// It owns validation and the business rules; persistence stays in Database.
type LibraryManager struct {
	db             *Database
	logger         Logger
	maxActiveLoans int
	signer         *SessionSigner
}

// ManagerOption configures a LibraryManager.
type ManagerOption func(*LibraryManager)

// WithMaxActiveLoans overrides the per-user open loan limit.
func WithMaxActiveLoans(n int) ManagerOption {
	return func(lm *LibraryManager) {
		if n > 0 {
			lm.maxActiveLoans = n
		}
	}
}

// WithSessionSigner enables token based session resumption.
func WithSessionSigner(s *SessionSigner) ManagerOption {
	return func(lm *LibraryManager) { lm.signer = s }
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath.
func NewLibraryManager(dbPath string, options ...Option) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath, options...)
	if err != nil {
		return nil, err
	}
	return NewManager(db), nil
}

// NewManager wraps an already opened Database.
func NewManager(db *Database, options ...ManagerOption) *LibraryManager {
	lm := &LibraryManager{
		db:             db,
		logger:         db.logger,
		maxActiveLoans: DefaultMaxActiveLoans,
	}
	for _, option := range options {
		option(lm)
	}
	return lm
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// Database exposes the data-access layer for callers that need raw queries.
func (lm *LibraryManager) Database() *Database { return lm.db }

// MaxActiveLoans returns the configured per-user loan limit.
func (lm *LibraryManager) MaxActiveLoans() int { return lm.maxActiveLoans }

// ------------------ Book helpers ------------------

// AddBook validates and stores a new, available book.
func (lm *LibraryManager) AddBook(ctx context.Context, title, author, genre string) (int64, error) {
	if err := requireFields(title, author, genre); err != nil {
		return 0, err
	}
	return lm.db.AddBook(ctx, strings.TrimSpace(title), strings.TrimSpace(author), strings.TrimSpace(genre))
}

// UpdateBook changes a book's title, author and genre.
func (lm *LibraryManager) UpdateBook(ctx context.Context, id int64, title, author, genre string) error {
	if err := requireFields(title, author, genre); err != nil {
		return err
	}
	b, err := lm.db.GetBook(ctx, id)
	if err != nil {
		return err
	}
	b.Title = strings.TrimSpace(title)
	b.Author = strings.TrimSpace(author)
	b.Genre = strings.TrimSpace(genre)
	return lm.db.UpdateBook(ctx, b)
}

// DeleteBook removes a book that is not currently on loan.
func (lm *LibraryManager) DeleteBook(ctx context.Context, id int64) error {
	if _, err := lm.db.GetBook(ctx, id); err != nil {
		return err
	}
	loaned, err := lm.db.IsBookLoaned(ctx, id)
	if err != nil {
		return err
	}
	if loaned {
		return fmt.Errorf("delete book %d: %w", id, ErrBookOnLoan)
	}
	return lm.db.DeleteBook(ctx, id)
}

func (lm *LibraryManager) GetBook(ctx context.Context, id int64) (*Book, error) {
	return lm.db.GetBook(ctx, id)
}

func (lm *LibraryManager) GetAllBooks(ctx context.Context) ([]*Book, error) {
	return lm.db.GetAllBooks(ctx)
}

func (lm *LibraryManager) GetAvailableBooks(ctx context.Context) ([]*Book, error) {
	return lm.db.GetAvailableBooks(ctx)
}

// SearchBooks matches q.Text against the selected columns. Blank text lists
// the whole catalog, or only available books when q.OnlyAvailable is set.
func (lm *LibraryManager) SearchBooks(ctx context.Context, q BookQuery) ([]*Book, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		if q.OnlyAvailable {
			return lm.db.GetAvailableBooks(ctx)
		}
		return lm.db.GetAllBooks(ctx)
	}
	return lm.db.SearchBooks(ctx, q)
}

// SearchBooksByTitle returns books whose title contains text. Blank text matches nothing.
func (lm *LibraryManager) SearchBooksByTitle(ctx context.Context, text string) ([]*Book, error) {
	return lm.searchColumn(ctx, BookQuery{Text: text, Title: true})
}

// SearchBooksByAuthor returns books whose author contains text. Blank text matches nothing.
func (lm *LibraryManager) SearchBooksByAuthor(ctx context.Context, text string) ([]*Book, error) {
	return lm.searchColumn(ctx, BookQuery{Text: text, Author: true})
}

// SearchBooksByGenre returns books whose genre contains text. Blank text matches nothing.
func (lm *LibraryManager) SearchBooksByGenre(ctx context.Context, text string) ([]*Book, error) {
	return lm.searchColumn(ctx, BookQuery{Text: text, Genre: true})
}

func (lm *LibraryManager) searchColumn(ctx context.Context, q BookQuery) ([]*Book, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return []*Book{}, nil
	}
	return lm.db.SearchBooks(ctx, q)
}
