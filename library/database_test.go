package library

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setAvailability forces a book's availability without going through a loan.
func setAvailability(t *testing.T, db *Database, bookID int64, avail Availability) {
	t.Helper()
	_, err := db.db.Exec(db.rebind(`UPDATE books SET availability=? WHERE book_id=?`), string(avail), bookID)
	require.NoError(t, err)
}

func tempDB(t *testing.T, opts ...Option) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := NewDatabase(filepath.Join(dir, "test.db"), opts...)
	require.NoError(t, err, "new db")
	t.Cleanup(func() { db.Close() })
	return db
}

// fakeClock is a settable time source for loans dated in the past.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func addTestUser(t *testing.T, db *Database, name, email string, role Role) int64 {
	t.Helper()
	hash, err := HashPassword("Secret123")
	require.NoError(t, err)
	id, err := db.AddUser(context.Background(), name, email, hash, role)
	require.NoError(t, err, "add user %s", email)
	return id
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lib.db")

	db, err := NewDatabase(path)
	require.NoError(t, err)
	_, err = db.AddBook(context.Background(), "Dune", "Frank Herbert", "Science Fiction")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDatabase(path)
	require.NoError(t, err, "reopen")
	defer db.Close()

	var version string
	require.NoError(t, db.db.Get(&version, `SELECT meta_value FROM meta WHERE meta_key='schema_version'`))
	assert.Equal(t, "1", version)

	books, err := db.GetAllBooks(context.Background())
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestUnreadableSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.db")

	db, err := NewDatabase(path)
	require.NoError(t, err)
	_, err = db.db.Exec(`UPDATE meta SET meta_value='broken' WHERE meta_key='schema_version'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = NewDatabase(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read schema version")
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	require.Error(t, err)
}

func TestOptionsValidate(t *testing.T) {
	_, err := NewDatabase(filepath.Join(t.TempDir(), "a.db"), WithLoanPeriod(0))
	require.Error(t, err)

	_, err = NewDatabase(filepath.Join(t.TempDir(), "b.db"), WithClock(nil))
	require.Error(t, err)
}

func TestBookCRUD(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	id, err := db.AddBook(ctx, "Emma", "Jane Austen", "Romance")
	require.NoError(t, err)

	b, err := db.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Emma", b.Title)
	assert.Equal(t, Available, b.Availability)
	assert.True(t, b.IsAvailable())

	b.Title = "Emma (Annotated)"
	b.Genre = "Classics"
	require.NoError(t, db.UpdateBook(ctx, b))

	b, err = db.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Emma (Annotated)", b.Title)
	assert.Equal(t, "Classics", b.Genre)

	setAvailability(t, db, id, OnLoan)
	available, err := db.GetAvailableBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, available)

	require.NoError(t, db.DeleteBook(ctx, id))
	_, err = db.GetBook(ctx, id)
	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.ErrorIs(t, db.DeleteBook(ctx, id), ErrBookNotFound)
}

func TestSearchBooks(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	mustAdd := func(title, author, genre string) int64 {
		id, err := db.AddBook(ctx, title, author, genre)
		require.NoError(t, err)
		return id
	}
	fantasy := mustAdd("The Hobbit", "J.R.R. Tolkien", "Fantasy")
	mustAdd("Fantasy Land", "Kurt Andersen", "Satire")
	mustAdd("Persuasion", "Jane Austen", "Romance")

	t.Run("all columns de-duplicated", func(t *testing.T) {
		books, err := db.SearchBooks(ctx, BookQuery{Text: "fantasy"})
		require.NoError(t, err)
		require.Len(t, books, 2)
		assert.Equal(t, "Fantasy Land", books[0].Title)
		assert.Equal(t, "The Hobbit", books[1].Title)
	})

	t.Run("single column", func(t *testing.T) {
		books, err := db.SearchBooks(ctx, BookQuery{Text: "fantasy", Genre: true})
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Equal(t, fantasy, books[0].ID)
	})

	t.Run("book matching two columns appears once", func(t *testing.T) {
		id := mustAdd("Austen Letters", "Jane Austen", "Classics")
		books, err := db.SearchBooks(ctx, BookQuery{Text: "austen", Title: true, Author: true})
		require.NoError(t, err)
		ids := make([]int64, 0, len(books))
		for _, b := range books {
			ids = append(ids, b.ID)
		}
		assert.Len(t, books, 2)
		assert.Contains(t, ids, id)
	})

	t.Run("only available", func(t *testing.T) {
		setAvailability(t, db, fantasy, OnLoan)
		books, err := db.SearchBooks(ctx, BookQuery{Text: "hobbit", OnlyAvailable: true})
		require.NoError(t, err)
		assert.Empty(t, books)
	})
}

func TestUserCRUD(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	id := addTestUser(t, db, "Ada", "ada@example.com", RoleAdmin)

	u, err := db.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.True(t, u.IsAdmin())

	exists, err := db.EmailExists(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = db.AddUser(ctx, "Other", "ada@example.com", "x:y", RoleMember)
	assert.ErrorIs(t, err, ErrEmailTaken)

	u.Name = "Ada Lovelace"
	u.Role = RoleMember
	require.NoError(t, db.UpdateUser(ctx, u))
	admins, err := db.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Zero(t, admins)

	require.NoError(t, db.UpdatePassword(ctx, id, "new:hash"))
	u, err = db.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", u.Name)
	assert.Equal(t, "new:hash", u.Password)

	require.NoError(t, db.DeleteUser(ctx, id))
	_, err = db.GetUser(ctx, id)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, db.DeleteUser(ctx, id), ErrUserNotFound)
}

func TestUpdateUserDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	addTestUser(t, db, "Ada", "ada@example.com", RoleAdmin)
	id := addTestUser(t, db, "Bob", "bob@example.com", RoleMember)

	u, err := db.GetUser(ctx, id)
	require.NoError(t, err)
	u.Email = "ada@example.com"
	assert.ErrorIs(t, db.UpdateUser(ctx, u), ErrEmailTaken)
}

func TestStorageErrorsAreWrapped(t *testing.T) {
	db := tempDB(t)
	require.NoError(t, db.Close())

	_, err := db.GetAllBooks(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorage))
}
