package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// DefaultLoanPeriod is how long a book may be kept before it is due.
const DefaultLoanPeriod = 14 * 24 * time.Hour

const (
	logMsgStorageFailed  = "database operation failed"
	logMsgRollbackFailed = "transaction rollback failed"
	logMsgMigrated       = "schema migrated"
	logMsgBookLent       = "book lent"
	logMsgLoanReturned   = "loan returned"
	logMsgLoanDeleted    = "loan deleted"
	logAttrOperation     = "operation"
	logAttrError         = "error"
	logAttrVersion       = "schema_version"
	logAttrBookID        = "book_id"
	logAttrUserID        = "user_id"
	logAttrLoanID        = "loan_id"
)

// Logger receives operational messages and storage failures. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

func discardLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Database provides the data-access helpers for users, books and loans on top
// of a single sqlx handle.
type Database struct {
	db         *sqlx.DB
	driver     string
	builder    goqu.DialectWrapper
	logger     Logger
	now        func() time.Time
	loanPeriod time.Duration
}

// Option configures a Database.
type Option func(*Database) error

// WithLogger sets the logger used for storage failures and workflow events.
func WithLogger(logger Logger) Option {
	return func(d *Database) error {
		if logger != nil {
			d.logger = logger
		}
		return nil
	}
}

// WithClock replaces time.Now, mainly for tests that need loans in the past.
func WithClock(now func() time.Time) Option {
	return func(d *Database) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		d.now = now
		return nil
	}
}

// WithLoanPeriod sets the default term written as the return date of new loans.
func WithLoanPeriod(period time.Duration) Option {
	return func(d *Database) error {
		if period <= 0 {
			return fmt.Errorf("loan period must be positive, got %s", period)
		}
		d.loanPeriod = period
		return nil
	}
}

// NewDatabase opens (or creates) the SQLite database at dbPath and applies
// schema migrations.
func NewDatabase(dbPath string, options ...Option) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Enable busy_timeout and foreign keys.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	return Open(DriverSQLite, dsn, options...)
}

// Open connects with the given driver and DSN, verifies the connection and
// applies schema migrations.
func Open(driver, dsn string, options ...Option) (*Database, error) {
	switch driver {
	case DriverSQLite, DriverMySQL, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	d := &Database{
		db:         db,
		driver:     driver,
		builder:    goqu.Dialect(driver),
		logger:     discardLogger(),
		now:        time.Now,
		loanPeriod: DefaultLoanPeriod,
	}
	for _, option := range options {
		if err := option(d); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := d.applyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the DB.
func (d *Database) Close() error { return d.db.Close() }

// Driver returns the name of the underlying database driver.
func (d *Database) Driver() string { return d.driver }

// DueDate is the default return date for a loan starting at from.
func (d *Database) DueDate(from time.Time) time.Time { return from.Add(d.loanPeriod) }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func schemaStatements(driver string) []string {
	switch driver {
	case DriverMySQL:
		return []string{
			`CREATE TABLE IF NOT EXISTS users (
                user_id INT AUTO_INCREMENT PRIMARY KEY,
                name VARCHAR(255) NOT NULL,
                email VARCHAR(255) NOT NULL UNIQUE,
                password VARCHAR(255) NOT NULL,
                role VARCHAR(20) NOT NULL DEFAULT 'member'
            )`,
			`CREATE TABLE IF NOT EXISTS books (
                book_id INT AUTO_INCREMENT PRIMARY KEY,
                title VARCHAR(255) NOT NULL,
                author VARCHAR(255) NOT NULL,
                genre VARCHAR(100) NOT NULL,
                availability VARCHAR(20) NOT NULL DEFAULT 'available'
            )`,
			`CREATE TABLE IF NOT EXISTS loans (
                loan_id INT AUTO_INCREMENT PRIMARY KEY,
                book_id INT NOT NULL,
                user_id INT NOT NULL,
                loan_date DATETIME NOT NULL,
                return_date DATETIME NULL,
                is_returned BOOLEAN NOT NULL DEFAULT FALSE,
                INDEX idx_loans_book_open (book_id, is_returned),
                INDEX idx_loans_user (user_id),
                FOREIGN KEY (book_id) REFERENCES books(book_id) ON DELETE CASCADE,
                FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
            )`,
		}
	case DriverPostgres:
		return []string{
			`CREATE TABLE IF NOT EXISTS users (
                user_id SERIAL PRIMARY KEY,
                name TEXT NOT NULL,
                email TEXT NOT NULL UNIQUE,
                password TEXT NOT NULL,
                role TEXT NOT NULL DEFAULT 'member'
            )`,
			`CREATE TABLE IF NOT EXISTS books (
                book_id SERIAL PRIMARY KEY,
                title TEXT NOT NULL,
                author TEXT NOT NULL,
                genre TEXT NOT NULL,
                availability TEXT NOT NULL DEFAULT 'available'
            )`,
			`CREATE TABLE IF NOT EXISTS loans (
                loan_id SERIAL PRIMARY KEY,
                book_id INTEGER NOT NULL REFERENCES books(book_id) ON DELETE CASCADE,
                user_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
                loan_date TIMESTAMPTZ NOT NULL,
                return_date TIMESTAMPTZ,
                is_returned BOOLEAN NOT NULL DEFAULT FALSE
            )`,
			`CREATE INDEX IF NOT EXISTS idx_loans_book_open ON loans(book_id, is_returned)`,
			`CREATE INDEX IF NOT EXISTS idx_loans_user ON loans(user_id)`,
		}
	default:
		return []string{
			`CREATE TABLE IF NOT EXISTS users (
                user_id INTEGER PRIMARY KEY AUTOINCREMENT,
                name TEXT NOT NULL,
                email TEXT NOT NULL UNIQUE,
                password TEXT NOT NULL,
                role TEXT NOT NULL DEFAULT 'member'
            );`,
			`CREATE TABLE IF NOT EXISTS books (
                book_id INTEGER PRIMARY KEY AUTOINCREMENT,
                title TEXT NOT NULL,
                author TEXT NOT NULL,
                genre TEXT NOT NULL,
                availability TEXT NOT NULL DEFAULT 'available'
            );`,
			`CREATE TABLE IF NOT EXISTS loans (
                loan_id INTEGER PRIMARY KEY AUTOINCREMENT,
                book_id INTEGER NOT NULL REFERENCES books(book_id) ON DELETE CASCADE,
                user_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
                loan_date DATETIME NOT NULL,
                return_date DATETIME,
                is_returned BOOLEAN NOT NULL DEFAULT 0
            );`,
			`CREATE INDEX IF NOT EXISTS idx_loans_book_open ON loans(book_id, is_returned);`,
			`CREATE INDEX IF NOT EXISTS idx_loans_user ON loans(user_id);`,
		}
	}
}

func (d *Database) applyMigrations(ctx context.Context) error {
	if d.driver == DriverSQLite {
		// WAL improves write concurrency.
		if _, err := d.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable WAL: %w", err)
		}
	}

	if _, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (meta_key VARCHAR(64) PRIMARY KEY, meta_value VARCHAR(255))`); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	var current int
	err := d.db.GetContext(ctx, &current, d.db.Rebind(`SELECT meta_value FROM meta WHERE meta_key=?`), "schema_version")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer d.rollback(tx)

	for _, stmt := range schemaStatements(d.driver) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM meta WHERE meta_key=?`), "schema_version"); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO meta(meta_key, meta_value) VALUES(?, ?)`), "schema_version", fmt.Sprint(schemaVersion)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	d.logger.Info(logMsgMigrated, logAttrVersion, schemaVersion)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers shared by the data-access files
// ---------------------------------------------------------------------------

// rebind converts ?-style placeholders to the driver's bind style.
func (d *Database) rebind(query string) string { return d.db.Rebind(query) }

// timestamp returns the current time in UTC at second precision, which every
// supported column type can hold.
func (d *Database) timestamp() time.Time { return d.now().UTC().Truncate(time.Second) }

// storageErr logs a database failure at the data-access boundary and wraps it in ErrStorage.
func (d *Database) storageErr(op string, err error) error {
	d.logger.Error(logMsgStorageFailed, logAttrOperation, op, logAttrError, err.Error())
	return errors.Join(ErrStorage, err)
}

func (d *Database) rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		d.logger.Warn(logMsgRollbackFailed, logAttrError, err.Error())
	}
}

// insert runs an INSERT and returns the generated key. PostgreSQL does not
// support LastInsertId, so the key is read back with RETURNING there.
func (d *Database) insert(ctx context.Context, ext sqlx.ExtContext, idColumn, query string, args ...any) (int64, error) {
	if d.driver == DriverPostgres {
		var id int64
		if err := sqlx.GetContext(ctx, ext, &id, d.rebind(query+" RETURNING "+idColumn), args...); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := ext.ExecContext(ctx, d.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// isUniqueViolation reports whether err is a unique-constraint failure for any
// of the supported drivers.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
