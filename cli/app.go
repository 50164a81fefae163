package cli

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"library-desk/config"
	"library-desk/library"
)

var errNotLoggedIn = errors.New("not logged in, run 'library-desk login' first")

// App holds the state shared by every command: configuration, the library
// manager and the terminal streams.
type App struct {
	Config *config.Config
	In     io.Reader
	Out    io.Writer
	Err    io.Writer

	// ReadPassword prompts for a secret without echoing it.
	ReadPassword func(prompt string) (string, error)

	configFile string
	jsonOutput bool
	logger     *slog.Logger
	lm         *library.LibraryManager
	scanner    *bufio.Scanner
}

// NewApp returns an App wired to the process's standard streams.
func NewApp() *App {
	a := &App{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
	a.ReadPassword = a.readTerminalPassword
	return a
}

// readTerminalPassword securely reads a password with masking.
func (a *App) readTerminalPassword(prompt string) (string, error) {
	fmt.Fprint(a.Out, prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(a.Out) // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

// open loads configuration and connects to the database once per process.
func (a *App) open() error {
	if a.lm != nil {
		return nil
	}
	if a.Config == nil {
		cfg, err := config.Load(a.configFile)
		if err != nil {
			return err
		}
		a.Config = cfg
	}
	cfg := a.Config
	a.logger = newLogger(a.Err, cfg.Log)

	dbOpts := []library.Option{
		library.WithLogger(a.logger),
		library.WithLoanPeriod(cfg.Loans.Period),
	}
	var (
		db  *library.Database
		err error
	)
	if cfg.Database.Driver == library.DriverSQLite && cfg.Database.DSN == "" {
		db, err = library.NewDatabase(cfg.Database.Path, dbOpts...)
	} else {
		db, err = library.Open(cfg.Database.Driver, cfg.Database.ConnectionString(), dbOpts...)
	}
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	secret, err := a.sessionSecret()
	if err != nil {
		db.Close()
		return err
	}
	signer, err := library.NewSessionSigner(secret, cfg.Session.Lifetime)
	if err != nil {
		db.Close()
		return err
	}

	a.lm = library.NewManager(db,
		library.WithMaxActiveLoans(cfg.Loans.MaxActive),
		library.WithSessionSigner(signer),
	)
	a.logger.Debug("database opened", "driver", cfg.Database.Driver)
	return nil
}

// Close releases the database connection.
func (a *App) Close() error {
	if a.lm == nil {
		return nil
	}
	err := a.lm.Close()
	a.lm = nil
	return err
}

func newLogger(w io.Writer, cfg config.Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ------------------ Session file ------------------

// sessionSecret returns the configured signing secret, or one generated on
// first use and kept next to the session file.
func (a *App) sessionSecret() ([]byte, error) {
	if a.Config.Session.Secret != "" {
		return []byte(a.Config.Session.Secret), nil
	}
	keyFile := a.Config.Session.File + ".key"
	if data, err := os.ReadFile(keyFile); err == nil && len(strings.TrimSpace(string(data))) > 0 {
		return []byte(strings.TrimSpace(string(data))), nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	secret := hex.EncodeToString(buf)
	if err := writePrivateFile(keyFile, secret); err != nil {
		return nil, fmt.Errorf("store session secret: %w", err)
	}
	return []byte(secret), nil
}

func writePrivateFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

func (a *App) saveSession(sess *library.Session) error {
	token, err := a.lm.SignSession(sess)
	if err != nil {
		return err
	}
	return writePrivateFile(a.Config.Session.File, token)
}

func (a *App) clearSession() error {
	err := os.Remove(a.Config.Session.File)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// session resumes the saved login.
func (a *App) session(ctx context.Context) (*library.Session, error) {
	data, err := os.ReadFile(a.Config.Session.File)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errNotLoggedIn
	}
	if err != nil {
		return nil, err
	}
	sess, err := a.lm.Resume(ctx, strings.TrimSpace(string(data)))
	if errors.Is(err, library.ErrInvalidSession) {
		return nil, fmt.Errorf("%w, log in again", err)
	}
	return sess, err
}

// adminSession resumes the saved login and requires the admin role.
func (a *App) adminSession(ctx context.Context) (*library.Session, error) {
	sess, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	return sess, nil
}

// ------------------ Prompts ------------------

// prompt reads one line from In. An empty answer yields def.
func (a *App) prompt(label, def string) (string, error) {
	if a.scanner == nil {
		a.scanner = bufio.NewScanner(a.In)
	}
	if def != "" {
		fmt.Fprintf(a.Out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(a.Out, "%s: ", label)
	}
	if !a.scanner.Scan() {
		if err := a.scanner.Err(); err != nil {
			return "", err
		}
		return def, nil
	}
	answer := strings.TrimSpace(a.scanner.Text())
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// valueOrPrompt returns flagValue when the flag was given, otherwise asks.
func (a *App) valueOrPrompt(flagValue, label, def string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return a.prompt(label, def)
}

// newPassword asks for a password twice.
func (a *App) newPassword(label string) (string, string, error) {
	password, err := a.ReadPassword(label + ": ")
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := a.ReadPassword("Confirm " + strings.ToLower(label) + ": ")
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}
	return password, confirm, nil
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", what, s)
	}
	return id, nil
}
