package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into dir for the duration of the test so a stray .env in the
// working directory does not leak into Load.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, 14*24*time.Hour, cfg.Loans.Period)
	assert.Equal(t, 5, cfg.Loans.MaxActive)
	assert.Equal(t, 14, cfg.Overdue.Days)
	assert.Equal(t, "0 9 * * *", cfg.Overdue.Schedule)
	assert.Equal(t, 24*time.Hour, cfg.Session.Lifetime)
	assert.NotEmpty(t, cfg.Session.File)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.ConnectionString())
}

func TestLoadFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LIBRARY_DB_PATH", "/tmp/other.db")
	t.Setenv("LIBRARY_LOAN_PERIOD", "168h")
	t.Setenv("LIBRARY_MAX_ACTIVE_LOANS", "3")
	t.Setenv("LIBRARY_LOG_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, 7*24*time.Hour, cfg.Loans.Period)
	assert.Equal(t, 3, cfg.Loans.MaxActive)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LIBRARY_OVERDUE_DAYS=30\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LIBRARY_OVERDUE_DAYS") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Overdue.Days)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "library.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_driver: postgres\ndb_host: db.internal\ndb_user: lib\ndb_password: pw\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://lib:pw@db.internal:5432/library?sslmode=disable", cfg.Database.ConnectionString())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("LIBRARY_DB_DRIVER", "oracle")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("LIBRARY_DB_DRIVER", "sqlite3")
	t.Setenv("LIBRARY_MAX_ACTIVE_LOANS", "0")
	_, err = Load("")
	assert.Error(t, err)
}

func TestMySQLConnectionString(t *testing.T) {
	d := Database{Driver: "mysql", Host: "localhost", User: "root", Password: "secret", Name: "library"}
	assert.Equal(t, "root:secret@tcp(localhost:3306)/library?parseTime=true", d.ConnectionString())

	d.DSN = "custom"
	assert.Equal(t, "custom", d.ConnectionString())
}
