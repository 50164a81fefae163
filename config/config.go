package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix           = "LIBRARY"
	DefaultDatabasePath = "library.db"
	appDir              = ".library-desk"
)

type (
	Config struct {
		Database
		Loans
		Overdue
		Session
		Log
	}

	Database struct {
		Driver   string // sqlite3, mysql or postgres
		Path     string // SQLite file
		Host     string
		Port     int
		User     string
		Password string
		Name     string
		DSN      string // Overrides every other connection field when set
	}
	Loans struct {
		Period    time.Duration // Default loan term written as the return date
		MaxActive int           // Open loans allowed per user
	}
	Overdue struct {
		Days     int
		Schedule string // Cron format: "0 9 * * *" = daily at 09:00
	}
	Session struct {
		Secret   string // Generated and stored next to the session file if empty
		Lifetime time.Duration
		File     string
	}
	Log struct {
		Level  string // debug, info, warn, error
		Format string // text or json
	}
)

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(appDir, "session")
	}
	return filepath.Join(home, appDir, "session")
}

// Load reads configuration from an optional .env file, the environment
// (LIBRARY_ prefix) and, when configFile is set, a config file viper understands.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("db_driver", "sqlite3")
	v.SetDefault("db_path", DefaultDatabasePath)
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 0)
	v.SetDefault("db_user", "")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "library")
	v.SetDefault("db_dsn", "")

	v.SetDefault("loan_period", "336h") // 14 days
	v.SetDefault("max_active_loans", 5)

	v.SetDefault("overdue_days", 14)
	v.SetDefault("overdue_schedule", "0 9 * * *")

	v.SetDefault("session_secret", "")
	v.SetDefault("session_lifetime", "24h")
	v.SetDefault("session_file", defaultSessionFile())

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		Database: Database{
			Driver:   v.GetString("DB_DRIVER"),
			Path:     v.GetString("DB_PATH"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			DSN:      v.GetString("DB_DSN"),
		},
		Loans: Loans{
			Period:    v.GetDuration("LOAN_PERIOD"),
			MaxActive: v.GetInt("MAX_ACTIVE_LOANS"),
		},
		Overdue: Overdue{
			Days:     v.GetInt("OVERDUE_DAYS"),
			Schedule: v.GetString("OVERDUE_SCHEDULE"),
		},
		Session: Session{
			Secret:   v.GetString("SESSION_SECRET"),
			Lifetime: v.GetDuration("SESSION_LIFETIME"),
			File:     v.GetString("SESSION_FILE"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported db driver %q", c.Database.Driver)
	}
	if c.Loans.Period <= 0 {
		return fmt.Errorf("loan period must be positive, got %s", c.Loans.Period)
	}
	if c.Loans.MaxActive <= 0 {
		return fmt.Errorf("max active loans must be positive, got %d", c.Loans.MaxActive)
	}
	if c.Overdue.Days < 0 {
		return fmt.Errorf("overdue days must not be negative, got %d", c.Overdue.Days)
	}
	if c.Session.File == "" {
		return errors.New("session file must be set")
	}
	return nil
}

// ConnectionString returns the DSN for the configured driver.
func (d Database) ConnectionString() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case "mysql":
		port := d.Port
		if port == 0 {
			port = 3306
		}
		mc := mysql.NewConfig()
		mc.User = d.User
		mc.Passwd = d.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(d.Host, strconv.Itoa(port))
		mc.DBName = d.Name
		mc.ParseTime = true
		mc.Loc = time.UTC
		return mc.FormatDSN()
	case "postgres":
		port := d.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme:   "postgres",
			Host:     net.JoinHostPort(d.Host, strconv.Itoa(port)),
			Path:     "/" + d.Name,
			RawQuery: "sslmode=disable",
		}
		if d.User != "" {
			u.User = url.UserPassword(d.User, d.Password)
		}
		return u.String()
	default:
		return d.Path
	}
}
