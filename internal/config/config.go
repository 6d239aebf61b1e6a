// Package config loads runtime settings from the environment.
//
// LOADING ORDER:
//  1. godotenv reads a .env file into the process environment if one exists.
//     Variables already set in the real environment win.
//  2. cleanenv fills Config from the environment, applying env-default tags
//     and failing on env-required ones.
//  3. Validate checks the values that cleanenv cannot express.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Port         int           `env:"PORT"          env-default:"8080"`
	DatabaseURL  string        `env:"DATABASE_URL"  env-default:"sqlite://data/inkwell.db"`
	SecretKey    string        `env:"SECRET_KEY"    env-required:"true"`
	SessionTTL   time.Duration `env:"SESSION_TTL"   env-default:"168h"`
	CookieSecure bool          `env:"COOKIE_SECURE" env-default:"false"`

	Mail   Mail
	GitHub GitHub

	LogLevel  string `env:"LOG_LEVEL"  env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"text"`
}

// Mail holds the SMTP settings for the contact form.
type Mail struct {
	Server     string   `env:"MAIL_SERVER"        env-default:"smtp.gmail.com"`
	Port       int      `env:"MAIL_PORT"          env-default:"465"`
	UseSSL     bool     `env:"MAIL_USE_SSL"       env-default:"true"`
	Username   string   `env:"MAIL_USERNAME"`
	Password   string   `env:"MAIL_PASSWORD"`
	Sender     string   `env:"MAIL_SENDER"`
	Recipients []string `env:"CONTACT_RECIPIENTS" env-separator:","`
}

// Enabled reports whether the contact form can deliver mail.
func (m Mail) Enabled() bool {
	return m.Server != "" && len(m.Recipients) > 0
}

// From returns the envelope sender, falling back to the SMTP username.
func (m Mail) From() string {
	if m.Sender != "" {
		return m.Sender
	}
	return m.Username
}

// GitHub holds optional OAuth credentials for GitHub sign-in.
type GitHub struct {
	ClientID     string `env:"GITHUB_CLIENT_ID"`
	ClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	CallbackURL  string `env:"GITHUB_CALLBACK_URL"`
}

// Enabled reports whether GitHub sign-in is configured.
func (g GitHub) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// Load reads envFile (if present) and the environment. An empty envFile
// means ".env".
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading %s: %w", envFile, err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.SecretKey) < 16 {
		return errors.New("config: SECRET_KEY must be at least 16 characters")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if c.GitHub.Enabled() && c.GitHub.CallbackURL == "" {
		c.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", c.Port)
	}
	for i, r := range c.Mail.Recipients {
		c.Mail.Recipients[i] = strings.TrimSpace(r)
	}
	return nil
}

// Logger builds the application logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// SQLitePath returns the file path behind a SQLite DATABASE_URL, or "" for
// PostgreSQL and in-memory databases.
func (c *Config) SQLitePath() string {
	return SQLitePath(c.DatabaseURL)
}

// SQLitePath is the DSN form of Config.SQLitePath.
func SQLitePath(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return ""
	}
	path := strings.TrimPrefix(dsn, "sqlite://")
	path = strings.TrimPrefix(path, "file:")
	path, _, _ = strings.Cut(path, "?")
	if path == ":memory:" {
		return ""
	}
	return path
}

// Database is the subset of Config the admin tool needs. It loads without
// SECRET_KEY so the tool works before the server is configured.
type Database struct {
	URL string `env:"DATABASE_URL" env-default:"sqlite://data/inkwell.db"`
}

// LoadDatabase reads DATABASE_URL the same way Load does.
func LoadDatabase(envFile string) (*Database, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading %s: %w", envFile, err)
	}

	var db Database
	if err := cleanenv.ReadEnv(&db); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}
	return &db, nil
}
