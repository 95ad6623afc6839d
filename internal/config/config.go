// Package config loads quizctl settings.
//
// Settings are resolved in three layers, each overriding the previous one:
//
//  1. Built-in defaults (DefaultConfig)
//  2. The YAML configuration file (quizctl.yaml by default)
//  3. Environment variables, optionally populated from a .env file
//
// The environment variable names match the ones the quiz service itself
// reads (DATABASE_URL, FIRST_SUPERUSER_EMAIL, LOG_CFG, ...), so the same
// deployment environment drives both.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/quizctl/internal/model"
)

const (
	// DefaultPath is the configuration file looked up in the working
	// directory when --config is not given.
	DefaultPath = "quizctl.yaml"

	// DefaultEnvFile is the dotenv file loaded before environment overrides.
	DefaultEnvFile = ".env"
)

// Config is the complete quizctl configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Superuser  SuperuserConfig  `yaml:"superuser"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig describes how to reach the quiz database.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver" env:"DATABASE_DRIVER"`

	// URL is a file path for SQLite or a connection string for PostgreSQL.
	URL string `yaml:"url" env:"DATABASE_URL"`

	// Container is the name of a Docker container running the database.
	// When set, init starts it if needed and waits for it to be ready.
	Container string `yaml:"container" env:"DATABASE_CONTAINER"`

	// WaitAddress is a host:port init waits on before running any step.
	WaitAddress string `yaml:"wait_address" env:"DATABASE_WAIT_ADDRESS"`

	// WaitTimeout bounds both readiness waits.
	WaitTimeout time.Duration `yaml:"wait_timeout" env:"DATABASE_WAIT_TIMEOUT"`
}

// MigrationsConfig locates the revision files.
type MigrationsConfig struct {
	Dir string `yaml:"dir" env:"MIGRATIONS_DIR"`
}

// SuperuserConfig holds the account the seed step creates.
type SuperuserConfig struct {
	Email    string `yaml:"email" env:"FIRST_SUPERUSER_EMAIL"`
	Password string `yaml:"password" env:"FIRST_SUPERUSER_PASSWORD"`
}

// LoggingConfig points at the optional JSONC logging configuration file.
type LoggingConfig struct {
	Config string `yaml:"config" env:"LOG_CFG"`
}

// Options control where Load looks for its inputs.
type Options struct {
	// Path is the YAML file to read. Empty means DefaultPath, which may
	// be absent. An explicitly named file must exist.
	Path string

	// EnvFile is the dotenv file to load. Empty means DefaultEnvFile.
	// A missing dotenv file is not an error.
	EnvFile string
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:      string(model.DriverSQLite),
			URL:         "quiz.db",
			WaitTimeout: 30 * time.Second,
		},
		Migrations: MigrationsConfig{
			Dir: "migrations",
		},
		Superuser: SuperuserConfig{
			Email: "admin@example.com",
		},
		Logging: LoggingConfig{
			Config: "logging.json",
		},
	}
}

// Load resolves the configuration from defaults, file and environment,
// then validates it.
func Load(opts Options) (*Config, error) {
	cfg := DefaultConfig()

	path := opts.Path
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := readFile(path, explicit, &cfg); err != nil {
		return nil, err
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	// godotenv.Load never overrides variables that are already set, so the
	// real environment still wins over the file.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string, required bool, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks that the settings every command needs are present.
func (c *Config) Validate() error {
	if _, err := model.ParseDriver(c.Database.Driver); err != nil {
		return err
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		return errors.New("database url must not be empty")
	}
	if strings.TrimSpace(c.Migrations.Dir) == "" {
		return errors.New("migrations dir must not be empty")
	}
	if c.Database.WaitTimeout < 0 {
		return fmt.Errorf("database wait timeout must not be negative, got %s", c.Database.WaitTimeout)
	}
	return nil
}

// ValidateSuperuser checks the settings the seed step needs.
func (c *Config) ValidateSuperuser() error {
	email := strings.TrimSpace(c.Superuser.Email)
	if email == "" {
		return errors.New("superuser email must not be empty")
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("superuser email %q is not an email address", email)
	}
	if c.Superuser.Password == "" {
		return errors.New("superuser password is required (set FIRST_SUPERUSER_PASSWORD)")
	}
	return nil
}

// DriverName returns the parsed database driver. Validate guarantees it
// is valid.
func (c *Config) DriverName() model.Driver {
	driver, _ := model.ParseDriver(c.Database.Driver)
	return driver
}
