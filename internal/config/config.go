package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// MinSecretLength is the shortest token-signing secret Validate accepts.
const MinSecretLength = 32

var (
	ErrMissingSecret = errors.New("auth secret is not set (TASKBOARD_SECRET)")
	ErrWeakSecret    = errors.New("auth secret is too short or a known placeholder")
)

// placeholderSecrets are values that ship in sample configs and docs.
var placeholderSecrets = []string{
	"supersecret",
	"secret",
	"changeme",
	"change-me",
	"your_super_secret_jwt_key",
	"hardcoded-secret-key-change-in-production",
	"replace-me-with-a-long-random-string",
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite3" or "postgres"
	DSN    string `yaml:"dsn"`
}

type AuthConfig struct {
	Secret       string        `yaml:"secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	CookieName   string        `yaml:"cookie_name"`
	CookieSecure bool          `yaml:"cookie_secure"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns the configuration used when no file is present.
// The auth secret is deliberately left empty.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "taskboard.db",
		},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			CookieName: "taskboard_token",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at filename on top of Default and then applies
// environment overrides. A missing file is not an error.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", filename, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", filename, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	c.Server.Addr = getEnv("TASKBOARD_ADDR", c.Server.Addr)
	c.Database.Driver = getEnv("TASKBOARD_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("TASKBOARD_DB_DSN", c.Database.DSN)
	c.Auth.Secret = getEnv("TASKBOARD_SECRET", c.Auth.Secret)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	if v := os.Getenv("TASKBOARD_TOKEN_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TASKBOARD_TOKEN_TTL: %w", err)
		}
		c.Auth.TokenTTL = ttl
	}
	if v := os.Getenv("TASKBOARD_COOKIE_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TASKBOARD_COOKIE_SECURE: %w", err)
		}
		c.Auth.CookieSecure = secure
	}
	return nil
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	if err := ValidateSecret(c.Auth.Secret); err != nil {
		return err
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth token_ttl must be positive")
	}
	if c.Auth.CookieName == "" {
		return errors.New("auth cookie_name is empty")
	}
	return nil
}

// ValidateSecret rejects empty, short and placeholder signing secrets.
func ValidateSecret(secret string) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if len(secret) < MinSecretLength {
		return ErrWeakSecret
	}
	lower := strings.ToLower(secret)
	for _, p := range placeholderSecrets {
		if lower == p {
			return ErrWeakSecret
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
