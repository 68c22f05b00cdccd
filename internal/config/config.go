package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string // development, production

	// Settings storage. DatabaseURL selects Postgres, then SQLitePath selects
	// SQLite, otherwise the JSON file is used.
	SettingsFile string
	SQLitePath   string
	DatabaseURL  string

	// Security
	SecureCookies      bool
	TokenTTL           time.Duration
	LoginRatePerMinute int

	MaxUploadSizeMB int

	// LogFile, when set, receives a rotated copy of the log stream.
	LogFile string
}

// Load reads .env, the environment and command-line flags. Flags override
// environment variables.
func Load() (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	flag.StringVar(&cfg.Port, "port", cfg.Port, "Server port")
	flag.StringVar(&cfg.Env, "env", cfg.Env, "Environment (development, production)")
	flag.StringVar(&cfg.SettingsFile, "settings-file", cfg.SettingsFile, "Path of the settings JSON file")
	flag.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "Path of a SQLite database for settings storage")
	flag.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection string for settings storage")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads .env and the environment only, for commands that parse
// their own flags.
func FromEnv() (*Config, error) {
	// Load .env file if it exists (don't error if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENV", "development"),
		SettingsFile: getEnv("SETTINGS_FILE", "settings.json"),
		SQLitePath:   getEnv("SETTINGS_SQLITE_PATH", ""),
		DatabaseURL:  getEnv("SETTINGS_DATABASE_URL", ""),
		LogFile:      getEnv("LOG_FILE", ""),
	}

	var err error
	if cfg.SecureCookies, err = strconv.ParseBool(getEnv("SECURE_COOKIES", "false")); err != nil {
		return nil, fmt.Errorf("SECURE_COOKIES: %w", err)
	}
	if cfg.TokenTTL, err = time.ParseDuration(getEnv("TOKEN_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("TOKEN_TTL: %w", err)
	}
	if cfg.LoginRatePerMinute, err = strconv.Atoi(getEnv("LOGIN_RATE_PER_MINUTE", "10")); err != nil {
		return nil, fmt.Errorf("LOGIN_RATE_PER_MINUTE: %w", err)
	}
	if cfg.MaxUploadSizeMB, err = strconv.Atoi(getEnv("MAX_UPLOAD_SIZE_MB", "10")); err != nil {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE_MB: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.DatabaseURL == "" && c.SQLitePath == "" && c.SettingsFile == "" {
		return fmt.Errorf("one of SETTINGS_FILE, SETTINGS_SQLITE_PATH or SETTINGS_DATABASE_URL is required")
	}
	if c.TokenTTL < time.Minute {
		return fmt.Errorf("TOKEN_TTL must be at least 1m")
	}
	if c.LoginRatePerMinute < 1 {
		return fmt.Errorf("LOGIN_RATE_PER_MINUTE must be positive")
	}
	if c.MaxUploadSizeMB < 1 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// MaxUploadSize is the upload limit in bytes.
func (c *Config) MaxUploadSize() int64 {
	return int64(c.MaxUploadSizeMB) << 20
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
