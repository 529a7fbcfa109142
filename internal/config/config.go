package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL    = "http://localhost:3001"
	DefaultTimeout   = 10 * time.Second
	DefaultServeAddr = "localhost:3001"
	DefaultLogFile   = "tada.log"
)

type Config struct {
	APIURL    string
	Timeout   time.Duration
	LogLevel  slog.Level
	LogFile   string // where the TUI writes logs while it owns the screen
	Theme     string
	ServeAddr string
}

// Overrides carries values given on the command line. A set field wins over
// the environment, and the matching variable is not parsed at all.
type Overrides struct {
	APIURL   string
	Timeout  time.Duration
	LogLevel string
	Theme    string
}

// Load reads an optional .env file, then the TADA_* environment variables,
// then applies ov. A missing .env is not an error; a malformed value that
// ends up in use is.
func Load(ov Overrides) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	cfg := &Config{
		APIURL:    pick(ov.APIURL, getEnv("TADA_API_URL", DefaultAPIURL)),
		LogFile:   getEnv("TADA_LOG_FILE", DefaultLogFile),
		Theme:     pick(ov.Theme, getEnv("TADA_THEME", "classic")),
		ServeAddr: getEnv("TADA_SERVE_ADDR", DefaultServeAddr),
		Timeout:   DefaultTimeout,
		LogLevel:  slog.LevelWarn,
	}

	switch {
	case ov.Timeout < 0:
		return nil, fmt.Errorf("timeout: must be positive, got %s", ov.Timeout)
	case ov.Timeout > 0:
		cfg.Timeout = ov.Timeout
	default:
		if v := os.Getenv("TADA_TIMEOUT"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("TADA_TIMEOUT: invalid duration %q", v)
			}
			cfg.Timeout = d
		}
	}

	if v := pick(ov.LogLevel, os.Getenv("TADA_LOG_LEVEL")); v != "" {
		lvl, err := ParseLevel(v)
		if err != nil {
			return nil, err
		}
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

// ParseLevel accepts debug, info, warn and error (any case).
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}

// NewLogger builds the text logger used across the app.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}

func pick(flag, fallback string) string {
	if strings.TrimSpace(flag) != "" {
		return flag
	}
	return fallback
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
