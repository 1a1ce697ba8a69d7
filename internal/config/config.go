// Package config loads the deckstats TOML configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ramonehamilton/deckstats/internal/storage"
)

// Config represents the application configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Refresh  RefreshConfig  `toml:"refresh"`
	API      APIConfig      `toml:"api"`
	Scryfall ScryfallConfig `toml:"scryfall"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig contains fact store settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	BusyTimeout  string `toml:"busy_timeout"` // e.g. "30s"
	JournalMode  string `toml:"journal_mode"`
	MaxOpenConns int    `toml:"max_open_conns"`
	AutoMigrate  bool   `toml:"auto_migrate"`
}

// RefreshConfig contains aggregate invalidation settings.
type RefreshConfig struct {
	WatchDir     string `toml:"watch_dir"`     // Signal directory written by ingestion
	UseFsnotify  bool   `toml:"use_fsnotify"`  // Use file system events
	Debounce     string `toml:"debounce"`      // Quiet period before applying signals
	PollInterval string `toml:"poll_interval"` // Directory polling interval
	Warm         bool   `toml:"warm"`          // Rebuild every family when serving starts
}

// APIConfig contains read API settings.
type APIConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	RequestTimeout string   `toml:"request_timeout"` // Includes on-demand rebuilds
	AllowedOrigins []string `toml:"allowed_origins"` // CORS origins, wildcards allowed
}

// ScryfallConfig contains card metadata import settings.
type ScryfallConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit string `toml:"rate_limit"` // Minimum delay between requests
	UserAgent string `toml:"user_agent"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	dir := defaultDir()
	return &Config{
		Database: DatabaseConfig{
			Path:         filepath.Join(dir, "deckstats.db"),
			BusyTimeout:  "30s",
			JournalMode:  "WAL",
			MaxOpenConns: 25,
			AutoMigrate:  true,
		},
		Refresh: RefreshConfig{
			WatchDir:     filepath.Join(dir, "signals"),
			UseFsnotify:  true,
			Debounce:     "500ms",
			PollInterval: "2s",
			Warm:         false,
		},
		API: APIConfig{
			Port:           8080,
			RequestTimeout: "2m",
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Scryfall: ScryfallConfig{
			BaseURL:   "https://api.scryfall.com",
			RateLimit: "100ms",
			UserAgent: "deckstats/1.0",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".deckstats"
	}
	return filepath.Join(homeDir, ".deckstats")
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	return filepath.Join(defaultDir(), "config.toml")
}

// Load loads the configuration from path, or from DefaultPath when path is
// empty. Returns the default config if the file doesn't exist. Keys missing
// from the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	config := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Database.Path == ":memory:" {
		return fmt.Errorf("database path must be a file")
	}
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("max open conns cannot be negative: %d", c.Database.MaxOpenConns)
	}
	switch strings.ToUpper(c.Database.JournalMode) {
	case "WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY":
	default:
		return fmt.Errorf("invalid journal mode %q", c.Database.JournalMode)
	}

	durations := map[string]string{
		"busy timeout":        c.Database.BusyTimeout,
		"debounce":            c.Refresh.Debounce,
		"poll interval":       c.Refresh.PollInterval,
		"api request timeout": c.API.RequestTimeout,
		"scryfall rate limit": c.Scryfall.RateLimit,
	}
	for name, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
		if d < 0 {
			return fmt.Errorf("%s cannot be negative: %s", name, value)
		}
	}

	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api port: %d", c.API.Port)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	return nil
}

// GetBusyTimeout returns the database busy timeout as a duration.
func (c *Config) GetBusyTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Database.BusyTimeout)
}

// GetDebounce returns the signal debounce as a duration.
func (c *Config) GetDebounce() (time.Duration, error) {
	return time.ParseDuration(c.Refresh.Debounce)
}

// GetPollInterval returns the signal directory poll interval as a duration.
func (c *Config) GetPollInterval() (time.Duration, error) {
	return time.ParseDuration(c.Refresh.PollInterval)
}

// GetScryfallRateLimit returns the delay between Scryfall requests.
func (c *Config) GetScryfallRateLimit() (time.Duration, error) {
	return time.ParseDuration(c.Scryfall.RateLimit)
}

// GetRequestTimeout returns the API request timeout as a duration.
func (c *Config) GetRequestTimeout() (time.Duration, error) {
	return time.ParseDuration(c.API.RequestTimeout)
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// StorageConfig converts the database section into a storage config.
func (c *Config) StorageConfig() (*storage.Config, error) {
	busy, err := c.GetBusyTimeout()
	if err != nil {
		return nil, err
	}
	sc := storage.DefaultConfig(c.Database.Path)
	sc.BusyTimeout = busy
	sc.JournalMode = c.Database.JournalMode
	if c.Database.MaxOpenConns > 0 {
		sc.MaxOpenConns = c.Database.MaxOpenConns
	}
	sc.AutoMigrate = c.Database.AutoMigrate
	return sc, nil
}
