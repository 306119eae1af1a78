// Package config loads ~/.tst/config.json. The file is JSON with comments
// and trailing commas allowed.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
)

// Config is the root configuration for tst. The server section is read by
// `tst serve` and `tst user`; everything else only needs the client section.
type Config struct {
	Server ServerConfig `json:"server"`
	Client ClientConfig `json:"client"`
}

// ServerConfig holds the settings of the tracking server.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// Database is the SQLite file. A leading ~ is expanded.
	Database string `json:"database"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`
	// Timezone decides which calendar day tasks are planned for. Empty = UTC.
	Timezone string `json:"timezone"`
	// PushIntervalSeconds is the live feed cadence.
	PushIntervalSeconds int `json:"push_interval_seconds"`
}

// ClientConfig tells the CLI where the server is and who the caller is.
type ClientConfig struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

const (
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 3000
	DefaultDatabase     = "~/.tst/tst.db"
	DefaultLogLevel     = "info"
	DefaultPushInterval = 5
)

// Default returns a Config pre-filled with the built-in defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:                DefaultHost,
			Port:                DefaultPort,
			Database:            DefaultDatabase,
			LogLevel:            DefaultLogLevel,
			PushIntervalSeconds: DefaultPushInterval,
		},
		Client: ClientConfig{
			URL: fmt.Sprintf("http://%s:%d", DefaultHost, DefaultPort),
		},
	}
}

// configTemplate is the annotated config written on first run.
const configTemplate = `// tst configuration - ~/.tst/config.json
//
// All settings are optional. Environment variables override the file:
// TST_HOST, TST_PORT, TST_DATABASE, TST_LOG_LEVEL, TST_TIMEZONE,
// TST_PUSH_INTERVAL, TST_URL, TST_TOKEN.
{
  // Used by "tst serve" and "tst user".
  "server": {
    "host": "127.0.0.1",
    "port": 3000,

    // SQLite database file.
    "database": "~/.tst/tst.db",

    // debug, info, warn or error.
    "log_level": "info",

    // IANA timezone that decides what "today" is, e.g. "Asia/Kolkata".
    // Leave empty to use UTC.
    "timezone": "",

    // Seconds between live feed pushes.
    "push_interval_seconds": 5,
  },

  // Used by every other command.
  "client": {
    "url": "http://127.0.0.1:3000",

    // API token printed by "tst user add".
    "token": "",
  },
}
`

// Path returns the config file location: $TST_CONFIG if set, otherwise
// ~/.tst/config.json.
func Path() (string, error) {
	if p := strings.TrimSpace(os.Getenv("TST_CONFIG")); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".tst", "config.json"), nil
}

// Load reads the config file, creating it with annotated defaults on first
// run, and applies environment overrides.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		cfg := Default()
		cfg.applyEnvOverrides()
		return cfg, err
	}
	return LoadFile(path)
}

// LoadFile is Load for an explicit path.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	case err != nil:
		cfg.applyEnvOverrides()
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		// Unmarshal over the defaults so missing keys keep them.
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			def := Default()
			def.applyEnvOverrides()
			return def, fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
		}
	}
	cfg.applyEnvOverrides()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := env("TST_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := env("TST_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := env("TST_DATABASE"); v != "" {
		c.Server.Database = v
	}
	if v := env("TST_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := env("TST_TIMEZONE"); v != "" {
		c.Server.Timezone = v
	}
	if v := env("TST_PUSH_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Server.PushIntervalSeconds = secs
		}
	}
	if v := env("TST_URL"); v != "" {
		c.Client.URL = v
	}
	if v := env("TST_TOKEN"); v != "" {
		c.Client.Token = v
	}
}

func (c *Config) normalize() {
	def := Default()
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		c.Server.Port = def.Server.Port
	}
	if strings.TrimSpace(c.Server.Database) == "" {
		c.Server.Database = def.Server.Database
	}
	if c.Server.PushIntervalSeconds <= 0 {
		c.Server.PushIntervalSeconds = def.Server.PushIntervalSeconds
	}
	c.Client.URL = strings.TrimRight(strings.TrimSpace(c.Client.URL), "/")
	if c.Client.URL == "" {
		c.Client.URL = def.Client.URL
	}
	c.Client.Token = strings.TrimSpace(c.Client.Token)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// DatabasePath returns Server.Database with a leading ~ expanded.
func (c Config) DatabasePath() (string, error) {
	p := c.Server.Database
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// Location resolves Server.Timezone. Empty means UTC.
func (c Config) Location() (*time.Location, error) {
	if c.Server.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Server.Timezone, err)
	}
	return loc, nil
}

// LogLevel parses Server.LogLevel, falling back to info.
func (c Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Server.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// PushInterval returns the live feed cadence.
func (c Config) PushInterval() time.Duration {
	return time.Duration(c.Server.PushIntervalSeconds) * time.Second
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
