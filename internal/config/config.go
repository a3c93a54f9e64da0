// Package config loads the bot's YAML configuration file.
//
// Values may reference environment variables as ${VAR}; they are expanded
// before parsing. A missing file is not an error: every setting has a default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TokenEnv is the environment variable holding the Telegram bot token.
const TokenEnv = "BOT_TOKEN"

// ErrMissingToken means no bot token was supplied; the bot can't start.
var ErrMissingToken = errors.New(TokenEnv + " environment variable is missing")

type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
	Telegram TelegramConfig `yaml:"telegram"`
	Guard    GuardConfig    `yaml:"guard"`
	Summary  SummaryConfig  `yaml:"summary"`
	Backup   BackupConfig   `yaml:"backup"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"`     // json | sqlite
	JSONPath   string `yaml:"json_path"`   // relative paths resolve against data_dir
	SQLitePath string `yaml:"sqlite_path"` // also holds the configuration table
}

type LogConfig struct {
	Format  string `yaml:"format"` // console | json
	Verbose bool   `yaml:"verbose"`
}

type TelegramConfig struct {
	BaseURL        string        `yaml:"base_url"`
	PollTimeout    time.Duration `yaml:"poll_timeout"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	AllowedChatIDs []int64       `yaml:"allowed_chat_ids"`
}

type GuardConfig struct {
	CommandsPerMinute int `yaml:"commands_per_minute"`
	Burst             int `yaml:"burst"`
	MaxTags           int `yaml:"max_tags"`
	MaxTagLength      int `yaml:"max_tag_length"`
	// AllowedFileGlobs limits which local files the console may upload.
	AllowedFileGlobs []string `yaml:"allowed_file_globs"`
}

type SummaryConfig struct {
	Provider string   `yaml:"provider"` // "", stub, openai, ollama, gemini, anthropic, command
	Model    string   `yaml:"model"`
	APIKey   string   `yaml:"api_key"`
	BaseURL  string   `yaml:"base_url"`
	Command  string   `yaml:"command"` // binary run by the command provider
	Args     []string `yaml:"args"`
}

type BackupConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	ObjectKey string `yaml:"object_key"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DataDir: ".",
		Storage: StorageConfig{
			Backend:    "json",
			JSONPath:   "media_data.json",
			SQLitePath: "mediabot.db",
		},
		Log: LogConfig{Format: "console"},
		Telegram: TelegramConfig{
			BaseURL:        "https://api.telegram.org",
			PollTimeout:    30 * time.Second,
			MaxConcurrency: 8,
		},
		Guard: GuardConfig{
			CommandsPerMinute: 30,
			Burst:             10,
			MaxTags:           20,
			MaxTagLength:      64,
		},
		Backup: BackupConfig{
			ObjectKey: "mediabot/media_data.json",
		},
	}
}

// Load reads path, expands environment variables and fills defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		expanded := os.ExpandEnv(string(raw))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	d := Default()
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Storage.JSONPath == "" {
		c.Storage.JSONPath = d.Storage.JSONPath
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = d.Storage.SQLitePath
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Telegram.BaseURL == "" {
		c.Telegram.BaseURL = d.Telegram.BaseURL
	}
	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = d.Telegram.PollTimeout
	}
	if c.Telegram.MaxConcurrency <= 0 {
		c.Telegram.MaxConcurrency = d.Telegram.MaxConcurrency
	}
	if c.Guard.CommandsPerMinute <= 0 {
		c.Guard.CommandsPerMinute = d.Guard.CommandsPerMinute
	}
	if c.Guard.Burst <= 0 {
		c.Guard.Burst = d.Guard.Burst
	}
	if c.Guard.MaxTags <= 0 {
		c.Guard.MaxTags = d.Guard.MaxTags
	}
	if c.Guard.MaxTagLength <= 0 {
		c.Guard.MaxTagLength = d.Guard.MaxTagLength
	}
	if c.Backup.ObjectKey == "" {
		c.Backup.ObjectKey = d.Backup.ObjectKey
	}
}

// Validate checks enumerated settings and required fields of enabled features.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("storage.backend must be json or sqlite, got %q", c.Storage.Backend)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	switch c.Summary.Provider {
	case "", "stub", "openai", "ollama", "gemini", "anthropic", "command":
	default:
		return fmt.Errorf("summary.provider %q is not supported", c.Summary.Provider)
	}
	if c.Backup.Enabled {
		if c.Backup.Endpoint == "" {
			return fmt.Errorf("backup.endpoint is required when backup is enabled")
		}
		if c.Backup.Bucket == "" {
			return fmt.Errorf("backup.bucket is required when backup is enabled")
		}
	}
	return nil
}

// JSONPath is the media file location resolved against DataDir.
func (c *Config) JSONPath() string {
	return c.resolve(c.Storage.JSONPath)
}

// SQLitePath is the database location resolved against DataDir.
func (c *Config) SQLitePath() string {
	return c.resolve(c.Storage.SQLitePath)
}

func (c *Config) resolve(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, p[2:])
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// TokenFromEnv returns the trimmed BOT_TOKEN value, if any.
func TokenFromEnv() string {
	return strings.TrimSpace(os.Getenv(TokenEnv))
}
