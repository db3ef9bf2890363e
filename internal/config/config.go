// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"

	"github.com/jeranaias/gemchat/internal/storage"
	"github.com/jeranaias/gemchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete gemchat configuration.
type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Storage  StorageConfig  `toml:"storage"`
	Log      LogConfig      `toml:"log"`
	UI       UIConfig       `toml:"ui"`
}

// ProviderConfig selects the model provider.
type ProviderConfig struct {
	// Name is "gemini" or "ollama".
	Name string `toml:"name"`

	// Model defaults to gemini-1.5-flash for gemini and llama3.2 for ollama.
	Model string `toml:"model"`

	// APIKey authenticates with Gemini. Prefer GEMCHAT_API_KEY or
	// GEMINI_API_KEY over storing it here.
	APIKey string `toml:"api_key,omitempty"`

	OllamaURL string `toml:"ollama_url"`

	// IdleTimeoutSecs cancels a reply after this long without output.
	// 0 disables the timeout.
	IdleTimeoutSecs int `toml:"idle_timeout_secs"`
}

// StorageConfig selects where sessions are kept.
type StorageConfig struct {
	// Backend is one of file, sqlite, redis, memory.
	Backend    string `toml:"backend"`
	Path       string `toml:"path"`
	SQLitePath string `toml:"sqlite_path"`
	RedisURL   string `toml:"redis_url,omitempty"`
	Key        string `toml:"key"`

	// Watch logs a warning when another process rewrites the sessions file.
	Watch bool `toml:"watch"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	File       string `toml:"file"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// UIConfig controls presentation.
type UIConfig struct {
	// Theme is "auto", "dark" or "light".
	Theme string `toml:"theme"`

	// Markdown renders finished replies with glamour.
	Markdown bool `toml:"markdown"`

	// WordWrap fixes the render width; 0 follows the terminal.
	WordWrap int `toml:"word_wrap"`

	ShowTimestamps bool `toml:"show_timestamps"`
}

// Accepted values.
var (
	ValidProviders = []string{"gemini", "ollama"}
	ValidBackends  = []string{"file", "sqlite", "redis", "memory"}
	ValidThemes    = []string{"auto", "dark", "light"}
)

const (
	defaultGeminiModel = "gemini-1.5-flash"
	defaultOllamaModel = "llama3.2"
)

// =============================================================================
// DEFAULTS & PATHS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:            "gemini",
			OllamaURL:       "http://127.0.0.1:11434",
			IdleTimeoutSecs: 120,
		},
		Storage: StorageConfig{
			Backend:    "file",
			Path:       "~/.gemchat/sessions.json",
			SQLitePath: "~/.gemchat/sessions.db",
			Key:        "ai-chatbot-sessions",
			Watch:      true,
		},
		Log: LogConfig{
			File:       "~/.gemchat/gemchat.log",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		UI: UIConfig{
			Theme:    "auto",
			Markdown: true,
		},
	}
}

// Dir returns ~/.gemchat.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".gemchat"), nil
}

// Path returns ~/.gemchat/config.toml.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// SetDefaults fills settings left empty by a partial config file.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Provider.Name == "" {
		c.Provider.Name = d.Provider.Name
	}
	c.Provider.Name = strings.ToLower(c.Provider.Name)
	if c.Provider.Model == "" {
		c.Provider.Model = defaultGeminiModel
		if c.Provider.Name == "ollama" {
			c.Provider.Model = defaultOllamaModel
		}
	}
	if c.Provider.OllamaURL == "" {
		c.Provider.OllamaURL = d.Provider.OllamaURL
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	if c.Storage.Path == "" {
		c.Storage.Path = d.Storage.Path
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = d.Storage.SQLitePath
	}
	if c.Storage.Key == "" {
		c.Storage.Key = d.Storage.Key
	}
	if c.Log.File == "" {
		c.Log.File = d.Log.File
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// StorageOptions converts the storage section for storage.Open.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:    c.Storage.Backend,
		Key:        c.Storage.Key,
		Path:       c.Storage.Path,
		SQLitePath: c.Storage.SQLitePath,
		RedisURL:   c.Storage.RedisURL,
	}
}

// IdleTimeout returns the idle timeout as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Provider.IdleTimeoutSecs) * time.Second
}

// =============================================================================
// LOAD & SAVE
// =============================================================================

// Load reads the TOML file at path (Path when empty), applies
// environment overrides and defaults, and validates the result. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as TOML to path with owner-only permissions.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	buf.WriteString("# gemchat configuration\n")
	buf.WriteString("# Environment variables (GEMCHAT_*, GEMINI_API_KEY) override these values.\n\n")
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(util.ExpandHome(path), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String renders the configuration as TOML with the API key masked.
func (c *Config) String() string {
	clone := *c
	if clone.Provider.APIKey != "" {
		clone.Provider.APIKey = maskSecret(clone.Provider.APIKey)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(clone); err != nil {
		return fmt.Sprintf("<unencodable config: %v>", err)
	}
	return buf.String()
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// envOverrides lists the environment variables gemchat reads.
type envOverrides struct {
	Provider        string `env:"GEMCHAT_PROVIDER"`
	Model           string `env:"GEMCHAT_MODEL"`
	APIKey          string `env:"GEMCHAT_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	OllamaURL       string `env:"GEMCHAT_OLLAMA_URL"`
	IdleTimeoutSecs int    `env:"GEMCHAT_IDLE_TIMEOUT_SECS" envDefault:"-1"`
	StorageBackend  string `env:"GEMCHAT_STORAGE_BACKEND"`
	StoragePath     string `env:"GEMCHAT_STORAGE_PATH"`
	RedisURL        string `env:"GEMCHAT_REDIS_URL"`
	LogLevel        string `env:"GEMCHAT_LOG_LEVEL"`
}

// ApplyEnvOverrides applies GEMCHAT_* variables on top of c. GEMCHAT_API_KEY
// takes precedence over GEMINI_API_KEY.
func (c *Config) ApplyEnvOverrides() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	setIf := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIf(&c.Provider.Name, o.Provider)
	setIf(&c.Provider.Model, o.Model)
	setIf(&c.Provider.APIKey, o.GeminiAPIKey)
	setIf(&c.Provider.APIKey, o.APIKey)
	setIf(&c.Provider.OllamaURL, o.OllamaURL)
	setIf(&c.Storage.Backend, o.StorageBackend)
	setIf(&c.Storage.Path, o.StoragePath)
	setIf(&c.Storage.RedisURL, o.RedisURL)
	setIf(&c.Log.Level, o.LogLevel)
	if o.IdleTimeoutSecs >= 0 {
		c.Provider.IdleTimeoutSecs = o.IdleTimeoutSecs
	}
	return nil
}

// Overrides carries command-line settings; empty fields are left alone.
type Overrides struct {
	Provider string
	Model    string
	Storage  string
	Theme    string
}

// ApplyOverrides applies o on top of c and re-validates. Switching provider
// without naming a model drops the previous provider's default model.
func (c *Config) ApplyOverrides(o Overrides) error {
	if o.Provider != "" && !strings.EqualFold(o.Provider, c.Provider.Name) {
		if o.Model == "" && (c.Provider.Model == defaultGeminiModel || c.Provider.Model == defaultOllamaModel) {
			c.Provider.Model = ""
		}
		c.Provider.Name = o.Provider
	}
	if o.Model != "" {
		c.Provider.Model = o.Model
	}
	if o.Storage != "" {
		c.Storage.Backend = o.Storage
	}
	if o.Theme != "" {
		c.UI.Theme = o.Theme
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every setting and returns ValidateErrors listing all
// problems, or nil. A missing API key is not a validation error; the
// provider reports it when a message is sent.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !oneOf(c.Provider.Name, ValidProviders) {
		add("provider.name", "invalid provider %q, must be one of: %s", c.Provider.Name, strings.Join(ValidProviders, ", "))
	}
	if c.Provider.IdleTimeoutSecs < 0 {
		add("provider.idle_timeout_secs", "must not be negative")
	}
	if c.Provider.Name == "ollama" {
		if u, err := url.Parse(c.Provider.OllamaURL); err != nil || u.Scheme == "" || u.Host == "" {
			add("provider.ollama_url", "invalid URL %q", c.Provider.OllamaURL)
		}
	}

	if !oneOf(c.Storage.Backend, ValidBackends) {
		add("storage.backend", "invalid backend %q, must be one of: %s", c.Storage.Backend, strings.Join(ValidBackends, ", "))
	}
	if c.Storage.Backend == "redis" && c.Storage.RedisURL == "" {
		add("storage.redis_url", "required when storage.backend is redis")
	}
	if c.Storage.Key == "" {
		add("storage.key", "must not be empty")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		add("log.level", "invalid level %q", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		add("log", "rotation limits must not be negative")
	}

	if !oneOf(c.UI.Theme, ValidThemes) {
		add("ui.theme", "invalid theme %q, must be one of: %s", c.UI.Theme, strings.Join(ValidThemes, ", "))
	}
	if c.UI.WordWrap < 0 {
		add("ui.word_wrap", "must not be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}
