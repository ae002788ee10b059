// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// perpdeck.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.perpdeck/config.toml
//   - ~/.perpdeck/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/perpdeck/perpdeck-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete perpdeck configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Platform API configuration
	Platform PlatformConfig `toml:"platform" json:"platform"`

	// Exchange selection
	Exchange ExchangeConfig `toml:"exchange" json:"exchange"`

	// Dashboard refresh behavior
	Dashboard DashboardConfig `toml:"dashboard" json:"dashboard"`

	// Local storage configuration
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Session telemetry configuration
	Telemetry TelemetryConfig `toml:"telemetry" json:"telemetry"`

	// Transcript export configuration
	Export ExportConfig `toml:"export" json:"export"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`
}

// PlatformConfig contains perpdeck platform API settings.
type PlatformConfig struct {
	// BaseURL is the platform API endpoint.
	BaseURL string `toml:"base_url" json:"base_url"`
	// APIKey authenticates against the platform. Values with an "ENC:"
	// prefix are decrypted by the credentials layer before use.
	APIKey string `toml:"api_key" json:"api_key"`
	// Assistant is the default assistant for new conversations:
	// "chat", "diagnose", "signal", "prompt".
	Assistant string `toml:"assistant" json:"assistant"`
	// TimeoutSecs is the request timeout for non-streaming calls.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// MaxRetries is the retry budget for idempotent requests.
	MaxRetries int `toml:"max_retries" json:"max_retries"`
}

// ExchangeConfig selects which exchange account the dashboard reads.
type ExchangeConfig struct {
	// Name is "hyperliquid" or "binance".
	Name string `toml:"name" json:"name"`
	// Testnet points the dashboard at the exchange testnet account.
	Testnet bool `toml:"testnet" json:"testnet"`
}

// DashboardConfig controls dashboard polling.
type DashboardConfig struct {
	// RefreshSecs is the positions/watchlist poll interval. 0 disables
	// auto-refresh.
	RefreshSecs int `toml:"refresh_secs" json:"refresh_secs"`
}

// StorageConfig contains local SQLite storage settings.
type StorageConfig struct {
	// Path is the database file (empty = ~/.perpdeck/perpdeck.db).
	Path string `toml:"path" json:"path"`
	// CacheConversations mirrors conversation metadata locally so the
	// picker works while offline.
	CacheConversations bool `toml:"cache_conversations" json:"cache_conversations"`
	// RetentionDays prunes cached rows older than this. 0 keeps forever.
	RetentionDays int `toml:"retention_days" json:"retention_days"`
}

// TelemetryConfig controls local stream statistics collection. Nothing is
// ever sent anywhere; rows stay in the local database.
type TelemetryConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
}

// ExportConfig contains transcript export settings.
type ExportConfig struct {
	// Dir is the export target directory (empty = ~/.perpdeck/exports).
	Dir string `toml:"dir" json:"dir"`
	// Format is the default export format: "markdown" or "json".
	Format string `toml:"format" json:"format"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// CompactMode uses a more compact UI layout
	CompactMode bool `toml:"compact_mode" json:"compact_mode"`
	// ShowActivityLog expands reasoning/tool steps under streaming replies.
	ShowActivityLog bool `toml:"show_activity_log" json:"show_activity_log"`
	// MarkdownWidth caps rendered markdown width, 0 = terminal width.
	MarkdownWidth int `toml:"markdown_width" json:"markdown_width"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Platform: PlatformConfig{
			BaseURL:     "https://api.perpdeck.io",
			APIKey:      "",
			Assistant:   "chat",
			TimeoutSecs: 30,
			MaxRetries:  3,
		},

		Exchange: ExchangeConfig{
			Name:    "hyperliquid",
			Testnet: false,
		},

		Dashboard: DashboardConfig{
			RefreshSecs: 15,
		},

		Storage: StorageConfig{
			CacheConversations: true,
			RetentionDays:      90,
		},

		Telemetry: TelemetryConfig{
			Enabled: true,
		},

		Export: ExportConfig{
			Format: "markdown",
		},

		UI: UIConfig{
			Theme:           "dark",
			CompactMode:     false,
			ShowActivityLog: true,
			MarkdownWidth:   100,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the perpdeck configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".perpdeck"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) to protect
// the API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			return LoadFromPath(tomlPath)
		}
	}

	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if strings.HasSuffix(path, ".json") {
		if err := loadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := loadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func loadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// loadJSON loads configuration from a JSON file.
// SECURITY: Checks and fixes file permissions on load.
func loadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# perpdeck configuration file")
	fmt.Fprintln(file, "# Generated by perpdeck - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// SaveJSON saves the configuration to a JSON file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveJSON(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
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
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Platform.BaseURL != "" {
		u, err := url.Parse(c.Platform.BaseURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, ValidationError{
				Field:   "platform.base_url",
				Message: fmt.Sprintf("invalid URL '%s', must be http(s) with a host", c.Platform.BaseURL),
			})
		}
	}

	validAssistants := map[string]bool{"chat": true, "diagnose": true, "signal": true, "prompt": true}
	if !validAssistants[strings.ToLower(c.Platform.Assistant)] {
		errs = append(errs, ValidationError{
			Field:   "platform.assistant",
			Message: fmt.Sprintf("invalid assistant '%s', must be one of: chat, diagnose, signal, prompt", c.Platform.Assistant),
		})
	}

	if c.Platform.TimeoutSecs < 1 || c.Platform.TimeoutSecs > 300 {
		errs = append(errs, ValidationError{
			Field:   "platform.timeout_secs",
			Message: fmt.Sprintf("timeout_secs must be 1-300, got %d", c.Platform.TimeoutSecs),
		})
	}

	if c.Platform.MaxRetries < 0 || c.Platform.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "platform.max_retries",
			Message: fmt.Sprintf("max_retries must be 0-10, got %d", c.Platform.MaxRetries),
		})
	}

	validExchanges := map[string]bool{"hyperliquid": true, "binance": true}
	if !validExchanges[strings.ToLower(c.Exchange.Name)] {
		errs = append(errs, ValidationError{
			Field:   "exchange.name",
			Message: fmt.Sprintf("invalid exchange '%s', must be one of: hyperliquid, binance", c.Exchange.Name),
		})
	}

	if c.Dashboard.RefreshSecs < 0 || c.Dashboard.RefreshSecs > 3600 {
		errs = append(errs, ValidationError{
			Field:   "dashboard.refresh_secs",
			Message: fmt.Sprintf("refresh_secs must be 0-3600, got %d", c.Dashboard.RefreshSecs),
		})
	}

	if c.Storage.RetentionDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.retention_days",
			Message: "must be non-negative",
		})
	}

	validFormats := map[string]bool{"markdown": true, "json": true}
	if !validFormats[strings.ToLower(c.Export.Format)] {
		errs = append(errs, ValidationError{
			Field:   "export.format",
			Message: fmt.Sprintf("invalid format '%s', must be one of: markdown, json", c.Export.Format),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if c.UI.MarkdownWidth < 0 || c.UI.MarkdownWidth > 500 {
		errs = append(errs, ValidationError{
			Field:   "ui.markdown_width",
			Message: fmt.Sprintf("markdown_width must be 0-500, got %d", c.UI.MarkdownWidth),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value
// configuration fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}

	if c.Platform.BaseURL == "" {
		c.Platform.BaseURL = defaults.Platform.BaseURL
	}
	if c.Platform.Assistant == "" {
		c.Platform.Assistant = defaults.Platform.Assistant
	}
	if c.Platform.TimeoutSecs == 0 {
		c.Platform.TimeoutSecs = defaults.Platform.TimeoutSecs
	}
	if c.Platform.MaxRetries == 0 {
		c.Platform.MaxRetries = defaults.Platform.MaxRetries
	}

	if c.Exchange.Name == "" {
		c.Exchange.Name = defaults.Exchange.Name
	}

	if c.Dashboard.RefreshSecs == 0 {
		c.Dashboard.RefreshSecs = defaults.Dashboard.RefreshSecs
	}

	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = defaults.Storage.RetentionDays
	}

	if c.Export.Format == "" {
		c.Export.Format = defaults.Export.Format
	}

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.UI.MarkdownWidth == 0 {
		c.UI.MarkdownWidth = defaults.UI.MarkdownWidth
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - PERPDECK_BASE_URL: overrides platform.base_url
//   - PERPDECK_API_KEY: overrides platform.api_key
//   - PERPDECK_ASSISTANT: overrides platform.assistant
//   - PERPDECK_EXCHANGE: overrides exchange.name
//   - PERPDECK_TESTNET: set to "1" or "true" for testnet
//   - PERPDECK_DB: overrides storage.path
//   - PERPDECK_THEME: overrides ui.theme
//   - PERPDECK_NO_TELEMETRY: set to "1" or "true" to disable telemetry
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PERPDECK_BASE_URL"); v != "" {
		c.Platform.BaseURL = v
	}
	if v := os.Getenv("PERPDECK_API_KEY"); v != "" {
		c.Platform.APIKey = v
	}
	if v := os.Getenv("PERPDECK_ASSISTANT"); v != "" {
		c.Platform.Assistant = v
	}
	if v := os.Getenv("PERPDECK_EXCHANGE"); v != "" {
		c.Exchange.Name = v
	}
	if v := os.Getenv("PERPDECK_TESTNET"); v != "" {
		c.Exchange.Testnet = isTruthy(v)
	}
	if v := os.Getenv("PERPDECK_DB"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("PERPDECK_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("PERPDECK_NO_TELEMETRY"); v != "" {
		c.Telemetry.Enabled = !isTruthy(v)
	}
}

func isTruthy(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

// =============================================================================
// DERIVED PATHS
// =============================================================================

// DatabasePath resolves the SQLite database file location.
func (c *Config) DatabasePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "perpdeck.db"), nil
}

// ExportDir resolves the transcript export directory.
func (c *Config) ExportDir() (string, error) {
	if c.Export.Dir != "" {
		return c.Export.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "exports"), nil
}
