// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestTOMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Platform.BaseURL = "https://testnet.perpdeck.io"
	cfg.Exchange.Name = "binance"
	cfg.UI.Theme = "light"

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Platform.BaseURL != "https://testnet.perpdeck.io" {
		t.Errorf("base_url = %q", loaded.Platform.BaseURL)
	}
	if loaded.Exchange.Name != "binance" {
		t.Errorf("exchange = %q", loaded.Exchange.Name)
	}
	if loaded.UI.Theme != "light" {
		t.Errorf("theme = %q", loaded.UI.Theme)
	}
}

func TestJSONLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	data := `{"platform":{"base_url":"https://api.perpdeck.io","assistant":"diagnose"}}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Platform.Assistant != "diagnose" {
		t.Errorf("assistant = %q", cfg.Platform.Assistant)
	}
	// Missing sections should be filled from defaults.
	if cfg.Exchange.Name != "hyperliquid" {
		t.Errorf("exchange default not applied: %q", cfg.Exchange.Name)
	}
	if cfg.Platform.TimeoutSecs != 30 {
		t.Errorf("timeout default not applied: %d", cfg.Platform.TimeoutSecs)
	}
}

func TestValidationRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad scheme", func(c *Config) { c.Platform.BaseURL = "ftp://nope" }, "platform.base_url"},
		{"bad assistant", func(c *Config) { c.Platform.Assistant = "oracle" }, "platform.assistant"},
		{"bad exchange", func(c *Config) { c.Exchange.Name = "mtgox" }, "exchange.name"},
		{"bad theme", func(c *Config) { c.UI.Theme = "solarized" }, "ui.theme"},
		{"bad format", func(c *Config) { c.Export.Format = "pdf" }, "export.format"},
		{"negative retention", func(c *Config) { c.Storage.RetentionDays = -1 }, "storage.retention_days"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var errs ValidateErrors
			if !errors.As(err, &errs) {
				t.Fatalf("err type = %T", err)
			}
			if !strings.Contains(errs.Error(), tc.field) {
				t.Errorf("error %q does not mention %s", errs.Error(), tc.field)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PERPDECK_API_KEY", "env-key")
	t.Setenv("PERPDECK_EXCHANGE", "binance")
	t.Setenv("PERPDECK_NO_TELEMETRY", "1")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Platform.APIKey != "env-key" {
		t.Errorf("api key = %q", cfg.Platform.APIKey)
	}
	if cfg.Exchange.Name != "binance" {
		t.Errorf("exchange = %q", cfg.Exchange.Name)
	}
	if cfg.Telemetry.Enabled {
		t.Error("telemetry not disabled by env")
	}
}

func TestSecurePermissionsFixedOnLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("version = \"1.0.0\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromPath(path); err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := SaveTOML(Default(), path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path,
		func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		},
		func(err error) { t.Logf("watch error: %v", err) })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	cfg := Default()
	cfg.UI.Theme = "light"
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case got := <-reloaded:
		if got.UI.Theme != "light" {
			t.Errorf("reloaded theme = %q", got.UI.Theme)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config change never reloaded")
	}
}
