// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Shared setup for the CLI commands: configuration
// loading, credential resolution, and output formatting.

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/perpdeck/perpdeck-tui/internal/api"
	"github.com/perpdeck/perpdeck-tui/internal/config"
	"github.com/perpdeck/perpdeck-tui/internal/credentials"
	"github.com/perpdeck/perpdeck-tui/internal/session"
	"github.com/perpdeck/perpdeck-tui/internal/util"
)

// assistantModes are the platform assistant modes a session can run in.
var assistantModes = map[string]bool{
	"chat":     true,
	"diagnose": true,
	"signal":   true,
	"prompt":   true,
}

// LoadConfig loads the user configuration, applying environment
// overrides. A missing config file yields defaults rather than an
// error.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// ResolveAPIKey returns the plaintext platform API key. Encrypted keys
// (the "ENC:" prefix) require the keyring passphrase, prompted on the
// terminal with echo disabled.
func ResolveAPIKey(cfg *config.Config) (string, error) {
	key := cfg.Platform.APIKey
	if key == "" || !credentials.IsEncrypted(key) {
		return key, nil
	}

	dir, err := config.ConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating keyring: %w", err)
	}
	ring := credentials.NewKeyring(dir)
	if !ring.Initialized() {
		return "", fmt.Errorf("api_key is encrypted but no keyring exists; run: perpdeck keys init")
	}

	pass, err := ReadPassphrase("Keyring passphrase: ")
	if err != nil {
		return "", err
	}
	defer credentials.ZeroBytes(pass)

	if err := ring.Unlock(string(pass)); err != nil {
		return "", fmt.Errorf("unlocking keyring: %w", err)
	}
	defer ring.Lock()

	plain, err := ring.DecryptString(key)
	if err != nil {
		return "", fmt.Errorf("decrypting api_key: %w", err)
	}
	return plain, nil
}

// NewSession builds a platform client and a session controller from the
// configuration and global flags.
func NewSession(cfg *config.Config, args Args) (*api.Client, *session.Controller, error) {
	assistant := cfg.Platform.Assistant
	if args.Assistant != "" {
		if !assistantModes[args.Assistant] {
			return nil, nil, fmt.Errorf("unknown assistant mode %q (chat, diagnose, signal, prompt)", args.Assistant)
		}
		assistant = args.Assistant
	}
	if assistant == "" {
		assistant = "chat"
	}

	key, err := ResolveAPIKey(cfg)
	if err != nil {
		return nil, nil, err
	}

	client := api.NewClient(cfg.Platform.BaseURL, key)
	return client, session.NewController(client, assistant), nil
}

// =============================================================================
// MARKDOWN OUTPUT
// =============================================================================

// newMarkdownRenderer builds a glamour renderer wrapped to the terminal
// width. Returns nil when rendering should be skipped (piped output,
// --plain, or renderer failure); callers fall back to raw text.
func newMarkdownRenderer(plain bool) *glamour.TermRenderer {
	if plain || !IsStdoutTTY() {
		return nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(TerminalWidth()),
	)
	if err != nil {
		return nil
	}
	return r
}

// renderMarkdown renders content through md, falling back to the raw
// text on any failure.
func renderMarkdown(md *glamour.TermRenderer, content string) string {
	if md == nil {
		return content
	}
	rendered, err := md.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n") + "\n"
}

// printError writes a styled error line to stderr.
func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
}

// formatCount renders an integer with thousands separators for the
// stats lines.
func formatCount(n int) string {
	s := util.IntToString(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
