// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// keys_cmd.go - Credential keyring management for the perpdeck CLI.
//
// Handles "perpdeck keys": initializes the passphrase-derived keyring
// and encrypts the platform API key into the config file so it never
// sits on disk in plaintext.
//
// Subcommands:
//   init     Create the keyring
//   set      Encrypt and store the platform API key
//   status   Show keyring and key state

package cli

import (
	"fmt"
	"strings"

	"github.com/perpdeck/perpdeck-tui/internal/config"
	"github.com/perpdeck/perpdeck-tui/internal/credentials"
)

// HandleKeysCommand handles the "keys" command.
func HandleKeysCommand(args Args) error {
	dir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("locating config directory: %w", err)
	}
	ring := credentials.NewKeyring(dir)

	switch args.Subcommand {
	case "init":
		return keysInit(ring)
	case "set":
		return keysSet(ring)
	case "status", "":
		return keysStatus(ring)
	default:
		return fmt.Errorf("unknown keys subcommand %q (init, set, status)", args.Subcommand)
	}
}

func keysInit(ring *credentials.Keyring) error {
	if ring.Initialized() {
		return fmt.Errorf("keyring already exists; remove keyring.salt and keyring.check to start over")
	}

	pass, err := ReadPassphrase("New keyring passphrase: ")
	if err != nil {
		return err
	}
	defer credentials.ZeroBytes(pass)
	if len(pass) < 8 {
		return fmt.Errorf("passphrase must be at least 8 characters")
	}

	confirm, err := ReadPassphrase("Confirm passphrase: ")
	if err != nil {
		return err
	}
	defer credentials.ZeroBytes(confirm)
	if string(pass) != string(confirm) {
		return fmt.Errorf("passphrases do not match")
	}

	if err := ring.Initialize(string(pass)); err != nil {
		return fmt.Errorf("creating keyring: %w", err)
	}
	defer ring.Lock()

	fmt.Println(commandStyle.Render("[OK] keyring created"))
	fmt.Println(infoStyle.Render("Next: perpdeck keys set"))
	return nil
}

func keysSet(ring *credentials.Keyring) error {
	if !ring.Initialized() {
		return fmt.Errorf("no keyring; run: perpdeck keys init")
	}

	pass, err := ReadPassphrase("Keyring passphrase: ")
	if err != nil {
		return err
	}
	defer credentials.ZeroBytes(pass)
	if err := ring.Unlock(string(pass)); err != nil {
		return fmt.Errorf("unlocking keyring: %w", err)
	}
	defer ring.Lock()

	key, err := ReadPassphrase("Platform API key: ")
	if err != nil {
		return err
	}
	defer credentials.ZeroBytes(key)
	if strings.TrimSpace(string(key)) == "" {
		return fmt.Errorf("api key is empty")
	}

	sealed, err := ring.EncryptString(strings.TrimSpace(string(key)))
	if err != nil {
		return fmt.Errorf("encrypting api key: %w", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	cfg.Platform.APIKey = sealed
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println(commandStyle.Render("[OK] api key encrypted and saved"))
	return nil
}

func keysStatus(ring *credentials.Keyring) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("Keyring"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 15)))
	if ring.Initialized() {
		fmt.Printf("  %s %s\n", infoStyle.Render("Keyring:"), commandStyle.Render("initialized"))
	} else {
		fmt.Printf("  %s %s\n", infoStyle.Render("Keyring:"), warningStyle.Render("not initialized"))
	}

	switch {
	case cfg.Platform.APIKey == "":
		fmt.Printf("  %s %s\n", infoStyle.Render("API key:"), errorStyle.Render("not configured"))
	case credentials.IsEncrypted(cfg.Platform.APIKey):
		fmt.Printf("  %s %s\n", infoStyle.Render("API key:"), commandStyle.Render("encrypted"))
	default:
		fmt.Printf("  %s %s\n", infoStyle.Render("API key:"), warningStyle.Render("plaintext (run: perpdeck keys set)"))
	}
	fmt.Println()
	return nil
}
