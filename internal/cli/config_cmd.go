// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration inspection for the perpdeck CLI.
//
// Handles "perpdeck config":
//   show   Print the effective configuration (api key redacted)
//   path   Print the config file location

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/perpdeck/perpdeck-tui/internal/config"
	"github.com/perpdeck/perpdeck-tui/internal/credentials"
)

// HandleConfigCommand handles the "config" command.
func HandleConfigCommand(args Args) error {
	switch args.Subcommand {
	case "show", "":
		return configShow()
	case "path":
		return configPath()
	default:
		return fmt.Errorf("unknown config subcommand %q (show, path)", args.Subcommand)
	}
}

func configShow() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	// Never print credentials, encrypted or not.
	redacted := *cfg
	if redacted.Platform.APIKey != "" {
		if credentials.IsEncrypted(redacted.Platform.APIKey) {
			redacted.Platform.APIKey = "<encrypted>"
		} else {
			redacted.Platform.APIKey = "<redacted>"
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(&redacted)
}

func configPath() error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		// Fall back to the JSON location if that is what exists.
		if jsonPath, jErr := config.ConfigPathJSON(); jErr == nil {
			if _, jStatErr := os.Stat(jsonPath); jStatErr == nil {
				fmt.Println(jsonPath)
				return nil
			}
		}
	}
	fmt.Println(path)
	return nil
}
