// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Status command for the perpdeck CLI.
//
// Handles "perpdeck status": configuration summary, platform
// reachability, and storage usage.

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/perpdeck/perpdeck-tui/internal/api"
	"github.com/perpdeck/perpdeck-tui/internal/credentials"
)

const statusTimeout = 10 * time.Second

// statusReport is the JSON shape emitted by "status --json".
type statusReport struct {
	Version       string `json:"version"`
	BaseURL       string `json:"base_url"`
	KeyConfigured bool   `json:"key_configured"`
	KeyEncrypted  bool   `json:"key_encrypted"`
	Assistant     string `json:"assistant"`
	Exchange      string `json:"exchange"`
	Testnet       bool   `json:"testnet"`
	Reachable     bool   `json:"reachable"`
	Error         string `json:"error,omitempty"`

	Conversations int   `json:"conversations,omitempty"`
	Messages      int   `json:"messages,omitempty"`
	BacktestRuns  int   `json:"backtest_runs,omitempty"`
	StorageBytes  int64 `json:"storage_bytes,omitempty"`
}

// HandleStatusCommand handles the "status" command.
func HandleStatusCommand(args Args) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	report := statusReport{
		Version:       Version,
		BaseURL:       cfg.Platform.BaseURL,
		KeyConfigured: cfg.Platform.APIKey != "",
		KeyEncrypted:  credentials.IsEncrypted(cfg.Platform.APIKey),
		Assistant:     cfg.Platform.Assistant,
		Exchange:      cfg.Exchange.Name,
		Testnet:       cfg.Exchange.Testnet,
	}

	// Reachability probe uses whatever key is resolvable without
	// prompting; an encrypted key still proves the endpoint answers.
	var stats *api.StorageStats
	if report.KeyConfigured && !report.KeyEncrypted {
		client := api.NewClient(cfg.Platform.BaseURL, cfg.Platform.APIKey)
		ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
		defer cancel()
		stats, err = client.StorageStats(ctx)
		if err != nil {
			report.Error = err.Error()
		} else {
			report.Reachable = true
			report.Conversations = stats.Conversations
			report.Messages = stats.Messages
			report.BacktestRuns = stats.BacktestRuns
			report.StorageBytes = stats.StorageBytes
		}
	}

	if args.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("perpdeck status"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()
	fmt.Printf("  %s %s\n", infoStyle.Render("Version:"), Version)
	fmt.Printf("  %s %s\n", infoStyle.Render("Platform:"), report.BaseURL)
	fmt.Printf("  %s %s\n", infoStyle.Render("API key:"), describeKey(report))
	fmt.Printf("  %s %s\n", infoStyle.Render("Assistant:"), report.Assistant)

	exchange := report.Exchange
	if report.Testnet {
		exchange += " " + warningStyle.Render("(testnet)")
	}
	fmt.Printf("  %s %s\n", infoStyle.Render("Exchange:"), exchange)

	switch {
	case report.Reachable:
		fmt.Printf("  %s %s\n", infoStyle.Render("Reachable:"), commandStyle.Render("yes"))
	case report.Error != "":
		fmt.Printf("  %s %s\n", infoStyle.Render("Reachable:"), errorStyle.Render("no: "+report.Error))
	default:
		fmt.Printf("  %s %s\n", infoStyle.Render("Reachable:"), infoStyle.Render("not probed"))
	}

	if stats != nil {
		fmt.Println()
		fmt.Println(infoStyle.Render("Storage:"))
		fmt.Printf("  %s %s\n", infoStyle.Render("Conversations:"), formatCount(stats.Conversations))
		fmt.Printf("  %s %s\n", infoStyle.Render("Messages:"), formatCount(stats.Messages))
		fmt.Printf("  %s %s\n", infoStyle.Render("Backtests:"), formatCount(stats.BacktestRuns))
		fmt.Printf("  %s %s\n", infoStyle.Render("Size:"), formatBytes(stats.StorageBytes))
		if stats.RetentionDays > 0 {
			fmt.Printf("  %s %d days\n", infoStyle.Render("Retention:"), stats.RetentionDays)
		}
	}
	fmt.Println()
	return nil
}

func describeKey(r statusReport) string {
	switch {
	case !r.KeyConfigured:
		return errorStyle.Render("not configured")
	case r.KeyEncrypted:
		return commandStyle.Render("configured (encrypted)")
	default:
		return warningStyle.Render("configured (plaintext; run: perpdeck keys set)")
	}
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
