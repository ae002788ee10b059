// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Command-line parsing for the perpdeck binary.
//
// CLI: Comprehensive help and examples for all commands

package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdStatus
	CmdConfig
	CmdKeys
	CmdWatchlist
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Assistant string // --assistant/-a: chat, diagnose, signal, prompt
	Quiet     bool   // -q/--quiet: suppress banners and stats
	Plain     bool   // --plain: no markdown rendering, no colors
	JSON      bool   // --json: machine-readable output where supported

	// Command-specific
	Query      string // ask: the question
	Subcommand string // config/keys: first positional after the command
	Raw        []string
}

const usageText = `perpdeck - trading dashboard and strategy chat for crypto perpetuals

Perpdeck connects to the perpdeck platform to chat with trading
assistants, inspect your account, and run strategy backtests.

Usage:
  perpdeck                      Start the TUI (default)
  perpdeck ask "question"       Ask a single question and exit
  perpdeck chat                 Interactive line-mode chat
  perpdeck status               Show configuration and platform status
  perpdeck config [show|path]   Configuration inspection
  perpdeck keys [init|set|status]  Credential keyring management
  perpdeck watchlist [show|add|remove]  Manage the market watchlist
  perpdeck version              Show version information
  perpdeck help                 Show this help

Global flags:
  -a, --assistant MODE   Assistant mode: chat, diagnose, signal, prompt
  -q, --quiet            Suppress banners and per-round stats
  --plain                Disable markdown rendering and colors
  --json                 Machine-readable output (status, version)

Examples:
  perpdeck ask "why did my ETH short get liquidated?"
  perpdeck ask -a signal "long BTC above the 4h 200 EMA"
  perpdeck chat -a diagnose
  perpdeck keys init

Chat commands (inside perpdeck chat):
  /help              Show commands
  /assistant [mode]  Show or switch assistant mode
  /conversations     List conversations
  /switch <id>       Open a conversation
  /resume            Resume an interrupted response
  /status            Session statistics
  /quit              Exit
  Ctrl+C cancels the current response, Ctrl+D exits.
`

// PrintUsage prints the top-level usage text.
func PrintUsage() {
	fmt.Print(usageText)
}

// PrintVersion prints version information.
func PrintVersion(jsonOut bool) {
	if jsonOut {
		fmt.Printf("{\"version\":%q,\"commit\":%q,\"date\":%q}\n", Version, GitCommit, BuildDate)
		return
	}
	fmt.Printf("perpdeck version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses os.Args and returns the command to run with its
// arguments.
func Parse() (Command, Args) {
	return parseArgs(os.Args[1:])
}

// parseArgs is the testable core of Parse.
func parseArgs(raw []string) (Command, Args) {
	remaining, args := parseGlobalFlags(raw)

	if len(remaining) == 0 {
		return CmdTUI, args
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, args

	case "ask":
		// Everything after the flags is the question.
		args.Query = strings.TrimSpace(strings.Join(remaining, " "))
		return CmdAsk, args

	case "chat":
		return CmdChat, args

	case "status", "s":
		return CmdStatus, args

	case "config":
		if len(remaining) > 0 {
			args.Subcommand = strings.ToLower(remaining[0])
			args.Raw = remaining[1:]
		}
		return CmdConfig, args

	case "keys", "keyring":
		if len(remaining) > 0 {
			args.Subcommand = strings.ToLower(remaining[0])
			args.Raw = remaining[1:]
		}
		return CmdKeys, args

	case "watchlist", "wl":
		if len(remaining) > 0 {
			args.Subcommand = strings.ToLower(remaining[0])
			args.Raw = remaining[1:]
		}
		return CmdWatchlist, args

	case "version", "--version", "-V":
		return CmdVersion, args

	case "help", "--help", "-h":
		return CmdHelp, args

	default:
		// Unknown first token: treat it as an implicit ask so
		// `perpdeck "what is my margin usage"` works.
		args.Query = strings.TrimSpace(strings.Join(append([]string{cmd}, remaining...), " "))
		return CmdAsk, args
	}
}

// parseGlobalFlags strips global flags from the argument list and
// returns the rest in order.
func parseGlobalFlags(raw []string) ([]string, Args) {
	var args Args
	var remaining []string

	i := 0
	for i < len(raw) {
		switch arg := raw[i]; arg {
		case "-a", "--assistant", "--mode":
			if i+1 < len(raw) {
				args.Assistant = strings.ToLower(raw[i+1])
				i += 2
				continue
			}
			i++
		case "-q", "--quiet":
			args.Quiet = true
			i++
		case "--plain":
			args.Plain = true
			i++
		case "--json":
			args.JSON = true
			i++
		default:
			if strings.HasPrefix(arg, "--assistant=") {
				args.Assistant = strings.ToLower(strings.TrimPrefix(arg, "--assistant="))
				i++
				continue
			}
			remaining = append(remaining, arg)
			i++
		}
	}

	return remaining, args
}
