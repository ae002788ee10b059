// perpdeck - trading dashboard and strategy chat for crypto perpetuals.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/perpdeck/perpdeck-tui/internal/cli"
	"github.com/perpdeck/perpdeck-tui/internal/config"
	"github.com/perpdeck/perpdeck-tui/internal/store"
	"github.com/perpdeck/perpdeck-tui/internal/telemetry"
	"github.com/perpdeck/perpdeck-tui/internal/ui"
	"github.com/perpdeck/perpdeck-tui/internal/ui/styles"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdTUI:
		runTUI(args)
	case cli.CmdAsk:
		exitOnError(cli.HandleAskCommand(args))
	case cli.CmdChat:
		exitOnError(cli.HandleChatCommand(args))
	case cli.CmdStatus:
		exitOnError(cli.HandleStatusCommand(args))
	case cli.CmdConfig:
		exitOnError(cli.HandleConfigCommand(args))
	case cli.CmdKeys:
		exitOnError(cli.HandleKeysCommand(args))
	case cli.CmdWatchlist:
		exitOnError(cli.HandleWatchlistCommand(args))
	case cli.CmdVersion:
		cli.PrintVersion(args.JSON)
	case cli.CmdHelp:
		cli.PrintUsage()
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runTUI starts the full-screen application.
func runTUI(args cli.Args) {
	cfg, err := cli.LoadConfig()
	if err != nil {
		exitOnError(err)
	}

	client, ctrl, err := cli.NewSession(cfg, args)
	if err != nil {
		exitOnError(err)
	}

	// Stderr is owned by the alternate screen, so debug output goes to a
	// file when requested.
	if os.Getenv("PERPDECK_DEBUG") != "" {
		if f, err := tea.LogToFile("perpdeck-debug.log", "perpdeck"); err == nil {
			defer f.Close()
		}
	}

	theme := styles.NewThemeWithPreference(cfg.UI.Theme)
	app := ui.NewApp(cfg, ctrl, client, theme)

	// The local database is optional: without it the TUI loses the
	// offline conversation cache and round telemetry, nothing else.
	if st := openStore(cfg); st != nil {
		defer st.Close()
		app.Chat().SetStore(st)
		app.Chat().SetRecorder(telemetry.NewTracker(st, cfg.Telemetry.Enabled))
	}

	// Config edits take effect on the next restart; the watcher only
	// surfaces validation problems early.
	watcher := watchConfig()
	if watcher != nil {
		defer watcher.Close()
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore opens the local database, pruning expired rows. Failures
// degrade to a store-less session.
func openStore(cfg *config.Config) *store.Store {
	path, err := cfg.DatabasePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: local storage disabled: %v\n", err)
		return nil
	}
	st, err := store.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: local storage disabled: %v\n", err)
		return nil
	}

	if cfg.Storage.RetentionDays > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Prune(ctx, time.Duration(cfg.Storage.RetentionDays)*24*time.Hour); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: pruning local storage: %v\n", err)
		}
	}
	return st
}

// watchConfig reports config file problems while the TUI runs. Nil when
// the config file does not exist yet.
func watchConfig() *config.Watcher {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	w, err := config.NewWatcher(path,
		func(*config.Config) {
			fmt.Fprintln(os.Stderr, "config changed; restart perpdeck to apply")
		},
		func(err error) {
			fmt.Fprintf(os.Stderr, "config reload error: %v\n", err)
		})
	if err != nil {
		return nil
	}
	if err := w.Watch(); err != nil {
		w.Close()
		return nil
	}
	return w
}
