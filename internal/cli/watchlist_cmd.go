// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// watchlist_cmd.go - Watchlist management for the perpdeck CLI.
//
// Handles "perpdeck watchlist":
//   show             Print the watchlist with prices
//   add <symbol>     Add a symbol
//   remove <symbol>  Remove a symbol

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/perpdeck/perpdeck-tui/internal/api"
	"github.com/perpdeck/perpdeck-tui/internal/util"
)

const watchlistTimeout = 10 * time.Second

// HandleWatchlistCommand handles the "watchlist" command.
func HandleWatchlistCommand(args Args) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	client, _, err := NewSession(cfg, args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), watchlistTimeout)
	defer cancel()

	switch args.Subcommand {
	case "show", "":
		return watchlistShow(ctx, client)
	case "add":
		if len(args.Raw) == 0 {
			return fmt.Errorf("usage: perpdeck watchlist add <symbol>")
		}
		return watchlistEdit(ctx, client, strings.ToUpper(args.Raw[0]), true)
	case "remove", "rm":
		if len(args.Raw) == 0 {
			return fmt.Errorf("usage: perpdeck watchlist remove <symbol>")
		}
		return watchlistEdit(ctx, client, strings.ToUpper(args.Raw[0]), false)
	default:
		return fmt.Errorf("unknown watchlist subcommand %q (show, add, remove)", args.Subcommand)
	}
}

func watchlistShow(ctx context.Context, client *api.Client) error {
	entries, err := client.Watchlist(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println(infoStyle.Render("[Watchlist is empty]"))
		return nil
	}

	fmt.Println()
	for _, w := range entries {
		change := util.FormatPct(w.Change24hPct / 100)
		changeStyled := commandStyle.Render(change)
		if w.Change24hPct < 0 {
			changeStyled = errorStyle.Render(change)
		}
		fmt.Printf("  %s %s  24h %s  funding %s\n",
			headerStyle.Render(fmt.Sprintf("%-8s", w.Symbol)),
			util.FormatPrice(w.LastPrice),
			changeStyled,
			util.FormatPct(w.FundingRate))
	}
	fmt.Println()
	return nil
}

// watchlistEdit round-trips the symbol list: the platform stores the
// whole list, not deltas.
func watchlistEdit(ctx context.Context, client *api.Client, symbol string, add bool) error {
	entries, err := client.Watchlist(ctx)
	if err != nil {
		return err
	}

	symbols := make([]string, 0, len(entries)+1)
	found := false
	for _, w := range entries {
		if w.Symbol == symbol {
			found = true
			if !add {
				continue
			}
		}
		symbols = append(symbols, w.Symbol)
	}

	switch {
	case add && found:
		fmt.Printf("%s %s is already on the watchlist\n", infoStyle.Render("[Watchlist]"), symbol)
		return nil
	case !add && !found:
		return fmt.Errorf("%s is not on the watchlist", symbol)
	case add:
		symbols = append(symbols, symbol)
	}

	if err := client.SaveWatchlist(ctx, symbols); err != nil {
		return err
	}

	verb := "added"
	if !add {
		verb = "removed"
	}
	fmt.Printf("%s %s %s\n", commandStyle.Render("[OK]"), verb, symbol)
	return nil
}
