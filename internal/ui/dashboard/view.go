// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import (
	"strings"

	"github.com/perpdeck/perpdeck-tui/internal/ui/components"
	"github.com/perpdeck/perpdeck-tui/internal/util"
)

// View renders the dashboard view.
func (m *Model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	var sections []string
	sections = append(sections, m.renderSummary(width))
	sections = append(sections, m.renderPositions(width))
	sections = append(sections, m.renderWatchlist(width))
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n\n")
}

// =============================================================================
// ACCOUNT SUMMARY
// =============================================================================

func (m *Model) renderSummary(width int) string {
	header := m.theme.HeaderTitle.Render("Account")
	if m.summary == nil {
		body := m.theme.StatsLabel.Render("waiting for account data...")
		if m.lastErr != nil {
			body = m.theme.ErrorMessage.Render(m.lastErr.Error())
		}
		return m.theme.TableBorder.Width(width - 2).Render(header + "\n" + body)
	}

	s := m.summary
	pnlStyle := m.theme.ValueNeutral
	switch {
	case s.UnrealizedPnl > 0:
		pnlStyle = m.theme.ValuePositive
	case s.UnrealizedPnl < 0:
		pnlStyle = m.theme.ValueNegative
	}

	rows := []string{
		header + "  " + m.theme.StatsLabel.Render(s.Exchange),
		m.statLine("equity", util.FormatPrice(s.Equity)),
		m.statLine("available", util.FormatPrice(s.AvailableBalance)),
		m.statLine("margin used", util.FormatPrice(s.MarginUsed)),
		m.theme.StatsLabel.Render(util.PadWidth("unrealized", 14)) +
			pnlStyle.Render(util.FormatSigned(s.UnrealizedPnl)),
		m.statLine("realized 24h", util.FormatSigned(s.RealizedPnl24h)),
	}

	return m.theme.TableBorder.Width(width - 2).Render(strings.Join(rows, "\n"))
}

func (m *Model) statLine(label, value string) string {
	return m.theme.StatsLabel.Render(util.PadWidth(label, 14)) +
		m.theme.StatsValue.Render(value)
}

// =============================================================================
// POSITIONS
// =============================================================================

func (m *Model) renderPositions(width int) string {
	header := m.theme.HeaderTitle.Render("Positions")
	if len(m.positions) == 0 {
		return m.theme.TableBorder.Width(width - 2).Render(
			header + "\n" + m.theme.StatsLabel.Render("no open positions"))
	}

	tbl := components.NewTable(m.theme,
		"Symbol", "Side", "Size", "Entry", "Mark", "Liq", "Lev", "uPnL", "Funding")
	for _, p := range m.positions {
		sideTint := 1.0
		if p.Side == "short" {
			sideTint = -1.0
		}
		tbl.AddRow(
			components.PlainCell(p.Symbol),
			components.TintedCell(p.Side, sideTint),
			components.PlainCell(util.FloatToString(p.Size)),
			components.PlainCell(util.FormatPrice(p.EntryPrice)),
			components.PlainCell(util.FormatPrice(p.MarkPrice)),
			components.PlainCell(util.FormatPrice(p.LiqPrice)),
			components.PlainCell(util.FloatToString(p.Leverage)+"x"),
			components.TintedCell(util.FormatSigned(p.UnrealizedPnl), p.UnrealizedPnl),
			components.PlainCell(util.FormatSigned(p.FundingPaid)),
		)
	}

	return m.theme.TableBorder.Width(width - 2).Render(header + "\n" + tbl.Render(width-6))
}

// =============================================================================
// WATCHLIST
// =============================================================================

func (m *Model) renderWatchlist(width int) string {
	header := m.theme.HeaderTitle.Render("Watchlist")
	if len(m.watchlist) == 0 {
		return m.theme.TableBorder.Width(width - 2).Render(
			header + "\n" + m.theme.StatsLabel.Render("watchlist is empty"))
	}

	tbl := components.NewTable(m.theme, "Symbol", "Last", "24h", "Funding")
	for _, w := range m.watchlist {
		tbl.AddRow(
			components.PlainCell(w.Symbol),
			components.PlainCell(util.FormatPrice(w.LastPrice)),
			components.TintedCell(util.FormatPct(w.Change24hPct/100), w.Change24hPct),
			components.TintedCell(util.FormatPct(w.FundingRate), w.FundingRate),
		)
	}

	return m.theme.TableBorder.Width(width - 2).Render(header + "\n" + tbl.Render(width-6))
}

// =============================================================================
// FOOTER
// =============================================================================

func (m *Model) renderFooter() string {
	var parts []string
	if m.loading {
		parts = append(parts, "refreshing...")
	} else if !m.lastUpdated.IsZero() {
		parts = append(parts, "updated "+m.lastUpdated.Format("15:04:05"))
	}
	if m.lastErr != nil {
		parts = append(parts, m.theme.ErrorTitle.Render("refresh failed: "+m.lastErr.Error()))
	}
	parts = append(parts, m.theme.ShortcutKey.Render("r")+m.theme.ShortcutDesc.Render(" refresh"))

	return m.theme.StatsBar.Render(strings.Join(parts, "  "))
}
