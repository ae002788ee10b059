// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backtest

import (
	"errors"
	"strings"
	"time"

	"github.com/perpdeck/perpdeck-tui/internal/api"
	"github.com/perpdeck/perpdeck-tui/internal/util"
)

// field labels in form order.
var fieldLabels = [fieldCount]string{
	fieldPrompt:    "Prompt",
	fieldSymbol:    "Symbol",
	fieldTimeframe: "Timeframe",
	fieldStart:     "Start",
	fieldEnd:       "End",
}

// validateRequest checks the form before submission.
func validateRequest(req *api.BacktestRequest) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if strings.TrimSpace(req.Symbol) == "" {
		return errors.New("symbol is required")
	}
	if strings.TrimSpace(req.Timeframe) == "" {
		return errors.New("timeframe is required")
	}
	for _, date := range []string{req.StartDate, req.EndDate} {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return errors.New("dates must be YYYY-MM-DD")
		}
	}
	start, _ := time.Parse("2006-01-02", req.StartDate)
	end, _ := time.Parse("2006-01-02", req.EndDate)
	if !start.Before(end) {
		return errors.New("start date must precede end date")
	}
	return nil
}

// View renders the backtest view.
func (m *Model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	var sections []string
	sections = append(sections, m.renderForm(width))
	if m.job != nil {
		sections = append(sections, m.renderJob(width))
	}
	if m.result != nil {
		sections = append(sections, m.renderResult(width))
	}
	if m.lastErr != nil {
		sections = append(sections, m.theme.ErrorStyle.Render("[X] "+m.lastErr.Error()))
	}

	return strings.Join(sections, "\n\n")
}

func (m *Model) renderForm(width int) string {
	rows := []string{m.theme.HeaderTitle.Render("Prompt Backtest"), ""}

	for i := range m.fields {
		label := util.PadWidth(fieldLabels[i], 11)
		if i == m.focused {
			label = m.theme.ShortcutKey.Render(label)
		} else {
			label = m.theme.StatsLabel.Render(label)
		}
		rows = append(rows, label+m.fields[i].View())
	}

	rows = append(rows, "",
		m.theme.ShortcutDesc.Render("tab next field  enter submit"))

	return m.theme.TableBorder.Width(width - 2).Render(strings.Join(rows, "\n"))
}

func (m *Model) renderJob(width int) string {
	j := m.job

	var status string
	switch j.Status {
	case api.BacktestCompleted:
		status = m.theme.SuccessStyle.Render("[OK] completed")
	case api.BacktestFailed:
		status = m.theme.ErrorStyle.Render("[X] failed: " + j.Error)
	default:
		pct := util.FormatPct(j.Progress)
		status = m.theme.InfoStyle.Render("[i] "+j.Status) + " " +
			m.theme.StatsValue.Render(pct) + " " + renderProgressBar(j.Progress, 30)
	}

	body := m.theme.StatsLabel.Render("job #"+util.Int64ToString(j.ID)) + "  " + status
	return m.theme.TableBorder.Width(width - 2).Render(body)
}

func (m *Model) renderResult(width int) string {
	r := m.result

	pnlStyle := m.theme.ValueNeutral
	switch {
	case r.PnlPct > 0:
		pnlStyle = m.theme.ValuePositive
	case r.PnlPct < 0:
		pnlStyle = m.theme.ValueNegative
	}

	rows := []string{
		m.theme.HeaderTitle.Render("Result"),
		m.statLine("trades", util.IntToString(r.Trades)),
		m.statLine("win rate", util.FormatPct(r.WinRate)),
		m.theme.StatsLabel.Render(util.PadWidth("pnl", 14)) + pnlStyle.Render(util.FormatPct(r.PnlPct/100)),
		m.statLine("max drawdown", util.FormatPct(r.MaxDrawdown)),
		m.statLine("sharpe", util.FloatToString(r.SharpeRatio)),
		m.statLine("profit factor", util.FloatToString(r.ProfitFactor)),
	}

	return m.theme.TableBorder.Width(width - 2).Render(strings.Join(rows, "\n"))
}

func (m *Model) statLine(label, value string) string {
	return m.theme.StatsLabel.Render(util.PadWidth(label, 14)) +
		m.theme.StatsValue.Render(value)
}

// renderProgressBar renders an ASCII progress bar for a 0..1 ratio.
func renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * float64(width))
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}
