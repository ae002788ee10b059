// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the perpdeck TUI.
package components

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/perpdeck/perpdeck-tui/internal/ui/styles"
	"github.com/perpdeck/perpdeck-tui/internal/util"
)

// =============================================================================
// TABLE COMPONENT - dashboard tables (positions, watchlist)
// =============================================================================

// Cell is one table cell with an optional signed-value tint.
type Cell struct {
	Text string
	// Tint controls the value color: >0 green, <0 red, 0 neutral.
	// Only applied when Tinted is true.
	Tint   float64
	Tinted bool
}

// PlainCell builds an untinted cell.
func PlainCell(text string) Cell {
	return Cell{Text: text}
}

// TintedCell builds a cell colored by the sign of value.
func TintedCell(text string, value float64) Cell {
	return Cell{Text: text, Tint: value, Tinted: true}
}

// Table is a fixed-column lipgloss table.
type Table struct {
	Headers []string
	Rows    [][]Cell
	theme   *styles.Theme
}

// NewTable creates a table with the given headers.
func NewTable(theme *styles.Theme, headers ...string) *Table {
	return &Table{
		Headers: headers,
		theme:   theme,
	}
}

// AddRow appends a row. Rows shorter than the header are padded with
// empty cells; longer rows are truncated.
func (t *Table) AddRow(cells ...Cell) {
	row := make([]Cell, len(t.Headers))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	t.Rows = append(t.Rows, row)
}

// Render renders the table, constrained to maxWidth.
func (t *Table) Render(maxWidth int) string {
	if len(t.Headers) == 0 {
		return ""
	}

	widths := t.columnWidths(maxWidth)

	var b strings.Builder

	// Header row
	var headerCells []string
	for i, h := range t.Headers {
		headerCells = append(headerCells, util.PadWidth(util.TruncateWidth(h, widths[i]), widths[i]))
	}
	b.WriteString(t.theme.TableHeader.Render(strings.Join(headerCells, "  ")))
	b.WriteString("\n")

	// Data rows, alternating backgrounds for scanability.
	for r, row := range t.Rows {
		var cells []string
		for i, cell := range row {
			text := util.PadWidth(util.TruncateWidth(cell.Text, widths[i]), widths[i])
			if cell.Tinted {
				switch {
				case cell.Tint > 0:
					text = t.theme.ValuePositive.Render(text)
				case cell.Tint < 0:
					text = t.theme.ValueNegative.Render(text)
				default:
					text = t.theme.ValueNeutral.Render(text)
				}
			}
			cells = append(cells, text)
		}

		line := strings.Join(cells, "  ")
		if r%2 == 1 {
			line = t.theme.TableRowAlt.Render(line)
		} else {
			line = t.theme.TableRow.Render(line)
		}
		b.WriteString(line)
		if r < len(t.Rows)-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

// columnWidths sizes each column to its widest cell, then shrinks the
// widest columns first when the natural width exceeds maxWidth.
func (t *Table) columnWidths(maxWidth int) []int {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell.Text); w > widths[i] {
				widths[i] = w
			}
		}
	}

	// Two spaces between columns.
	total := 2 * (len(widths) - 1)
	for _, w := range widths {
		total += w
	}

	for total > maxWidth {
		widest := 0
		for i := 1; i < len(widths); i++ {
			if widths[i] > widths[widest] {
				widest = i
			}
		}
		if widths[widest] <= 6 {
			break
		}
		widths[widest]--
		total--
	}

	return widths
}
