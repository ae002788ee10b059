// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import "strconv"

// IntToString converts an int to string.
func IntToString(i int) string {
	return strconv.Itoa(i)
}

// Int64ToString converts an int64 to string.
func Int64ToString(i int64) string {
	return strconv.FormatInt(i, 10)
}

// FloatToString converts a float64 to string with 2 decimal places.
func FloatToString(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// FormatPrice formats a price for display. Prices under a dollar keep four
// decimals so small-cap perps remain readable; everything else gets two.
func FormatPrice(p float64) string {
	abs := p
	if abs < 0 {
		abs = -abs
	}
	if abs > 0 && abs < 1 {
		return strconv.FormatFloat(p, 'f', 4, 64)
	}
	return strconv.FormatFloat(p, 'f', 2, 64)
}

// FormatSigned formats a signed quantity with an explicit "+" on positive
// values, as used for PnL and funding columns.
func FormatSigned(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	if f > 0 {
		return "+" + s
	}
	return s
}

// FormatPct formats a ratio as a percentage with two decimals.
func FormatPct(ratio float64) string {
	return strconv.FormatFloat(ratio*100, 'f', 2, 64) + "%"
}
