// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

// =============================================================================
// THEME TESTS
// =============================================================================

func TestNewThemeWithPreference(t *testing.T) {
	dark := NewThemeWithPreference("dark")
	if !dark.IsDark {
		t.Error("dark preference should force dark palette")
	}

	light := NewThemeWithPreference("light")
	if light.IsDark {
		t.Error("light preference should force light palette")
	}
}

func TestLayoutModes(t *testing.T) {
	theme := NewThemeWithPreference("dark")

	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
		{200, LayoutWide},
	}

	for _, tt := range tests {
		theme.SetSize(tt.width, 40)
		if got := theme.GetLayoutMode(); got != tt.want {
			t.Errorf("width %d: layout = %v, want %v", tt.width, got, tt.want)
		}
	}
}

func TestSeverityColor(t *testing.T) {
	if SeverityColor("critical") != SeverityCritical {
		t.Error("critical severity should map to critical color")
	}
	if SeverityColor("warning") != SeverityWarning {
		t.Error("warning severity should map to warning color")
	}
	// Unknown severities degrade to info rather than failing.
	if SeverityColor("bogus") != SeverityInfo {
		t.Error("unknown severity should map to info color")
	}
}

func TestPnLColor(t *testing.T) {
	if PnLColor(120.5) != Long {
		t.Error("positive value should use long color")
	}
	if PnLColor(-3.2) != Short {
		t.Error("negative value should use short color")
	}
	if PnLColor(0) != Flat {
		t.Error("zero value should use flat color")
	}
}

// ACCESSIBILITY: status renderers must carry a shape indicator so state is
// readable without color.
func TestStatusRenderersIncludeIndicators(t *testing.T) {
	if !strings.Contains(RenderSuccess("saved"), StatusIndicators.Success) {
		t.Error("success output missing shape indicator")
	}
	if !strings.Contains(RenderError("failed"), StatusIndicators.Error) {
		t.Error("error output missing shape indicator")
	}
	if !strings.Contains(RenderWarning("careful"), StatusIndicators.Warning) {
		t.Error("warning output missing shape indicator")
	}
	if !strings.Contains(RenderInfo("note"), StatusIndicators.Info) {
		t.Error("info output missing shape indicator")
	}
}
