package components

import (
	"strings"
	"testing"
)

var testColors = PanelColors{Border: "#223043", Accent: "#5B8DEF", Text: "#E6EDF3", Muted: "#8B9AAE"}

func TestRenderBatchPanelInactive(t *testing.T) {
	if got := RenderBatchPanel(testColors, false, 3, 10); got != "" {
		t.Errorf("inactive panel should render nothing, got %q", got)
	}
}

func TestRenderBatchPanelCounts(t *testing.T) {
	result := RenderBatchPanel(testColors, true, 2, 7)
	if !strings.Contains(result, "2 of 7 selected") {
		t.Errorf("panel missing counts: %q", result)
	}
	if !strings.Contains(result, "[X] Delete") {
		t.Errorf("panel missing batch actions: %q", result)
	}
}

func TestRenderBatchPanelEmptySelection(t *testing.T) {
	result := RenderBatchPanel(testColors, true, 0, 7)
	if strings.Contains(result, "[R] Run") {
		t.Errorf("empty selection should not offer actions: %q", result)
	}
}

func TestRenderCheckbox(t *testing.T) {
	if RenderCheckbox(true) != "[x]" || RenderCheckbox(false) != "[ ]" {
		t.Error("unexpected checkbox rendering")
	}
}
