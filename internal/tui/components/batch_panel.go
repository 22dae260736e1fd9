// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PanelColors are the colors a panel renders with.
type PanelColors struct {
	Border string
	Accent string
	Text   string
	Muted  string
}

// RenderBatchPanel renders the multi-select helper panel. It renders nothing
// when selection mode is off.
func RenderBatchPanel(colors PanelColors, active bool, selectedCount, visibleCount int) string {
	if !active {
		return ""
	}

	accent := lipgloss.NewStyle().Foreground(lipgloss.Color(colors.Accent)).Bold(true)
	text := lipgloss.NewStyle().Foreground(lipgloss.Color(colors.Text))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color(colors.Muted))

	title := accent.Render(fmt.Sprintf("Batch: %d of %d selected", selectedCount, visibleCount))
	lines := []string{title}
	if selectedCount > 0 {
		lines = append(lines, text.Render("[R] Run  [S] Stop  [X] Delete"))
	} else {
		lines = append(lines, muted.Render("Select scripts to run, stop, or delete"))
	}
	lines = append(lines, muted.Render("[Space] Toggle  [a] All/none  [Esc] Exit"))

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		BorderForeground(lipgloss.Color(colors.Border))

	return panel.Render(strings.Join(lines, "\n"))
}

// RenderCheckbox renders a selection marker for a list row.
func RenderCheckbox(checked bool) string {
	if checked {
		return "[x]"
	}
	return "[ ]"
}
