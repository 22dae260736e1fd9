package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/scriptdeck/internal/models"
	"github.com/tOgg1/scriptdeck/internal/view"
)

const (
	tileWidth  = 32
	tileHeight = 6
	tileGap    = 1
)

func (m model) updateDashboardTab(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cols := m.dashboardColumns(m.effectiveWidth())
	switch msg.String() {
	case "j", "down":
		m.moveDashboard(cols)
		return m, nil
	case "k", "up":
		m.moveDashboard(-cols)
		return m, nil
	case "l", "right":
		m.moveDashboard(1)
		return m, nil
	case "h", "left":
		m.moveDashboard(-1)
		return m, nil
	case "n":
		m.form = newForm(nil)
		m.mode = modeForm
		return m, m.form.focusCmd()
	case "u":
		return m.scan()
	}

	script, ok := m.dashboardScript()
	if !ok {
		return m, nil
	}
	// "l" moves right on the grid, so logs open with L here.
	key := msg.String()
	if key == "L" {
		key = "l"
	}
	return m.scriptAction(key, script)
}

func (m *model) moveDashboard(delta int) {
	if len(m.dashboard) == 0 {
		return
	}
	idx := m.dashIdx + delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(m.dashboard) {
		idx = len(m.dashboard) - 1
	}
	m.dashIdx = idx
}

func (m model) dashboardColumns(width int) int {
	return maxInt(1, (width+tileGap)/(tileWidth+tileGap))
}

func (m model) renderDashboardTab(width, height int) string {
	muted := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.TextMuted))
	if len(m.dashboard) == 0 {
		return muted.Render("No scripts yet. Press n to add one or u to scan the server.")
	}

	cols := m.dashboardColumns(width)
	visibleRows := maxInt(1, height/tileHeight)
	cursorRow := m.dashIdx / cols
	firstRow := 0
	if cursorRow >= visibleRows {
		firstRow = cursorRow - visibleRows + 1
	}

	var rows []string
	for row := firstRow; row < firstRow+visibleRows; row++ {
		start := row * cols
		if start >= len(m.dashboard) {
			break
		}
		end := minInt(len(m.dashboard), start+cols)
		tiles := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			tiles = append(tiles, m.renderTile(m.dashboard[i], i == m.dashIdx))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, tiles...))
	}

	shown := (firstRow + len(rows)) * cols
	if shown < len(m.dashboard) {
		rows = append(rows, muted.Render(fmt.Sprintf("... %d more (j/k to scroll)", len(m.dashboard)-shown)))
	}
	return strings.Join(rows, "\n")
}

func (m model) renderTile(script models.Script, focused bool) string {
	now := m.now()
	inner := tileWidth - 4

	name := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.Text)).Bold(true).
		Render(truncateLine(script.Name, inner))
	status := statusStyle(m.palette, script).Render(statusGlyph(script) + " " + script.StatusLabel())

	timing := "last run " + view.LastRunLabel(script, now)
	if elapsed := view.ElapsedLabel(script, now); elapsed != "" {
		timing = "up " + elapsed
	}
	muted := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.TextMuted))
	schedule := script.ScheduleLabel()
	if !script.Enabled {
		schedule += " (disabled)"
	}

	lines := []string{
		name,
		status,
		muted.Render(truncateLine(timing, inner)),
		muted.Render(truncateLine(string(script.Kind())+" · "+schedule, inner)),
	}

	border := m.palette.Border
	if focused {
		border = m.palette.Focus
	} else if script.IsRunning() {
		border = m.palette.Info
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.palette.color(border)).
		Padding(0, 1).
		Width(tileWidth - 2).
		MarginRight(tileGap).
		Render(strings.Join(lines, "\n"))
}
