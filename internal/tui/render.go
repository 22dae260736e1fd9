package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/scriptdeck/internal/view"
)

func (m model) renderHeader(width int) string {
	stats := view.Stats(m.scripts)
	header := fmt.Sprintf(
		"scriptdeck  scripts:%d running:%d failed:%d enabled:%d disabled:%d  theme:%s",
		stats.Total,
		stats.Running,
		stats.Failed,
		stats.Enabled,
		stats.Disabled,
		m.palette.Name,
	)
	if m.offline {
		header += "  server:unreachable"
	}
	if m.eng.Selection.Active() {
		header += fmt.Sprintf("  selected:%d", m.eng.Selection.Len())
	}

	style := lipgloss.NewStyle().
		Foreground(m.palette.color(m.palette.Text)).
		Background(m.palette.color(m.palette.Panel)).
		Padding(0, 1)
	if m.offline {
		style = style.Foreground(m.palette.color(m.palette.Warning))
	}
	return style.Render(truncateLine(header, maxInt(1, width-2)))
}

func (m model) renderTabBar(width int) string {
	tabs := make([]string, 0, len(tabOrder))
	for idx, tab := range tabOrder {
		label := fmt.Sprintf("%d %s", idx+1, tab.String())
		style := lipgloss.NewStyle().
			Foreground(m.palette.color(m.palette.TextMuted)).
			Padding(0, 1)
		if tab == m.tab {
			style = style.
				Foreground(m.palette.color(m.palette.Text)).
				Background(m.palette.color(m.palette.PanelAlt)).
				Underline(true).
				Bold(true)
		}
		tabs = append(tabs, style.Render(label))
	}

	var hints string
	switch m.tab {
	case tabScripts:
		hints = "  / filter  s sort  o order  f status  K kind  E enabled  v select  n new  ? help"
	case tabLogs:
		hints = "  f follow  w close  esc back  ? help"
	case tabEditor:
		hints = "  ctrl+s save  ctrl+r restart  esc close"
	default:
		hints = "  arrows move  enter run/stop  L logs  n new  ? help"
	}

	line := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if lipgloss.Width(line+hints) <= width-1 {
		line += lipgloss.NewStyle().Foreground(m.palette.color(m.palette.TextMuted)).Render(hints)
	}
	return line
}

func (m model) renderFilterBar(width int) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.palette.color(m.palette.Focus)).
		Padding(0, 1).
		Width(maxInt(40, width-2))

	hint := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.TextMuted)).
		Render(fmt.Sprintf("  %d match  enter/esc done", len(m.visible)))
	return box.Render(m.filterInput.View() + hint)
}

func (m model) renderConfirmDialog(width int) string {
	if m.confirm == nil {
		return ""
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.palette.color(m.palette.Warning)).
		Padding(0, 1).
		Width(maxInt(40, width-2))

	title := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.Error)).Bold(true).Render("Confirm destructive action")
	text := []string{
		title,
		m.confirm.Prompt,
		"Press y to confirm. Press n, Enter, q, or Esc to cancel.",
	}
	return box.Render(strings.Join(text, "\n"))
}

func (m model) renderHelpDialog(width int) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(m.palette.color(m.palette.Focus)).
		Background(m.palette.color(m.palette.PanelAlt)).
		Padding(0, 1).
		Width(maxInt(56, width-2))

	lines := []string{
		lipgloss.NewStyle().Foreground(m.palette.color(m.palette.Text)).Bold(true).Render("scriptdeck help"),
		"",
		"Global:",
		"  q quit | ? toggle help | ]/[ tab cycle | 1..4 jump tabs | t theme",
		"",
		"Dashboard + Scripts:",
		"  enter/r run or stop | L (dashboard) or l (scripts) logs | e edit | c code",
		"  n new script | D delete | u scan server for scripts",
		"",
		"Scripts:",
		"  / filter by name | s sort key | o order | f status | K kind | E enabled | x clear",
		"  v selection mode | space toggle | a all/none | R/S/X batch run/stop/delete",
		"",
		"Logs:",
		"  f follow tail | w close stream | R reconnect | pgup/pgdn/home/end scroll",
		"",
		"Editor:",
		"  ctrl+s save | ctrl+r save and restart | esc close",
		"",
		"Press q, esc, or ? to close help.",
	}
	for i := range lines {
		lines[i] = truncateLine(lines[i], maxInt(1, width-8))
	}
	return box.Render(strings.Join(lines, "\n"))
}

func (m model) renderStatusLine(width int) string {
	if m.actionBusy {
		label := m.busyLabel
		if label == "" {
			label = "Working..."
		}
		style := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.Info))
		return style.Render(truncateLine(m.spinner.View()+" "+label, maxInt(1, width-1)))
	}
	if m.statusText == "" {
		return ""
	}
	style := lipgloss.NewStyle()
	switch m.statusKind {
	case statusOK:
		style = style.Foreground(m.palette.color(m.palette.Success)).Bold(true)
	case statusErr:
		style = style.Foreground(m.palette.color(m.palette.Error)).Bold(true)
	default:
		style = style.Foreground(m.palette.color(m.palette.Info))
	}
	return style.Render(truncateLine(m.statusText, maxInt(1, width-1)))
}

func trimToHeight(lines []string, height int) []string {
	if height <= 0 || len(lines) <= height {
		return lines
	}
	return lines[:height]
}

func truncateLine(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(text) <= width {
		return text
	}
	plain := []rune(stripANSI(text))
	if len(plain) <= width {
		return string(plain)
	}
	if width <= 3 {
		return string(plain[:width])
	}
	return string(plain[:width-3]) + "..."
}

func padRight(text string, width int) string {
	if width <= 0 {
		return ""
	}
	w := lipgloss.Width(text)
	if w >= width {
		return text
	}
	return text + strings.Repeat(" ", width-w)
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func stripANSI(in string) string {
	builder := strings.Builder{}
	builder.Grow(len(in))
	for i := 0; i < len(in); i++ {
		c := in[i]
		if c != 0x1b {
			builder.WriteByte(c)
			continue
		}
		if i+1 >= len(in) {
			break
		}
		next := in[i+1]
		switch next {
		case '[':
			i += 2
			for ; i < len(in); i++ {
				b := in[i]
				if b >= 0x40 && b <= 0x7E {
					break
				}
			}
		case ']':
			i += 2
			for ; i < len(in); i++ {
				if in[i] == 0x07 {
					break
				}
				if in[i] == 0x1b && i+1 < len(in) && in[i+1] == '\\' {
					i++
					break
				}
			}
		default:
			i++
		}
	}
	return builder.String()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
