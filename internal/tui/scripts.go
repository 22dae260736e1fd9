package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/scriptdeck/internal/engine"
	"github.com/tOgg1/scriptdeck/internal/models"
	"github.com/tOgg1/scriptdeck/internal/tui/components"
	"github.com/tOgg1/scriptdeck/internal/view"
)

func (m model) updateScriptsTab(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	selection := m.eng.Selection
	key := msg.String()

	if selection.Active() {
		switch key {
		case "esc", "v":
			selection.Exit()
			m.setStatus(statusInfo, "Selection cleared")
			return m, nil
		case " ", "space":
			if script, ok := m.selectedScript(); ok {
				selection.Toggle(script.ID)
			}
			return m, nil
		case "a":
			selection.SelectAll(view.IDs(m.visible))
			return m, nil
		case "R":
			return m.startBatch(actionBatchRun)
		case "S":
			return m.startBatch(actionBatchStop)
		case "X":
			return m.startBatch(actionBatchDelete)
		}
	}

	switch key {
	case "j", "down":
		m.moveSelection(1)
		return m, nil
	case "k", "up":
		m.moveSelection(-1)
		return m, nil
	case "g", "home":
		m.moveSelection(-len(m.visible))
		return m, nil
	case "G", "end":
		m.moveSelection(len(m.visible))
		return m, nil
	case "/":
		m.mode = modeFilter
		m.filterInput.SetValue(m.opts.Query)
		m.filterInput.CursorEnd()
		return m, m.filterInput.Focus()
	case "s":
		m.opts.SortKey = cycleOption(models.SortKeyOptions, m.opts.SortKey, 1)
		m.applyFilters()
		m.setStatus(statusInfo, "Sort: "+string(m.opts.SortKey))
		return m, nil
	case "o":
		if m.opts.Order == models.SortDesc {
			m.opts.Order = models.SortAsc
		} else {
			m.opts.Order = models.SortDesc
		}
		m.applyFilters()
		m.setStatus(statusInfo, "Order: "+string(m.opts.Order))
		return m, nil
	case "f":
		m.opts.Status = cycleOption(models.StatusFilterOptions, m.opts.Status, 1)
		m.applyFilters()
		return m, nil
	case "K":
		m.opts.Kind = cycleOption(models.KindOptions, m.opts.Kind, 1)
		m.applyFilters()
		return m, nil
	case "E":
		m.opts.Enabled = cycleOption(models.EnabledFilterOptions, m.opts.Enabled, 1)
		m.applyFilters()
		return m, nil
	case "x":
		locale := m.opts.Locale
		m.opts = view.DefaultOptions()
		m.opts.Locale = locale
		m.filterInput.SetValue("")
		m.applyFilters()
		m.setStatus(statusInfo, "Filters cleared")
		return m, nil
	case "v":
		m.eng.Selection.Enter()
		m.setStatus(statusInfo, "Selection mode: space toggles, a selects all")
		return m, nil
	case "n":
		m.form = newForm(nil)
		m.mode = modeForm
		return m, m.form.focusCmd()
	case "u":
		return m.scan()
	}

	script, ok := m.selectedScript()
	if !ok {
		return m, nil
	}
	return m.scriptAction(key, script)
}

// scriptAction handles the single-script keys shared by the dashboard and
// scripts tabs.
func (m model) scriptAction(key string, script models.Script) (tea.Model, tea.Cmd) {
	switch key {
	case "enter", "r":
		return m.runAction(actionRequest{Kind: actionToggle, ID: script.ID})
	case "l":
		return m.openLogs(script)
	case "e":
		m.form = newForm(&script)
		m.mode = modeForm
		return m, m.form.focusCmd()
	case "c":
		return m.runAction(actionRequest{Kind: actionLoadContent, ID: script.ID})
	case "D":
		m.confirm = &confirmState{
			Action: actionDelete,
			ID:     script.ID,
			Prompt: fmt.Sprintf("Delete %s (#%d)? This cannot be undone. [y/N]", script.Name, script.ID),
		}
		m.mode = modeConfirm
		return m, nil
	}
	return m, nil
}

func (m model) startBatch(kind actionType) (tea.Model, tea.Cmd) {
	ids := m.eng.Selection.IDs()
	if len(ids) == 0 {
		m.setStatus(statusInfo, "No scripts selected")
		return m, nil
	}
	if kind != actionBatchDelete {
		return m.runAction(actionRequest{Kind: kind, IDs: ids})
	}

	plan, err := m.eng.Batch.PlanDelete(ids)
	if err != nil {
		if errors.Is(err, engine.ErrEmptySelection) {
			m.setStatus(statusInfo, "No scripts selected")
		} else {
			m.setStatus(statusErr, err.Error())
		}
		return m, nil
	}
	m.confirm = &confirmState{Action: actionBatchDelete, Plan: plan, Prompt: plan.Prompt() + " [y/N]"}
	m.mode = modeConfirm
	return m, nil
}

func (m model) scan() (tea.Model, tea.Cmd) {
	if m.scanner == nil {
		m.setStatus(statusInfo, "Scan is not available")
		return m, nil
	}
	return m.runAction(actionRequest{Kind: actionScan})
}

func (m model) updateFilterMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter":
		m.mode = modeMain
		m.filterInput.Blur()
		return m, nil
	case "?":
		m.helpReturn = modeFilter
		m.mode = modeHelp
		return m, nil
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	if m.filterInput.Value() != m.opts.Query {
		m.opts.Query = m.filterInput.Value()
		m.applyFilters()
	}
	return m, cmd
}

func cycleOption[T comparable](options []T, current T, delta int) T {
	if len(options) == 0 {
		return current
	}
	idx := 0
	for i, option := range options {
		if option == current {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(options)) % len(options)
	return options[idx]
}

func (m model) renderScriptsTab(width, height int) string {
	selection := m.eng.Selection
	panel := components.RenderBatchPanel(components.PanelColors{
		Border: m.palette.Border,
		Accent: m.palette.Accent,
		Text:   m.palette.Text,
		Muted:  m.palette.TextMuted,
	}, selection.Active(), selection.Len(), len(m.visible))

	listHeight := height
	if panel != "" {
		listHeight -= lipgloss.Height(panel)
	}

	leftWidth := maxInt(40, width*55/100)
	rightWidth := maxInt(30, width-leftWidth-1)
	left := m.renderScriptList(leftWidth, maxInt(3, listHeight))
	right := m.renderScriptDetail(rightWidth, maxInt(3, listHeight))
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
	if panel != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, panel)
	}
	return body
}

func (m model) renderScriptList(width, height int) string {
	muted := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.TextMuted))
	lines := []string{m.renderFilterSummary(width)}

	if len(m.visible) == 0 {
		msg := "No scripts yet. Press n to add one"
		if m.opts.Active() {
			msg = "No scripts match the current filters (x clears)"
		}
		lines = append(lines, muted.Render(msg))
		return m.paneStyle(width, height, false).Render(strings.Join(lines, "\n"))
	}

	rows := maxInt(1, height-3)
	start := 0
	if m.selectedIdx >= rows {
		start = m.selectedIdx - rows + 1
	}
	end := minInt(len(m.visible), start+rows)
	now := m.now()
	for i := start; i < end; i++ {
		lines = append(lines, m.renderListRow(m.visible[i], i == m.selectedIdx, width-4, now))
	}
	if end < len(m.visible) {
		lines = append(lines, muted.Render(fmt.Sprintf("... %d more", len(m.visible)-end)))
	}
	return m.paneStyle(width, height, true).Render(strings.Join(lines, "\n"))
}

func (m model) renderFilterSummary(width int) string {
	parts := []string{
		"sort:" + string(m.opts.SortKey) + " " + string(m.opts.Order),
		"status:" + string(m.opts.Status),
		"kind:" + string(m.opts.Kind),
		"enabled:" + string(m.opts.Enabled),
	}
	if q := strings.TrimSpace(m.opts.Query); q != "" {
		parts = append([]string{fmt.Sprintf("q=%q", q)}, parts...)
	}
	parts = append(parts, fmt.Sprintf("%d/%d", len(m.visible), len(m.scripts)))
	style := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.TextMuted))
	if m.opts.Active() {
		style = style.Foreground(m.palette.color(m.palette.Accent))
	}
	return style.Render(truncateLine(strings.Join(parts, "  "), maxInt(1, width-4)))
}

func (m model) renderListRow(script models.Script, focused bool, width int, now time.Time) string {
	prefix := "  "
	if focused {
		prefix = "> "
	}
	if m.eng.Selection.Active() {
		prefix += components.RenderCheckbox(m.eng.Selection.Contains(script.ID)) + " "
	}

	timing := view.LastRunLabel(script, now)
	if elapsed := view.ElapsedLabel(script, now); elapsed != "" {
		timing = "running " + elapsed
	}
	if !script.Enabled {
		timing += " (disabled)"
	}

	glyph := statusStyle(m.palette, script).Render(statusGlyph(script))
	name := padRight(truncateLine(script.Name, 24), 24)
	kind := padRight(string(script.Kind()), 3)
	schedule := padRight(truncateLine(script.ScheduleLabel(), 14), 14)
	row := fmt.Sprintf("%s%s %s %s %s %s", prefix, glyph, name, kind, schedule, timing)

	style := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.Text))
	if focused {
		style = style.Background(m.palette.color(m.palette.PanelAlt)).Bold(true)
	}
	return style.Render(truncateLine(row, maxInt(1, width)))
}

func (m model) renderScriptDetail(width, height int) string {
	script, ok := m.selectedScript()
	if !ok {
		return m.paneStyle(width, height, false).Render("")
	}
	now := m.now()
	label := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.TextMuted))
	title := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.Text)).Bold(true)

	field := func(name, value string) string {
		return label.Render(padRight(name, 10)) + truncateLine(value, maxInt(1, width-16))
	}

	lines := []string{
		title.Render(truncateLine(fmt.Sprintf("%s (#%d)", script.Name, script.ID), width-4)),
		field("status", statusStyle(m.palette, script).Render(script.StatusLabel())),
		field("path", script.Path),
		field("kind", string(script.Kind())),
		field("schedule", script.ScheduleLabel()),
		field("enabled", yesNo(script.Enabled)),
		field("startup", yesNo(script.RunOnStartup)),
		field("args", defaultString(script.Arguments, "-")),
		field("last run", view.LastRunLabel(script, now)),
	}
	if elapsed := view.ElapsedLabel(script, now); elapsed != "" {
		lines = append(lines, field("elapsed", elapsed))
	}
	if script.Description != nil && strings.TrimSpace(*script.Description) != "" {
		lines = append(lines, field("about", *script.Description))
	}
	if script.LastOutput != nil && *script.LastOutput != "" {
		lines = append(lines, "", label.Render("last output:"))
		output := strings.Split(strings.TrimRight(stripANSI(*script.LastOutput), "\n"), "\n")
		room := maxInt(1, height-len(lines)-2)
		if len(output) > room {
			output = output[len(output)-room:]
		}
		for _, line := range output {
			lines = append(lines, truncateLine(line, maxInt(1, width-4)))
		}
	}
	lines = append(lines, "", label.Render("enter run/stop  l logs  e edit  c code  D delete"))
	return m.paneStyle(width, height, false).Render(strings.Join(trimToHeight(lines, height-2), "\n"))
}

func (m model) paneStyle(width, height int, focused bool) lipgloss.Style {
	border := m.palette.Border
	if focused {
		border = m.palette.Focus
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.palette.color(border)).
		Padding(0, 1).
		Width(maxInt(10, width-2)).
		Height(maxInt(1, height-2))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
