package tui

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/scriptdeck/internal/engine"
	"github.com/tOgg1/scriptdeck/internal/models"
)

func (m model) openLogs(script models.Script) (tea.Model, tea.Cmd) {
	if err := m.eng.Logs.Open(m.ctx, script.ID); err != nil {
		if errors.Is(err, engine.ErrLogStreamUnavailable) {
			m.setStatus(statusErr, "Log streaming is not available")
		} else {
			m.setStatus(statusErr, err.Error())
		}
		return m, nil
	}
	m.logFollow = true
	m.syncLogs()
	m.setTab(tabLogs)
	return m, nil
}

// syncLogs copies the log buffer into the viewport when it changed. The view
// follows the tail unless the operator scrolled away from it.
func (m *model) syncLogs() {
	version := m.eng.Logs.Version()
	if version == m.logVersion {
		return
	}
	m.logVersion = version
	m.logView.SetContent(stripANSI(m.eng.Logs.Buffer()))
	if m.logFollow {
		m.logView.GotoBottom()
	}
}

func (m model) updateLogsTab(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.setTab(tabScripts)
		return m, nil
	case "w":
		m.eng.Logs.Close()
		m.setStatus(statusInfo, "Log stream closed")
		return m, nil
	case "f":
		m.logFollow = !m.logFollow
		if m.logFollow {
			m.logView.GotoBottom()
		}
		return m, nil
	case "R":
		if id := m.eng.Logs.ScriptID(); id != 0 {
			if script, ok := m.eng.Store.Get(id); ok {
				return m.openLogs(script)
			}
		}
		return m, nil
	case "home", "g":
		m.logFollow = false
		m.logView.GotoTop()
		return m, nil
	case "end", "G":
		m.logFollow = true
		m.logView.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.logView, cmd = m.logView.Update(msg)
	m.logFollow = m.logView.AtBottom()
	return m, cmd
}

func (m model) renderLogsTab(width int) string {
	muted := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.TextMuted))
	id := m.eng.Logs.ScriptID()
	state := m.eng.Logs.State()
	if id == 0 {
		return muted.Render("No log stream open. Select a script and press l.")
	}

	name := fmt.Sprintf("#%d", id)
	if script, ok := m.eng.Store.Get(id); ok {
		name = fmt.Sprintf("%s (#%d)", script.Name, id)
	}

	stateStyle := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.TextMuted))
	switch state {
	case engine.LogStreaming:
		stateStyle = stateStyle.Foreground(m.palette.color(m.palette.Success))
	case engine.LogConnecting:
		stateStyle = stateStyle.Foreground(m.palette.color(m.palette.Warning))
	case engine.LogClosedError:
		stateStyle = stateStyle.Foreground(m.palette.color(m.palette.Error))
	}

	follow := "off"
	if m.logFollow {
		follow = "on"
	}
	header := fmt.Sprintf("Logs %s  state:%s  follow:%s  %3.0f%%",
		name, stateStyle.Render(string(state)), follow, m.logView.ScrollPercent()*100)
	hints := muted.Render("f follow  w close  R reconnect  pgup/pgdn scroll  esc back")

	body := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.palette.color(m.palette.Border)).
		Padding(0, 1).
		Render(m.logView.View())

	return lipgloss.JoinVertical(lipgloss.Left, truncateLine(header, width), body, hints)
}
