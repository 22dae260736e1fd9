package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/scriptdeck/internal/models"
	"github.com/tOgg1/scriptdeck/internal/tui/components"
)

type formField int

const (
	fieldName formField = iota
	fieldPath
	fieldCron
	fieldArguments
	fieldDescription
	fieldDaemon
	fieldRunOnStartup
	formFieldCount
)

var formLabels = map[formField]string{
	fieldName:         "name",
	fieldPath:         "path",
	fieldCron:         "cron",
	fieldArguments:    "arguments",
	fieldDescription:  "description",
	fieldDaemon:       "daemon",
	fieldRunOnStartup: "run on startup",
}

// formState is the create/edit dialog. Text fields map to inputs by index;
// the two toggles follow them.
type formState struct {
	id           int64
	isNew        bool
	inputs       []textinput.Model
	daemon       bool
	runOnStartup bool
	enabled      bool
	focus        formField
	err          string
}

func newForm(script *models.Script) formState {
	form := formState{isNew: script == nil, enabled: true}
	var fields models.ScriptFields
	if script != nil {
		form.id = script.ID
		fields = models.FieldsFromScript(*script)
		form.enabled = fields.Enabled
	}
	form.daemon = fields.IsDaemon()
	form.runOnStartup = fields.RunOnStartup

	cron := fields.Cron
	if form.daemon {
		cron = ""
	}
	description := ""
	if fields.Description != nil {
		description = *fields.Description
	}

	values := []string{fields.Name, fields.Path, cron, fields.Arguments, description}
	placeholders := []string{"nightly-report", "/scripts/report.py", "0 2 * * * (empty for manual)", "--verbose", "optional"}
	form.inputs = make([]textinput.Model, len(values))
	for i := range values {
		input := textinput.New()
		input.Prompt = ""
		input.Placeholder = placeholders[i]
		input.CharLimit = 512
		input.SetValue(values[i])
		form.inputs[i] = input
	}
	return form
}

func (f *formState) focusCmd() tea.Cmd {
	var cmd tea.Cmd
	for i := range f.inputs {
		if formField(i) == f.focus {
			cmd = f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
	return cmd
}

func (f *formState) move(delta int) tea.Cmd {
	next := (int(f.focus) + delta + int(formFieldCount)) % int(formFieldCount)
	f.focus = formField(next)
	// The cron field is meaningless for daemons.
	if f.focus == fieldCron && f.daemon {
		f.focus = formField((next + delta + int(formFieldCount)) % int(formFieldCount))
	}
	return f.focusCmd()
}

func (f formState) value(field formField) string {
	if int(field) >= len(f.inputs) {
		return ""
	}
	return f.inputs[field].Value()
}

// fields builds the payload from the form.
func (f formState) fields() models.ScriptFields {
	fields := models.ScriptFields{
		Name:         strings.TrimSpace(f.value(fieldName)),
		Path:         strings.TrimSpace(f.value(fieldPath)),
		Enabled:      f.enabled,
		RunOnStartup: f.runOnStartup,
		Arguments:    strings.TrimSpace(f.value(fieldArguments)),
	}
	if f.daemon {
		fields.SetDaemon()
	} else {
		fields.SetCron(f.value(fieldCron))
	}
	if description := strings.TrimSpace(f.value(fieldDescription)); description != "" {
		fields.Description = &description
	}
	return fields
}

func (m model) updateFormMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeMain
		m.form = formState{}
		m.setStatus(statusInfo, "Edit cancelled")
		return m, nil
	case "tab", "down":
		return m, m.form.move(1)
	case "shift+tab", "up":
		return m, m.form.move(-1)
	case "ctrl+s":
		return m.submitForm()
	case "enter":
		if m.form.focus == fieldRunOnStartup {
			return m.submitForm()
		}
		return m, m.form.move(1)
	case " ", "space":
		switch m.form.focus {
		case fieldDaemon:
			m.form.daemon = !m.form.daemon
			return m, nil
		case fieldRunOnStartup:
			m.form.runOnStartup = !m.form.runOnStartup
			return m, nil
		}
	}

	if int(m.form.focus) < len(m.form.inputs) {
		var cmd tea.Cmd
		m.form.inputs[m.form.focus], cmd = m.form.inputs[m.form.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) submitForm() (tea.Model, tea.Cmd) {
	fields := m.form.fields()
	if err := fields.Validate(); err != nil {
		m.form.err = err.Error()
		return m, nil
	}
	m.form.err = ""
	return m.runAction(actionRequest{Kind: actionSave, ID: m.form.id, IsNew: m.form.isNew, Fields: fields})
}

func (m model) renderForm(width int) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.palette.color(m.palette.Accent)).
		Background(m.palette.color(m.palette.PanelAlt)).
		Padding(0, 1).
		Width(maxInt(40, width-2))

	title := "New script"
	if !m.form.isNew {
		title = fmt.Sprintf("Edit script #%d", m.form.id)
	}
	focus := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.Focus)).Bold(true)
	muted := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.TextMuted))

	content := []string{lipgloss.NewStyle().Bold(true).Render(title), ""}
	for field := fieldName; field < formFieldCount; field++ {
		label := padRight(formLabels[field], 16)
		if field == m.form.focus {
			label = focus.Render(label)
		} else {
			label = muted.Render(label)
		}

		var value string
		switch {
		case field == fieldDaemon:
			value = components.RenderCheckbox(m.form.daemon)
		case field == fieldRunOnStartup:
			value = components.RenderCheckbox(m.form.runOnStartup)
		case field == fieldCron && m.form.daemon:
			value = muted.Render("(runs continuously)")
		default:
			value = m.form.inputs[field].View()
		}
		content = append(content, label+value)
	}

	content = append(content, "", muted.Render("tab/shift+tab move  space toggles  ctrl+s save  esc cancel"))
	if m.form.err != "" {
		content = append(content, lipgloss.NewStyle().Foreground(m.palette.color(m.palette.Error)).Render("Error: "+m.form.err))
	}
	return box.Render(strings.Join(content, "\n"))
}

// editorState is the code editor of one script.
type editorState struct {
	area     textarea.Model
	scriptID int64
	original string
	loaded   bool
}

func (e *editorState) open(id int64, content string) {
	e.scriptID = id
	e.original = content
	e.loaded = true
	e.area.SetValue(content)
}

func (e *editorState) markSaved(content string) {
	e.original = content
}

func (e *editorState) close() {
	e.area.Blur()
	e.area.Reset()
	e.scriptID = 0
	e.original = ""
	e.loaded = false
}

func (e editorState) modified() bool {
	return e.loaded && e.area.Value() != e.original
}

func (m model) updateEditorTab(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.editor.loaded {
		if msg.String() == "esc" {
			m.setTab(tabScripts)
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+s":
		return m.runAction(actionRequest{Kind: actionSaveContent, ID: m.editor.scriptID, Content: m.editor.area.Value()})
	case "ctrl+r":
		return m.runAction(actionRequest{Kind: actionRestart, ID: m.editor.scriptID, Content: m.editor.area.Value()})
	case "esc":
		if m.editor.modified() {
			m.setStatus(statusInfo, "Unsaved changes discarded")
		}
		m.editor.close()
		m.setTab(tabScripts)
		return m, nil
	}

	var cmd tea.Cmd
	m.editor.area, cmd = m.editor.area.Update(msg)
	return m, cmd
}

func (m model) renderEditorTab(width, height int) string {
	muted := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.TextMuted))
	if !m.editor.loaded {
		return muted.Render("No script open. Select a script and press c.")
	}

	title := fmt.Sprintf("#%d", m.editor.scriptID)
	if script, ok := m.eng.Store.Get(m.editor.scriptID); ok {
		title = fmt.Sprintf("%s (#%d)  %s", script.Name, script.ID, script.Path)
	}
	if m.editor.modified() {
		title += "  [modified]"
	}
	header := lipgloss.NewStyle().Foreground(m.palette.color(m.palette.Text)).Bold(true).Render(truncateLine(title, width))
	hints := muted.Render("ctrl+s save  ctrl+r save and restart  esc close")

	body := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.palette.color(m.palette.Focus)).
		Render(m.editor.area.View())
	return strings.Join(trimToHeight([]string{header, body, hints}, maxInt(3, height)), "\n")
}
