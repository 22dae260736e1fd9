// Package tui is the interactive operator console.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/tOgg1/scriptdeck/internal/config"
	"github.com/tOgg1/scriptdeck/internal/engine"
	"github.com/tOgg1/scriptdeck/internal/events"
	"github.com/tOgg1/scriptdeck/internal/logging"
	"github.com/tOgg1/scriptdeck/internal/models"
	"github.com/tOgg1/scriptdeck/internal/view"
)

const (
	defaultStatusTTL = 4 * time.Second
	tickInterval     = time.Second
	eventBuffer      = 256

	minWindowWidth  = 80
	minWindowHeight = 22
)

var errScanUnavailable = errors.New("scan is not available")

// Scanner triggers a server-side disk scan for new scripts.
type Scanner interface {
	Scan(ctx context.Context) (models.ScanResult, error)
}

// Config controls console behavior.
type Config struct {
	Theme     string
	StatusTTL time.Duration

	// Scanner is optional; without it the scan key is disabled.
	Scanner Scanner

	// ViewState persists tab and filter choices across launches. Optional.
	ViewState *config.ViewStateStore
}

// Run starts the console and blocks until the operator quits. The engine's
// fetcher is started here and stopped on return.
func Run(ctx context.Context, eng *engine.Engine, cfg Config) error {
	if err := eng.Fetcher.Start(ctx); err != nil && !errors.Is(err, engine.ErrFetcherAlreadyRunning) {
		return err
	}
	defer eng.Close()

	m := newModel(ctx, eng, cfg)
	defer m.unsubscribe()

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := program.Run()
	if fm, ok := final.(model); ok {
		fm.saveViewState()
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type uiMode int

const (
	modeMain uiMode = iota
	modeFilter
	modeConfirm
	modeForm
	modeHelp
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusErr
)

type mainTab int

const (
	tabDashboard mainTab = iota
	tabScripts
	tabLogs
	tabEditor
)

var tabOrder = []mainTab{tabDashboard, tabScripts, tabLogs, tabEditor}

func (t mainTab) String() string {
	switch t {
	case tabDashboard:
		return "dashboard"
	case tabScripts:
		return "scripts"
	case tabLogs:
		return "logs"
	case tabEditor:
		return "editor"
	default:
		return "unknown"
	}
}

func parseTab(value string) mainTab {
	for _, tab := range tabOrder {
		if tab.String() == value {
			return tab
		}
	}
	return tabDashboard
}

type actionType int

const (
	actionNone actionType = iota
	actionToggle
	actionDelete
	actionSave
	actionLoadContent
	actionSaveContent
	actionRestart
	actionBatchRun
	actionBatchStop
	actionBatchDelete
	actionScan
)

type confirmState struct {
	Action actionType
	ID     int64
	Plan   engine.DeletePlan
	Prompt string
}

type actionRequest struct {
	Kind    actionType
	ID      int64
	IDs     []int64
	Plan    engine.DeletePlan
	Fields  models.ScriptFields
	IsNew   bool
	Content string
}

type actionResultMsg struct {
	Kind    actionType
	ID      int64
	Message string
	Content string
	Err     error
}

type eventMsg struct {
	event *models.Event
}

type eventsClosedMsg struct{}

type tickMsg time.Time

type model struct {
	ctx       context.Context
	eng       *engine.Engine
	scanner   Scanner
	viewState *config.ViewStateStore
	logger    zerolog.Logger
	palette   tuiPalette
	statusTTL time.Duration
	now       func() time.Time

	width  int
	height int

	scripts     []models.Script
	visible     []models.Script
	dashboard   []models.Script
	opts        view.Options
	selectedID  int64
	selectedIdx int
	dashIdx     int
	tab         mainTab

	mode        uiMode
	helpReturn  uiMode
	filterInput textinput.Model
	confirm     *confirmState
	form        formState
	editor      editorState
	logView     viewport.Model
	logFollow   bool
	logVersion  uint64
	spinner     spinner.Model

	events      <-chan *models.Event
	unsubscribe func()

	offline       bool
	statusText    string
	statusKind    statusKind
	statusExpires time.Time
	actionBusy    bool
	busyLabel     string
	quitting      bool
}

func newModel(ctx context.Context, eng *engine.Engine, cfg Config) model {
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = defaultStatusTTL
	}

	filter := textinput.New()
	filter.Placeholder = "name contains..."
	filter.Prompt = "/ "
	filter.CharLimit = 120

	area := textarea.New()
	area.ShowLineNumbers = true
	area.CharLimit = 0

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot

	m := model{
		ctx:         ctx,
		eng:         eng,
		scanner:     cfg.Scanner,
		viewState:   cfg.ViewState,
		logger:      logging.Component("tui"),
		palette:     resolvePalette(cfg.Theme),
		statusTTL:   cfg.StatusTTL,
		now:         time.Now,
		opts:        view.DefaultOptions(),
		tab:         tabDashboard,
		mode:        modeMain,
		filterInput: filter,
		editor:      editorState{area: area},
		logView:     viewport.New(80, 20),
		logFollow:   true,
		spinner:     spin,
		unsubscribe: func() {},
	}
	m.restoreViewState()

	ch, cancel, err := eng.Publisher.SubscribeChan("tui", events.Filter{}, eventBuffer)
	if err != nil {
		m.logger.Warn().Err(err).Msg("event subscription failed")
	} else {
		m.events = ch
		m.unsubscribe = cancel
	}

	m.syncFromStore()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), m.tickCmd(), m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil
	case tickMsg:
		if !m.statusExpires.IsZero() && m.now().After(m.statusExpires) {
			m.statusText = ""
			m.statusExpires = time.Time{}
		}
		health := m.eng.Fetcher.Health()
		m.offline = health.ConsecutiveFailures > 0
		return m, m.tickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case eventMsg:
		m.handleEvent(msg.event)
		return m, waitForEvent(m.events)
	case eventsClosedMsg:
		m.events = nil
		return m, nil
	case actionResultMsg:
		return m.handleActionResult(msg)
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

		switch m.mode {
		case modeFilter:
			return m.updateFilterMode(msg)
		case modeConfirm:
			return m.updateConfirmMode(msg)
		case modeForm:
			return m.updateFormMode(msg)
		case modeHelp:
			return m.updateHelpMode(msg)
		default:
			return m.updateMainMode(msg)
		}
	}

	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	width := m.effectiveWidth()
	height := m.effectiveHeight()

	header := m.renderHeader(width)
	tabBar := m.renderTabBar(width)

	var overlay string
	switch m.mode {
	case modeFilter:
		overlay = m.renderFilterBar(width)
	case modeConfirm:
		overlay = m.renderConfirmDialog(width)
	case modeForm:
		overlay = m.renderForm(width)
	case modeHelp:
		overlay = m.renderHelpDialog(width)
	}

	overhead := lipgloss.Height(header) + lipgloss.Height(tabBar)
	if overlay != "" {
		overhead += lipgloss.Height(overlay)
	}
	if m.statusText != "" || m.actionBusy {
		overhead++
	}
	bodyHeight := maxInt(6, height-overhead)

	var body string
	switch m.tab {
	case tabScripts:
		body = m.renderScriptsTab(width, bodyHeight)
	case tabLogs:
		body = m.renderLogsTab(width)
	case tabEditor:
		body = m.renderEditorTab(width, bodyHeight)
	default:
		body = m.renderDashboardTab(width, bodyHeight)
	}

	parts := []string{header, tabBar, body}
	if overlay != "" {
		parts = append(parts, overlay)
	}
	if line := m.renderStatusLine(width); line != "" {
		parts = append(parts, line)
	}
	return strings.Join(parts, "\n")
}

func (m model) updateMainMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The editor owns the keyboard except for its own bindings.
	if m.tab == tabEditor && m.editor.loaded {
		return m.updateEditorTab(msg)
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "?":
		m.helpReturn = modeMain
		m.mode = modeHelp
		return m, nil
	case "1":
		m.setTab(tabDashboard)
		return m, nil
	case "2":
		m.setTab(tabScripts)
		return m, nil
	case "3":
		m.setTab(tabLogs)
		return m, nil
	case "4":
		m.setTab(tabEditor)
		return m, nil
	case "]":
		m.cycleTab(1)
		return m, nil
	case "[":
		m.cycleTab(-1)
		return m, nil
	case "t":
		m.palette = cyclePalette(m.palette.Name, 1)
		m.setStatus(statusInfo, "Theme: "+m.palette.Name)
		return m, nil
	}

	switch m.tab {
	case tabScripts:
		return m.updateScriptsTab(msg)
	case tabLogs:
		return m.updateLogsTab(msg)
	case tabEditor:
		return m.updateEditorTab(msg)
	default:
		return m.updateDashboardTab(msg)
	}
}

func (m model) updateHelpMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "?":
		if m.helpReturn == modeHelp {
			m.mode = modeMain
		} else {
			m.mode = m.helpReturn
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m model) updateConfirmMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm == nil {
		m.mode = modeMain
		return m, nil
	}

	switch msg.String() {
	case "q", "esc", "n", "N", "enter":
		m.mode = modeMain
		m.confirm = nil
		m.setStatus(statusInfo, "Action cancelled")
		return m, nil
	case "y", "Y":
		confirm := m.confirm
		m.mode = modeMain
		m.confirm = nil
		return m.runAction(actionRequest{Kind: confirm.Action, ID: confirm.ID, Plan: confirm.Plan})
	default:
		return m, nil
	}
}

func (m *model) handleEvent(event *models.Event) {
	if event == nil {
		return
	}
	switch event.Type {
	case models.EventTypeSnapshotApplied, models.EventTypeScriptsMerged:
		m.offline = false
		m.syncFromStore()
	case models.EventTypeFetchFailed:
		m.offline = true
	case models.EventTypeLogStreamState, models.EventTypeLogStreamAppend:
		m.syncLogs()
	}
}

// syncFromStore re-derives every view from the store snapshot, keeping the
// cursor on the same script when it is still visible.
func (m *model) syncFromStore() {
	m.scripts = m.eng.Store.Snapshot()
	m.dashboard = view.Dashboard(m.scripts)
	m.applyFilters()
	if m.dashIdx >= len(m.dashboard) {
		m.dashIdx = maxInt(0, len(m.dashboard)-1)
	}
}

func (m *model) applyFilters() {
	previousID, previousIdx := m.selectedID, m.selectedIdx
	m.visible = view.Project(m.scripts, m.opts)
	if len(m.visible) == 0 {
		m.selectedID = 0
		m.selectedIdx = 0
		return
	}
	for i, script := range m.visible {
		if script.ID == previousID {
			m.selectedIdx = i
			return
		}
	}
	if previousIdx >= len(m.visible) {
		previousIdx = len(m.visible) - 1
	}
	if previousIdx < 0 {
		previousIdx = 0
	}
	m.selectedIdx = previousIdx
	m.selectedID = m.visible[previousIdx].ID
}

func (m *model) moveSelection(delta int) {
	if len(m.visible) == 0 {
		return
	}
	idx := m.selectedIdx + delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(m.visible) {
		idx = len(m.visible) - 1
	}
	m.selectedIdx = idx
	m.selectedID = m.visible[idx].ID
}

func (m model) selectedScript() (models.Script, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.visible) {
		return models.Script{}, false
	}
	return m.visible[m.selectedIdx], true
}

func (m model) dashboardScript() (models.Script, bool) {
	if m.dashIdx < 0 || m.dashIdx >= len(m.dashboard) {
		return models.Script{}, false
	}
	return m.dashboard[m.dashIdx], true
}

func (m *model) setTab(tab mainTab) {
	m.tab = tab
}

func (m *model) cycleTab(delta int) {
	idx := 0
	for i, tab := range tabOrder {
		if tab == m.tab {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(tabOrder)) % len(tabOrder)
	m.setTab(tabOrder[idx])
}

func (m *model) setStatus(kind statusKind, text string) {
	m.statusKind = kind
	m.statusText = strings.TrimSpace(text)
	m.statusExpires = m.now().Add(m.statusTTL)
}

func (m model) runAction(req actionRequest) (tea.Model, tea.Cmd) {
	if m.actionBusy {
		m.setStatus(statusInfo, "Another action is still running")
		return m, nil
	}

	m.actionBusy = true
	switch req.Kind {
	case actionToggle:
		m.busyLabel = "Toggling script..."
	case actionDelete:
		m.busyLabel = "Deleting script..."
	case actionSave:
		m.busyLabel = "Saving script..."
	case actionLoadContent:
		m.busyLabel = "Loading content..."
	case actionSaveContent:
		m.busyLabel = "Saving content..."
	case actionRestart:
		m.busyLabel = "Saving and restarting..."
	case actionBatchRun:
		m.busyLabel = fmt.Sprintf("Running %d scripts...", len(req.IDs))
	case actionBatchStop:
		m.busyLabel = fmt.Sprintf("Stopping %d scripts...", len(req.IDs))
	case actionBatchDelete:
		m.busyLabel = fmt.Sprintf("Deleting %d scripts...", len(req.Plan.Items))
	case actionScan:
		m.busyLabel = "Scanning for scripts..."
	default:
		m.busyLabel = "Running action..."
	}
	return m, m.actionCmd(req)
}

func (m model) actionCmd(req actionRequest) tea.Cmd {
	ctx := m.ctx
	eng := m.eng
	scanner := m.scanner

	return func() tea.Msg {
		result := actionResultMsg{Kind: req.Kind, ID: req.ID}
		switch req.Kind {
		case actionToggle:
			var issued string
			issued, result.Err = eng.Actions.ToggleRun(ctx, req.ID)
			if issued == engine.ActionStop {
				result.Message = fmt.Sprintf("Stop requested for #%d", req.ID)
			} else {
				result.Message = fmt.Sprintf("Run requested for #%d", req.ID)
			}
		case actionDelete:
			result.Err = eng.Actions.Delete(ctx, req.ID)
			result.Message = fmt.Sprintf("Deleted #%d", req.ID)
		case actionSave:
			var id *int64
			if !req.IsNew {
				id = &req.ID
			}
			var saved *models.Script
			saved, result.Err = eng.Actions.Save(ctx, id, req.Fields)
			if saved != nil {
				result.ID = saved.ID
				result.Message = fmt.Sprintf("Saved %s (#%d)", saved.Name, saved.ID)
			}
		case actionLoadContent:
			result.Content, result.Err = eng.Actions.LoadContent(ctx, req.ID)
		case actionSaveContent:
			result.Err = eng.Actions.SaveContent(ctx, req.ID, req.Content)
			result.Content = req.Content
			result.Message = "Content saved"
		case actionRestart:
			var restarted bool
			restarted, result.Err = eng.Actions.SaveAndRestart(ctx, req.ID, req.Content)
			result.Content = req.Content
			result.Message = "Content saved, script restarted"
			if !restarted {
				result.Message = "Content saved"
			}
		case actionBatchRun, actionBatchStop, actionBatchDelete:
			var batch engine.BatchResult
			switch req.Kind {
			case actionBatchRun:
				batch, result.Err = eng.Batch.Run(ctx, req.IDs)
			case actionBatchStop:
				batch, result.Err = eng.Batch.Stop(ctx, req.IDs)
			default:
				batch, result.Err = eng.Batch.ConfirmDelete(ctx, req.Plan)
			}
			if len(batch.Attempted) > 0 {
				result.Message = batch.Summary()
			}
		case actionScan:
			if scanner == nil {
				result.Err = errScanUnavailable
				break
			}
			var scan models.ScanResult
			scan, result.Err = scanner.Scan(ctx)
			if result.Err == nil {
				result.Message = scanMessage(scan)
				_ = eng.Fetcher.FetchNow(ctx)
			}
		}
		return result
	}
}

func scanMessage(scan models.ScanResult) string {
	if msg := strings.TrimSpace(scan.Message); msg != "" {
		return msg
	}
	return fmt.Sprintf("Scan found %d new scripts", len(scan.Scripts))
}

func (m model) handleActionResult(msg actionResultMsg) (tea.Model, tea.Cmd) {
	m.actionBusy = false
	m.busyLabel = ""

	switch msg.Kind {
	case actionBatchRun, actionBatchStop, actionBatchDelete:
		// Partial failures still carry a useful summary.
		if msg.Message != "" {
			kind := statusOK
			if msg.Err != nil {
				kind = statusErr
			}
			m.setStatus(kind, msg.Message)
			m.syncFromStore()
			return m, nil
		}
	}

	if msg.Err != nil {
		text := engine.Message(msg.Err)
		m.setStatus(statusErr, text)
		if msg.Kind == actionSave {
			m.mode = modeForm
			m.form.err = text
		}
		return m, nil
	}

	switch msg.Kind {
	case actionSave:
		m.mode = modeMain
		m.form = formState{}
		if msg.ID != 0 {
			m.selectedID = msg.ID
		}
	case actionLoadContent:
		m.editor.open(msg.ID, msg.Content)
		m.resize()
		m.setTab(tabEditor)
		m.setStatus(statusInfo, fmt.Sprintf("Editing #%d", msg.ID))
		return m, m.editor.area.Focus()
	case actionSaveContent, actionRestart:
		m.editor.markSaved(msg.Content)
	}

	if msg.Message != "" {
		m.setStatus(statusOK, msg.Message)
	}
	m.syncFromStore()
	return m, nil
}

func waitForEvent(ch <-chan *models.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: event}
	}
}

func (m model) tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *model) resize() {
	width := m.effectiveWidth()
	height := m.effectiveHeight()
	// Header, tab bar, pane border, hints, and status line.
	m.logView.Width = maxInt(20, width-4)
	m.logView.Height = maxInt(5, height-10)
	m.editor.area.SetWidth(maxInt(20, width-4))
	m.editor.area.SetHeight(maxInt(5, height-10))
	if m.logFollow {
		m.logView.GotoBottom()
	}
}

func (m model) effectiveWidth() int {
	if m.width <= 0 {
		return 120
	}
	return maxInt(m.width, minWindowWidth)
}

func (m model) effectiveHeight() int {
	if m.height <= 0 {
		return 34
	}
	return maxInt(m.height, minWindowHeight)
}

func (m *model) restoreViewState() {
	if m.viewState == nil {
		return
	}
	state, err := m.viewState.Load()
	if err != nil {
		m.logger.Warn().Err(err).Str("path", m.viewState.Path()).Msg("ignoring unreadable view state")
		return
	}
	if state.IsEmpty() {
		return
	}
	state.Normalize()
	m.tab = parseTab(state.Tab)
	if m.tab == tabEditor {
		m.tab = tabScripts
	}
	m.opts.Query = state.Query
	m.opts.Kind = state.Kind
	m.opts.Status = state.Status
	m.opts.Enabled = state.Enabled
	m.opts.SortKey = state.SortKey
	m.opts.Order = state.Order
	m.filterInput.SetValue(state.Query)
}

func (m model) saveViewState() {
	if m.viewState == nil {
		return
	}
	state := &config.ViewState{
		Tab:     m.tab.String(),
		Query:   m.opts.Query,
		Kind:    m.opts.Kind,
		Status:  m.opts.Status,
		Enabled: m.opts.Enabled,
		SortKey: m.opts.SortKey,
		Order:   m.opts.Order,
	}
	if err := m.viewState.Save(state); err != nil {
		m.logger.Warn().Err(err).Msg("failed to save view state")
	}
}
