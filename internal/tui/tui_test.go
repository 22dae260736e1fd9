package tui

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/scriptdeck/internal/api"
	"github.com/tOgg1/scriptdeck/internal/config"
	"github.com/tOgg1/scriptdeck/internal/engine"
	"github.com/tOgg1/scriptdeck/internal/models"
)

type fakeClient struct {
	mu       sync.Mutex
	scripts  map[int64]models.Script
	content  map[int64]string
	nextID   int64
	failRun  map[int64]bool
	runCalls []int64
	scans    int
}

func newFakeClient(scripts ...models.Script) *fakeClient {
	c := &fakeClient{
		scripts: make(map[int64]models.Script),
		content: make(map[int64]string),
		failRun: make(map[int64]bool),
		nextID:  100,
	}
	for _, s := range scripts {
		c.scripts[s.ID] = s
	}
	return c
}

func (c *fakeClient) ListScripts(context.Context) ([]models.Script, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Script, 0, len(c.scripts))
	for _, s := range c.scripts {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *fakeClient) CreateScript(_ context.Context, fields models.ScriptFields) (*models.Script, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	s := models.Script{ID: c.nextID, Name: fields.Name, Path: fields.Path, Cron: fields.Cron, Enabled: fields.Enabled, Arguments: fields.Arguments}
	c.scripts[s.ID] = s
	return &s, nil
}

func (c *fakeClient) UpdateScript(_ context.Context, id int64, fields models.ScriptFields) (*models.Script, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.scripts[id]
	s.Name, s.Path, s.Cron, s.Enabled = fields.Name, fields.Path, fields.Cron, fields.Enabled
	c.scripts[id] = s
	return &s, nil
}

func (c *fakeClient) DeleteScript(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.scripts, id)
	return nil
}

func (c *fakeClient) RunScript(_ context.Context, id int64) (*models.Script, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runCalls = append(c.runCalls, id)
	if c.failRun[id] {
		return nil, &api.APIError{Op: "run script", StatusCode: 409, Detail: "already running"}
	}
	s := c.scripts[id]
	s.LastStatus = models.StatusPtr(models.StatusRunning)
	c.scripts[id] = s
	return &s, nil
}

func (c *fakeClient) StopScript(_ context.Context, id int64) (*models.Script, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.scripts[id]
	s.LastStatus = models.StatusPtr(models.StatusStopped)
	c.scripts[id] = s
	return &s, nil
}

func (c *fakeClient) GetContent(_ context.Context, id int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content[id], nil
}

func (c *fakeClient) PutContent(_ context.Context, id int64, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content[id] = content
	return nil
}

func (c *fakeClient) Scan(context.Context) (models.ScanResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scans++
	return models.ScanResult{Message: "Found 0 new scripts"}, nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func script(id int64, name string) models.Script {
	return models.Script{ID: id, Name: name, Path: "/scripts/" + name + ".py", Enabled: true}
}

func newTestModel(t *testing.T, client *fakeClient, cfg Config) model {
	t.Helper()
	eng := engine.New(client, engine.Options{})
	scripts, err := client.ListScripts(context.Background())
	require.NoError(t, err)
	eng.Store.Replace(context.Background(), scripts)

	m := newModel(context.Background(), eng, cfg)
	m.now = func() time.Time { return testNow }
	t.Cleanup(m.unsubscribe)
	return m
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}

func press(t *testing.T, m model, keys ...string) (model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, key := range keys {
		var next tea.Model
		next, cmd = m.Update(keyMsg(key))
		m = next.(model)
	}
	return m, cmd
}

// finish runs an action command and feeds its result back.
func finish(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	result, ok := msg.(actionResultMsg)
	require.True(t, ok, "expected actionResultMsg, got %T", msg)
	next, _ := m.Update(result)
	return next.(model)
}

func visibleNames(m model) []string {
	names := make([]string, len(m.visible))
	for i, s := range m.visible {
		names[i] = s.Name
	}
	return names
}

func TestScriptsTabShowsRunningFirst(t *testing.T) {
	running := script(3, "charlie")
	running.LastStatus = models.StatusPtr(models.StatusRunning)
	client := newFakeClient(script(1, "alpha"), script(2, "bravo"), running)
	m := newTestModel(t, client, Config{})

	m, _ = press(t, m, "2")
	require.Equal(t, tabScripts, m.tab)
	require.Equal(t, []string{"charlie", "alpha", "bravo"}, visibleNames(m))
	require.Equal(t, []string{"charlie", "alpha", "bravo"}, func() []string {
		names := make([]string, len(m.dashboard))
		for i, s := range m.dashboard {
			names[i] = s.Name
		}
		return names
	}())
}

func TestFilterModeNarrowsByName(t *testing.T) {
	client := newFakeClient(script(1, "backup-db"), script(2, "report"), script(3, "backup-files"))
	m := newTestModel(t, client, Config{})

	m, _ = press(t, m, "2", "/")
	require.Equal(t, modeFilter, m.mode)

	m, _ = press(t, m, "b", "a", "c")
	require.Equal(t, "bac", m.opts.Query)
	require.Equal(t, []string{"backup-db", "backup-files"}, visibleNames(m))

	m, _ = press(t, m, "enter")
	require.Equal(t, modeMain, m.mode)

	m, _ = press(t, m, "x")
	require.Len(t, m.visible, 3)
	require.Empty(t, m.opts.Query)
}

func TestSortAndStatusFilterKeys(t *testing.T) {
	failed := script(2, "bravo")
	failed.LastStatus = models.StatusPtr(models.StatusFailed)
	client := newFakeClient(script(1, "alpha"), failed)
	m := newTestModel(t, client, Config{})

	m, _ = press(t, m, "2", "s")
	require.Equal(t, models.SortByLastRun, m.opts.SortKey)
	m, _ = press(t, m, "o")
	require.Equal(t, models.SortDesc, m.opts.Order)

	// all -> running -> success -> failed
	m, _ = press(t, m, "f", "f", "f")
	require.Equal(t, models.StatusFilterFailed, m.opts.Status)
	require.Equal(t, []string{"bravo"}, visibleNames(m))
}

func TestCursorFollowsScriptAcrossRefresh(t *testing.T) {
	client := newFakeClient(script(1, "alpha"), script(2, "bravo"), script(3, "charlie"))
	m := newTestModel(t, client, Config{})
	m, _ = press(t, m, "2", "j", "j")
	require.Equal(t, int64(3), m.selectedID)

	started := script(3, "charlie")
	started.LastStatus = models.StatusPtr(models.StatusRunning)
	m.eng.Store.Merge(context.Background(), started)
	m.handleEvent(&models.Event{Type: models.EventTypeScriptsMerged})

	require.Equal(t, int64(3), m.selectedID)
	require.Equal(t, 0, m.selectedIdx)
}

func TestToggleRunFailureShowsDetail(t *testing.T) {
	client := newFakeClient(script(1, "alpha"))
	client.failRun[1] = true
	m := newTestModel(t, client, Config{})

	m, cmd := press(t, m, "2", "enter")
	require.True(t, m.actionBusy)
	m = finish(t, m, cmd)

	require.False(t, m.actionBusy)
	require.Equal(t, statusErr, m.statusKind)
	require.Equal(t, "run failed: already running", m.statusText)
}

func TestBatchRunOverSelection(t *testing.T) {
	client := newFakeClient(script(1, "alpha"), script(2, "bravo"), script(3, "charlie"))
	m := newTestModel(t, client, Config{})

	m, _ = press(t, m, "2", "v", "space", "j", "j", "space")
	require.Equal(t, []int64{1, 3}, m.eng.Selection.IDs())
	require.Contains(t, m.View(), "Batch: 2 of 3 selected")

	m, cmd := press(t, m, "R")
	m = finish(t, m, cmd)

	require.Equal(t, []int64{1, 3}, client.runCalls)
	require.Equal(t, statusOK, m.statusKind)
	require.Equal(t, "run: 2 of 2 succeeded", m.statusText)
	require.False(t, m.eng.Selection.Active())

	got, ok := m.eng.Store.Get(3)
	require.True(t, ok)
	require.True(t, got.IsRunning())
}

func TestBatchRunPartialFailure(t *testing.T) {
	client := newFakeClient(script(1, "alpha"), script(2, "bravo"))
	client.failRun[2] = true
	m := newTestModel(t, client, Config{})

	m, _ = press(t, m, "2", "v", "a")
	m, cmd := press(t, m, "R")
	m = finish(t, m, cmd)

	require.Equal(t, statusErr, m.statusKind)
	require.Equal(t, "run: 1 succeeded, 1 failed (#2)", m.statusText)
}

func TestBatchWithEmptySelection(t *testing.T) {
	m := newTestModel(t, newFakeClient(script(1, "alpha")), Config{})
	m, cmd := press(t, m, "2", "v", "S")
	require.Nil(t, cmd)
	require.Equal(t, "No scripts selected", m.statusText)
}

func TestBatchDeleteNamesEveryScriptBeforeDeleting(t *testing.T) {
	client := newFakeClient(script(1, "alpha"), script(2, "bravo"), script(3, "charlie"))
	m := newTestModel(t, client, Config{})

	m, _ = press(t, m, "2", "v", "space", "j", "space", "X")
	require.Equal(t, modeConfirm, m.mode)
	require.Contains(t, m.confirm.Prompt, "Delete 2 scripts: alpha (#1), bravo (#2)?")
	require.Len(t, client.scripts, 3)

	m, cmd := press(t, m, "y")
	m = finish(t, m, cmd)

	require.Len(t, client.scripts, 1)
	require.Equal(t, "delete: 2 of 2 succeeded", m.statusText)
	require.Equal(t, []string{"charlie"}, visibleNames(m))
}

func TestDeleteCancelled(t *testing.T) {
	client := newFakeClient(script(1, "alpha"))
	m := newTestModel(t, client, Config{})

	m, _ = press(t, m, "2", "D")
	require.Equal(t, modeConfirm, m.mode)
	m, cmd := press(t, m, "n")
	require.Nil(t, cmd)
	require.Equal(t, modeMain, m.mode)
	require.Equal(t, "Action cancelled", m.statusText)
	require.Len(t, client.scripts, 1)
}

func TestCreateFormValidatesThenSaves(t *testing.T) {
	client := newFakeClient()
	m := newTestModel(t, client, Config{})

	m, _ = press(t, m, "2", "n")
	require.Equal(t, modeForm, m.mode)

	m, cmd := press(t, m, "ctrl+s")
	require.Nil(t, cmd)
	require.Contains(t, m.form.err, "name is required")

	m.form.inputs[fieldName].SetValue("nightly")
	m.form.inputs[fieldPath].SetValue("/scripts/nightly.sh")
	m.form.daemon = true

	m, cmd = press(t, m, "ctrl+s")
	m = finish(t, m, cmd)

	require.Equal(t, modeMain, m.mode)
	require.Len(t, client.scripts, 1)
	created := client.scripts[101]
	require.Equal(t, "nightly", created.Name)
	require.Equal(t, models.DaemonSchedule, created.Cron)
	require.True(t, created.Enabled)
	require.Equal(t, int64(101), m.selectedID)
}

func TestEditFormPrefillsScript(t *testing.T) {
	existing := script(7, "report")
	existing.Cron = "0 2 * * *"
	form := newForm(&existing)

	require.False(t, form.isNew)
	require.Equal(t, "report", form.value(fieldName))
	require.Equal(t, "0 2 * * *", form.value(fieldCron))

	fields := form.fields()
	require.Equal(t, "0 2 * * *", fields.Cron)
	require.Nil(t, fields.Description)
}

func TestFormSkipsCronForDaemon(t *testing.T) {
	form := newForm(nil)
	form.daemon = true
	form.focus = fieldPath
	form.move(1)
	require.Equal(t, fieldArguments, form.focus)
}

func TestEditorLoadsAndSavesContent(t *testing.T) {
	client := newFakeClient(script(1, "alpha"))
	client.content[1] = "print('hi')"
	m := newTestModel(t, client, Config{})

	m, cmd := press(t, m, "2", "c")
	m = finish(t, m, cmd)
	require.Equal(t, tabEditor, m.tab)
	require.True(t, m.editor.loaded)
	require.Equal(t, "print('hi')", m.editor.area.Value())
	require.False(t, m.editor.modified())

	m.editor.area.SetValue("print('bye')")
	require.True(t, m.editor.modified())

	m, cmd = press(t, m, "ctrl+s")
	m = finish(t, m, cmd)
	require.Equal(t, "print('bye')", client.content[1])
	require.False(t, m.editor.modified())
	require.Equal(t, "Content saved", m.statusText)

	m, _ = press(t, m, "esc")
	require.Equal(t, tabScripts, m.tab)
	require.False(t, m.editor.loaded)
}

func TestOpenLogsWithoutDialer(t *testing.T) {
	m := newTestModel(t, newFakeClient(script(1, "alpha")), Config{})
	m, _ = press(t, m, "2", "l")
	require.Equal(t, tabScripts, m.tab)
	require.Equal(t, statusErr, m.statusKind)
	require.Equal(t, "Log streaming is not available", m.statusText)
}

func TestScanRefreshesCollection(t *testing.T) {
	client := newFakeClient(script(1, "alpha"))
	m := newTestModel(t, client, Config{Scanner: client})

	m, cmd := press(t, m, "2", "u")
	m = finish(t, m, cmd)
	require.Equal(t, 1, client.scans)
	require.Equal(t, "Found 0 new scripts", m.statusText)
}

func TestScanUnavailable(t *testing.T) {
	m := newTestModel(t, newFakeClient(), Config{})
	m, cmd := press(t, m, "u")
	require.Nil(t, cmd)
	require.Equal(t, "Scan is not available", m.statusText)
}

func TestStatusExpiresAfterTTL(t *testing.T) {
	m := newTestModel(t, newFakeClient(), Config{StatusTTL: time.Second})
	m.setStatus(statusInfo, "hello")

	next, _ := m.Update(tickMsg(testNow))
	m = next.(model)
	require.Equal(t, "hello", m.statusText)

	m.now = func() time.Time { return testNow.Add(2 * time.Second) }
	next, _ = m.Update(tickMsg(testNow))
	m = next.(model)
	require.Empty(t, m.statusText)
}

func TestFetchFailureMarksOffline(t *testing.T) {
	m := newTestModel(t, newFakeClient(script(1, "alpha")), Config{})
	m.handleEvent(&models.Event{Type: models.EventTypeFetchFailed})
	require.True(t, m.offline)
	require.Contains(t, m.View(), "server:unreachable")

	m.handleEvent(&models.Event{Type: models.EventTypeSnapshotApplied})
	require.False(t, m.offline)
}

func TestViewRendersEveryTab(t *testing.T) {
	running := script(2, "bravo")
	running.LastStatus = models.StatusPtr(models.StatusRunning)
	running.LastRun = models.NewTimestamp(testNow.Add(-90 * time.Second))
	m := newTestModel(t, newFakeClient(script(1, "alpha"), running), Config{})

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(model)

	out := m.View()
	require.Contains(t, out, "scriptdeck")
	require.Contains(t, out, "running:1")
	require.Contains(t, out, "up 1m 30s")

	for _, key := range []string{"2", "3", "4", "?"} {
		m, _ = press(t, m, key)
		require.NotEmpty(t, m.View())
	}
}

func TestThemeCycles(t *testing.T) {
	m := newTestModel(t, newFakeClient(), Config{Theme: "light"})
	require.Equal(t, "light", m.palette.Name)
	m, _ = press(t, m, "t")
	require.Equal(t, "default", m.palette.Name)
	require.Equal(t, "default", resolvePalette("neon").Name)
}

func TestViewStatePersistsAcrossLaunches(t *testing.T) {
	store := config.NewViewStateStore(filepath.Join(t.TempDir(), "view.yaml"))
	client := newFakeClient(script(1, "alpha"), script(2, "bravo"))

	m := newTestModel(t, client, Config{ViewState: store})
	m, _ = press(t, m, "2", "s", "o")
	m.saveViewState()

	restored := newTestModel(t, client, Config{ViewState: store})
	require.Equal(t, tabScripts, restored.tab)
	require.Equal(t, models.SortByLastRun, restored.opts.SortKey)
	require.Equal(t, models.SortDesc, restored.opts.Order)
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, newFakeClient(), Config{})
	m, cmd := press(t, m, "q")
	require.True(t, m.quitting)
	require.NotNil(t, cmd)
	require.Empty(t, m.View())
}
