package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/tOgg1/scriptdeck/internal/api"
	"github.com/tOgg1/scriptdeck/internal/models"
)

// fakeClient is an in-memory collaborator. Per-id failures and body-less
// responses are configured through the maps.
type fakeClient struct {
	mu      sync.Mutex
	scripts map[int64]models.Script
	nextID  int64

	failRun    map[int64]error
	failStop   map[int64]error
	failDelete map[int64]error
	failList   error
	failPut    error
	noBody     bool
	// ackBody answers run/stop with a body that is not the script.
	ackBody bool

	calls      []string
	requestIDs []string
	created    []models.ScriptFields
	content    map[int64]string
	listCalls  int
}

func newFakeClient(scripts ...models.Script) *fakeClient {
	c := &fakeClient{
		scripts:    make(map[int64]models.Script),
		failRun:    make(map[int64]error),
		failStop:   make(map[int64]error),
		failDelete: make(map[int64]error),
		content:    make(map[int64]string),
		nextID:     100,
	}
	for _, s := range scripts {
		c.scripts[s.ID] = s
	}
	return c
}

func detailErr(detail string) error {
	return &api.APIError{Op: "test", StatusCode: 500, Detail: detail}
}

func (c *fakeClient) record(ctx context.Context, call string) {
	c.calls = append(c.calls, call)
	c.requestIDs = append(c.requestIDs, api.RequestID(ctx))
}

func (c *fakeClient) ListScripts(ctx context.Context) ([]models.Script, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listCalls++
	if c.failList != nil {
		return nil, c.failList
	}
	out := make([]models.Script, 0, len(c.scripts))
	for _, s := range c.scripts {
		out = append(out, s.Clone())
	}
	return out, nil
}

func (c *fakeClient) CreateScript(ctx context.Context, fields models.ScriptFields) (*models.Script, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(ctx, "create")
	c.created = append(c.created, fields)
	c.nextID++
	s := models.Script{ID: c.nextID, Name: fields.Name, Path: fields.Path, Cron: fields.Cron, Enabled: fields.Enabled}
	c.scripts[s.ID] = s
	return &s, nil
}

func (c *fakeClient) UpdateScript(ctx context.Context, id int64, fields models.ScriptFields) (*models.Script, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(ctx, "update")
	c.created = append(c.created, fields)
	s, ok := c.scripts[id]
	if !ok {
		return nil, &api.APIError{Op: "update script", StatusCode: 404, Detail: "Script not found"}
	}
	s.Name, s.Path, s.Cron, s.Enabled = fields.Name, fields.Path, fields.Cron, fields.Enabled
	c.scripts[id] = s
	return &s, nil
}

func (c *fakeClient) DeleteScript(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(ctx, "delete")
	if err := c.failDelete[id]; err != nil {
		return err
	}
	delete(c.scripts, id)
	return nil
}

func (c *fakeClient) RunScript(ctx context.Context, id int64) (*models.Script, error) {
	return c.setStatus(ctx, "run", id, models.StatusRunning, c.failRun)
}

func (c *fakeClient) StopScript(ctx context.Context, id int64) (*models.Script, error) {
	return c.setStatus(ctx, "stop", id, models.StatusStopped, c.failStop)
}

func (c *fakeClient) setStatus(ctx context.Context, call string, id int64, status models.Status, failures map[int64]error) (*models.Script, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(ctx, call)
	if err := failures[id]; err != nil {
		return nil, err
	}
	s, ok := c.scripts[id]
	if !ok {
		return nil, errors.New("unknown script")
	}
	s.LastStatus = models.StatusPtr(status)
	c.scripts[id] = s
	if c.noBody {
		return nil, nil
	}
	if c.ackBody {
		return &models.Script{}, nil
	}
	out := s.Clone()
	return &out, nil
}

func (c *fakeClient) GetContent(ctx context.Context, id int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(ctx, "get content")
	return c.content[id], nil
}

func (c *fakeClient) PutContent(ctx context.Context, id int64, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(ctx, "save content")
	if c.failPut != nil {
		return c.failPut
	}
	c.content[id] = content
	return nil
}

func (c *fakeClient) setServer(s models.Script) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[s.ID] = s
}

func (c *fakeClient) callLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func script(id int64, name string, status *models.Status) models.Script {
	return models.Script{ID: id, Name: name, Path: name + ".sh", Enabled: true, LastStatus: status}
}

func running() *models.Status { return models.StatusPtr(models.StatusRunning) }
