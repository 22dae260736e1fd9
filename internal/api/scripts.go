package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/tOgg1/scriptdeck/internal/models"
)

func scriptPath(id int64, suffix string) string {
	return fmt.Sprintf("/scripts/%d%s", id, suffix)
}

// ListScripts returns the full collection.
func (c *Client) ListScripts(ctx context.Context) ([]models.Script, error) {
	var scripts []models.Script
	if _, err := c.doJSON(ctx, "list scripts", http.MethodGet, "/scripts", nil, &scripts); err != nil {
		return nil, err
	}
	if scripts == nil {
		scripts = []models.Script{}
	}
	return scripts, nil
}

// CreateScript creates a script and returns the stored record.
func (c *Client) CreateScript(ctx context.Context, fields models.ScriptFields) (*models.Script, error) {
	return c.scriptCall(ctx, "create script", http.MethodPost, "/scripts", fields)
}

// UpdateScript replaces a script's configuration.
func (c *Client) UpdateScript(ctx context.Context, id int64, fields models.ScriptFields) (*models.Script, error) {
	return c.scriptCall(ctx, "update script", http.MethodPut, scriptPath(id, ""), fields)
}

// DeleteScript removes a script.
func (c *Client) DeleteScript(ctx context.Context, id int64) error {
	_, err := c.doJSON(ctx, "delete script", http.MethodDelete, scriptPath(id, ""), nil, nil)
	return err
}

// RunScript starts a script. The returned script is nil when the server
// acknowledged without a body.
func (c *Client) RunScript(ctx context.Context, id int64) (*models.Script, error) {
	script, err := c.scriptCall(ctx, "run script", http.MethodPost, scriptPath(id, "/run"), nil)
	return scriptFor(id, script), err
}

// StopScript stops a script. The returned script is nil when the server
// acknowledged without a body.
func (c *Client) StopScript(ctx context.Context, id int64) (*models.Script, error) {
	script, err := c.scriptCall(ctx, "stop script", http.MethodPost, scriptPath(id, "/stop"), nil)
	return scriptFor(id, script), err
}

// scriptFor drops a 2xx body that is not the requested script, such as a
// bare {"message": "..."} acknowledgement.
func scriptFor(id int64, script *models.Script) *models.Script {
	if script == nil || script.ID != id {
		return nil
	}
	return script
}

func (c *Client) scriptCall(ctx context.Context, op, method, path string, in any) (*models.Script, error) {
	var script models.Script
	ok, err := c.doJSON(ctx, op, method, path, in, &script)
	if err != nil || !ok {
		return nil, err
	}
	return &script, nil
}

type contentBody struct {
	Content string `json:"content"`
}

// GetContent returns a script's source text.
func (c *Client) GetContent(ctx context.Context, id int64) (string, error) {
	var body contentBody
	if _, err := c.doJSON(ctx, "get content", http.MethodGet, scriptPath(id, "/content"), nil, &body); err != nil {
		return "", err
	}
	return body.Content, nil
}

// PutContent overwrites a script's source text.
func (c *Client) PutContent(ctx context.Context, id int64, content string) error {
	_, err := c.doJSON(ctx, "save content", http.MethodPut, scriptPath(id, "/content"), contentBody{Content: content}, nil)
	return err
}

// Scan asks the server to register script files found on its disk.
func (c *Client) Scan(ctx context.Context) (models.ScanResult, error) {
	var result models.ScanResult
	_, err := c.doJSON(ctx, "scan", http.MethodPost, "/scan", nil, &result)
	return result, err
}

// Upload stores a script file on the server.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (models.UploadResult, error) {
	var result models.UploadResult
	err := c.uploadFile(ctx, "upload", "/upload", filename, r, &result)
	return result, err
}

func (c *Client) uploadFile(ctx context.Context, op, path, filename string, r io.Reader, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return fmt.Errorf("%s: build form: %w", op, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("%s: read file: %w", op, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("%s: build form: %w", op, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, &buf, writer.FormDataContentType())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = c.send(req, op, out)
	return err
}
