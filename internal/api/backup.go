package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tOgg1/scriptdeck/internal/models"
)

// ManualBackup archives the given scripts, or all scripts when ids is empty.
func (c *Client) ManualBackup(ctx context.Context, ids []int64, backupType models.BackupType) (models.BackupResult, error) {
	if backupType == "" {
		backupType = models.BackupLocal
	}
	body := struct {
		ScriptIDs  []int64           `json:"script_ids"`
		BackupType models.BackupType `json:"backup_type"`
	}{BackupType: backupType}
	if len(ids) > 0 {
		body.ScriptIDs = ids
	}

	var result models.BackupResult
	_, err := c.doJSON(ctx, "backup", http.MethodPost, "/backup/manual", body, &result)
	return result, err
}

// BackupScript archives a single script locally.
func (c *Client) BackupScript(ctx context.Context, id int64) (models.BackupResult, error) {
	var result models.BackupResult
	_, err := c.doJSON(ctx, "backup script", http.MethodPost, fmt.Sprintf("/backup/script/%d", id), nil, &result)
	return result, err
}

// GetBackupConfig returns the scheduled backup configuration.
func (c *Client) GetBackupConfig(ctx context.Context) (models.BackupConfig, error) {
	raw := map[string]*string{}
	if _, err := c.doJSON(ctx, "get backup config", http.MethodGet, "/backup/config", nil, &raw); err != nil {
		return models.BackupConfig{}, err
	}
	return models.BackupConfigFromSettings(raw), nil
}

// SaveBackupConfig stores the scheduled backup configuration.
func (c *Client) SaveBackupConfig(ctx context.Context, cfg models.BackupConfig) (models.MessageResult, error) {
	var result models.MessageResult
	_, err := c.doJSON(ctx, "save backup config", http.MethodPost, "/backup/config", cfg, &result)
	return result, err
}

// TestCloudDrive checks WebDAV credentials.
func (c *Client) TestCloudDrive(ctx context.Context, webdavURL, username, password string) (models.MessageResult, error) {
	body := struct {
		WebDAVURL string `json:"webdav_url"`
		Username  string `json:"username"`
		Password  string `json:"password"`
	}{WebDAVURL: webdavURL, Username: username, Password: password}

	var result models.MessageResult
	_, err := c.doJSON(ctx, "test clouddrive", http.MethodPost, "/backup/test-clouddrive", body, &result)
	return result, err
}

// ApplyBackupSchedule makes the server reload its backup schedule.
func (c *Client) ApplyBackupSchedule(ctx context.Context) (models.MessageResult, error) {
	var result models.MessageResult
	_, err := c.doJSON(ctx, "apply backup schedule", http.MethodPost, "/backup/apply-schedule", nil, &result)
	return result, err
}

// BackupHistory lists local backup archives.
func (c *Client) BackupHistory(ctx context.Context) ([]models.BackupEntry, error) {
	var body struct {
		Backups []models.BackupEntry `json:"backups"`
	}
	if _, err := c.doJSON(ctx, "backup history", http.MethodGet, "/backup/history", nil, &body); err != nil {
		return nil, err
	}
	return body.Backups, nil
}

// DownloadBackup streams an archive into w and returns the bytes written.
func (c *Client) DownloadBackup(ctx context.Context, filename string, w io.Writer) (int64, error) {
	const op = "download backup"
	req, err := c.newRequest(ctx, http.MethodGet, "/backup/download/"+url.PathEscape(filename), nil, "")
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/zip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return 0, newAPIError(op, resp.StatusCode, data)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &TransportError{Op: op, Err: err}
	}
	return n, nil
}

// DeleteBackup removes one archive.
func (c *Client) DeleteBackup(ctx context.Context, filename string) (models.MessageResult, error) {
	var result models.MessageResult
	_, err := c.doJSON(ctx, "delete backup", http.MethodDelete, "/backup/"+url.PathEscape(filename), nil, &result)
	return result, err
}

// DeleteAllBackups removes every local archive.
func (c *Client) DeleteAllBackups(ctx context.Context) (models.MessageResult, error) {
	var result models.MessageResult
	_, err := c.doJSON(ctx, "delete all backups", http.MethodDelete, "/backup", nil, &result)
	return result, err
}

// RestoreBackup uploads an archive and restores the scripts it holds.
func (c *Client) RestoreBackup(ctx context.Context, filename string, r io.Reader) (models.RestoreResult, error) {
	var result models.RestoreResult
	err := c.uploadFile(ctx, "restore backup", "/backup/upload-restore", filename, r, &result)
	return result, err
}
