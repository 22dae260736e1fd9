package models

import "strings"

// BackupType selects where a manual backup is written.
type BackupType string

const (
	BackupLocal      BackupType = "local"
	BackupCloudDrive BackupType = "clouddrive"
)

// BackupEntry is one archive in the server's local backup history.
type BackupEntry struct {
	Filename  string     `json:"filename"`
	Size      int64      `json:"size"`
	CreatedAt *Timestamp `json:"created_at"`
	Path      string     `json:"path"`
}

// BackupResult is the server response to a manual backup.
type BackupResult struct {
	Message    string  `json:"message"`
	Filename   string  `json:"filename"`
	LocalPath  *string `json:"local_path"`
	RemotePath *string `json:"remote_path"`
}

// BackupConfig is the scheduled backup configuration.
type BackupConfig struct {
	LocalBackupEnabled bool   `json:"local_backup_enabled"`
	LocalBackupCron    string `json:"local_backup_cron"`
	CD2BackupEnabled   bool   `json:"cd2_backup_enabled"`
	CD2BackupCron      string `json:"cd2_backup_cron"`
	CD2WebDAVURL       string `json:"cd2_webdav_url"`
	CD2Username        string `json:"cd2_username"`
	CD2Password        string `json:"cd2_password"`
	CD2BackupPath      string `json:"cd2_backup_path"`
}

// DefaultBackupConfig mirrors the defaults the console shows before the
// server returns anything.
func DefaultBackupConfig() BackupConfig {
	return BackupConfig{
		LocalBackupCron: "0 2 * * *",
		CD2BackupCron:   "0 2 * * *",
		CD2BackupPath:   "/ScriptBackups",
	}
}

// RestoreResult is the server response to an uploaded restore archive.
type RestoreResult struct {
	Message       string `json:"message"`
	RestoredCount int    `json:"restored_count"`
	SkippedCount  int    `json:"skipped_count"`
	Details       any    `json:"details,omitempty"`
}

// UploadResult is the server response to a script file upload.
type UploadResult struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// Settings is the server's opaque key/value settings map.
type Settings map[string]string

// Well-known settings keys.
const (
	SettingTelegramToken     = "tg_bot_token"
	SettingTelegramChatID    = "tg_chat_id"
	SettingTelegramProxy     = "tg_proxy"
	SettingEnableHealthCheck = "enable_health_check"
)

// ScanResult is the server response to a disk scan.
type ScanResult struct {
	Message string   `json:"message"`
	Scripts []Script `json:"scripts"`
}

// MessageResult is the generic acknowledgement most mutating endpoints return.
type MessageResult struct {
	Message      string `json:"message"`
	Status       string `json:"status,omitempty"`
	DeletedCount *int   `json:"deleted_count,omitempty"`
}

// BackupConfigFromSettings builds a BackupConfig from the string-valued map
// the server returns. Missing keys keep their defaults.
func BackupConfigFromSettings(raw map[string]*string) BackupConfig {
	cfg := DefaultBackupConfig()
	str := func(key string, dst *string) {
		if v, ok := raw[key]; ok && v != nil && *v != "" {
			*dst = *v
		}
	}
	flag := func(key string) bool {
		v, ok := raw[key]
		return ok && v != nil && strings.EqualFold(strings.TrimSpace(*v), "true")
	}

	cfg.LocalBackupEnabled = flag("local_backup_enabled")
	str("local_backup_cron", &cfg.LocalBackupCron)
	cfg.CD2BackupEnabled = flag("cd2_backup_enabled")
	str("cd2_backup_cron", &cfg.CD2BackupCron)
	str("cd2_webdav_url", &cfg.CD2WebDAVURL)
	str("cd2_username", &cfg.CD2Username)
	str("cd2_password", &cfg.CD2Password)
	str("cd2_backup_path", &cfg.CD2BackupPath)
	return cfg
}
