// Package models defines the data types shared by the scriptdeck engine,
// the collaborator client, and the console.
package models

import (
	"errors"
	"strings"
	"time"
)

// Status is the last known execution status reported by the server.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// StatusUnsetLabel is how a script that never ran is displayed and filtered.
const StatusUnsetLabel = "unset"

// DaemonSchedule is the schedule sentinel meaning "run continuously".
// It is mutually exclusive with a cron expression.
const DaemonSchedule = "@daemon"

// Kind is the language kind implied by a script's path suffix.
type Kind string

const (
	KindAll    Kind = "all"
	KindPython Kind = "py"
	KindShell  Kind = "sh"
)

// Script validation errors.
var (
	ErrScriptNameRequired = errors.New("name is required")
	ErrScriptPathRequired = errors.New("path is required")
)

// Script is a user-defined script hosted by the remote service.
type Script struct {
	// ID is assigned by the server and never reused by the client.
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`

	// Cron is a 5-field cron expression, DaemonSchedule, or empty for
	// manual-only scripts.
	Cron string `json:"cron"`

	Enabled      bool   `json:"enabled"`
	RunOnStartup bool   `json:"run_on_startup"`
	Arguments    string `json:"arguments"`

	Description *string `json:"description,omitempty"`

	// LastStatus is nil when the script never ran.
	LastStatus *Status    `json:"last_status"`
	LastRun    *Timestamp `json:"last_run"`
	LastOutput *string    `json:"last_output"`
}

// Kind derives the language kind from the path suffix. The match is
// case-sensitive: "cleanup.PY" is a shell script.
func (s Script) Kind() Kind {
	if strings.HasSuffix(s.Path, ".py") {
		return KindPython
	}
	return KindShell
}

// IsRunning reports whether the last known status is running.
func (s Script) IsRunning() bool {
	return s.LastStatus != nil && *s.LastStatus == StatusRunning
}

// IsDaemon reports whether the script is scheduled as a long-lived daemon.
func (s Script) IsDaemon() bool {
	return strings.TrimSpace(s.Cron) == DaemonSchedule
}

// StatusLabel returns the status for display, "unset" when nil.
func (s Script) StatusLabel() string {
	if s.LastStatus == nil {
		return StatusUnsetLabel
	}
	return string(*s.LastStatus)
}

// ScheduleLabel describes the schedule for display.
func (s Script) ScheduleLabel() string {
	cron := strings.TrimSpace(s.Cron)
	switch {
	case cron == DaemonSchedule:
		return "daemon"
	case cron == "":
		return "manual"
	default:
		return cron
	}
}

// LastRunTime returns the last run start time, or the zero time.
func (s Script) LastRunTime() time.Time {
	if s.LastRun == nil {
		return time.Time{}
	}
	return s.LastRun.Time
}

// Elapsed returns how long a running script has been running.
// It reports false when the script is not running or has no start time.
func (s Script) Elapsed(now time.Time) (time.Duration, bool) {
	if !s.IsRunning() || s.LastRun == nil || s.LastRun.IsZero() {
		return 0, false
	}
	d := now.Sub(s.LastRun.Time)
	if d < 0 {
		return 0, false
	}
	return d, true
}

// Clone returns a deep copy of the script.
func (s Script) Clone() Script {
	out := s
	if s.Description != nil {
		v := *s.Description
		out.Description = &v
	}
	if s.LastStatus != nil {
		v := *s.LastStatus
		out.LastStatus = &v
	}
	if s.LastRun != nil {
		v := *s.LastRun
		out.LastRun = &v
	}
	if s.LastOutput != nil {
		v := *s.LastOutput
		out.LastOutput = &v
	}
	return out
}

// Equal reports whether two scripts carry identical content.
func (s Script) Equal(o Script) bool {
	if s.ID != o.ID || s.Name != o.Name || s.Path != o.Path || s.Cron != o.Cron ||
		s.Enabled != o.Enabled || s.RunOnStartup != o.RunOnStartup || s.Arguments != o.Arguments {
		return false
	}
	if !equalPtr(s.Description, o.Description) || !equalPtr(s.LastStatus, o.LastStatus) || !equalPtr(s.LastOutput, o.LastOutput) {
		return false
	}
	switch {
	case s.LastRun == nil && o.LastRun == nil:
		return true
	case s.LastRun == nil || o.LastRun == nil:
		return false
	default:
		return s.LastRun.Equal(o.LastRun.Time)
	}
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ScriptFields is the create/update payload for a script.
type ScriptFields struct {
	Name         string  `json:"name"`
	Path         string  `json:"path"`
	Cron         string  `json:"cron"`
	Enabled      bool    `json:"enabled"`
	RunOnStartup bool    `json:"run_on_startup"`
	Arguments    string  `json:"arguments"`
	Description  *string `json:"description,omitempty"`
}

// FieldsFromScript copies the editable configuration of a script.
func FieldsFromScript(s Script) ScriptFields {
	fields := ScriptFields{
		Name:         s.Name,
		Path:         s.Path,
		Cron:         s.Cron,
		Enabled:      s.Enabled,
		RunOnStartup: s.RunOnStartup,
		Arguments:    s.Arguments,
	}
	if s.Description != nil {
		v := *s.Description
		fields.Description = &v
	}
	return fields
}

// SetDaemon marks the script as a daemon, clearing any cron expression.
func (f *ScriptFields) SetDaemon() {
	f.Cron = DaemonSchedule
}

// SetCron sets a cron expression, replacing the daemon sentinel.
// An empty expression means manual trigger only.
func (f *ScriptFields) SetCron(expr string) {
	f.Cron = strings.TrimSpace(expr)
}

// IsDaemon reports whether the fields describe a daemon schedule.
func (f ScriptFields) IsDaemon() bool {
	return strings.TrimSpace(f.Cron) == DaemonSchedule
}

// Validate checks required-field presence. Everything else is validated by
// the server.
func (f ScriptFields) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(f.Name) == "" {
		validation.Add("name", ErrScriptNameRequired)
	}
	if strings.TrimSpace(f.Path) == "" {
		validation.Add("path", ErrScriptPathRequired)
	}
	return validation.Err()
}

// StatusPtr returns a pointer to the given status.
func StatusPtr(s Status) *Status {
	return &s
}
