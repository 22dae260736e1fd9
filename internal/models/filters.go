package models

import (
	"fmt"
	"strings"
)

// StatusFilter selects scripts by last known status.
type StatusFilter string

const (
	StatusFilterAll     StatusFilter = "all"
	StatusFilterRunning StatusFilter = "running"
	StatusFilterSuccess StatusFilter = "success"
	StatusFilterFailed  StatusFilter = "failed"
	StatusFilterStopped StatusFilter = "stopped"
	// StatusFilterUnset matches only scripts that never ran.
	StatusFilterUnset StatusFilter = "unset"
)

// StatusFilterOptions lists status filters in display order.
var StatusFilterOptions = []StatusFilter{
	StatusFilterAll,
	StatusFilterRunning,
	StatusFilterSuccess,
	StatusFilterFailed,
	StatusFilterStopped,
	StatusFilterUnset,
}

// EnabledFilter selects scripts by enabled flag.
type EnabledFilter string

const (
	EnabledFilterAll      EnabledFilter = "all"
	EnabledFilterEnabled  EnabledFilter = "enabled"
	EnabledFilterDisabled EnabledFilter = "disabled"
)

// EnabledFilterOptions lists enabled filters in display order.
var EnabledFilterOptions = []EnabledFilter{EnabledFilterAll, EnabledFilterEnabled, EnabledFilterDisabled}

// KindOptions lists kind filters in display order.
var KindOptions = []Kind{KindAll, KindPython, KindShell}

// SortKey is the operator-chosen secondary sort key.
type SortKey string

const (
	SortByName    SortKey = "name"
	SortByLastRun SortKey = "lastRun"
	SortByStatus  SortKey = "status"
)

// SortKeyOptions lists sort keys in display order.
var SortKeyOptions = []SortKey{SortByName, SortByLastRun, SortByStatus}

// SortOrder is the direction applied to the secondary sort key.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseKind parses a kind filter value.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "all":
		return KindAll, nil
	case "py", "python", "scripted-py":
		return KindPython, nil
	case "sh", "shell", "scripted-sh":
		return KindShell, nil
	default:
		return "", fmt.Errorf("invalid kind %q (expected all, py, sh)", value)
	}
}

// ParseStatusFilter parses a status filter value. "idle" is accepted as an
// alias of "unset".
func ParseStatusFilter(value string) (StatusFilter, error) {
	switch v := strings.ToLower(strings.TrimSpace(value)); v {
	case "", "all":
		return StatusFilterAll, nil
	case "idle", "none", "unset":
		return StatusFilterUnset, nil
	case "running", "success", "failed", "stopped":
		return StatusFilter(v), nil
	default:
		return "", fmt.Errorf("invalid status %q (expected all, running, success, failed, stopped, unset)", value)
	}
}

// ParseEnabledFilter parses an enabled filter value.
func ParseEnabledFilter(value string) (EnabledFilter, error) {
	switch v := strings.ToLower(strings.TrimSpace(value)); v {
	case "", "all":
		return EnabledFilterAll, nil
	case "enabled", "disabled":
		return EnabledFilter(v), nil
	default:
		return "", fmt.Errorf("invalid enabled filter %q (expected all, enabled, disabled)", value)
	}
}

// ParseSortKey parses a sort key.
func ParseSortKey(value string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "name":
		return SortByName, nil
	case "lastrun", "last-run", "last_run":
		return SortByLastRun, nil
	case "status":
		return SortByStatus, nil
	default:
		return "", fmt.Errorf("invalid sort key %q (expected name, lastRun, status)", value)
	}
}

// ParseSortOrder parses a sort direction.
func ParseSortOrder(value string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "asc":
		return SortAsc, nil
	case "desc":
		return SortDesc, nil
	default:
		return "", fmt.Errorf("invalid sort order %q (expected asc, desc)", value)
	}
}
