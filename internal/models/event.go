package models

import (
	"strconv"
	"time"
)

// EventType categorizes engine notifications.
type EventType string

const (
	// Local collection events
	EventTypeSnapshotApplied EventType = "snapshot.applied"
	EventTypeScriptsMerged   EventType = "scripts.merged"
	EventTypeFetchFailed     EventType = "fetch.failed"

	// Action events
	EventTypeActionSucceeded EventType = "action.succeeded"
	EventTypeActionFailed    EventType = "action.failed"

	// Batch events
	EventTypeBatchCompleted EventType = "batch.completed"

	// Log stream events
	EventTypeLogStreamState  EventType = "logstream.state"
	EventTypeLogStreamAppend EventType = "logstream.append"
)

// EntityType identifies what an event relates to.
type EntityType string

const (
	EntityTypeScript     EntityType = "script"
	EntityTypeCollection EntityType = "collection"
	EntityTypeBatch      EntityType = "batch"
	EntityTypeLogStream  EntityType = "logstream"
)

// Event is an in-process engine notification.
type Event struct {
	Timestamp  time.Time  `json:"timestamp"`
	Type       EventType  `json:"type"`
	EntityType EntityType `json:"entity_type"`

	// EntityID is the script id, batch correlation id, or empty for the
	// whole collection.
	EntityID string `json:"entity_id,omitempty"`

	// Message is a short operator-facing summary.
	Message string `json:"message,omitempty"`

	// Generation is the store generation after the write, when applicable.
	Generation uint64 `json:"generation,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// ScriptEntityID formats a script id for Event.EntityID.
func ScriptEntityID(id int64) string {
	return strconv.FormatInt(id, 10)
}
