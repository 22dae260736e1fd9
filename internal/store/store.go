// Package store holds the console's local collection of scripts.
//
// The store is the single place the engine writes server state into. Polls
// replace it wholesale; action confirmations patch individual entries. Writes
// are last-write-wins under a mutex, and every effective write bumps a
// generation counter and publishes a notification.
package store

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/tOgg1/scriptdeck/internal/events"
	"github.com/tOgg1/scriptdeck/internal/models"
)

// Source records which kind of write produced an entry.
type Source string

const (
	SourcePoll  Source = "poll"
	SourceMerge Source = "merge"
)

// Entry is a stored script with write provenance.
type Entry struct {
	Script     models.Script
	Generation uint64
	Source     Source
}

// Store is the local collection keyed by script id.
type Store struct {
	mu         sync.RWMutex
	entries    map[int64]Entry
	generation uint64
	publisher  events.Publisher
}

// Option configures a Store.
type Option func(*Store)

// WithPublisher publishes a notification for every effective write.
func WithPublisher(p events.Publisher) Option {
	return func(s *Store) {
		if p != nil {
			s.publisher = p
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		entries:   make(map[int64]Entry),
		publisher: events.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Replace swaps the whole collection for a server snapshot. It reports
// whether anything changed; an identical snapshot is a no-op.
func (s *Store) Replace(ctx context.Context, scripts []models.Script) bool {
	s.mu.Lock()
	if s.sameAsLocked(scripts) {
		s.mu.Unlock()
		return false
	}

	s.generation++
	gen := s.generation
	next := make(map[int64]Entry, len(scripts))
	for _, script := range scripts {
		next[script.ID] = Entry{Script: script.Clone(), Generation: gen, Source: SourcePoll}
	}
	s.entries = next
	count := len(next)
	s.mu.Unlock()

	s.publisher.Publish(ctx, &models.Event{
		Type:       models.EventTypeSnapshotApplied,
		EntityType: models.EntityTypeCollection,
		Generation: gen,
		Metadata:   map[string]string{"count": strconv.Itoa(count)},
	})
	return true
}

func (s *Store) sameAsLocked(scripts []models.Script) bool {
	seen := make(map[int64]struct{}, len(scripts))
	for _, script := range scripts {
		if _, dup := seen[script.ID]; dup {
			return false
		}
		seen[script.ID] = struct{}{}
		current, ok := s.entries[script.ID]
		if !ok || !current.Script.Equal(script) {
			return false
		}
	}
	return len(seen) == len(s.entries)
}

// Merge patches the given entries, inserting ids that are absent. Entries
// whose content is unchanged are left alone. It returns the ids that changed,
// in ascending order.
func (s *Store) Merge(ctx context.Context, scripts ...models.Script) []int64 {
	if len(scripts) == 0 {
		return nil
	}

	s.mu.Lock()
	pending := make(map[int64]models.Script, len(scripts))
	for _, script := range scripts {
		pending[script.ID] = script
	}
	changed := make([]int64, 0, len(pending))
	for id, script := range pending {
		if current, ok := s.entries[id]; ok && current.Script.Equal(script) {
			continue
		}
		changed = append(changed, id)
	}
	if len(changed) == 0 {
		s.mu.Unlock()
		return nil
	}

	s.generation++
	gen := s.generation
	for _, id := range changed {
		s.entries[id] = Entry{Script: pending[id].Clone(), Generation: gen, Source: SourceMerge}
	}
	s.mu.Unlock()

	sort.Slice(changed, func(i, j int) bool { return changed[i] < changed[j] })

	event := &models.Event{
		Type:       models.EventTypeScriptsMerged,
		EntityType: models.EntityTypeScript,
		Generation: gen,
		Metadata:   map[string]string{"count": strconv.Itoa(len(changed))},
	}
	if len(changed) == 1 {
		event.EntityID = models.ScriptEntityID(changed[0])
	}
	s.publisher.Publish(ctx, event)
	return changed
}

// Snapshot returns a deep copy of the collection ordered by id.
func (s *Store) Snapshot() []models.Script {
	s.mu.RLock()
	out := make([]models.Script, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry.Script.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a copy of the script with the given id.
func (s *Store) Get(id int64) (models.Script, bool) {
	entry, ok := s.Entry(id)
	return entry.Script, ok
}

// Entry returns the stored entry with its provenance.
func (s *Store) Entry(id int64) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	entry.Script = entry.Script.Clone()
	return entry, true
}

// Len returns the number of scripts held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Generation returns the generation of the latest effective write.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
