// Package events provides in-process publish/subscribe for engine notifications.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/tOgg1/scriptdeck/internal/models"
)

// EventHandler is invoked for every event that matches a subscription.
type EventHandler func(event *models.Event)

// Filter defines criteria for matching events.
type Filter struct {
	// EventTypes filters by event type (nil = all types).
	EventTypes []models.EventType

	// EntityTypes filters by entity type (nil = all entities).
	EntityTypes []models.EntityType

	// EntityID filters to a specific entity ID (empty = all).
	EntityID string
}

// Matches returns true if the event matches the filter criteria.
func (f *Filter) Matches(event *models.Event) bool {
	if event == nil {
		return false
	}
	if len(f.EventTypes) > 0 && !contains(f.EventTypes, event.Type) {
		return false
	}
	if len(f.EntityTypes) > 0 && !contains(f.EntityTypes, event.EntityType) {
		return false
	}
	if f.EntityID != "" && event.EntityID != f.EntityID {
		return false
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

type subscription struct {
	id      string
	filter  Filter
	handler EventHandler
}

// Publisher defines the interface for event publishing and subscription.
type Publisher interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event *models.Event)

	// Subscribe registers a handler to receive events matching the filter.
	Subscribe(id string, filter Filter, handler EventHandler) error

	// Unsubscribe removes a subscription by ID.
	Unsubscribe(id string) error

	// SubscriberCount returns the number of active subscribers.
	SubscriberCount() int
}

// InMemoryPublisher implements Publisher using in-process pub/sub.
type InMemoryPublisher struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	now           func() time.Time
}

// PublisherOption configures an InMemoryPublisher.
type PublisherOption func(*InMemoryPublisher)

// WithClock overrides the clock used to stamp events that carry no timestamp.
func WithClock(now func() time.Time) PublisherOption {
	return func(p *InMemoryPublisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewInMemoryPublisher creates a new in-memory event publisher.
func NewInMemoryPublisher(opts ...PublisherOption) *InMemoryPublisher {
	p := &InMemoryPublisher{
		subscriptions: make(map[string]*subscription),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends an event to all matching subscribers synchronously.
func (p *InMemoryPublisher) Publish(ctx context.Context, event *models.Event) {
	if event == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}

	p.mu.RLock()
	var handlers []EventHandler
	for _, sub := range p.subscriptions {
		if sub.filter.Matches(event) {
			handlers = append(handlers, sub.handler)
		}
	}
	p.mu.RUnlock()

	// Handlers run outside the lock so they may publish or unsubscribe.
	for _, handler := range handlers {
		handler(event)
	}
}

// Subscribe registers a handler to receive events matching the filter.
func (p *InMemoryPublisher) Subscribe(id string, filter Filter, handler EventHandler) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}
	if handler == nil {
		return ErrNilHandler
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscriptions[id]; exists {
		return ErrSubscriptionExists
	}
	p.subscriptions[id] = &subscription{id: id, filter: filter, handler: handler}
	return nil
}

// SubscribeChan delivers matching events on a buffered channel. Events are
// dropped when the buffer is full so a slow reader never blocks the engine.
// The returned cancel func unsubscribes; the channel is never closed.
func (p *InMemoryPublisher) SubscribeChan(id string, filter Filter, buffer int) (<-chan *models.Event, func(), error) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan *models.Event, buffer)
	err := p.Subscribe(id, filter, func(event *models.Event) {
		select {
		case ch <- event:
		default:
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return ch, func() { _ = p.Unsubscribe(id) }, nil
}

// Unsubscribe removes a subscription by ID.
func (p *InMemoryPublisher) Unsubscribe(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscriptions[id]; !exists {
		return ErrSubscriptionNotFound
	}
	delete(p.subscriptions, id)
	return nil
}

// SubscriberCount returns the number of active subscribers.
func (p *InMemoryPublisher) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscriptions)
}

// Close removes all subscriptions.
func (p *InMemoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions = make(map[string]*subscription)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, *models.Event) {}

func (Nop) Subscribe(string, Filter, EventHandler) error { return nil }

func (Nop) Unsubscribe(string) error { return nil }

func (Nop) SubscriberCount() int { return 0 }

// Errors for publisher operations.
var (
	ErrInvalidSubscriptionID = &PublisherError{Message: "subscription ID is required"}
	ErrNilHandler            = &PublisherError{Message: "handler cannot be nil"}
	ErrSubscriptionExists    = &PublisherError{Message: "subscription with this ID already exists"}
	ErrSubscriptionNotFound  = &PublisherError{Message: "subscription not found"}
)

// PublisherError represents an error from publisher operations.
type PublisherError struct {
	Message string
}

func (e *PublisherError) Error() string {
	return e.Message
}
