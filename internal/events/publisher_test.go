package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tOgg1/scriptdeck/internal/models"
)

func TestFilter_Matches(t *testing.T) {
	merged := &models.Event{
		Type:       models.EventTypeScriptsMerged,
		EntityType: models.EntityTypeScript,
		EntityID:   "7",
	}

	tests := []struct {
		name   string
		filter Filter
		event  *models.Event
		want   bool
	}{
		{name: "empty filter matches any event", filter: Filter{}, event: merged, want: true},
		{name: "nil event returns false", filter: Filter{}, event: nil, want: false},
		{
			name:   "event type filter matches",
			filter: Filter{EventTypes: []models.EventType{models.EventTypeScriptsMerged}},
			event:  merged,
			want:   true,
		},
		{
			name:   "event type filter rejects non-matching",
			filter: Filter{EventTypes: []models.EventType{models.EventTypeActionFailed}},
			event:  merged,
			want:   false,
		},
		{
			name: "multiple event types - matches any",
			filter: Filter{EventTypes: []models.EventType{
				models.EventTypeActionFailed,
				models.EventTypeScriptsMerged,
			}},
			event: merged,
			want:  true,
		},
		{
			name:   "entity type filter rejects non-matching",
			filter: Filter{EntityTypes: []models.EntityType{models.EntityTypeBatch}},
			event:  merged,
			want:   false,
		},
		{
			name:   "entity ID filter rejects non-matching",
			filter: Filter{EntityID: "8"},
			event:  merged,
			want:   false,
		},
		{
			name: "combined filters - all must match",
			filter: Filter{
				EventTypes:  []models.EventType{models.EventTypeScriptsMerged},
				EntityTypes: []models.EntityType{models.EntityTypeScript},
				EntityID:    "7",
			},
			event: merged,
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.event); got != tt.want {
				t.Errorf("Filter.Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInMemoryPublisher_Subscribe(t *testing.T) {
	pub := NewInMemoryPublisher()
	handler := func(event *models.Event) {}

	if err := pub.Subscribe("sub-1", Filter{}, handler); err != nil {
		t.Errorf("Subscribe() error = %v, want nil", err)
	}
	if pub.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", pub.SubscriberCount())
	}
	if err := pub.Subscribe("sub-1", Filter{}, handler); err != ErrSubscriptionExists {
		t.Errorf("Subscribe() duplicate error = %v, want %v", err, ErrSubscriptionExists)
	}
	if err := pub.Subscribe("", Filter{}, handler); err != ErrInvalidSubscriptionID {
		t.Errorf("Subscribe() empty ID error = %v, want %v", err, ErrInvalidSubscriptionID)
	}
	if err := pub.Subscribe("sub-2", Filter{}, nil); err != ErrNilHandler {
		t.Errorf("Subscribe() nil handler error = %v, want %v", err, ErrNilHandler)
	}
}

func TestInMemoryPublisher_Unsubscribe(t *testing.T) {
	pub := NewInMemoryPublisher()
	_ = pub.Subscribe("sub-1", Filter{}, func(event *models.Event) {})

	if err := pub.Unsubscribe("sub-1"); err != nil {
		t.Errorf("Unsubscribe() error = %v, want nil", err)
	}
	if pub.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", pub.SubscriberCount())
	}
	if err := pub.Unsubscribe("sub-1"); err != ErrSubscriptionNotFound {
		t.Errorf("Unsubscribe() non-existent error = %v, want %v", err, ErrSubscriptionNotFound)
	}
}

func TestInMemoryPublisher_PublishStampsAndFilters(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	pub := NewInMemoryPublisher(WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	var (
		mu      sync.Mutex
		actions []*models.Event
		batches int
	)
	_ = pub.Subscribe("actions", Filter{
		EventTypes: []models.EventType{models.EventTypeActionSucceeded, models.EventTypeActionFailed},
	}, func(event *models.Event) {
		mu.Lock()
		actions = append(actions, event)
		mu.Unlock()
	})
	_ = pub.Subscribe("batches", Filter{
		EntityTypes: []models.EntityType{models.EntityTypeBatch},
	}, func(event *models.Event) {
		mu.Lock()
		batches++
		mu.Unlock()
	})

	pub.Publish(ctx, &models.Event{Type: models.EventTypeActionFailed, EntityType: models.EntityTypeScript, EntityID: "1"})
	pub.Publish(ctx, &models.Event{Type: models.EventTypeBatchCompleted, EntityType: models.EntityTypeBatch, EntityID: "b"})
	pub.Publish(ctx, nil)

	mu.Lock()
	defer mu.Unlock()
	if len(actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(actions))
	}
	if !actions[0].Timestamp.Equal(fixed) {
		t.Errorf("timestamp = %s, want %s", actions[0].Timestamp, fixed)
	}
	if batches != 1 {
		t.Errorf("batches = %d, want 1", batches)
	}
}

func TestInMemoryPublisher_SubscribeChanDropsWhenFull(t *testing.T) {
	pub := NewInMemoryPublisher()
	ch, cancel, err := pub.SubscribeChan("tui", Filter{}, 1)
	if err != nil {
		t.Fatalf("SubscribeChan() error = %v", err)
	}

	pub.Publish(context.Background(), &models.Event{Type: models.EventTypeSnapshotApplied, Message: "first"})
	pub.Publish(context.Background(), &models.Event{Type: models.EventTypeSnapshotApplied, Message: "second"})

	got := <-ch
	if got.Message != "first" {
		t.Errorf("message = %q, want first", got.Message)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected buffered event %q", extra.Message)
	default:
	}

	cancel()
	if pub.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d after cancel, want 0", pub.SubscriberCount())
	}
}

func TestInMemoryPublisher_HandlerMayUnsubscribe(t *testing.T) {
	pub := NewInMemoryPublisher()
	calls := 0
	_ = pub.Subscribe("once", Filter{}, func(event *models.Event) {
		calls++
		_ = pub.Unsubscribe("once")
	})

	pub.Publish(context.Background(), &models.Event{Type: models.EventTypeFetchFailed})
	pub.Publish(context.Background(), &models.Event{Type: models.EventTypeFetchFailed})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestInMemoryPublisher_Close(t *testing.T) {
	pub := NewInMemoryPublisher()
	_ = pub.Subscribe("a", Filter{}, func(*models.Event) {})
	_ = pub.Subscribe("b", Filter{}, func(*models.Event) {})

	pub.Close()
	if pub.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d after Close, want 0", pub.SubscriberCount())
	}
}
