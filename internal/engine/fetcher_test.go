package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/scriptdeck/internal/events"
	"github.com/tOgg1/scriptdeck/internal/models"
	"github.com/tOgg1/scriptdeck/internal/store"
)

func TestDefaultFetcherConfig(t *testing.T) {
	config := DefaultFetcherConfig()
	if config.Interval != 3*time.Second {
		t.Errorf("Interval = %s, want 3s", config.Interval)
	}

	f := NewFetcher(FetcherConfig{Interval: time.Millisecond}, newFakeClient(), store.New(), nil)
	if f.Interval() != MinPollInterval {
		t.Errorf("Interval = %s, want clamp to %s", f.Interval(), MinPollInterval)
	}
}

func TestFetcherStartStop(t *testing.T) {
	client := newFakeClient(script(1, "a", nil))
	st := store.New()
	f := NewFetcher(FetcherConfig{Interval: MinPollInterval}, client, st, nil)
	ctx := context.Background()

	require.ErrorIs(t, f.Stop(), ErrFetcherNotRunning)
	require.NoError(t, f.Start(ctx))
	require.ErrorIs(t, f.Start(ctx), ErrFetcherAlreadyRunning)
	require.True(t, f.IsRunning())

	require.Eventually(t, func() bool { return st.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	client.setServer(script(2, "b", nil))
	require.Eventually(t, func() bool { return st.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.Stop())
	require.False(t, f.IsRunning())
}

func TestFetcherFailureLeavesStoreUntouched(t *testing.T) {
	client := newFakeClient(script(1, "a", nil))
	pub := events.NewInMemoryPublisher()
	st := store.New(store.WithPublisher(pub))
	f := NewFetcher(DefaultFetcherConfig(), client, st, pub)
	ctx := context.Background()

	var fetchFailed atomic.Int32
	require.NoError(t, pub.Subscribe("t", events.Filter{EventTypes: []models.EventType{models.EventTypeFetchFailed}}, func(*models.Event) {
		fetchFailed.Add(1)
	}))

	require.NoError(t, f.FetchNow(ctx))
	gen := st.Generation()

	client.mu.Lock()
	client.failList = errors.New("connection refused")
	client.mu.Unlock()

	f.tick(ctx)
	f.tick(ctx)
	require.Equal(t, gen, st.Generation())
	require.Equal(t, 1, st.Len())
	require.Equal(t, int32(1), fetchFailed.Load(), "only the first failure of a streak is published")

	health := f.Health()
	require.Equal(t, 2, health.ConsecutiveFailures)
	require.Error(t, health.LastError)

	client.mu.Lock()
	client.failList = nil
	client.mu.Unlock()
	require.NoError(t, f.FetchNow(ctx))
	require.Zero(t, f.Health().ConsecutiveFailures)
}

func TestFetcherIdenticalSnapshotDoesNotBumpGeneration(t *testing.T) {
	client := newFakeClient(script(1, "a", nil), script(2, "b", nil))
	st := store.New()
	f := NewFetcher(DefaultFetcherConfig(), client, st, nil)
	ctx := context.Background()

	require.NoError(t, f.FetchNow(ctx))
	require.NoError(t, f.FetchNow(ctx))
	require.Equal(t, uint64(1), st.Generation())
}

// slowLister blocks every call until released so tests can observe overlap.
type slowLister struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
	calls    int
	release  chan struct{}
}

func (s *slowLister) ListScripts(ctx context.Context) ([]models.Script, error) {
	s.mu.Lock()
	s.inFlight++
	s.calls++
	if s.inFlight > s.maxSeen {
		s.maxSeen = s.inFlight
	}
	s.mu.Unlock()

	select {
	case <-s.release:
	case <-ctx.Done():
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return nil, ctx.Err()
}

func TestFetcherTicksNeverOverlap(t *testing.T) {
	lister := &slowLister{release: make(chan struct{})}
	f := NewFetcher(FetcherConfig{Interval: MinPollInterval}, lister, store.New(), nil)

	require.NoError(t, f.Start(context.Background()))
	time.Sleep(5 * MinPollInterval)

	lister.mu.Lock()
	maxSeen, calls := lister.maxSeen, lister.calls
	lister.mu.Unlock()
	require.Equal(t, 1, maxSeen)
	require.Equal(t, 1, calls, "a blocked fetch holds back later ticks")

	close(lister.release)
	require.NoError(t, f.Stop())
}

func TestHealthStale(t *testing.T) {
	now := time.Now()
	require.False(t, Health{}.Stale(now, time.Second, 3))
	require.True(t, Health{ConsecutiveFailures: 1}.Stale(now, time.Second, 3))
	require.False(t, Health{LastSuccess: now.Add(-2 * time.Second)}.Stale(now, time.Second, 3))
	require.True(t, Health{LastSuccess: now.Add(-4 * time.Second)}.Stale(now, time.Second, 3))
}
