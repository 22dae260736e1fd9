package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/scriptdeck/internal/events"
	"github.com/tOgg1/scriptdeck/internal/logging"
	"github.com/tOgg1/scriptdeck/internal/models"
	"github.com/tOgg1/scriptdeck/internal/store"
)

// DefaultPollInterval is the snapshot cadence.
const DefaultPollInterval = 3 * time.Second

// MinPollInterval is the shortest cadence accepted.
const MinPollInterval = 100 * time.Millisecond

// FetcherConfig contains configuration for the snapshot fetcher.
type FetcherConfig struct {
	// Interval is how often the full collection is requested.
	// Default: 3s
	Interval time.Duration
}

// DefaultFetcherConfig returns the default cadence.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{Interval: DefaultPollInterval}
}

// Fetcher polls the full collection on a fixed cadence and replaces the
// store with each successful snapshot. Tick failures leave the store alone;
// the next tick is the retry.
type Fetcher struct {
	config    FetcherConfig
	client    ScriptLister
	store     *store.Store
	publisher events.Publisher
	logger    zerolog.Logger

	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	lastSuccess time.Time
	lastErr     error
	failures    int
}

// NewFetcher creates a Fetcher.
func NewFetcher(config FetcherConfig, client ScriptLister, st *store.Store, pub events.Publisher) *Fetcher {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	if config.Interval < MinPollInterval {
		config.Interval = MinPollInterval
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Fetcher{
		config:    config,
		client:    client,
		store:     st,
		publisher: pub,
		logger:    logging.Component("fetcher"),
	}
}

// Interval returns the configured cadence.
func (f *Fetcher) Interval() time.Duration {
	return f.config.Interval
}

// Start fetches once immediately and then on every tick until Stop or ctx
// is done.
func (f *Fetcher) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return ErrFetcherAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.running = true

	f.logger.Info().Dur("interval", f.config.Interval).Msg("fetcher starting")

	f.wg.Add(1)
	go f.runLoop(loopCtx)
	return nil
}

// Stop cancels the loop and waits for an in-flight tick to finish.
func (f *Fetcher) Stop() error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return ErrFetcherNotRunning
	}
	f.cancel()
	f.running = false
	f.mu.Unlock()

	f.wg.Wait()
	f.logger.Info().Msg("fetcher stopped")
	return nil
}

// IsRunning returns true if the loop is active.
func (f *Fetcher) IsRunning() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.running
}

// runLoop fetches on the calling goroutine, so a slow fetch delays the next
// tick instead of overlapping it. time.Ticker drops ticks nobody reads.
func (f *Fetcher) runLoop(ctx context.Context) {
	defer f.wg.Done()

	f.tick(ctx)

	ticker := time.NewTicker(f.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.tick(ctx)
		}
	}
}

func (f *Fetcher) tick(ctx context.Context) {
	if err := f.fetch(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		f.mu.RLock()
		failures := f.failures
		f.mu.RUnlock()

		// Only the first failure of a streak is a warning.
		event := f.logger.Debug()
		if failures == 1 {
			event = f.logger.Warn()
			f.publisher.Publish(ctx, &models.Event{
				Type:       models.EventTypeFetchFailed,
				EntityType: models.EntityTypeCollection,
				Message:    err.Error(),
			})
		}
		event.Err(err).Int("consecutive_failures", failures).Msg("snapshot fetch failed")
	}
}

// FetchNow performs an out-of-band fetch and returns its error.
func (f *Fetcher) FetchNow(ctx context.Context) error {
	return f.fetch(ctx)
}

func (f *Fetcher) fetch(ctx context.Context) error {
	scripts, err := f.client.ListScripts(ctx)
	if err != nil {
		f.mu.Lock()
		f.lastErr = err
		f.failures++
		f.mu.Unlock()
		return err
	}

	changed := f.store.Replace(ctx, scripts)

	f.mu.Lock()
	f.lastSuccess = time.Now()
	f.lastErr = nil
	f.failures = 0
	f.mu.Unlock()

	if changed {
		f.logger.Debug().Int("scripts", len(scripts)).Uint64("generation", f.store.Generation()).Msg("snapshot applied")
	}
	return nil
}

// Health is the fetcher's view of server reachability.
type Health struct {
	LastSuccess         time.Time
	LastError           error
	ConsecutiveFailures int
}

// Health returns when the store was last refreshed and the latest failure.
func (f *Fetcher) Health() Health {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Health{LastSuccess: f.lastSuccess, LastError: f.lastErr, ConsecutiveFailures: f.failures}
}

// Stale reports whether the store has not been refreshed for longer than
// the given number of intervals.
func (h Health) Stale(now time.Time, interval time.Duration, intervals int) bool {
	if h.LastSuccess.IsZero() {
		return h.ConsecutiveFailures > 0
	}
	return now.Sub(h.LastSuccess) > time.Duration(intervals)*interval
}

var _ Refresher = (*Fetcher)(nil)
