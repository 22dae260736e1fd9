// Package engine keeps the local collection consistent with the remote
// script-runner service.
//
// Reads flow Fetcher -> store -> view. Writes round-trip through the
// Reconciler (single script) or BatchCoordinator (selection), whose confirmed
// results are merged back into the store.
package engine

import (
	"context"
	"time"

	"github.com/tOgg1/scriptdeck/internal/api"
	"github.com/tOgg1/scriptdeck/internal/events"
	"github.com/tOgg1/scriptdeck/internal/models"
	"github.com/tOgg1/scriptdeck/internal/store"
)

// ScriptLister is the read side of the collaborator.
type ScriptLister interface {
	ListScripts(ctx context.Context) ([]models.Script, error)
}

// ScriptClient is the subset of the collaborator the engine drives.
type ScriptClient interface {
	ScriptLister
	CreateScript(ctx context.Context, fields models.ScriptFields) (*models.Script, error)
	UpdateScript(ctx context.Context, id int64, fields models.ScriptFields) (*models.Script, error)
	DeleteScript(ctx context.Context, id int64) error
	RunScript(ctx context.Context, id int64) (*models.Script, error)
	StopScript(ctx context.Context, id int64) (*models.Script, error)
	GetContent(ctx context.Context, id int64) (string, error)
	PutContent(ctx context.Context, id int64, content string) error
}

// Refresher performs an out-of-band full fetch.
type Refresher interface {
	FetchNow(ctx context.Context) error
}

// Options tunes the engine.
type Options struct {
	PollInterval   time.Duration
	ActionTimeout  time.Duration
	LogBufferBytes int

	// Dial opens log streams. Nil disables log streaming.
	Dial LogDialFunc

	// Publisher receives engine notifications. Nil creates a private bus.
	Publisher *events.InMemoryPublisher
}

// Engine bundles the components that share one local collection.
type Engine struct {
	Publisher *events.InMemoryPublisher
	Store     *store.Store
	Fetcher   *Fetcher
	Logs      *LogStream
	Actions   *Reconciler
	Batch     *BatchCoordinator
	Selection *Selection
}

// New wires an engine around client.
func New(client ScriptClient, opts Options) *Engine {
	pub := opts.Publisher
	if pub == nil {
		pub = events.NewInMemoryPublisher()
	}

	st := store.New(store.WithPublisher(pub))
	fetcher := NewFetcher(FetcherConfig{Interval: opts.PollInterval}, client, st, pub)
	selection := NewSelection()

	return &Engine{
		Publisher: pub,
		Store:     st,
		Fetcher:   fetcher,
		Logs:      NewLogStream(opts.Dial, opts.LogBufferBytes, pub),
		Actions:   NewReconciler(client, st, fetcher, pub, opts.ActionTimeout),
		Batch:     NewBatchCoordinator(client, st, fetcher, selection, pub, opts.ActionTimeout),
		Selection: selection,
	}
}

// APIDialer adapts the HTTP client's log stream to LogDialFunc.
func APIDialer(client *api.Client) LogDialFunc {
	return func(ctx context.Context, id int64) (LogSocket, error) {
		conn, err := client.DialLogStream(ctx, id)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Close stops polling and any open log stream.
func (e *Engine) Close() {
	_ = e.Fetcher.Stop()
	e.Logs.Close()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
