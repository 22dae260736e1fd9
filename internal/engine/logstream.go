package engine

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/tOgg1/scriptdeck/internal/api"
	"github.com/tOgg1/scriptdeck/internal/events"
	"github.com/tOgg1/scriptdeck/internal/logging"
	"github.com/tOgg1/scriptdeck/internal/models"
)

// LogState is the lifecycle of the log stream session.
type LogState string

const (
	LogClosed      LogState = "closed"
	LogConnecting  LogState = "connecting"
	LogStreaming   LogState = "streaming"
	LogClosedError LogState = "error"
)

// Buffer markers.
const (
	LogPlaceholder = "Connecting to log stream...\n"
	LogErrorMarker = "\n[Error] Connection failed.\n"
)

// DefaultLogBufferBytes caps the in-memory log buffer.
const DefaultLogBufferBytes = 4 << 20

// LogSocket is an open log stream.
type LogSocket interface {
	ReadText(ctx context.Context) (string, error)
	Close() error
}

// LogDialFunc opens the log stream of a script.
type LogDialFunc func(ctx context.Context, id int64) (LogSocket, error)

// LogStream owns the single live log session. Opening a stream closes the
// previous one; frames from a closed session are discarded.
type LogStream struct {
	dial      LogDialFunc
	maxBytes  int
	publisher events.Publisher
	logger    zerolog.Logger

	mu       sync.Mutex
	session  uint64
	state    LogState
	scriptID int64
	buf      []byte
	version  uint64
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewLogStream creates a closed LogStream.
func NewLogStream(dial LogDialFunc, maxBytes int, pub events.Publisher) *LogStream {
	if maxBytes <= 0 {
		maxBytes = DefaultLogBufferBytes
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &LogStream{
		dial:      dial,
		maxBytes:  maxBytes,
		publisher: pub,
		logger:    logging.Component("logstream"),
		state:     LogClosed,
	}
}

// Open starts streaming the log of script id, replacing any current session.
// It returns immediately; the connection proceeds in the background.
func (l *LogStream) Open(ctx context.Context, id int64) error {
	if l.dial == nil {
		return ErrLogStreamUnavailable
	}
	l.Close()

	sessCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	l.mu.Lock()
	l.session++
	session := l.session
	l.scriptID = id
	l.state = LogConnecting
	l.buf = append(l.buf[:0], LogPlaceholder...)
	l.version++
	l.cancel = cancel
	l.done = done
	l.mu.Unlock()

	l.notify(ctx, models.EventTypeLogStreamState, id, LogConnecting)

	go l.run(sessCtx, session, id, done)
	return nil
}

func (l *LogStream) run(ctx context.Context, session uint64, id int64, done chan struct{}) {
	defer close(done)
	logger := logging.WithScript(l.logger, id)

	sock, err := l.dial(ctx, id)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn().Err(err).Msg("log stream connect failed")
			l.fail(ctx, session)
		}
		return
	}
	defer sock.Close()

	l.mu.Lock()
	if l.session != session {
		l.mu.Unlock()
		return
	}
	l.state = LogStreaming
	l.buf = l.buf[:0]
	l.version++
	l.mu.Unlock()
	l.notify(ctx, models.EventTypeLogStreamState, id, LogStreaming)

	for {
		text, err := sock.ReadText(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case api.IsNormalClosure(err):
				logger.Debug().Msg("log stream closed by server")
				l.finish(ctx, session, LogClosed)
			default:
				logger.Warn().Err(err).Msg("log stream read failed")
				l.fail(ctx, session)
			}
			return
		}
		l.append(ctx, session, text)
	}
}

func (l *LogStream) append(ctx context.Context, session uint64, text string) {
	l.mu.Lock()
	if l.session != session {
		l.mu.Unlock()
		return
	}
	l.buf = append(l.buf, text...)
	l.trimLocked()
	l.version++
	id := l.scriptID
	l.mu.Unlock()

	l.notify(ctx, models.EventTypeLogStreamAppend, id, LogStreaming)
}

func (l *LogStream) fail(ctx context.Context, session uint64) {
	l.mu.Lock()
	if l.session != session {
		l.mu.Unlock()
		return
	}
	l.buf = append(l.buf, LogErrorMarker...)
	l.trimLocked()
	l.version++
	l.state = LogClosedError
	id := l.scriptID
	l.mu.Unlock()

	l.notify(ctx, models.EventTypeLogStreamState, id, LogClosedError)
}

func (l *LogStream) finish(ctx context.Context, session uint64, state LogState) {
	l.mu.Lock()
	if l.session != session {
		l.mu.Unlock()
		return
	}
	l.state = state
	id := l.scriptID
	l.mu.Unlock()

	l.notify(ctx, models.EventTypeLogStreamState, id, state)
}

// trimLocked drops the oldest bytes beyond the cap, keeping a valid UTF-8
// prefix boundary.
func (l *LogStream) trimLocked() {
	excess := len(l.buf) - l.maxBytes
	if excess <= 0 {
		return
	}
	for excess < len(l.buf) && !utf8.RuneStart(l.buf[excess]) {
		excess++
	}
	l.buf = append(l.buf[:0], l.buf[excess:]...)
}

// Close tears down the current session. It is safe to call when closed.
func (l *LogStream) Close() {
	l.mu.Lock()
	cancel := l.cancel
	done := l.done
	wasOpen := l.state == LogConnecting || l.state == LogStreaming
	l.session++
	l.cancel = nil
	l.done = nil
	if wasOpen {
		l.state = LogClosed
	}
	id := l.scriptID
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if wasOpen {
		l.notify(context.Background(), models.EventTypeLogStreamState, id, LogClosed)
	}
}

// Done is closed when the current session's connection ends for any reason.
// It returns nil when no session was ever opened.
func (l *LogStream) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Buffer returns the accumulated log text.
func (l *LogStream) Buffer() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return string(l.buf)
}

// State returns the session state.
func (l *LogStream) State() LogState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// ScriptID returns the script of the current or last session.
func (l *LogStream) ScriptID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scriptID
}

// Version increases on every buffer change.
func (l *LogStream) Version() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version
}

func (l *LogStream) notify(ctx context.Context, typ models.EventType, id int64, state LogState) {
	l.publisher.Publish(ctx, &models.Event{
		Type:       typ,
		EntityType: models.EntityTypeLogStream,
		EntityID:   models.ScriptEntityID(id),
		Metadata:   map[string]string{"state": string(state)},
	})
}
