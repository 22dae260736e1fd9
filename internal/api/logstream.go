package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
)

// logReadLimit bounds a single log frame. The service sends the whole
// existing log file as its first frame.
const logReadLimit = 32 << 20

// LogConn is an open log stream for one script.
type LogConn struct {
	conn *websocket.Conn
}

// LogStreamURL derives the websocket URL of a script's log stream from the
// base URL (http -> ws, https -> wss).
func (c *Client) LogStreamURL(id int64) string {
	u := *c.baseURL
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + fmt.Sprintf("/logs/%d/stream", id)
	u.RawPath = ""
	u.RawQuery = ""
	return u.String()
}

// DialLogStream opens the log stream of a script.
func (c *Client) DialLogStream(ctx context.Context, id int64) (*LogConn, error) {
	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	if rid := RequestID(ctx); rid != "" {
		header.Set(RequestIDHeader, rid)
	}

	target := c.LogStreamURL(id)
	conn, _, err := websocket.Dial(ctx, target, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, &TransportError{Op: "open log stream", Err: err}
	}
	conn.SetReadLimit(logReadLimit)
	c.logger.Debug().Int64("script_id", id).Str("url", redactURL(target)).Msg("log stream opened")
	return &LogConn{conn: conn}, nil
}

// ReadText blocks for the next frame.
func (l *LogConn) ReadText(ctx context.Context) (string, error) {
	_, data, err := l.conn.Read(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Close closes the stream normally.
func (l *LogConn) Close() error {
	return l.conn.Close(websocket.StatusNormalClosure, "")
}

// IsNormalClosure reports whether err is the peer (or us) closing the stream
// cleanly rather than a transport failure.
func IsNormalClosure(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.User = nil
	return u.String()
}
