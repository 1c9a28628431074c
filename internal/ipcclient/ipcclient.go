// Package ipcclient is the daemon client side of the NDJSON protocol
// (spec §4.I): probing whether a daemon is listening, sending one framed
// request per connection, and the thin query_daemon wrapper the CLI uses.
package ipcclient

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultHealthTimeout  = 500 * time.Millisecond
	DefaultRequestTimeout = 5000 * time.Millisecond
	DefaultSearchLimit    = 50
)

// Request mirrors daemonserver.Request; kept independent so this package
// has no dependency on the server's internals (the client only ever
// speaks the wire format, never the server's Go types).
type Request struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Query string `json:"query,omitempty"`
	Cwd   string `json:"cwd,omitempty"`
	Limit int    `json:"limit,omitempty"`
	Root  string `json:"root,omitempty"`
}

// ResultRow is one ranked match in a search response.
type ResultRow struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
	Root  string  `json:"root"`
}

// HealthPayload is the health response's nested object.
type HealthPayload struct {
	Uptime         float64 `json:"uptime"`
	RSS            int64   `json:"rss"`
	Generation     int64   `json:"generation"`
	CacheHitRate   float64 `json:"cacheHitRate"`
	ActiveWatchers int     `json:"activeWatchers"`
	RootsLoaded    int     `json:"rootsLoaded"`
}

// Response mirrors daemonserver.Response.
type Response struct {
	ID         string         `json:"id"`
	OK         bool           `json:"ok"`
	Error      string         `json:"error,omitempty"`
	Results    []ResultRow    `json:"results,omitempty"`
	Cached     *bool          `json:"cached,omitempty"`
	DurationMs *float64       `json:"durationMs,omitempty"`
	Health     *HealthPayload `json:"health,omitempty"`
}

// ErrDaemonRequestTimeout is returned by SendRequest when the daemon
// doesn't respond within its timeout; the socket is torn down so the
// caller reconnects fresh next time.
var ErrDaemonRequestTimeout = errors.New("Daemon request timeout")

// ErrInvalidDaemonResponse is returned when the daemon's reply can't be
// parsed as JSON.
var ErrInvalidDaemonResponse = errors.New("Invalid daemon response")

// IsDaemonRunning reports whether a daemon is listening on socketPath by
// sending a health probe, per spec §4.I.
func IsDaemonRunning(socketPath string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	if _, err := os.Stat(socketPath); err != nil {
		return false
	}

	resp, err := SendRequest(socketPath, Request{ID: newRequestID(), Type: "health"}, timeout)
	if err != nil {
		return false
	}
	return resp.OK
}

// SendRequest connects to socketPath, writes req as one NDJSON line,
// reads until the peer closes the connection, and parses the
// accumulated bytes as one JSON response. On timeout, the connection is
// forcibly closed and ErrDaemonRequestTimeout is returned. On a
// malformed response, ErrInvalidDaemonResponse is returned.
func SendRequest(socketPath string, req Request, timeout time.Duration) (Response, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if req.ID == "" {
		req.ID = newRequestID()
	}

	var d net.Dialer
	conn, err := d.Dial("unix", socketPath)
	if err != nil {
		return Response{}, fmt.Errorf("daemon not running: %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}

	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		if isTimeout(err) {
			return Response{}, ErrDaemonRequestTimeout
		}
		return Response{}, fmt.Errorf("write request: %w", err)
	}

	buf, err := io.ReadAll(bufio.NewReader(conn))
	if err != nil {
		if isTimeout(err) {
			return Response{}, ErrDaemonRequestTimeout
		}
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(buf, &resp); err != nil {
		return Response{}, ErrInvalidDaemonResponse
	}
	return resp, nil
}

// QueryOptions configures QueryDaemon.
type QueryOptions struct {
	Query   string
	Cwd     string
	Limit   int
	Timeout time.Duration
}

// QueryDaemon is the thin search wrapper spec §4.I describes: it fills
// in type "search", defaults limit to 50, and turns an ok:false response
// into a Go error carrying the server-supplied message.
func QueryDaemon(socketPath string, opts QueryOptions) ([]ResultRow, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	resp, err := SendRequest(socketPath, Request{
		ID:    newRequestID(),
		Type:  "search",
		Query: opts.Query,
		Cwd:   opts.Cwd,
		Limit: limit,
	}, opts.Timeout)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, errors.New(resp.Error)
	}
	return resp.Results, nil
}

func newRequestID() string {
	return uuid.NewString()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
