// Package channel implements the shell side of the ftpsh IPC channel: one
// persistent Unix socket connection carrying newline-delimited JSON, used
// strictly call/response with at most one call in flight.
package channel

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	ftpsh "github.com/Paranoid-AF/ftpsh"
)

// DefaultTimeout bounds a single call when no WithTimeout option is given.
const DefaultTimeout = 10 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call bound. Non-positive values keep
// DefaultTimeout; every call is bounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSessionID sets the session identifier sent with every request.
func WithSessionID(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// Client is a connection to the FTP server host.
type Client struct {
	conn      net.Conn
	reader    *bufio.Reader
	timeout   time.Duration
	sessionID string

	// sem admits one call at a time; the fields below are guarded by it.
	sem    *semaphore.Weighted
	nextID int
	broken error

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the host listening on socketPath. Failure to connect
// is reported as ftpsh.ErrChannelUnavailable.
func Dial(ctx context.Context, socketPath string, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ftpsh.ErrChannelUnavailable, socketPath, err)
	}
	slog.Debug("connected", "socket", socketPath)
	return NewClient(conn, opts...), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, opts ...Option) *Client {
	c := &Client{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		timeout: DefaultTimeout,
		sem:     semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke calls operation on the host with args and decodes the result into
// out (which may be nil to discard it). Errors match one of
// ftpsh.ErrChannelUnavailable, ftpsh.ErrServerFault or ftpsh.ErrCancelled.
//
// A call that times out or is cancelled leaves the stream in an unknown
// position, so the connection is marked broken and every later call fails
// with ftpsh.ErrChannelUnavailable.
func (c *Client) Invoke(ctx context.Context, operation string, args []string, out any) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return contextError(ctx, operation, err)
	}
	defer c.sem.Release(1)

	if c.broken != nil {
		return fmt.Errorf("%w: %s: %v", ftpsh.ErrChannelUnavailable, operation, c.broken)
	}
	if err := ctx.Err(); err != nil {
		return contextError(ctx, operation, err)
	}

	c.nextID++
	req := ftpsh.Request{
		RequestID: c.nextID,
		SessionID: c.sessionID,
		Operation: operation,
		Args:      args,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", operation, err)
	}

	slog.Debug("invoke", "op", operation, "request_id", req.RequestID, "args", args)
	start := time.Now()

	line, err := c.roundTrip(ctx, data)
	if err != nil {
		c.broken = err
		if errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("%w: %s", ftpsh.ErrCancelled, operation)
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return fmt.Errorf("%w: %s: timed out after %s", ftpsh.ErrChannelUnavailable, operation, time.Since(start).Round(time.Millisecond))
		}
		return fmt.Errorf("%w: %s: %v", ftpsh.ErrChannelUnavailable, operation, err)
	}

	var resp ftpsh.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		c.broken = fmt.Errorf("malformed response: %w", err)
		return fmt.Errorf("%w: %s: %v", ftpsh.ErrChannelUnavailable, operation, c.broken)
	}
	if resp.RequestID != req.RequestID {
		c.broken = fmt.Errorf("response for request %d, expected %d", resp.RequestID, req.RequestID)
		return fmt.Errorf("%w: %s: %v", ftpsh.ErrChannelUnavailable, operation, c.broken)
	}

	slog.Debug("result", "op", operation, "request_id", resp.RequestID, "elapsed", time.Since(start))

	if resp.Error != nil {
		return &ftpsh.ServerFault{Operation: operation, Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if out != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return &ftpsh.ServerFault{Operation: operation, Code: "bad_result", Message: err.Error()}
		}
	}
	return nil
}

// roundTrip writes one request line and reads one response line. The
// connection deadline is the earlier of the call timeout and the context
// deadline; cancelling ctx expires it immediately to unblock I/O.
func (c *Client) roundTrip(ctx context.Context, data []byte) ([]byte, error) {
	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if dl, ok := ctx.Deadline(); ok && (deadline.IsZero() || dl.Before(deadline)) {
		deadline = dl
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
		close(fired)
	})
	defer func() {
		if !stop() {
			<-fired
		}
	}()

	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return nil, err
	}
	return c.reader.ReadBytes('\n')
}

// Close closes the connection. In-flight and later calls fail with
// ftpsh.ErrChannelUnavailable. Close is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
		slog.Debug("channel closed")
	})
	return c.closeErr
}

func contextError(ctx context.Context, operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: %s", ftpsh.ErrCancelled, operation)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %s: deadline exceeded", ftpsh.ErrChannelUnavailable, operation)
	}
	return fmt.Errorf("%w: %s: %v", ftpsh.ErrChannelUnavailable, operation, err)
}
