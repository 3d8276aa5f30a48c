package channel

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	ftpsh "github.com/Paranoid-AF/ftpsh"
	"github.com/Paranoid-AF/ftpsh/host"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testSocketCounter atomic.Int64

func testSocketPath() string {
	// Use /tmp directly to avoid macOS 104-char Unix socket path limit
	return fmt.Sprintf("/tmp/ftpsh-c%d-%d.sock", os.Getpid(), testSocketCounter.Add(1))
}

func newTestHost(t *testing.T) *host.Server {
	t.Helper()
	srv, err := host.NewServer(testSocketPath())
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	go srv.Serve()
	return srv
}

func dial(t *testing.T, srv *host.Server, opts ...Option) *Client {
	t.Helper()
	c, err := Dial(context.Background(), srv.SocketPath(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestInvokeDecodesResult(t *testing.T) {
	srv := newTestHost(t)
	srv.Handle(ftpsh.OpListSimpleModules, func(context.Context, []string) (any, error) {
		return []string{"fs", "authentication"}, nil
	})
	c := dial(t, srv)

	var names []string
	require.NoError(t, c.Invoke(context.Background(), ftpsh.OpListSimpleModules, nil, &names))
	assert.Equal(t, []string{"fs", "authentication"}, names)
}

func TestInvokePassesArgsAndSession(t *testing.T) {
	srv := newTestHost(t)
	srv.Handle("echo", func(_ context.Context, args []string) (any, error) {
		return args, nil
	})
	c := dial(t, srv, WithSessionID("s-1"))

	var got []string
	require.NoError(t, c.Invoke(context.Background(), "echo", []string{"a", "b c"}, &got))
	assert.Equal(t, []string{"a", "b c"}, got)

	// Discarding the result is allowed.
	require.NoError(t, c.Invoke(context.Background(), "echo", nil, nil))
}

func TestInvokeServerFault(t *testing.T) {
	srv := newTestHost(t)
	srv.Handle(ftpsh.OpCloseConnection, func(context.Context, []string) (any, error) {
		return nil, &ftpsh.Error{Code: "not_found", Message: "no connection c9"}
	})
	c := dial(t, srv)

	err := c.Invoke(context.Background(), ftpsh.OpCloseConnection, []string{"c9"}, nil)

	require.ErrorIs(t, err, ftpsh.ErrServerFault)
	var fault *ftpsh.ServerFault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, "not_found", fault.Code)
	assert.Equal(t, ftpsh.OpCloseConnection, fault.Operation)

	// A fault does not break the channel.
	err = c.Invoke(context.Background(), "missing-op", nil, nil)
	require.ErrorIs(t, err, ftpsh.ErrServerFault)
	assert.Contains(t, err.Error(), "unknown_operation")
}

func TestInvokeBadResultIsServerFault(t *testing.T) {
	srv := newTestHost(t)
	srv.Handle("status", func(context.Context, []string) (any, error) {
		return "not a struct", nil
	})
	c := dial(t, srv)

	var st ftpsh.Status
	err := c.Invoke(context.Background(), "status", nil, &st)
	assert.ErrorIs(t, err, ftpsh.ErrServerFault)
}

func TestDialFailsFast(t *testing.T) {
	c, err := Dial(context.Background(), "/tmp/ftpsh-does-not-exist.sock")
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ftpsh.ErrChannelUnavailable)
}

func TestInvokeTimeoutIsChannelUnavailable(t *testing.T) {
	srv := newTestHost(t)
	release := make(chan struct{})
	srv.Handle("slow", func(ctx context.Context, _ []string) (any, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, nil
	})
	defer close(release)
	c := dial(t, srv, WithTimeout(50*time.Millisecond))

	start := time.Now()
	err := c.Invoke(context.Background(), "slow", nil, nil)
	require.ErrorIs(t, err, ftpsh.ErrChannelUnavailable)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 2*time.Second)

	// The stream position is unknown now; the channel stays unavailable.
	err = c.Invoke(context.Background(), ftpsh.OpStatus, nil, nil)
	assert.ErrorIs(t, err, ftpsh.ErrChannelUnavailable)
}

func TestNonPositiveTimeoutKeepsDefault(t *testing.T) {
	srv := newTestHost(t)
	for _, d := range []time.Duration{0, -time.Second} {
		c := dial(t, srv, WithTimeout(d))
		assert.Equal(t, DefaultTimeout, c.timeout, d.String())
	}
	assert.Equal(t, 3*time.Second, dial(t, srv, WithTimeout(3*time.Second)).timeout)
}

func TestInvokeContextDeadlineIsChannelUnavailable(t *testing.T) {
	srv := newTestHost(t)
	srv.Handle("slow", func(ctx context.Context, _ []string) (any, error) {
		<-ctx.Done()
		return nil, nil
	})
	c := dial(t, srv, WithTimeout(time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Invoke(ctx, "slow", nil, nil)
	assert.ErrorIs(t, err, ftpsh.ErrChannelUnavailable)
	assert.NotErrorIs(t, err, ftpsh.ErrCancelled)
}

func TestInvokeCancellation(t *testing.T) {
	srv := newTestHost(t)
	started := make(chan struct{})
	srv.Handle("tls-status", func(ctx context.Context, _ []string) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, nil
	})
	c := dial(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	err := c.Invoke(ctx, "tls-status", nil, nil)
	assert.ErrorIs(t, err, ftpsh.ErrCancelled)
}

func TestInvokeAlreadyCancelled(t *testing.T) {
	srv := newTestHost(t)
	c := dial(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Invoke(ctx, ftpsh.OpStatus, nil, nil), ftpsh.ErrCancelled)
}

func TestInvokeConnectionLost(t *testing.T) {
	srv := newTestHost(t)
	srv.Handle(ftpsh.OpStatus, func(context.Context, []string) (any, error) {
		return ftpsh.Status{State: "running"}, nil
	})
	c := dial(t, srv)
	require.NoError(t, c.Invoke(context.Background(), ftpsh.OpStatus, nil, nil))

	srv.Close()

	err := c.Invoke(context.Background(), ftpsh.OpStatus, nil, nil)
	assert.ErrorIs(t, err, ftpsh.ErrChannelUnavailable)
}

func TestInvokeAfterClose(t *testing.T) {
	srv := newTestHost(t)
	c := dial(t, srv)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Invoke(context.Background(), ftpsh.OpStatus, nil, nil), ftpsh.ErrChannelUnavailable)
}

// scriptedPeer answers on the far end of a net.Pipe.
func scriptedPeer(t *testing.T, answer func(req ftpsh.Request) string) net.Conn {
	t.Helper()
	local, remote := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		r := bufio.NewReader(remote)
		for {
			line, err := r.ReadBytes('\n')
			if err != nil {
				return
			}
			var req ftpsh.Request
			json.Unmarshal(line, &req)
			if _, err := remote.Write([]byte(answer(req) + "\n")); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() {
		remote.Close()
		<-done
	})
	return local
}

func TestInvokeDetectsDesynchronisedStream(t *testing.T) {
	conn := scriptedPeer(t, func(req ftpsh.Request) string {
		return fmt.Sprintf(`{"request_id":%d,"result":true}`, req.RequestID+1)
	})
	c := NewClient(conn)
	defer c.Close()

	err := c.Invoke(context.Background(), ftpsh.OpStatus, nil, nil)
	require.ErrorIs(t, err, ftpsh.ErrChannelUnavailable)
	assert.Contains(t, err.Error(), "expected 1")

	err = c.Invoke(context.Background(), ftpsh.OpStatus, nil, nil)
	assert.ErrorIs(t, err, ftpsh.ErrChannelUnavailable)
}

func TestInvokeMalformedResponse(t *testing.T) {
	conn := scriptedPeer(t, func(ftpsh.Request) string { return "{not json" })
	c := NewClient(conn)
	defer c.Close()

	err := c.Invoke(context.Background(), ftpsh.OpStatus, nil, nil)
	assert.ErrorIs(t, err, ftpsh.ErrChannelUnavailable)
}

func TestInvokeOneCallInFlight(t *testing.T) {
	var inFlight, maxInFlight atomic.Int64
	srv := newTestHost(t)
	srv.Handle("work", func(context.Context, []string) (any, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil, nil
	})
	c := dial(t, srv)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Invoke(context.Background(), "work", nil, nil)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), maxInFlight.Load())
}

func TestWaitingCallerObservesCancellation(t *testing.T) {
	srv := newTestHost(t)
	started := make(chan struct{})
	release := make(chan struct{})
	srv.Handle("hold", func(context.Context, []string) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	c := dial(t, srv)

	first := make(chan error, 1)
	go func() { first <- c.Invoke(context.Background(), "hold", nil, nil) }()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Invoke(ctx, "hold", nil, nil), ftpsh.ErrCancelled)

	close(release)
	assert.NoError(t, <-first)
}
