package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

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

// newTestHost serves a host exposing fs and tls. Use /tmp directly to avoid
// the macOS 104-char Unix socket path limit.
func newTestHost(t *testing.T) *host.Server {
	t.Helper()
	sockPath := fmt.Sprintf("/tmp/ftpsh-r%d-%d.sock", os.Getpid(), testSocketCounter.Add(1))
	srv, err := host.NewServer(sockPath)
	require.NoError(t, err)
	srv.Handle(ftpsh.OpListSimpleModules, func(context.Context, []string) (any, error) {
		return []string{"fs"}, nil
	})
	srv.Handle(ftpsh.OpListExtendedModules, func(context.Context, []string) (any, error) {
		return []string{"tls"}, nil
	})
	srv.Handle(ftpsh.OpStatus, func(context.Context, []string) (any, error) {
		return ftpsh.Status{State: "running", Address: "127.0.0.1:2121", Connections: 1}, nil
	})
	srv.Handle(ftpsh.OpListDirectory, func(context.Context, []string) (any, error) {
		return nil, &ftpsh.Error{Code: "not_found", Message: "no such directory"}
	})
	go srv.Serve()
	t.Cleanup(srv.Close)
	return srv
}

// isolate keeps the user's environment out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("FTPSH_CONFIG_DIR", t.TempDir())
	t.Setenv("FTPSH_SOCKET", "")
	t.Setenv("FTPSH_TIMEOUT", "")
	t.Setenv("FTPSH_FORMAT", "")
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runShell(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return result{code, stdout.String(), stderr.String()}
}

func TestSessionFromStdin(t *testing.T) {
	isolate(t)
	srv := newTestHost(t)

	r := runShell(t, "help\nstatus\nfrobnicate\ndir /x\nexit\nstatus\n", "--socket", srv.SocketPath())

	assert.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "tls-status")
	assert.NotContains(t, r.stdout, "close <id>")
	assert.Equal(t, 1, strings.Count(r.stdout, "state: running"), "nothing runs after exit")
	assert.Contains(t, r.stderr, `unknown command "frobnicate"`)
	assert.Contains(t, r.stderr, "no such directory")
}

func TestEndOfInputIsCleanExit(t *testing.T) {
	isolate(t)
	srv := newTestHost(t)

	r := runShell(t, "status", "--socket", srv.SocketPath())
	assert.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "state: running")
}

func TestFormatFlag(t *testing.T) {
	isolate(t)
	srv := newTestHost(t)

	r := runShell(t, "status\n", "--socket", srv.SocketPath(), "--format", "json")
	require.Equal(t, exitOK, r.code, r.stderr)

	var st ftpsh.Status
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &st))
	assert.Equal(t, 1, st.Connections)
}

func TestConfigFile(t *testing.T) {
	isolate(t)
	srv := newTestHost(t)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf("socket = %q\nformat = \"yaml\"\n", srv.SocketPath())), 0o644))

	r := runShell(t, "modules\n", "-f", cfgPath)
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "simple:\n  - fs\n")
}

func TestEnvironmentOverridesConfig(t *testing.T) {
	isolate(t)
	srv := newTestHost(t)
	t.Setenv("FTPSH_SOCKET", srv.SocketPath())
	t.Setenv("FTPSH_FORMAT", "toml")

	r := runShell(t, "status\n")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, `state = "running"`)
}

func TestUnreachableHostIsFatal(t *testing.T) {
	isolate(t)

	r := runShell(t, "status\n", "--socket", filepath.Join(t.TempDir(), "absent.sock"))
	assert.Equal(t, exitFatal, r.code)
	assert.Contains(t, r.stderr, "channel unavailable")
	assert.Empty(t, r.stdout)
}

func TestCapabilityFetchFailureIsFatal(t *testing.T) {
	isolate(t)
	sockPath := fmt.Sprintf("/tmp/ftpsh-r%d-%d.sock", os.Getpid(), testSocketCounter.Add(1))
	srv, err := host.NewServer(sockPath)
	require.NoError(t, err)
	go srv.Serve()
	t.Cleanup(srv.Close)

	r := runShell(t, "status\n", "--socket", sockPath)
	assert.Equal(t, exitFatal, r.code)
	assert.Contains(t, r.stderr, "unknown_operation")
	assert.Empty(t, r.stdout)
}

func TestBadConfigIsFatal(t *testing.T) {
	isolate(t)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("timeout = [\n"), 0o644))

	r := runShell(t, "", "--config", cfgPath)
	assert.Equal(t, exitFatal, r.code)
	assert.Contains(t, r.stderr, "decode")
}

func TestFlags(t *testing.T) {
	isolate(t)

	r := runShell(t, "", "--version")
	assert.Equal(t, exitOK, r.code)
	assert.Equal(t, "ftpsh dev\n", r.stdout)

	r = runShell(t, "", "--help")
	assert.Equal(t, exitOK, r.code)
	assert.Contains(t, r.stdout, "--socket")

	r = runShell(t, "", "--format", "xml")
	assert.Equal(t, exitBadFlags, r.code)

	r = runShell(t, "", "--bogus")
	assert.Equal(t, exitBadFlags, r.code)

	r = runShell(t, "", "status")
	assert.Equal(t, exitBadFlags, r.code)
	assert.Contains(t, r.stderr, "unexpected arguments")
}

func TestScanReader(t *testing.T) {
	r := newScanReader(strings.NewReader("status\r\n\nexit"))
	for _, want := range []string{"status", "", "exit"} {
		got, err := r.ReadLine("> ")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := r.ReadLine("> ")
	assert.ErrorIs(t, err, io.EOF)
}

func TestCancellationDuringRemoteCallExitsZero(t *testing.T) {
	isolate(t)
	srv := newTestHost(t)
	started := make(chan struct{})
	srv.Handle(ftpsh.OpTLSStatus, func(ctx context.Context, _ []string) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-started
		cancel()
	}()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"--socket", srv.SocketPath()}, strings.NewReader("tls-status\nstatus\n"), &stdout, &stderr)

	assert.Equal(t, exitOK, code, stderr.String())
	assert.NotContains(t, stdout.String(), "state: running")
}
