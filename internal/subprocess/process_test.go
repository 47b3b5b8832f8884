package subprocess

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/langserver-sdk-go/internal/errors"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildEnvironment_OverlaysAmbient(t *testing.T) {
	t.Setenv("SUBPROCESS_TEST_VAR", "ambient")

	merged := buildEnvironment(map[string]string{
		"SUBPROCESS_TEST_VAR": "override",
		"SUBPROCESS_NEW_VAR":  "added",
	})

	// os/exec keeps the last value for duplicate keys, so overrides must
	// come after the ambient entries.
	lastTestVar := ""

	for _, entry := range merged {
		if value, ok := strings.CutPrefix(entry, "SUBPROCESS_TEST_VAR="); ok {
			lastTestVar = value
		}
	}

	require.Equal(t, "override", lastTestVar)
	require.Contains(t, merged, "SUBPROCESS_NEW_VAR=added")
}

func TestProcess_StartNonexistentBinary(t *testing.T) {
	p := New(nopLogger(), "/nonexistent/langserver-binary", nil)

	err := p.Start(context.Background())
	require.Error(t, err)

	spawnErr, ok := stderrors.AsType[*errors.SpawnError](err)
	require.True(t, ok, "expected SpawnError, got %T", err)
	require.Equal(t, "/nonexistent/langserver-binary", spawnErr.Path)
}

func TestProcess_ExitCodeAndStderrTail(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX cat binary")
	}

	catPath, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not found in PATH")
	}

	// cat rejects the fixed --stdio flag, exits non-zero, and complains on
	// stderr. That exercises exit detection and stderr retention without
	// needing a real language server.
	p := New(nopLogger(), catPath, nil)
	require.NoError(t, p.Start(context.Background()))

	select {
	case code := <-p.Exits():
		require.NotEqual(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	require.NotEmpty(t, p.StderrTail())
}

func TestProcess_KillIsIdempotent(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX cat binary")
	}

	catPath, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not found in PATH")
	}

	// Without arguments cat blocks on stdin, giving us a long-lived child.
	p := New(nopLogger(), catPath, nil)
	p.cmd = exec.Command(catPath)

	stdin, err := p.cmd.StdinPipe()
	require.NoError(t, err)

	p.stdin = stdin
	require.NoError(t, p.cmd.Start())

	require.NoError(t, p.Kill())
	require.NoError(t, p.Kill())

	_ = p.cmd.Wait()
}

func TestProcess_WriteMessageBeforeStart(t *testing.T) {
	p := New(nopLogger(), "/bin/true", nil)

	err := p.WriteMessage(context.Background(), map[string]any{"method": "ping"})
	require.ErrorIs(t, err, errors.ErrTransportNotConnected)
}
