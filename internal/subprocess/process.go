package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/langserver-sdk-go/internal/config"
	"github.com/wagiedev/langserver-sdk-go/internal/errors"
	"github.com/wagiedev/langserver-sdk-go/internal/framing"
)

const (
	// readChunkSize is the size of stdout read buffers handed to the decoder.
	readChunkSize = 32 * 1024

	// maxStderrTailSize caps how much stderr is retained for exit reporting.
	// Stderr is drained indefinitely either way.
	maxStderrTailSize = 64 * 1024

	// messageBufferSize is the buffer of the decoded message channel.
	messageBufferSize = 32
)

// stdioArg is the fixed invocation flag for the language server binary.
const stdioArg = "--stdio"

// Process is a single language server subprocess and its framed stdio streams.
type Process struct {
	log    *slog.Logger
	connID string
	path   string
	env    []string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	writer *framing.Writer

	messages chan map[string]any
	exits    chan int
	done     chan struct{}

	mu         sync.Mutex
	closing    bool
	stderrTail strings.Builder
}

// Compile-time verification that Process implements the config.Process interface.
var _ config.Process = (*Process)(nil)

// New creates a Process for the given binary path. The env map is overlaid
// on the ambient process environment. Each Process gets a fresh connection
// id that tags all of its log output.
func New(log *slog.Logger, path string, env map[string]string) *Process {
	connID := ulid.Make().String()

	return &Process{
		log:      log.With("component", "subprocess", "conn_id", connID),
		connID:   connID,
		path:     path,
		env:      buildEnvironment(env),
		messages: make(chan map[string]any, messageBufferSize),
		exits:    make(chan int, 1),
		done:     make(chan struct{}),
	}
}

// ConnID returns the unique id assigned to this connection attempt.
func (p *Process) ConnID() string {
	return p.connID
}

// Start spawns the server process and begins pumping its streams.
//
// Returns SpawnError if the process fails to start.
func (p *Process) Start(ctx context.Context) error {
	p.log.Info("Starting language server subprocess", "path", p.path)

	cmd := exec.Command(p.path, stdioArg)
	cmd.Env = p.env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &errors.SpawnError{Path: p.path, Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	p.stdin = stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &errors.SpawnError{Path: p.path, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	p.stdout = stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &errors.SpawnError{Path: p.path, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	p.stderr = stderr

	if err := cmd.Start(); err != nil {
		return &errors.SpawnError{Path: p.path, Err: err}
	}

	p.cmd = cmd
	p.writer = framing.NewWriter(p.log, stdin)

	p.log.Info("Language server subprocess started", "pid", cmd.Process.Pid)

	go p.run()

	return nil
}

// Messages returns the channel of decoded messages from the server.
func (p *Process) Messages() <-chan map[string]any {
	return p.messages
}

// Exits delivers the process exit code exactly once, then closes.
func (p *Process) Exits() <-chan int {
	return p.exits
}

// WriteMessage frames and writes a message to the server's stdin.
// Safe for concurrent use; the framing writer serializes frames.
func (p *Process) WriteMessage(ctx context.Context, msg any) error {
	p.mu.Lock()
	closing := p.closing
	writer := p.writer
	p.mu.Unlock()

	if writer == nil {
		return errors.ErrTransportNotConnected
	}

	if closing {
		return errors.ErrClientShutdown
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return writer.WriteMessage(msg)
}

// Kill forcefully terminates the process. Safe to call multiple times.
func (p *Process) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closing {
		return nil
	}

	p.closing = true
	close(p.done)

	if p.stdin != nil {
		_ = p.stdin.Close()
	}

	if p.cmd != nil && p.cmd.Process != nil {
		p.log.Debug("Killing language server process", "pid", p.cmd.Process.Pid)

		if err := p.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("kill language server process (pid %d): %w", p.cmd.Process.Pid, err)
		}
	}

	return nil
}

// StderrTail returns the retained tail of the server's stderr output.
func (p *Process) StderrTail() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return strings.TrimSpace(p.stderrTail.String())
}

// run pumps stdout through the frame decoder, drains stderr, and reports
// the exit code once both streams are finished.
func (p *Process) run() {
	defer p.log.Debug("Subprocess pump stopped")

	var stderrWg sync.WaitGroup

	stderrWg.Go(func() {
		scanner := bufio.NewScanner(p.stderr)
		for scanner.Scan() {
			line := scanner.Text()
			p.log.Debug("Server stderr", "line", line)

			p.mu.Lock()

			if p.stderrTail.Len() < maxStderrTailSize {
				if p.stderrTail.Len() > 0 {
					p.stderrTail.WriteString("\n")
				}

				p.stderrTail.WriteString(line)
			}

			p.mu.Unlock()
		}

		if err := scanner.Err(); err != nil {
			p.log.Debug("Stderr scanner error", "error", err)
		}
	})

	decoder := framing.NewDecoder(p.log, func(msg map[string]any) {
		select {
		case p.messages <- msg:
		case <-p.done:
		}
	})

	buf := make([]byte, readChunkSize)

	for {
		n, err := p.stdout.Read(buf)
		if n > 0 {
			decoder.Feed(buf[:n])
		}

		if err != nil {
			if err != io.EOF {
				p.log.Debug("Stdout read ended", "error", err)
			}

			break
		}
	}

	close(p.messages)

	// Stderr reads must finish before Wait releases the pipes.
	stderrWg.Wait()

	exitCode := 0

	if err := p.cmd.Wait(); err != nil {
		if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	p.log.Info("Language server process exited", "exit_code", exitCode)

	p.exits <- exitCode
	close(p.exits)
}

// buildEnvironment overlays caller-supplied variables on the ambient
// environment. Later entries win for duplicate keys, so overrides are
// appended after os.Environ().
func buildEnvironment(env map[string]string) []string {
	merged := os.Environ()

	for key, value := range env {
		merged = append(merged, key+"="+value)
	}

	return merged
}
