package process

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// tailSize is how many trailing stderr lines are retained for crash reports.
const tailSize = 30

// LogParser parses a process output line and returns the log level and
// message. Used to extract structured log info from tool output.
type LogParser func(line string) (level, msg string)

// Options configures the I/O wiring of a Handle before Start.
type Options struct {
	// OpenStdin opens a writable pipe to the process stdin. Required
	// for the quit token and for feeding piped frame data.
	OpenStdin bool

	// QuitToken, when non-empty, is written to stdin as the preferred
	// stop request before any signal is sent. Leave empty when stdin
	// carries data rather than control input.
	QuitToken string

	// Stdout receives the process standard output. Nil discards it.
	Stdout io.Writer

	// OnStderrLine is invoked for each stderr line from the scanning
	// goroutine. Nil disables the callback.
	OnStderrLine func(line string)

	// LogParser extracts log levels from stderr lines. Nil logs at info.
	LogParser LogParser
}

// SpawnError reports that an external tool could not be started.
type SpawnError struct {
	Tool string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Tool, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Handle owns one spawned external process.
type Handle struct {
	name   string
	spec   Spec
	opts   Options
	logger *slog.Logger

	// termTimeout bounds the wait after SIGTERM when a quit token was
	// already tried. Overridable in tests.
	termTimeout time.Duration

	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdinOnce  sync.Once
	done       chan error
	scanDone   chan struct{}

	mu      sync.Mutex
	reaped  bool
	waitErr error

	tailMu sync.Mutex
	tail   []string
}

// NewHandle creates a handle for the given spec. The process is not
// started until Start is called.
func NewHandle(name string, spec Spec, opts Options, logger *slog.Logger) *Handle {
	return &Handle{
		name:        name,
		spec:        spec,
		opts:        opts,
		logger:      logger,
		termTimeout: 2 * time.Second,
		scanDone:    make(chan struct{}),
	}
}

// Start spawns the process. It returns a *SpawnError when the
// executable cannot be located or the OS refuses to create the process.
func (h *Handle) Start() error {
	if err := h.spec.Validate(); err != nil {
		return &SpawnError{Tool: h.name, Err: err}
	}

	cmd := exec.Command(h.spec.Args[0], h.spec.Args[1:]...)
	cmd.Dir = h.spec.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = h.opts.Stdout

	if h.opts.OpenStdin {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return &SpawnError{Tool: h.spec.Tool(), Err: err}
		}
		h.stdin = stdin
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &SpawnError{Tool: h.spec.Tool(), Err: err}
	}

	if err := cmd.Start(); err != nil {
		return &SpawnError{Tool: h.spec.Tool(), Err: err}
	}

	h.cmd = cmd
	h.logger.Info("Process started", "name", h.name, "pid", cmd.Process.Pid, "command", h.spec.String())

	go func() {
		h.scanStderr(stderr)
		close(h.scanDone)
	}()

	h.done = make(chan error, 1)
	go func() {
		h.done <- cmd.Wait()
	}()

	return nil
}

// PID returns the OS process id, or 0 before Start.
func (h *Handle) PID() int {
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Stdin returns the writable pipe to the process, or nil when the
// handle was not started with OpenStdin.
func (h *Handle) Stdin() io.WriteCloser {
	return h.stdin
}

// CloseStdin closes the stdin pipe so the process sees end-of-stream.
// Safe to call more than once.
func (h *Handle) CloseStdin() {
	if h.stdin == nil {
		return
	}
	h.stdinOnce.Do(func() {
		_ = h.stdin.Close()
	})
}

// IsRunning reports whether the process is still alive. Non-blocking;
// reaps the exit status if the process already terminated.
func (h *Handle) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cmd == nil || h.reaped {
		return false
	}
	select {
	case err := <-h.done:
		h.reaped = true
		h.waitErr = err
		return false
	default:
		return true
	}
}

// WaitFor blocks until the process exits or the timeout elapses.
// Returns true when the process is confirmed exited.
func (h *Handle) WaitFor(timeout time.Duration) bool {
	h.mu.Lock()
	if h.cmd == nil || h.reaped {
		h.mu.Unlock()
		return true
	}
	done := h.done
	h.mu.Unlock()

	select {
	case err := <-done:
		h.mu.Lock()
		h.reaped = true
		h.waitErr = err
		h.mu.Unlock()
		return true
	case <-time.After(timeout):
		return false
	}
}

// StopGraceful asks the process to stop: the quit token on stdin when
// configured, then SIGTERM, each with a bounded wait. Returns whether
// the process is confirmed stopped. Never errors on a process that
// already exited.
func (h *Handle) StopGraceful(grace time.Duration) bool {
	if !h.IsRunning() {
		return true
	}

	termWait := grace
	if h.opts.QuitToken != "" && h.stdin != nil {
		h.logger.Debug("Sending quit token", "name", h.name)
		if _, err := io.WriteString(h.stdin, h.opts.QuitToken); err != nil {
			h.logger.Debug("Quit token write failed", "name", h.name, "error", err)
		}
		h.CloseStdin()
		if h.WaitFor(grace) {
			return true
		}
		termWait = h.termTimeout
	}

	h.logger.Info("Sending SIGTERM", "name", h.name, "pid", h.PID())
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		h.logger.Warn("Failed to send SIGTERM", "name", h.name, "error", err)
	}
	if h.WaitFor(termWait) {
		return true
	}
	return !h.IsRunning()
}

// Kill force-terminates the process. Best-effort: the process may have
// exited between a liveness check and the kill, which is not an error.
func (h *Handle) Kill() {
	if h.cmd == nil || h.cmd.Process == nil {
		return
	}
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		h.logger.Warn("Failed to kill process", "name", h.name, "error", err)
	}
}

// ExitCode returns the exit code once the process has been reaped.
// Returns 0 for a clean exit, the code for an ExitError, or 1 for
// other wait failures.
func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(h.waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// StderrTail returns the retained trailing stderr lines, oldest first.
func (h *Handle) StderrTail() []string {
	h.tailMu.Lock()
	defer h.tailMu.Unlock()
	return append([]string(nil), h.tail...)
}

// WaitOutputDone blocks until the stderr scanner has drained, so the
// tail and any line callbacks are complete.
func (h *Handle) WaitOutputDone() {
	<-h.scanDone
}

// ScanCRLines is a bufio.SplitFunc that treats a bare \r as a line
// terminator alongside \n. ffmpeg rewrites its stats line in place
// with carriage returns, so a newline-only scanner would deliver a
// whole run's worth of progress as one token at exit.
func ScanCRLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		// swallow a \n that immediately follows a \r
		adv := i + 1
		if data[i] == '\r' && adv < len(data) && data[adv] == '\n' {
			adv++
		}
		return adv, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// scanStderr consumes stderr line-by-line until EOF. Stream closure is
// the expected terminal condition, not a failure.
func (h *Handle) scanStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 512*1024)
	scanner.Split(ScanCRLines)
	for scanner.Scan() {
		line := scanner.Text()

		h.tailMu.Lock()
		h.tail = append(h.tail, line)
		if len(h.tail) > tailSize {
			h.tail = h.tail[1:]
		}
		h.tailMu.Unlock()

		if h.opts.OnStderrLine != nil {
			h.opts.OnStderrLine(line)
		}

		level, msg := "info", line
		if h.opts.LogParser != nil {
			level, msg = h.opts.LogParser(line)
		}
		switch level {
		case "fatal", "error":
			h.logger.Error(msg, "name", h.name)
		case "warning":
			h.logger.Warn(msg, "name", h.name)
		case "debug", "trace", "verbose":
			h.logger.Debug(msg, "name", h.name)
		default:
			h.logger.Info(msg, "name", h.name)
		}
	}
}
