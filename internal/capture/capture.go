// Package capture supervises a single ffmpeg capture process recording
// from a tape deck. Unlike the restoration pipeline there is only one
// stage; stdin doubles as the control channel for the interactive quit
// command.
package capture

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tapeworks/tapedeck/internal/devices"
	"github.com/tapeworks/tapedeck/internal/events"
	"github.com/tapeworks/tapedeck/internal/ffmpeg"
	"github.com/tapeworks/tapedeck/internal/process"
)

// State is the lifecycle state of the capture session.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateFailed   State = "failed"
)

// NotAvailable is reported for capture statistics the DirectShow
// backend does not expose.
const NotAvailable = "not available"

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultGraceTimeout = 5 * time.Second
)

// Job describes one capture run.
type Job struct {
	SessionID string
	Device    devices.CaptureDevice
	Settings  ffmpeg.CaptureSettings
	Output    string
}

// Result is delivered on the Done channel when a session ends.
type Result struct {
	SessionID string
	Frames    int64
	Err       error
}

// Status is a point-in-time snapshot of the capture session.
type Status struct {
	State     State   `json:"state"`
	SessionID string  `json:"session_id,omitempty"`
	Device    string  `json:"device,omitempty"`
	Frame     int64   `json:"frame"`
	FPS       float64 `json:"fps"`
	Error     string  `json:"error,omitempty"`
}

// Orchestrator runs at most one capture session at a time.
type Orchestrator struct {
	builder *ffmpeg.CommandBuilder
	bus     *events.Bus
	logger  *slog.Logger

	pollInterval time.Duration
	graceTimeout time.Duration

	mu      sync.Mutex
	state   State
	job     Job
	handle  *process.Handle
	lastErr error
	done    chan Result

	stopRequested atomic.Bool
	frame         atomic.Int64
	fpsMilli      atomic.Int64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPollInterval overrides the supervision poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.pollInterval = d }
}

// WithGraceTimeout overrides how long the process gets to exit after
// the quit command before escalation.
func WithGraceTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.graceTimeout = d }
}

// New creates an idle capture orchestrator.
func New(builder *ffmpeg.CommandBuilder, bus *events.Bus, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		builder:      builder,
		bus:          bus,
		logger:       logger,
		pollInterval: defaultPollInterval,
		graceTimeout: defaultGraceTimeout,
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches the capture process for job. DV devices get a
// stream-copy invocation, analog devices the lossless encode path.
// Failed launches leave the orchestrator idle.
func (o *Orchestrator) Start(job Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateIdle {
		return ErrSessionActive
	}

	o.setStateLocked(StateStarting, job, "")
	o.stopRequested.Store(false)
	o.frame.Store(0)
	o.fpsMilli.Store(0)
	o.lastErr = nil

	var spec process.Spec
	var err error
	if job.Device.Type == devices.TypeDV {
		spec, err = o.builder.DVCaptureSpec(job.Device, job.Settings, job.Output)
	} else {
		spec, err = o.builder.AnalogCaptureSpec(job.Device, job.Settings, job.Output)
	}
	if err != nil {
		o.setStateLocked(StateIdle, job, "")
		return err
	}

	// ffmpeg watches stdin for its interactive quit command
	handle := process.NewHandle("capture", spec, process.Options{
		OpenStdin: true,
		QuitToken: "q",
		OnStderrLine: func(line string) {
			o.observeProgress(line)
		},
		LogParser: ffmpeg.ParseLogLevel,
	}, o.logger)

	if err := handle.Start(); err != nil {
		o.setStateLocked(StateIdle, job, "")
		return err
	}

	o.job = job
	o.handle = handle
	o.done = make(chan Result, 1)
	o.setStateLocked(StateRunning, job, "")

	o.logger.Info("capture session started",
		"session", job.SessionID,
		"device", job.Device.Name,
		"pid", handle.PID(),
		"output", job.Output)

	go o.supervise(handle, job, o.done)
	return nil
}

// RequestStop asks the running session to shut down. It returns
// immediately; the supervision loop performs the teardown. Safe to
// call in any state, including repeatedly.
func (o *Orchestrator) RequestStop() {
	o.stopRequested.Store(true)
}

// Cleanup tears down any active session and blocks until the
// orchestrator is back to idle. A no-op when nothing is running.
func (o *Orchestrator) Cleanup() {
	o.stopRequested.Store(true)
	for o.Status().State != StateIdle {
		time.Sleep(o.pollInterval)
	}
}

// Done returns the channel that delivers the session result, or nil
// when no session has been started.
func (o *Orchestrator) Done() <-chan Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

// Status reports the current session snapshot.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Status{
		State:     o.state,
		SessionID: o.job.SessionID,
		Device:    o.job.Device.Name,
		Frame:     o.frame.Load(),
		FPS:       float64(o.fpsMilli.Load()) / 1000,
	}
	if o.lastErr != nil {
		s.Error = o.lastErr.Error()
	}
	return s
}

// DroppedFrames reports the dropped-frame counter. The DirectShow
// capture graph does not surface it, so the value is a placeholder
// until a backend that does is wired in.
func (o *Orchestrator) DroppedFrames() string { return NotAvailable }

// Timecode reports the current tape timecode. Consumer decks do not
// emit timecode over the capture path.
func (o *Orchestrator) Timecode() string { return NotAvailable }

func (o *Orchestrator) supervise(handle *process.Handle, job Job, done chan Result) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for range ticker.C {
		if o.stopRequested.Load() {
			o.setState(StateStopping, job, "")
			if !handle.StopGraceful(o.graceTimeout) {
				handle.Kill()
				handle.WaitFor(o.graceTimeout)
			}
			o.finish(handle, job, done, nil)
			return
		}

		if !handle.IsRunning() {
			var cause error
			if code := handle.ExitCode(); code != 0 {
				cause = &UnexpectedExit{ExitCode: code, Tail: handle.StderrTail()}
			}
			o.finish(handle, job, done, cause)
			return
		}
	}
}

func (o *Orchestrator) finish(handle *process.Handle, job Job, done chan Result, cause error) {
	handle.WaitOutputDone()

	o.mu.Lock()
	if cause != nil {
		o.lastErr = cause
		o.setStateLocked(StateFailed, job, cause.Error())
	}
	o.handle = nil
	frames := o.frame.Load()
	o.setStateLocked(StateIdle, job, "")
	o.mu.Unlock()

	if cause != nil {
		o.logger.Error("capture session failed", "session", job.SessionID, "error", cause)
	} else {
		o.logger.Info("capture session finished", "session", job.SessionID, "frames", frames)
	}

	done <- Result{SessionID: job.SessionID, Frames: frames, Err: cause}
}

// observeProgress runs on the capture process's stderr goroutine.
func (o *Orchestrator) observeProgress(line string) {
	ev, ok := ffmpeg.ScanProgressLine(line)
	if !ok {
		return
	}
	o.frame.Store(ev.Frame)
	o.fpsMilli.Store(int64(ev.FPS * 1000))
}

func (o *Orchestrator) setState(s State, job Job, errDetail string) {
	o.mu.Lock()
	o.setStateLocked(s, job, errDetail)
	o.mu.Unlock()
}

func (o *Orchestrator) setStateLocked(s State, job Job, errDetail string) {
	o.state = s
	if o.bus == nil {
		return
	}
	o.bus.Publish(events.CaptureStateEvent{
		SessionID: job.SessionID,
		Device:    job.Device.Name,
		State:     string(s),
		Error:     errDetail,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
