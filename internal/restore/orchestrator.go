// Package restore supervises the two-stage restoration pipeline: a
// VapourSynth frame generator feeding an encoder over a pipe. The
// orchestrator owns both processes, their teardown order, and the
// session state machine.
package restore

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tapeworks/tapedeck/internal/events"
	"github.com/tapeworks/tapedeck/internal/ffmpeg"
	"github.com/tapeworks/tapedeck/internal/process"
)

// State is the lifecycle state of the restoration pipeline.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateFailed   State = "failed"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultGraceTimeout = 5 * time.Second
	// how long the encoder gets to drain the pipe and finalize the
	// container after the generator finishes
	defaultDrainTimeout = 60 * time.Second
)

// Job describes one restoration run.
type Job struct {
	SessionID string
	// Script is the VapourSynth script source. It is written to a
	// session-unique temp file for the run.
	Script string
	// ScriptDir overrides where the temp script lands. Empty means the
	// OS temp dir.
	ScriptDir string
	Output    string
	Options   ffmpeg.EncodingOptions
	// TotalFrames from a probe of the source tape, zero when unknown.
	TotalFrames int64
}

// Result is delivered on the Done channel when a session ends.
type Result struct {
	SessionID string
	Frames    int64
	Err       error
}

// Status is a point-in-time snapshot of the pipeline.
type Status struct {
	State       State   `json:"state"`
	SessionID   string  `json:"session_id,omitempty"`
	Frame       int64   `json:"frame"`
	TotalFrames int64   `json:"total_frames,omitempty"`
	FPS         float64 `json:"fps"`
	Error       string  `json:"error,omitempty"`
}

// Orchestrator runs at most one restoration session at a time.
type Orchestrator struct {
	builder *ffmpeg.CommandBuilder
	bus     *events.Bus
	logger  *slog.Logger

	pollInterval time.Duration
	graceTimeout time.Duration
	drainTimeout time.Duration

	mu         sync.Mutex
	state      State
	job        Job
	scriptPath string
	producer   *process.Handle
	consumer   *process.Handle
	lastErr    error
	done       chan Result

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

// WithGraceTimeout overrides how long each stage gets to exit after a
// termination signal before being killed.
func WithGraceTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.graceTimeout = d }
}

// WithDrainTimeout overrides how long the encoder may keep running
// after the generator has finished.
func WithDrainTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.drainTimeout = d }
}

// New creates an idle orchestrator.
func New(builder *ffmpeg.CommandBuilder, bus *events.Bus, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		builder:      builder,
		bus:          bus,
		logger:       logger,
		pollInterval: defaultPollInterval,
		graceTimeout: defaultGraceTimeout,
		drainTimeout: defaultDrainTimeout,
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches the pipeline for job. The encoder is spawned first so
// its stdin pipe exists before the generator produces a single frame.
// Returns ErrSessionActive when a session already holds the pipeline,
// or a *process.SpawnError / *ffmpeg.InvalidOptionsError when launch
// fails; failed launches leave the orchestrator idle.
func (o *Orchestrator) Start(job Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateIdle {
		return ErrSessionActive
	}

	o.setStateLocked(StateStarting, job.SessionID, "")
	o.stopRequested.Store(false)
	o.frame.Store(0)
	o.fpsMilli.Store(0)
	o.lastErr = nil

	opts := job.Options
	opts.PipeInput = true
	encSpec, err := o.builder.EncodeSpec(opts, "", job.Output)
	if err != nil {
		o.setStateLocked(StateIdle, job.SessionID, "")
		return err
	}

	scriptPath, err := WriteScript(job.ScriptDir, job.SessionID, job.Script)
	if err != nil {
		o.setStateLocked(StateIdle, job.SessionID, "")
		return err
	}

	consumer := process.NewHandle("encoder", encSpec, process.Options{
		OpenStdin: true,
		OnStderrLine: func(line string) {
			o.observeProgress(job, line)
		},
		LogParser: ffmpeg.ParseLogLevel,
	}, o.logger)

	if err := consumer.Start(); err != nil {
		os.Remove(scriptPath)
		o.setStateLocked(StateIdle, job.SessionID, "")
		return err
	}

	producer := process.NewHandle("generator", o.builder.ProducerSpec(scriptPath), process.Options{
		Stdout:    consumer.Stdin(),
		LogParser: ffmpeg.ParseLogLevel,
	}, o.logger)

	if err := producer.Start(); err != nil {
		consumer.Kill()
		consumer.WaitFor(o.graceTimeout)
		consumer.CloseStdin()
		os.Remove(scriptPath)
		o.setStateLocked(StateIdle, job.SessionID, "")
		return err
	}

	o.job = job
	o.scriptPath = scriptPath
	o.producer = producer
	o.consumer = consumer
	o.done = make(chan Result, 1)
	o.setStateLocked(StateRunning, job.SessionID, "")

	o.logger.Info("restoration session started",
		"session", job.SessionID,
		"generator_pid", producer.PID(),
		"encoder_pid", consumer.PID(),
		"output", job.Output)

	go o.supervise(producer, consumer, job, o.done)
	return nil
}

// RequestStop asks the running session to shut down. It returns
// immediately; the supervision loop performs the teardown. Safe to
// call in any state, including repeatedly.
func (o *Orchestrator) RequestStop() {
	o.stopRequested.Store(true)
}

// Cleanup tears down any active session and blocks until the pipeline
// is back to idle. Calling it with no session active is a no-op, so
// callers may run it defensively before every Start.
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

// Status reports the current pipeline snapshot.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Status{
		State:       o.state,
		SessionID:   o.job.SessionID,
		Frame:       o.frame.Load(),
		TotalFrames: o.job.TotalFrames,
		FPS:         float64(o.fpsMilli.Load()) / 1000,
	}
	if o.lastErr != nil {
		s.Error = o.lastErr.Error()
	}
	return s
}

// supervise polls both stages until the session ends, then tears down
// and reports. Runs on its own goroutine; it is the only writer of the
// terminal state for the session it was started with.
func (o *Orchestrator) supervise(producer, consumer *process.Handle, job Job, done chan Result) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for range ticker.C {
		if o.stopRequested.Load() {
			o.shutdown(producer, consumer, job, done, nil)
			return
		}

		if !producer.IsRunning() {
			if code := producer.ExitCode(); code != 0 {
				err := &UnexpectedExit{Stage: "generator", ExitCode: code, Tail: producer.StderrTail()}
				o.shutdown(producer, consumer, job, done, err)
				return
			}
			o.finishDrain(producer, consumer, job, done)
			return
		}

		if !consumer.IsRunning() {
			err := &UnexpectedExit{Stage: "encoder", ExitCode: consumer.ExitCode(), Tail: consumer.StderrTail()}
			o.shutdown(producer, consumer, job, done, err)
			return
		}
	}
}

// finishDrain handles the normal end of a run: the generator exited
// cleanly, so close the encoder's stdin to deliver EOF and let it
// finalize the output container.
func (o *Orchestrator) finishDrain(producer, consumer *process.Handle, job Job, done chan Result) {
	o.setState(StateStopping, job.SessionID, "")
	consumer.CloseStdin()

	var err error
	if !consumer.WaitFor(o.drainTimeout) {
		o.logger.Warn("encoder did not finish draining, killing", "session", job.SessionID)
		consumer.Kill()
		consumer.WaitFor(o.graceTimeout)
		err = &UnexpectedExit{Stage: "encoder", ExitCode: consumer.ExitCode(), Tail: consumer.StderrTail()}
	} else if code := consumer.ExitCode(); code != 0 {
		err = &UnexpectedExit{Stage: "encoder", ExitCode: code, Tail: consumer.StderrTail()}
	}

	o.finish(producer, consumer, job, done, err)
}

// shutdown tears the pipeline down in dependency order: the generator
// first so no more frames enter the pipe, then the encoder once its
// input has hit EOF. cause is nil for an operator-requested stop.
func (o *Orchestrator) shutdown(producer, consumer *process.Handle, job Job, done chan Result, cause error) {
	o.setState(StateStopping, job.SessionID, "")

	if !producer.StopGraceful(o.graceTimeout) {
		producer.Kill()
		producer.WaitFor(o.graceTimeout)
	}
	consumer.CloseStdin()
	if !consumer.StopGraceful(o.graceTimeout) {
		consumer.Kill()
		consumer.WaitFor(o.graceTimeout)
	}

	o.finish(producer, consumer, job, done, cause)
}

// finish records the outcome, cleans up session resources, and returns
// the orchestrator to idle. Idempotent with respect to the process
// handles: both are already reaped by the time it runs.
func (o *Orchestrator) finish(producer, consumer *process.Handle, job Job, done chan Result, cause error) {
	producer.WaitOutputDone()
	consumer.WaitOutputDone()

	o.mu.Lock()
	if cause != nil {
		o.lastErr = cause
		o.setStateLocked(StateFailed, job.SessionID, cause.Error())
	}
	if o.scriptPath != "" {
		os.Remove(o.scriptPath)
		o.scriptPath = ""
	}
	o.producer = nil
	o.consumer = nil
	frames := o.frame.Load()
	o.setStateLocked(StateIdle, job.SessionID, "")
	o.mu.Unlock()

	if cause != nil {
		o.logger.Error("restoration session failed", "session", job.SessionID, "error", cause)
	} else {
		o.logger.Info("restoration session finished", "session", job.SessionID, "frames", frames)
	}

	done <- Result{SessionID: job.SessionID, Frames: frames, Err: cause}
}

// observeProgress runs on the encoder's stderr goroutine.
func (o *Orchestrator) observeProgress(job Job, line string) {
	ev, ok := ffmpeg.ScanProgressLine(line)
	if !ok {
		return
	}
	o.frame.Store(ev.Frame)
	o.fpsMilli.Store(int64(ev.FPS * 1000))
	if o.bus != nil {
		o.bus.Publish(events.RestoreProgressEvent{
			SessionID:   job.SessionID,
			Frame:       ev.Frame,
			TotalFrames: job.TotalFrames,
			FPS:         ev.FPS,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func (o *Orchestrator) setState(s State, sessionID, errDetail string) {
	o.mu.Lock()
	o.setStateLocked(s, sessionID, errDetail)
	o.mu.Unlock()
}

func (o *Orchestrator) setStateLocked(s State, sessionID, errDetail string) {
	o.state = s
	o.publishState(s, sessionID, errDetail)
}

func (o *Orchestrator) publishState(s State, sessionID, errDetail string) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(events.RestoreStateEvent{
		SessionID: sessionID,
		State:     string(s),
		Error:     errDetail,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
