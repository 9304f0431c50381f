package restore

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tapeworks/tapedeck/internal/events"
	"github.com/tapeworks/tapedeck/internal/ffmpeg"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeStub drops an executable shell script into dir and returns its
// path. Stubs stand in for the generator and encoder binaries so the
// pipeline can be exercised without any video tooling installed.
func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing stub %s: %v", name, err)
	}
	return path
}

func newTestOrchestrator(t *testing.T, producerBody, consumerBody string) (*Orchestrator, *events.Bus) {
	t.Helper()
	dir := t.TempDir()
	tc := ffmpeg.Toolchain{
		FFmpeg: writeStub(t, dir, "encoder.sh", consumerBody),
		VSPipe: writeStub(t, dir, "generator.sh", producerBody),
	}
	bus := events.New()
	o := New(ffmpeg.NewCommandBuilder(tc), bus, discardLogger(),
		WithPollInterval(20*time.Millisecond),
		WithGraceTimeout(2*time.Second),
		WithDrainTimeout(5*time.Second),
	)
	return o, bus
}

func testJob(t *testing.T) Job {
	t.Helper()
	return Job{
		SessionID:   "restore-test",
		Script:      "# vapoursynth script placeholder\n",
		ScriptDir:   t.TempDir(),
		Output:      filepath.Join(t.TempDir(), "out.mkv"),
		TotalFrames: 200,
	}
}

func waitResult(t *testing.T, o *Orchestrator) Result {
	t.Helper()
	select {
	case res := <-o.Done():
		return res
	case <-time.After(10 * time.Second):
		t.Fatal("session did not finish in time")
		return Result{}
	}
}

func TestRunToCompletion(t *testing.T) {
	o, bus := newTestOrchestrator(t,
		`echo "frame data"; exit 0`,
		`echo "frame=   50 fps= 25.0 q=28.0" >&2
cat > /dev/null
echo "frame=  100 fps= 25.0 q=28.0" >&2
exit 0`,
	)

	progress := make(chan events.RestoreProgressEvent, 16)
	unsub := bus.Subscribe(func(e events.RestoreProgressEvent) { progress <- e })
	defer unsub()

	if err := o.Start(testJob(t)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := waitResult(t, o)
	if res.Err != nil {
		t.Fatalf("session failed: %v", res.Err)
	}
	if res.Frames != 100 {
		t.Errorf("Frames = %d, want 100", res.Frames)
	}
	if st := o.Status(); st.State != StateIdle {
		t.Errorf("post-run state = %q, want idle", st.State)
	}

	select {
	case ev := <-progress:
		if ev.TotalFrames != 200 {
			t.Errorf("progress TotalFrames = %d, want 200", ev.TotalFrames)
		}
	case <-time.After(time.Second):
		t.Error("no progress event published")
	}
}

func TestProgressFromCarriageReturnStats(t *testing.T) {
	// Real encoder stats arrive as one line rewritten in place with
	// bare \r. Every rewrite must surface as its own progress event
	// during the run.
	o, bus := newTestOrchestrator(t,
		`echo "frame data"; exit 0`,
		`printf 'frame=   10 fps= 25.0 q=28.0\rframe=   20 fps= 25.0 q=28.0\rframe=   30 fps= 25.0 q=28.0\r' >&2
cat > /dev/null
exit 0`,
	)

	progress := make(chan events.RestoreProgressEvent, 16)
	unsub := bus.Subscribe(func(e events.RestoreProgressEvent) { progress <- e })
	defer unsub()

	if err := o.Start(testJob(t)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := waitResult(t, o)
	if res.Err != nil {
		t.Fatalf("session failed: %v", res.Err)
	}
	if res.Frames != 30 {
		t.Errorf("Frames = %d, want 30", res.Frames)
	}

	var frames []int64
	for len(frames) < 3 {
		select {
		case ev := <-progress:
			frames = append(frames, ev.Frame)
		case <-time.After(time.Second):
			t.Fatalf("progress events = %v, want one per stats rewrite", frames)
		}
	}
	if frames[0] != 10 || frames[1] != 20 || frames[2] != 30 {
		t.Errorf("frames = %v, want [10 20 30]", frames)
	}
}

func TestSingleActiveSession(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		`trap 'exit 0' TERM; while :; do sleep 0.1; done`,
		`cat > /dev/null`,
	)

	if err := o.Start(testJob(t)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Start(testJob(t)); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second Start = %v, want ErrSessionActive", err)
	}

	o.RequestStop()
	if res := waitResult(t, o); res.Err != nil {
		t.Errorf("operator stop must not report failure, got %v", res.Err)
	}
	if st := o.Status(); st.State != StateIdle {
		t.Errorf("post-stop state = %q, want idle", st.State)
	}

	// the pipeline must be reusable after a stop
	if err := o.Start(Job{
		SessionID: "restore-second",
		Script:    "#\n",
		ScriptDir: t.TempDir(),
		Output:    filepath.Join(t.TempDir(), "out2.mkv"),
	}); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	o.RequestStop()
	waitResult(t, o)
}

func TestGeneratorFailure(t *testing.T) {
	o, bus := newTestOrchestrator(t,
		`echo "script evaluation failed" >&2; exit 3`,
		`cat > /dev/null`,
	)

	states := make(chan events.RestoreStateEvent, 16)
	unsub := bus.Subscribe(func(e events.RestoreStateEvent) { states <- e })
	defer unsub()

	if err := o.Start(testJob(t)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := waitResult(t, o)

	var ue *UnexpectedExit
	if !errors.As(res.Err, &ue) {
		t.Fatalf("result error = %v, want *UnexpectedExit", res.Err)
	}
	if ue.Stage != "generator" || ue.ExitCode != 3 {
		t.Errorf("UnexpectedExit = %+v", ue)
	}
	if !strings.Contains(ue.Error(), "script evaluation failed") {
		t.Errorf("stderr tail not carried in error: %v", ue)
	}

	sawFailed := false
	deadline := time.After(time.Second)
	for !sawFailed {
		select {
		case ev := <-states:
			if ev.State == string(StateFailed) {
				sawFailed = true
			}
		case <-deadline:
			t.Fatal("no failed state event published")
		}
	}

	if st := o.Status(); st.State != StateIdle {
		t.Errorf("post-failure state = %q, want idle", st.State)
	}
}

func TestEncoderFailure(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		`trap 'exit 0' TERM; while :; do sleep 0.1; done`,
		`echo "unknown encoder" >&2; exit 2`,
	)

	if err := o.Start(testJob(t)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := waitResult(t, o)

	var ue *UnexpectedExit
	if !errors.As(res.Err, &ue) {
		t.Fatalf("result error = %v, want *UnexpectedExit", res.Err)
	}
	if ue.Stage != "encoder" || ue.ExitCode != 2 {
		t.Errorf("UnexpectedExit = %+v", ue)
	}
}

func TestStartSpawnFailure(t *testing.T) {
	dir := t.TempDir()
	tc := ffmpeg.Toolchain{
		FFmpeg: filepath.Join(dir, "does-not-exist"),
		VSPipe: writeStub(t, dir, "generator.sh", "exit 0"),
	}
	o := New(ffmpeg.NewCommandBuilder(tc), events.New(), discardLogger())

	err := o.Start(testJob(t))
	if err == nil {
		t.Fatal("Start with missing encoder binary must fail")
	}
	if st := o.Status(); st.State != StateIdle {
		t.Errorf("state after spawn failure = %q, want idle", st.State)
	}
}

func TestStartInvalidOptions(t *testing.T) {
	o, _ := newTestOrchestrator(t, "exit 0", "exit 0")
	job := testJob(t)
	job.Output = ""

	err := o.Start(job)
	var ioe *ffmpeg.InvalidOptionsError
	if !errors.As(err, &ioe) {
		t.Fatalf("Start = %v, want *ffmpeg.InvalidOptionsError", err)
	}
	if st := o.Status(); st.State != StateIdle {
		t.Errorf("state after rejected options = %q, want idle", st.State)
	}
}

func TestScriptCleanedUp(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		`echo data; exit 0`,
		`cat > /dev/null`,
	)
	job := testJob(t)
	if err := o.Start(job); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitResult(t, o)

	entries, err := os.ReadDir(job.ScriptDir)
	if err != nil {
		t.Fatalf("reading script dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".vpy") {
			t.Errorf("script %s not removed after session", e.Name())
		}
	}
}

func TestRequestStopIdempotent(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		`trap 'exit 0' TERM; while :; do sleep 0.1; done`,
		`cat > /dev/null`,
	)
	if err := o.Start(testJob(t)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	o.RequestStop()
	o.RequestStop()
	o.RequestStop()
	if res := waitResult(t, o); res.Err != nil {
		t.Errorf("stop result: %v", res.Err)
	}
	// harmless after the session is gone
	o.RequestStop()
}

func TestCleanupIdleNoop(t *testing.T) {
	o, _ := newTestOrchestrator(t, `exit 0`, `cat > /dev/null`)
	o.Cleanup()
	if st := o.Status().State; st != StateIdle {
		t.Errorf("state after idle cleanup = %s", st)
	}
	// Cleanup must not leave a stale stop flag behind.
	if err := o.Start(testJob(t)); err != nil {
		t.Fatalf("Start after cleanup: %v", err)
	}
	if res := waitResult(t, o); res.Err != nil {
		t.Errorf("run after cleanup: %v", res.Err)
	}
}

func TestCleanupTearsDownActiveSession(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		`trap 'exit 0' TERM; while :; do sleep 0.1; done`,
		`cat > /dev/null`,
	)
	if err := o.Start(testJob(t)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	o.Cleanup()
	if st := o.Status().State; st != StateIdle {
		t.Errorf("state after cleanup = %s", st)
	}
}

func TestWriteScript(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteScript(dir, "restore-xyz", "content here")
	if err != nil {
		t.Fatalf("WriteScript: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "restore-xyz-") || !strings.HasSuffix(path, ".vpy") {
		t.Errorf("script name %q lacks session prefix or .vpy suffix", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading script: %v", err)
	}
	if string(data) != "content here" {
		t.Errorf("script content = %q", data)
	}

	// two writes for the same session must not collide
	path2, err := WriteScript(dir, "restore-xyz", "other")
	if err != nil {
		t.Fatalf("second WriteScript: %v", err)
	}
	if path2 == path {
		t.Error("script paths must be unique per write")
	}
}
