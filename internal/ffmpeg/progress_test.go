package ffmpeg

import (
	"strings"
	"testing"
)

func TestScanProgressLineFull(t *testing.T) {
	line := "frame=  123 fps= 25.0 q=28.0 size=    2048KiB time=00:00:04.92 bitrate=3409.3kbits/s speed=1.01x"
	ev, ok := ScanProgressLine(line)
	if !ok {
		t.Fatal("expected an event")
	}
	if ev.Frame != 123 {
		t.Errorf("Frame = %d, want 123", ev.Frame)
	}
	if ev.FPS != 25.0 {
		t.Errorf("FPS = %v, want 25.0", ev.FPS)
	}
}

func TestScanProgressLineFrameOnly(t *testing.T) {
	ev, ok := ScanProgressLine("frame=45")
	if !ok {
		t.Fatal("expected an event")
	}
	if ev.Frame != 45 || ev.FPS != 0 {
		t.Errorf("got {%d %v}, want {45 0}", ev.Frame, ev.FPS)
	}
}

func TestScanProgressLineNoFrame(t *testing.T) {
	for _, line := range []string{
		"",
		"Output #0, matroska, to '/tmp/out.mkv':",
		"fps= 30.0 q=28.0",
		"[libx264 @ 0x5618] using cpu capabilities",
	} {
		if _, ok := ScanProgressLine(line); ok {
			t.Errorf("line %q must not yield an event", line)
		}
	}
}

func TestScanProgressLineMalformedFPS(t *testing.T) {
	// a fps token of bare dots parses as the regex char class but not
	// as a float; it must degrade to zero, not drop the frame count
	ev, ok := ScanProgressLine("frame=  10 fps=... q=28.0")
	if !ok {
		t.Fatal("expected an event")
	}
	if ev.Frame != 10 || ev.FPS != 0 {
		t.Errorf("got {%d %v}, want {10 0}", ev.Frame, ev.FPS)
	}
}

func TestMonitorProgressStream(t *testing.T) {
	input := strings.Join([]string{
		"ffmpeg version 7.1",
		"frame=   10 fps= 0.0 q=0.0 size=       0KiB",
		"frame=   50 fps=29.9 q=28.0 size=    1024KiB",
		"frame=  100 fps=30.1 q=28.0 size=    2048KiB",
	}, "\n")

	var events []ProgressEvent
	err := MonitorProgress(strings.NewReader(input), 200, func(ev ProgressEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("MonitorProgress: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	last := events[len(events)-1]
	if last.Frame != 100 || last.FPS != 30.1 || last.TotalFrames != 200 {
		t.Errorf("last event = %+v", last)
	}
}

func TestMonitorProgressCarriageReturns(t *testing.T) {
	// ffmpeg rewrites the stats line in place with \r
	input := "frame=    5 fps= 0.0\rframe=   15 fps=24.0\rframe=   25 fps=25.0\n"
	var frames []int64
	err := MonitorProgress(strings.NewReader(input), 0, func(ev ProgressEvent) {
		frames = append(frames, ev.Frame)
	})
	if err != nil {
		t.Fatalf("MonitorProgress: %v", err)
	}
	want := []int64{5, 15, 25}
	if len(frames) != len(want) {
		t.Fatalf("got frames %v, want %v", frames, want)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frames[%d] = %d, want %d", i, frames[i], want[i])
		}
	}
}

func TestMonitorProgressEmptyStream(t *testing.T) {
	called := false
	err := MonitorProgress(strings.NewReader(""), 0, func(ProgressEvent) { called = true })
	if err != nil {
		t.Fatalf("EOF on empty stream must be nil, got %v", err)
	}
	if called {
		t.Error("no events expected on empty stream")
	}
}
