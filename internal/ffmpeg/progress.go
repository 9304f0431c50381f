package ffmpeg

import (
	"bufio"
	"io"
	"regexp"
	"strconv"

	"github.com/tapeworks/tapedeck/internal/process"
)

// ProgressEvent is one observation extracted from an encoder stats
// line. TotalFrames is carried through from the probe so consumers can
// compute a percentage without holding extra state.
type ProgressEvent struct {
	Frame       int64   `json:"frame"`
	TotalFrames int64   `json:"total_frames,omitempty"`
	FPS         float64 `json:"fps"`
}

// ProgressFunc receives progress events as they are parsed.
type ProgressFunc func(ProgressEvent)

var (
	frameRe = regexp.MustCompile(`frame=\s*(\d+)`)
	fpsRe   = regexp.MustCompile(`fps=\s*([\d.]+)`)
)

// ScanProgressLine extracts a progress event from one stderr line.
// The two fields are scanned independently: a line with a frame count
// but no parseable fps still yields an event with FPS zero, and a
// malformed number degrades to zero rather than an error. Lines
// without a frame counter yield no event.
func ScanProgressLine(line string) (ProgressEvent, bool) {
	m := frameRe.FindStringSubmatch(line)
	if m == nil {
		return ProgressEvent{}, false
	}
	ev := ProgressEvent{}
	// strconv failure leaves the zero value, matching the tolerant
	// handling of truncated stats lines mid-write
	ev.Frame, _ = strconv.ParseInt(m[1], 10, 64)
	if fm := fpsRe.FindStringSubmatch(line); fm != nil {
		ev.FPS, _ = strconv.ParseFloat(fm[1], 64)
	}
	return ev, true
}

// MonitorProgress reads r line by line until EOF, invoking fn for each
// line that carries a frame counter. EOF is the normal end of a run
// (the encoder exited and its pipe closed) and returns nil; any other
// read error is returned as-is. totalFrames is stamped onto every
// event, zero meaning unknown.
func MonitorProgress(r io.Reader, totalFrames int64, fn ProgressFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 512*1024)
	scanner.Split(process.ScanCRLines)
	for scanner.Scan() {
		if ev, ok := ScanProgressLine(scanner.Text()); ok {
			ev.TotalFrames = totalFrames
			fn(ev)
		}
	}
	return scanner.Err()
}
