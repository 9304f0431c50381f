// Package ffmpeg builds argument vectors for the external tools the
// node drives and parses their output: encoder and capture command
// construction, ffprobe media queries, and the stderr progress stream.
package ffmpeg

import (
	"fmt"
	"os/exec"
	"strings"
)

// Toolchain holds resolved paths to the external executables. Resolving
// once at construction keeps PATH lookups out of the orchestration hot
// path and makes the tools injectable for tests.
type Toolchain struct {
	FFmpeg  string
	FFprobe string
	VSPipe  string
}

// LookupToolchain resolves all required tools from PATH. The error
// names every missing tool so the user can fix them in one pass.
func LookupToolchain() (Toolchain, error) {
	var tc Toolchain
	var missing []string

	resolve := func(name string, dst *string) {
		path, err := exec.LookPath(name)
		if err != nil {
			missing = append(missing, name)
			return
		}
		*dst = path
	}
	resolve("ffmpeg", &tc.FFmpeg)
	resolve("ffprobe", &tc.FFprobe)
	resolve("vspipe", &tc.VSPipe)

	if len(missing) > 0 {
		return tc, fmt.Errorf("missing required tools in PATH: %s", strings.Join(missing, ", "))
	}
	return tc, nil
}

// LookupCaptureToolchain resolves only the tools needed for capture,
// so capture works on machines without the frame-processing engine.
func LookupCaptureToolchain() (Toolchain, error) {
	var tc Toolchain
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return tc, fmt.Errorf("ffmpeg executable not found in PATH")
	}
	tc.FFmpeg = ffmpeg
	if ffprobe, err := exec.LookPath("ffprobe"); err == nil {
		tc.FFprobe = ffprobe
	}
	return tc, nil
}
