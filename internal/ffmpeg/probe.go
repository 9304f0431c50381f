package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ProbeResult is the subset of ffprobe output the pipeline needs.
type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

type ProbeFormat struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
	Size     string `json:"size"`
}

type ProbeStream struct {
	Index      int    `json:"index"`
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	NbFrames   string `json:"nb_frames,omitempty"`
	RFrameRate string `json:"r_frame_rate,omitempty"`
	Duration   string `json:"duration,omitempty"`
}

// Prober runs ffprobe against source files.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

// NewProber creates a prober for the given ffprobe binary.
func NewProber(ffprobePath string) *Prober {
	return &Prober{ffprobePath: ffprobePath, timeout: 30 * time.Second}
}

// Probe inspects path and returns the parsed container/stream metadata.
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var result ProbeResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output for %s: %w", path, err)
	}
	return &result, nil
}

// VideoStream returns the first video stream, or nil when the file has
// none.
func (r *ProbeResult) VideoStream() *ProbeStream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "video" {
			return &r.Streams[i]
		}
	}
	return nil
}

// TotalFrames derives the video frame count. nb_frames is authoritative
// when the container records it; otherwise duration times frame rate is
// close enough for progress percentages. Zero means unknown.
func (r *ProbeResult) TotalFrames() int64 {
	v := r.VideoStream()
	if v == nil {
		return 0
	}
	if n, err := strconv.ParseInt(v.NbFrames, 10, 64); err == nil && n > 0 {
		return n
	}
	fps := v.FPS()
	if fps <= 0 {
		return 0
	}
	dur := v.Duration
	if dur == "" {
		dur = r.Format.Duration
	}
	seconds, err := strconv.ParseFloat(dur, 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	return int64(seconds * fps)
}

// FPS parses the r_frame_rate rational ("30000/1001"). Zero on any
// malformed or degenerate value.
func (s *ProbeStream) FPS() float64 {
	num, den, ok := strings.Cut(s.RFrameRate, "/")
	if !ok {
		f, _ := strconv.ParseFloat(s.RFrameRate, 64)
		return f
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
