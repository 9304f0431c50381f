package devices

import (
	"context"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const listTimeout = 10 * time.Second

// Detector enumerates capture devices through the ffmpeg DirectShow
// backend. On platforms or machines without that backend it falls back
// to a mock device set so the rest of the stack stays exercisable.
type Detector struct {
	ffmpegPath string
	logger     *slog.Logger

	// run is swapped in tests to avoid spawning ffmpeg.
	run func(ctx context.Context) (string, error)
}

// NewDetector creates a detector using the given ffmpeg executable.
func NewDetector(ffmpegPath string, logger *slog.Logger) *Detector {
	d := &Detector{ffmpegPath: ffmpegPath, logger: logger}
	d.run = d.listDevices
	return d
}

// FindDevices scans for capture devices. Discovery failures degrade to
// the mock device set rather than erroring, matching how a deck
// operator works on a machine without the capture card plugged in.
func (d *Detector) FindDevices(ctx context.Context) []CaptureDevice {
	devs, _ := d.Discover(ctx)
	return devs
}

// Discover is FindDevices plus a flag reporting whether the result is
// the mock fallback set.
func (d *Detector) Discover(ctx context.Context) (devs []CaptureDevice, mocked bool) {
	output, err := d.run(ctx)
	if err != nil && output == "" {
		d.logger.Warn("Device detection failed, using mock devices", "error", err)
		return MockDevices(), true
	}

	video, audio := parseDeviceListing(output)
	if len(video) == 0 {
		d.logger.Warn("No capture devices reported, using mock devices")
		return MockDevices(), true
	}

	devs = make([]CaptureDevice, 0, len(video))
	for _, v := range video {
		dev := CaptureDevice{
			Name:     v.name,
			Selector: "video=" + v.name,
			Type:     TypeAnalog,
		}
		if isDVDevice(v.name) {
			dev.Type = TypeDV
		}
		if v.alternative != "" {
			dev.AltSelector = "video=" + v.alternative
		}
		if match := matchAudioDevice(v.name, audio); match != "" {
			dev.AudioSelector = "audio=" + match
		}
		devs = append(devs, dev)
		d.logger.Info("Detected capture device", "name", dev.Name, "type", string(dev.Type))
	}
	return devs, false
}

// listDevices runs the enumeration subprocess. The listing goes to
// stderr and the command exits non-zero by design (there is no real
// input), so the exit error is ignored when output was produced.
func (d *Detector) listDevices(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.ffmpegPath, "-list_devices", "true", "-f", "dshow", "-i", "dummy")
	var stderr strings.Builder
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// listedDevice is one parsed entry from the enumeration output.
type listedDevice struct {
	name        string
	alternative string
}

var quotedNameRe = regexp.MustCompile(`"([^"]+)"`)

// parseDeviceListing extracts video and audio device names from the
// stderr listing. The format is a labeled section per media type with
// one quoted name per line, optionally followed by an alternative
// (stable) name line:
//
//	[dshow @ ...] DirectShow video devices
//	[dshow @ ...]  "Elgato Video Capture"
//	[dshow @ ...]    Alternative name "@device_pnp_\\?\usb#..."
//	[dshow @ ...] DirectShow audio devices
//	[dshow @ ...]  "Elgato Video Capture"
func parseDeviceListing(output string) (video, audio []listedDevice) {
	var section *[]listedDevice

	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.Contains(line, "DirectShow video devices"):
			section = &video
			continue
		case strings.Contains(line, "DirectShow audio devices"):
			section = &audio
			continue
		case section == nil || !strings.Contains(line, "[dshow @"):
			continue
		}

		match := quotedNameRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		name := match[1]
		if strings.Contains(line, "Alternative name") {
			if n := len(*section); n > 0 {
				(*section)[n-1].alternative = name
			}
			continue
		}
		*section = append(*section, listedDevice{name: name})
	}
	return video, audio
}

// matchAudioDevice pairs a video device with its audio counterpart.
// Many capture cards expose audio under the same name; otherwise the
// first word often matches (e.g. "USB Video" / "USB Audio"). Falls
// back to the first audio device so capture still records sound.
func matchAudioDevice(videoName string, audio []listedDevice) string {
	for _, a := range audio {
		if a.name == videoName {
			return a.name
		}
	}
	if first, _, ok := strings.Cut(videoName, " "); ok {
		for _, a := range audio {
			if strings.Contains(a.name, first) {
				return a.name
			}
		}
	}
	if len(audio) > 0 {
		return audio[0].name
	}
	return ""
}

// MockDevices returns a fixed device set for development machines
// without capture hardware.
func MockDevices() []CaptureDevice {
	return []CaptureDevice{
		{
			Name:          "Elgato Video Capture",
			Type:          TypeAnalog,
			Selector:      "video=Elgato Video Capture",
			AudioSelector: "audio=Elgato Video Capture",
		},
		{
			Name:          "USB Video Device",
			Type:          TypeAnalog,
			Selector:      "video=USB Video Device",
			AudioSelector: "audio=Microphone (USB Audio Device)",
		},
		{
			Name:          "Microsoft DV Camera and VCR",
			Type:          TypeDV,
			Selector:      "video=Microsoft DV Camera and VCR",
			AudioSelector: "audio=Microsoft DV Camera and VCR",
		},
		{
			Name:          "Blackmagic WDM Capture",
			Type:          TypeAnalog,
			Selector:      "video=Blackmagic WDM Capture",
			AudioSelector: "audio=Blackmagic WDM Capture",
		},
	}
}
