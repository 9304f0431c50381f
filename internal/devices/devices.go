// Package devices discovers video capture hardware by parsing the
// device listing that ffmpeg's DirectShow backend prints on stderr.
package devices

import "strings"

// DeviceType classifies a capture device.
type DeviceType string

const (
	// TypeAnalog is a composite/S-Video capture device.
	TypeAnalog DeviceType = "analog"
	// TypeDV is a FireWire/IEEE 1394 DV device.
	TypeDV DeviceType = "dv"
)

// CaptureDevice describes one discovered capture device. Read-only
// after discovery; consumed by the capture command builder.
type CaptureDevice struct {
	// Name is the user-facing device name.
	Name string `json:"name"`
	// Type is analog or dv.
	Type DeviceType `json:"type"`
	// Selector is the ffmpeg input selector, e.g. "video=Elgato Video Capture".
	Selector string `json:"selector"`
	// AltSelector is the stable @device_pnp selector when the backend
	// reported an alternative name. Preferred over Selector when set,
	// since display names are not unique across identical cards.
	AltSelector string `json:"alt_selector,omitempty"`
	// AudioSelector is the paired audio input, e.g. "audio=Elgato Video
	// Capture". Empty when no audio device matched.
	AudioSelector string `json:"audio_selector,omitempty"`
}

// InputSelector returns the selector to pass to ffmpeg, preferring the
// stable alternative name when one was reported.
func (d CaptureDevice) InputSelector() string {
	if d.AltSelector != "" {
		return d.AltSelector
	}
	return d.Selector
}

// dvKeywords mark device names that indicate a DV/FireWire device.
var dvKeywords = []string{"dv", "firewire", "ieee 1394", "1394", "camcorder", "vcr"}

// isDVDevice classifies a device by its name.
func isDVDevice(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range dvKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Filter returns the devices of the given type.
func Filter(devs []CaptureDevice, t DeviceType) []CaptureDevice {
	var out []CaptureDevice
	for _, d := range devs {
		if d.Type == t {
			out = append(out, d)
		}
	}
	return out
}

// ByName returns the device with the given name, if present.
func ByName(devs []CaptureDevice, name string) (CaptureDevice, bool) {
	for _, d := range devs {
		if d.Name == name {
			return d, true
		}
	}
	return CaptureDevice{}, false
}
