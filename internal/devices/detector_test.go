package devices

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

const sampleListing = `[dshow @ 0000021] DirectShow video devices (some may be both video and audio devices)
[dshow @ 0000021]  "Elgato Video Capture"
[dshow @ 0000021]     Alternative name "@device_pnp_\\?\usb#vid_0fd9&pid_0044#6&2c24ce2e"
[dshow @ 0000021]  "Microsoft DV Camera and VCR"
[dshow @ 0000021] DirectShow audio devices
[dshow @ 0000021]  "Elgato Video Capture"
[dshow @ 0000021]  "Microphone (USB Audio Device)"
dummy: Immediate exit requested
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newListingDetector(listing string, err error) *Detector {
	d := NewDetector("ffmpeg", testLogger())
	d.run = func(context.Context) (string, error) { return listing, err }
	return d
}

func TestParseDeviceListing(t *testing.T) {
	video, audio := parseDeviceListing(sampleListing)

	if len(video) != 2 {
		t.Fatalf("expected 2 video devices, got %d", len(video))
	}
	if video[0].name != "Elgato Video Capture" {
		t.Errorf("video[0] = %q", video[0].name)
	}
	if video[0].alternative == "" {
		t.Error("expected alternative name for first device")
	}
	if video[1].alternative != "" {
		t.Errorf("unexpected alternative for DV device: %q", video[1].alternative)
	}
	if len(audio) != 2 {
		t.Fatalf("expected 2 audio devices, got %d", len(audio))
	}
}

func TestFindDevicesClassification(t *testing.T) {
	d := newListingDetector(sampleListing, nil)
	devs := d.FindDevices(context.Background())

	if len(devs) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devs))
	}

	elgato := devs[0]
	if elgato.Type != TypeAnalog {
		t.Errorf("Elgato type = %s, want analog", elgato.Type)
	}
	if elgato.AudioSelector != "audio=Elgato Video Capture" {
		t.Errorf("Elgato audio = %q", elgato.AudioSelector)
	}
	if elgato.AltSelector == "" {
		t.Error("expected alternative selector for Elgato")
	}
	if got := elgato.InputSelector(); got != elgato.AltSelector {
		t.Errorf("InputSelector() = %q, want alternative", got)
	}

	dv := devs[1]
	if dv.Type != TypeDV {
		t.Errorf("DV camera type = %s, want dv", dv.Type)
	}
}

func TestFindDevicesFallsBackToMock(t *testing.T) {
	d := newListingDetector("", context.DeadlineExceeded)
	devs := d.FindDevices(context.Background())

	if len(devs) != len(MockDevices()) {
		t.Fatalf("expected mock devices, got %d", len(devs))
	}
}

func TestFindDevicesEmptyListingFallsBack(t *testing.T) {
	d := newListingDetector("nothing useful here", nil)
	if devs := d.FindDevices(context.Background()); len(devs) != len(MockDevices()) {
		t.Fatalf("expected mock fallback, got %d devices", len(devs))
	}
}

func TestIsDVDevice(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"Microsoft DV Camera and VCR", true},
		{"Sony FireWire Deck", true},
		{"IEEE 1394 Host", true},
		{"Elgato Video Capture", false},
		{"USB Video Device", false},
	}
	for _, tc := range cases {
		if got := isDVDevice(tc.name); got != tc.want {
			t.Errorf("isDVDevice(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMatchAudioDevicePrefixMatch(t *testing.T) {
	audio := []listedDevice{{name: "Realtek HD Audio"}, {name: "Microphone (USB Audio Device)"}}
	if got := matchAudioDevice("USB Video Device", audio); got != "Microphone (USB Audio Device)" {
		t.Errorf("matchAudioDevice = %q, want the USB microphone", got)
	}
}

func TestMatchAudioDeviceFallbackToFirst(t *testing.T) {
	audio := []listedDevice{{name: "Realtek HD Audio"}}
	if got := matchAudioDevice("Blackmagic WDM Capture", audio); got != "Realtek HD Audio" {
		t.Errorf("matchAudioDevice = %q, want first device", got)
	}
}

func TestFilterAndByName(t *testing.T) {
	devs := MockDevices()
	analog := Filter(devs, TypeAnalog)
	if len(analog) != 3 {
		t.Errorf("expected 3 analog mock devices, got %d", len(analog))
	}
	dv := Filter(devs, TypeDV)
	if len(dv) != 1 {
		t.Errorf("expected 1 dv mock device, got %d", len(dv))
	}
	if _, ok := ByName(devs, "Elgato Video Capture"); !ok {
		t.Error("ByName failed to find Elgato")
	}
	if _, ok := ByName(devs, "missing"); ok {
		t.Error("ByName found a device that does not exist")
	}
}
