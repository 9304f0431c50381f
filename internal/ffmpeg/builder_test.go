package ffmpeg

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/tapeworks/tapedeck/internal/devices"
)

var testToolchain = Toolchain{
	FFmpeg:  "/usr/bin/ffmpeg",
	FFprobe: "/usr/bin/ffprobe",
	VSPipe:  "/usr/bin/vspipe",
}

func TestEncodeSpecPipeInput(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	spec, err := b.EncodeSpec(EncodingOptions{PipeInput: true}, "", "/tmp/out.mkv")
	if err != nil {
		t.Fatalf("EncodeSpec: %v", err)
	}
	args := spec.Args
	if args[0] != testToolchain.FFmpeg {
		t.Errorf("argv[0] = %q, want ffmpeg path", args[0])
	}
	i := slices.Index(args, "-i")
	if i < 0 || args[i+1] != "-" {
		t.Errorf("pipe input not mapped to stdin sentinel: %v", args)
	}
	if j := slices.Index(args, "-f"); j < 0 || args[j+1] != "yuv4mpegpipe" {
		t.Errorf("missing y4m demuxer for pipe input: %v", args)
	}
}

func TestEncodeSpecFileInput(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	spec, err := b.EncodeSpec(EncodingOptions{}, "/tapes/in.avi", "/tmp/out.mkv")
	if err != nil {
		t.Fatalf("EncodeSpec: %v", err)
	}
	i := slices.Index(spec.Args, "-i")
	if i < 0 || spec.Args[i+1] != "/tapes/in.avi" {
		t.Errorf("input path missing: %v", spec.Args)
	}
	if slices.Contains(spec.Args, "yuv4mpegpipe") {
		t.Errorf("y4m demuxer forced for file input: %v", spec.Args)
	}
}

func TestEncodeSpecDefaults(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	spec, err := b.EncodeSpec(EncodingOptions{PipeInput: true}, "", "/tmp/out.mkv")
	if err != nil {
		t.Fatalf("EncodeSpec: %v", err)
	}
	args := spec.Args
	if i := slices.Index(args, "-c:v"); i < 0 || args[i+1] != "libx264" {
		t.Errorf("default codec not libx264: %v", args)
	}
	if i := slices.Index(args, "-crf"); i < 0 || args[i+1] != "18" {
		t.Errorf("default crf not 18: %v", args)
	}
	if i := slices.Index(args, "-preset"); i < 0 || args[i+1] != "slow" {
		t.Errorf("default preset not slow: %v", args)
	}
	if i := slices.Index(args, "-c:a"); i < 0 || args[i+1] != "copy" {
		t.Errorf("default audio not copy: %v", args)
	}
}

func TestEncodeSpecUnknownCodecFallsBack(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	spec, err := b.EncodeSpec(EncodingOptions{Codec: "Nonexistent Codec 9000", PipeInput: true}, "", "/tmp/out.mkv")
	if err != nil {
		t.Fatalf("EncodeSpec: %v", err)
	}
	if i := slices.Index(spec.Args, "-c:v"); i < 0 || spec.Args[i+1] != "libx264" {
		t.Errorf("unknown codec should fall back to libx264: %v", spec.Args)
	}
}

func TestEncodeSpecNvencUsesCQ(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	spec, err := b.EncodeSpec(EncodingOptions{Codec: "h264_nvenc (NVIDIA H.264)", CRF: 23, PipeInput: true}, "", "/tmp/out.mkv")
	if err != nil {
		t.Fatalf("EncodeSpec: %v", err)
	}
	if i := slices.Index(spec.Args, "-cq"); i < 0 || spec.Args[i+1] != "23" {
		t.Errorf("nvenc quality flag wrong: %v", spec.Args)
	}
	if slices.Contains(spec.Args, "-crf") {
		t.Errorf("nvenc spec must not carry -crf: %v", spec.Args)
	}
}

func TestEncodeSpecProResContainer(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	spec, err := b.EncodeSpec(EncodingOptions{Codec: "ProRes 422 (HQ)", PipeInput: true}, "", "/tmp/out.mkv")
	if err != nil {
		t.Fatalf("EncodeSpec: %v", err)
	}
	out := spec.Args[len(spec.Args)-1]
	if out != "/tmp/out.mov" {
		t.Errorf("ProRes output = %q, want .mov extension", out)
	}
	if slices.Contains(spec.Args, "-preset") {
		t.Errorf("fixed-quality codec must not carry -preset: %v", spec.Args)
	}
	if slices.Contains(spec.Args, "-crf") {
		t.Errorf("fixed-quality codec must not carry -crf: %v", spec.Args)
	}
}

func TestEncodeSpecExtensionCaseInsensitive(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	spec, err := b.EncodeSpec(EncodingOptions{Codec: "ProRes 422", PipeInput: true}, "", "/tmp/TAPE.MOV")
	if err != nil {
		t.Fatalf("EncodeSpec: %v", err)
	}
	out := spec.Args[len(spec.Args)-1]
	if out != "/tmp/TAPE.MOV" {
		t.Errorf("matching extension rewritten: got %q", out)
	}
}

func TestEncodeSpecAudioNone(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	spec, err := b.EncodeSpec(EncodingOptions{Audio: "none", PipeInput: true}, "", "/tmp/out.mkv")
	if err != nil {
		t.Fatalf("EncodeSpec: %v", err)
	}
	if !slices.Contains(spec.Args, "-an") {
		t.Errorf("audio none should map to -an: %v", spec.Args)
	}
	if slices.Contains(spec.Args, "-c:a") {
		t.Errorf("-c:a must be absent with -an: %v", spec.Args)
	}
}

func TestEncodeSpecOutputLast(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	spec, err := b.EncodeSpec(EncodingOptions{PipeInput: true, DebugLogging: true}, "", "/tmp/out.mkv")
	if err != nil {
		t.Fatalf("EncodeSpec: %v", err)
	}
	n := len(spec.Args)
	if spec.Args[n-2] != "-y" || spec.Args[n-1] != "/tmp/out.mkv" {
		t.Errorf("output must be the terminal argument: %v", spec.Args)
	}
	if i := slices.Index(spec.Args, "-loglevel"); i < 0 || spec.Args[i+1] != "info" {
		t.Errorf("debug logging should raise loglevel to info: %v", spec.Args)
	}
}

func TestEncodeSpecValidation(t *testing.T) {
	b := NewCommandBuilder(testToolchain)

	_, err := b.EncodeSpec(EncodingOptions{PipeInput: true}, "", "")
	var ioe *InvalidOptionsError
	if !errors.As(err, &ioe) || ioe.Field != "output" {
		t.Errorf("missing output: got %v, want InvalidOptionsError{output}", err)
	}

	_, err = b.EncodeSpec(EncodingOptions{}, "", "/tmp/out.mkv")
	if !errors.As(err, &ioe) || ioe.Field != "input" {
		t.Errorf("missing input without pipe: got %v, want InvalidOptionsError{input}", err)
	}
}

func TestProducerSpec(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	spec := b.ProducerSpec("/tmp/restore.vpy")
	want := []string{testToolchain.VSPipe, "--y4m", "/tmp/restore.vpy", "-"}
	if !slices.Equal(spec.Args, want) {
		t.Errorf("ProducerSpec = %v, want %v", spec.Args, want)
	}
}

func analogDevice() devices.CaptureDevice {
	return devices.CaptureDevice{
		Name:          "Elgato Video Capture",
		Type:          devices.TypeAnalog,
		Selector:      "video=Elgato Video Capture",
		AudioSelector: "audio=Elgato Video Capture",
	}
}

func TestAnalogCaptureSpecDefaults(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	spec, err := b.AnalogCaptureSpec(analogDevice(), CaptureSettings{}, "/tapes/cap.avi")
	if err != nil {
		t.Fatalf("AnalogCaptureSpec: %v", err)
	}
	args := spec.Args
	for flag, want := range map[string]string{
		"-f":            "dshow",
		"-video_size":   "720x480",
		"-framerate":    "29.97",
		"-pixel_format": "uyvy422",
		"-c:v":          "huffyuv",
		"-c:a":          "pcm_s16le",
		"-ar":           "48000",
	} {
		if i := slices.Index(args, flag); i < 0 || args[i+1] != want {
			t.Errorf("%s = missing or wrong, want %q in %v", flag, want, args)
		}
	}
	if i := slices.Index(args, "-i"); i < 0 || args[i+1] != "video=Elgato Video Capture:audio=Elgato Video Capture" {
		t.Errorf("combined input selector wrong: %v", args)
	}
}

func TestAnalogCaptureSpecCrossbarPins(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	s := CaptureSettings{VideoInput: "S-Video (Y/C)", AudioInput: "Line In"}
	spec, err := b.AnalogCaptureSpec(analogDevice(), s, "/tapes/cap.avi")
	if err != nil {
		t.Fatalf("AnalogCaptureSpec: %v", err)
	}
	args := spec.Args
	vi := slices.Index(args, "-crossbar_video_input_pin_number")
	if vi < 0 || args[vi+1] != "2" {
		t.Errorf("S-Video should select video pin 2: %v", args)
	}
	ai := slices.Index(args, "-crossbar_audio_input_pin_number")
	if ai < 0 || args[ai+1] != "1" {
		t.Errorf("Line In should select audio pin 1: %v", args)
	}
	ii := slices.Index(args, "-i")
	if vi > ii || ai > ii {
		t.Errorf("crossbar pins must precede -i: %v", args)
	}
}

func TestAnalogCaptureSpecAutoInputOmitsPins(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	spec, err := b.AnalogCaptureSpec(analogDevice(), CaptureSettings{VideoInput: "Auto (Default)"}, "/tapes/cap.avi")
	if err != nil {
		t.Fatalf("AnalogCaptureSpec: %v", err)
	}
	if slices.Contains(spec.Args, "-crossbar_video_input_pin_number") {
		t.Errorf("auto input must omit crossbar flag: %v", spec.Args)
	}
}

func TestAnalogCaptureSpecUnknownInputOmitsPins(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	spec, err := b.AnalogCaptureSpec(analogDevice(), CaptureSettings{VideoInput: "SCART"}, "/tapes/cap.avi")
	if err != nil {
		t.Fatalf("AnalogCaptureSpec: %v", err)
	}
	if slices.Contains(spec.Args, "-crossbar_video_input_pin_number") {
		t.Errorf("unmapped input must omit the flag, not error: %v", spec.Args)
	}
}

func TestDVCaptureSpecForcesAVI(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	dev := devices.CaptureDevice{
		Name:     "Microsoft DV Camera and VCR",
		Type:     devices.TypeDV,
		Selector: "video=Microsoft DV Camera and VCR",
	}
	spec, err := b.DVCaptureSpec(dev, CaptureSettings{}, "/tapes/dv.mkv")
	if err != nil {
		t.Fatalf("DVCaptureSpec: %v", err)
	}
	out := spec.Args[len(spec.Args)-1]
	if !strings.HasSuffix(out, ".avi") {
		t.Errorf("DV output = %q, want forced .avi", out)
	}
	if i := slices.Index(spec.Args, "-c:v"); i < 0 || spec.Args[i+1] != "copy" {
		t.Errorf("DV default must be stream copy: %v", spec.Args)
	}
}

func TestDVCaptureSpecLosslessTranscode(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	dev := devices.CaptureDevice{
		Name:     "Microsoft DV Camera and VCR",
		Type:     devices.TypeDV,
		Selector: "video=Microsoft DV Camera and VCR",
	}
	spec, err := b.DVCaptureSpec(dev, CaptureSettings{Codec: "HuffYUV (Lossless)"}, "/tapes/dv.avi")
	if err != nil {
		t.Fatalf("DVCaptureSpec: %v", err)
	}
	if i := slices.Index(spec.Args, "-c:v"); i < 0 || spec.Args[i+1] != "huffyuv" {
		t.Errorf("explicit lossless codec must transcode: %v", spec.Args)
	}
	if i := slices.Index(spec.Args, "-c:a"); i < 0 || spec.Args[i+1] != "pcm_s16le" {
		t.Errorf("transcode audio must be pcm_s16le: %v", spec.Args)
	}
}

func TestCaptureSpecNoDevice(t *testing.T) {
	b := NewCommandBuilder(testToolchain)
	_, err := b.AnalogCaptureSpec(devices.CaptureDevice{}, CaptureSettings{}, "/tapes/cap.avi")
	var ioe *InvalidOptionsError
	if !errors.As(err, &ioe) {
		t.Errorf("empty device: got %v, want InvalidOptionsError", err)
	}
}
