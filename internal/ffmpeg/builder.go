package ffmpeg

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tapeworks/tapedeck/internal/devices"
	"github.com/tapeworks/tapedeck/internal/process"
)

// PipeSentinel is the input descriptor used when a stage reads from a
// pipe instead of a file.
const PipeSentinel = "-"

// CommandBuilder turns structured option records into process specs
// for the resolved toolchain. Pure: no state is kept between calls and
// nothing is spawned.
type CommandBuilder struct {
	tc Toolchain
}

// NewCommandBuilder creates a builder bound to a toolchain.
func NewCommandBuilder(tc Toolchain) *CommandBuilder {
	return &CommandBuilder{tc: tc}
}

// EncodeSpec builds the encoder invocation. The input is the pipe
// sentinel when opts.PipeInput is set, otherwise a file path. The spec
// always terminates with exactly one output path, rewritten to the
// container extension the codec mandates.
func (b *CommandBuilder) EncodeSpec(opts EncodingOptions, input, output string) (process.Spec, error) {
	if output == "" {
		return process.Spec{}, &InvalidOptionsError{Field: "output", Reason: "output path is required"}
	}
	if !opts.PipeInput && input == "" {
		return process.Spec{}, &InvalidOptionsError{Field: "input", Reason: "input path is required unless piping"}
	}

	logLevel := "warning"
	if opts.DebugLogging {
		logLevel = "info"
	}
	args := []string{b.tc.FFmpeg, "-hide_banner", "-loglevel", logLevel, "-stats"}

	if opts.PipeInput {
		// vspipe emits a self-describing y4m stream
		args = append(args, "-f", "yuv4mpegpipe", "-i", PipeSentinel)
	} else {
		args = append(args, "-i", input)
	}

	codec := lookupCodec(opts.Codec)
	args = append(args, codec.args...)
	if codec.crfFlag != "" {
		crf := opts.CRF
		if crf <= 0 {
			crf = DefaultCRF
		}
		args = append(args, codec.crfFlag, strconv.Itoa(crf))
	}
	if codec.hasPreset {
		preset := opts.Preset
		if preset == "" {
			preset = DefaultPreset
		}
		args = append(args, "-preset", preset)
	}

	switch audio := strings.ToLower(opts.Audio); audio {
	case "none", "no audio":
		args = append(args, "-an")
	case "", "copy":
		args = append(args, "-c:a", "copy")
	default:
		args = append(args, "-c:a", audio)
	}

	if codec.container != "" {
		output = forceExtension(output, codec.container)
	}
	args = append(args, "-y", output)

	return process.Spec{Args: args}, nil
}

// ProducerSpec builds the frame-generator invocation: vspipe streaming
// a y4m frame stream for the given script to stdout.
func (b *CommandBuilder) ProducerSpec(scriptPath string) process.Spec {
	return process.Spec{Args: []string{b.tc.VSPipe, "--y4m", scriptPath, PipeSentinel}}
}

// AnalogCaptureSpec builds the lossless capture invocation for an
// analog (DirectShow) device.
func (b *CommandBuilder) AnalogCaptureSpec(dev devices.CaptureDevice, s CaptureSettings, output string) (process.Spec, error) {
	if output == "" {
		return process.Spec{}, &InvalidOptionsError{Field: "output", Reason: "output path is required"}
	}
	if dev.InputSelector() == "" {
		return process.Spec{}, &InvalidOptionsError{Field: "device", Reason: "device has no input selector"}
	}

	resolution := s.Resolution
	if resolution == "" {
		resolution = DefaultCaptureResolution
	}
	framerate := s.Framerate
	if framerate == "" {
		framerate = DefaultCaptureFramerate
	}
	pixelFormat := s.PixelFormat
	if pixelFormat == "" {
		pixelFormat = DefaultCapturePixelFormat
	}

	args := []string{
		b.tc.FFmpeg, "-hide_banner",
		"-f", "dshow",
		"-video_size", resolution,
		"-framerate", framerate,
		"-pixel_format", pixelFormat,
	}

	if !isAutoInput(s.VideoInput) {
		if pin, ok := crossbarVideoPins[s.VideoInput]; ok {
			args = append(args, "-crossbar_video_input_pin_number", pin)
		}
	}
	if !isAutoInput(s.AudioInput) {
		if pin, ok := crossbarAudioPins[s.AudioInput]; ok {
			args = append(args, "-crossbar_audio_input_pin_number", pin)
		}
	}

	args = append(args, "-i", captureInput(dev))

	codec, ok := captureCodecs[s.Codec]
	if !ok {
		codec = captureCodecs[DefaultCaptureCodec]
	}
	args = append(args,
		"-c:v", codec,
		"-c:a", "pcm_s16le",
		"-ar", "48000",
		output,
	)

	return process.Spec{Args: args}, nil
}

// DVCaptureSpec builds the capture invocation for a DV/FireWire
// device. DV streams are copied bit-exact by default; the output is
// forced into an AVI container either way.
func (b *CommandBuilder) DVCaptureSpec(dev devices.CaptureDevice, s CaptureSettings, output string) (process.Spec, error) {
	if output == "" {
		return process.Spec{}, &InvalidOptionsError{Field: "output", Reason: "output path is required"}
	}
	if dev.InputSelector() == "" {
		return process.Spec{}, &InvalidOptionsError{Field: "device", Reason: "device has no input selector"}
	}

	framerate := s.Framerate
	if framerate == "" {
		framerate = DefaultCaptureFramerate
	}

	args := []string{
		b.tc.FFmpeg, "-hide_banner",
		"-f", "dshow",
		"-framerate", framerate,
		"-i", captureInput(dev),
	}

	// Stream copy unless a lossless transcode codec was asked for
	// explicitly. Copy preserves the DV essence bit-exact.
	if codec, ok := captureCodecs[s.Codec]; ok {
		args = append(args, "-c:v", codec, "-c:a", "pcm_s16le")
	} else {
		args = append(args, "-c:v", "copy", "-c:a", "copy")
	}

	args = append(args, forceExtension(output, ".avi"))

	return process.Spec{Args: args}, nil
}

// captureInput joins the video selector with the paired audio selector.
func captureInput(dev devices.CaptureDevice) string {
	if dev.AudioSelector != "" {
		return dev.InputSelector() + ":" + dev.AudioSelector
	}
	return dev.InputSelector()
}

// forceExtension rewrites the path extension when it does not already
// match, comparing case-insensitively so "TAPE.AVI" survives as-is.
func forceExtension(path, ext string) string {
	current := filepath.Ext(path)
	if strings.EqualFold(current, ext) {
		return path
	}
	return strings.TrimSuffix(path, current) + ext
}
