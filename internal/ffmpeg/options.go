package ffmpeg

import "fmt"

// InvalidOptionsError reports a malformed or missing required option.
// Returned before any process is spawned.
type InvalidOptionsError struct {
	Field  string
	Reason string
}

func (e *InvalidOptionsError) Error() string {
	return fmt.Sprintf("invalid options: %s: %s", e.Field, e.Reason)
}

// Encoding defaults. Every optional field has a documented default so
// a partially filled options record never fails to build.
const (
	DefaultCodec  = "libx264 (H.264, CPU)"
	DefaultCRF    = 18
	DefaultPreset = "slow"
	DefaultAudio  = "copy"
)

// EncodingOptions configures the encoder stage. Unknown codec or
// preset names fall back to the defaults rather than failing.
type EncodingOptions struct {
	Codec  string // display name from CodecNames (default DefaultCodec)
	CRF    int    // quality, 0 = DefaultCRF; ignored by codecs without a quality flag
	Preset string // encoder preset, "" = DefaultPreset; ignored by codecs without presets
	Audio  string // "copy", "none", or an audio codec name (default "copy")

	// PipeInput binds the input to the pipe sentinel instead of a path,
	// expecting a y4m stream. Used when running as a pipeline stage.
	PipeInput bool

	// DebugLogging raises the encoder loglevel from warning to info.
	DebugLogging bool
}

// codecConfig describes how one output codec is driven.
type codecConfig struct {
	args      []string // codec selection and fixed flags
	crfFlag   string   // quality flag ("-crf", "-cq"), "" = fixed-quality codec
	hasPreset bool
	container string // mandated output extension, "" = any
}

// codecConfigs maps user-facing codec names to encoder invocations.
// Keys match the names offered by the restoration UI of the source
// deck software, which is why they carry the parenthetical suffix.
var codecConfigs = map[string]codecConfig{
	"libx264 (H.264, CPU)":       {args: []string{"-c:v", "libx264"}, crfFlag: "-crf", hasPreset: true},
	"libx265 (H.265, CPU)":       {args: []string{"-c:v", "libx265"}, crfFlag: "-crf", hasPreset: true},
	"h264_nvenc (NVIDIA H.264)":  {args: []string{"-c:v", "h264_nvenc"}, crfFlag: "-cq", hasPreset: true},
	"hevc_nvenc (NVIDIA H.265)":  {args: []string{"-c:v", "hevc_nvenc"}, crfFlag: "-cq", hasPreset: true},
	"libsvtav1 (AV1)":            {args: []string{"-c:v", "libsvtav1"}, crfFlag: "-crf", hasPreset: true},
	"ProRes 4444 XQ":             {args: []string{"-c:v", "prores_ks", "-profile:v", "5", "-pix_fmt", "yuv444p10le"}, container: ".mov"},
	"ProRes 4444":                {args: []string{"-c:v", "prores_ks", "-profile:v", "4", "-pix_fmt", "yuv444p10le"}, container: ".mov"},
	"ProRes 422 (HQ)":            {args: []string{"-c:v", "prores_ks", "-profile:v", "3"}, container: ".mov"},
	"ProRes 422":                 {args: []string{"-c:v", "prores_ks", "-profile:v", "2"}, container: ".mov"},
	"ProRes 422 (LT)":            {args: []string{"-c:v", "prores_ks", "-profile:v", "1"}, container: ".mov"},
	"ProRes 422 (Proxy)":         {args: []string{"-c:v", "prores_ks", "-profile:v", "0"}, container: ".mov"},
	"DNxHD 175":                  {args: []string{"-c:v", "dnxhd", "-b:v", "175M"}, container: ".mov"},
	"FFV1 (Lossless)":            {args: []string{"-c:v", "ffv1", "-level", "3", "-g", "1"}, container: ".mkv"},
}

// CodecNames returns the supported encoder codec names.
func CodecNames() []string {
	names := make([]string, 0, len(codecConfigs))
	for name := range codecConfigs {
		names = append(names, name)
	}
	return names
}

// lookupCodec resolves a codec name, falling back to the default for
// unknown names.
func lookupCodec(name string) codecConfig {
	if cfg, ok := codecConfigs[name]; ok {
		return cfg
	}
	return codecConfigs[DefaultCodec]
}

// Capture defaults match NTSC tape sources.
const (
	DefaultCaptureResolution  = "720x480"
	DefaultCaptureFramerate   = "29.97"
	DefaultCapturePixelFormat = "uyvy422"
	DefaultCaptureCodec       = "HuffYUV (Lossless)"
)

// CaptureSettings configures a capture session. Zero values select the
// documented defaults.
type CaptureSettings struct {
	Codec       string // lossless codec display name
	Resolution  string // e.g. 720x480
	Framerate   string // e.g. 29.97
	PixelFormat string // e.g. uyvy422
	VideoInput  string // physical jack name, "" or "Auto" = device default
	AudioInput  string // physical audio source, "" or "Auto" = device default
}

// captureCodecs maps lossless capture codec names to encoders.
var captureCodecs = map[string]string{
	"HuffYUV (Lossless)": "huffyuv",
	"FFV1 (Lossless)":    "ffv1",
	"Lagarith":           "lagarith",
	"UT Video":           "utvideo",
}

// crossbarVideoPins maps physical video jacks to DirectShow crossbar
// pin numbers. Absent mappings omit the flag rather than erroring.
var crossbarVideoPins = map[string]string{
	"Composite (RCA)":   "1", // PhysConn_Video_Composite
	"S-Video (Y/C)":     "2", // PhysConn_Video_SVideo
	"Component (YPbPr)": "3", // PhysConn_Video_RGB
	"HDMI/Digital":      "0", // PhysConn_Video_SerialDigital
}

// crossbarAudioPins maps physical audio sources to crossbar pins.
var crossbarAudioPins = map[string]string{
	"Line In":     "1", // PhysConn_Audio_Line
	"Video Audio": "2", // PhysConn_Audio_AESDigital
	"Microphone":  "3", // PhysConn_Audio_Microphone
	"CD Audio":    "4", // PhysConn_Audio_CD
}

// isAutoInput reports whether an input selector means "device default".
func isAutoInput(name string) bool {
	return name == "" || name == "Auto" || name == "Auto (Default)"
}
