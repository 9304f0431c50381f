// Package models defines the request and response envelopes for the
// tapedeck HTTP API.
package models

import (
	"time"

	"github.com/tapeworks/tapedeck/internal/devices"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Device models
type DeviceListData struct {
	Devices []devices.CaptureDevice `json:"devices" doc:"Capture devices found on the system"`
	Count   int                     `json:"count" example:"2" doc:"Number of devices"`
	Mocked  bool                    `json:"mocked" example:"false" doc:"True when the list is a mock fallback (no backend available)"`
}

type DeviceListResponse struct {
	Body DeviceListData
}

// Codec models
type CodecListData struct {
	Codecs []string `json:"codecs" doc:"Encoder codec names accepted by restore and capture operations"`
	Count  int      `json:"count" example:"13" doc:"Number of codecs"`
}

type CodecListResponse struct {
	Body CodecListData
}

// Restore models
type RestoreStartData struct {
	SessionID string `json:"session_id,omitempty" pattern:"^[a-zA-Z0-9_-]*$" maxLength:"50" example:"restore-001" doc:"Session identifier; generated when empty"`
	Input     string `json:"input" minLength:"1" example:"/tapes/capture.mkv" doc:"Source tape capture to restore"`
	Output    string `json:"output" minLength:"1" example:"/tapes/restored.mkv" doc:"Destination path for the restored video"`
	PresetID  string `json:"preset_id,omitempty" example:"vhs-default" doc:"Saved preset supplying script and encoder settings"`
	Script    string `json:"script,omitempty" doc:"Inline VapourSynth script; overrides the preset script"`
	Codec     string `json:"codec,omitempty" example:"libx264 (H.264, CPU)" doc:"Encoder codec name"`
	CRF       int    `json:"crf,omitempty" minimum:"0" maximum:"51" example:"18" doc:"Constant rate factor"`
	Preset    string `json:"preset,omitempty" example:"slow" doc:"Encoder speed preset"`
	Audio     string `json:"audio,omitempty" example:"copy" doc:"Audio handling: copy, none, or a codec name"`
}

type RestoreStartRequest struct {
	Body RestoreStartData
}

type RestoreSessionData struct {
	SessionID   string  `json:"session_id" example:"restore-001" doc:"Session identifier"`
	State       string  `json:"state" example:"running" doc:"Session state"`
	Frame       int64   `json:"frame" example:"4521" doc:"Frames encoded so far"`
	TotalFrames int64   `json:"total_frames,omitempty" example:"107892" doc:"Total frames, 0 when unknown"`
	FPS         float64 `json:"fps" example:"23.7" doc:"Current encoding rate"`
	Error       string  `json:"error,omitempty" doc:"Failure detail from the last session"`
}

type RestoreSessionResponse struct {
	Body RestoreSessionData
}

// Capture models
type CaptureStartData struct {
	SessionID   string `json:"session_id,omitempty" pattern:"^[a-zA-Z0-9_-]*$" maxLength:"50" example:"capture-001" doc:"Session identifier; generated when empty"`
	Device      string `json:"device" minLength:"1" example:"Elgato Video Capture" doc:"Capture device name from the device list"`
	Output      string `json:"output" minLength:"1" example:"/tapes/capture.avi" doc:"Destination path for the captured video"`
	Codec       string `json:"codec,omitempty" example:"HuffYUV (Lossless)" doc:"Lossless capture codec"`
	Resolution  string `json:"resolution,omitempty" example:"720x480" doc:"Capture resolution"`
	Framerate   string `json:"framerate,omitempty" example:"29.97" doc:"Capture framerate"`
	PixelFormat string `json:"pixel_format,omitempty" example:"uyvy422" doc:"Capture pixel format"`
	VideoInput  string `json:"video_input,omitempty" example:"S-Video (Y/C)" doc:"Physical video input jack"`
	AudioInput  string `json:"audio_input,omitempty" example:"Line In" doc:"Physical audio input source"`
}

type CaptureStartRequest struct {
	Body CaptureStartData
}

type CaptureSessionData struct {
	SessionID     string  `json:"session_id" example:"capture-001" doc:"Session identifier"`
	Device        string  `json:"device,omitempty" example:"Elgato Video Capture" doc:"Capture device name"`
	State         string  `json:"state" example:"running" doc:"Session state"`
	Frame         int64   `json:"frame" example:"12450" doc:"Frames captured so far"`
	FPS           float64 `json:"fps" example:"29.97" doc:"Current capture rate"`
	DroppedFrames string  `json:"dropped_frames" example:"not available" doc:"Dropped frame count when the backend exposes it"`
	Timecode      string  `json:"timecode" example:"not available" doc:"Tape timecode when the deck exposes it"`
	Error         string  `json:"error,omitempty" doc:"Failure detail from the last session"`
}

type CaptureSessionResponse struct {
	Body CaptureSessionData
}

// Probe models
type ProbeData struct {
	Path        string  `json:"path" example:"/tapes/capture.mkv" doc:"Probed file"`
	TotalFrames int64   `json:"total_frames" example:"107892" doc:"Video frame count, 0 when unknown"`
	FPS         float64 `json:"fps" example:"29.97" doc:"Video frame rate"`
	Width       int     `json:"width,omitempty" example:"720" doc:"Video width"`
	Height      int     `json:"height,omitempty" example:"480" doc:"Video height"`
	Codec       string  `json:"codec,omitempty" example:"ffv1" doc:"Video codec name"`
	Duration    string  `json:"duration,omitempty" example:"3600.000000" doc:"Container duration in seconds"`
}

type ProbeResponse struct {
	Body ProbeData
}

// Preset models
type PresetData struct {
	ID        string    `json:"id" example:"vhs-default" doc:"Preset identifier"`
	Name      string    `json:"name" example:"VHS Default" doc:"Display name"`
	Codec     string    `json:"codec,omitempty" example:"libx264 (H.264, CPU)" doc:"Encoder codec name"`
	CRF       int       `json:"crf,omitempty" example:"18" doc:"Constant rate factor"`
	Preset    string    `json:"preset,omitempty" example:"slow" doc:"Encoder speed preset"`
	Audio     string    `json:"audio,omitempty" example:"copy" doc:"Audio handling"`
	Script    string    `json:"script,omitempty" doc:"VapourSynth restoration script"`
	CreatedAt time.Time `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last update timestamp"`
}

type PresetRequest struct {
	Body PresetData
}

type PresetResponse struct {
	Body PresetData
}

type PresetListData struct {
	Presets []PresetData `json:"presets" doc:"Saved restoration presets"`
	Count   int          `json:"count" example:"3" doc:"Number of presets"`
}

type PresetListResponse struct {
	Body PresetListData
}

// Message response for simple acknowledgements
type MessageData struct {
	Message string `json:"message" example:"ok" doc:"Operation result message"`
}

type MessageResponse struct {
	Body MessageData
}

// Update models
type UpdateCheckData struct {
	CurrentVersion  string    `json:"current_version" example:"1.2.0" doc:"Running version"`
	LatestVersion   string    `json:"latest_version" example:"1.3.0" doc:"Latest released version"`
	ReleaseNotes    string    `json:"release_notes,omitempty" doc:"Release notes"`
	ReleaseURL      string    `json:"release_url,omitempty" doc:"Release page URL"`
	PublishedAt     time.Time `json:"published_at,omitempty" doc:"Release publish time"`
	AssetSize       int       `json:"asset_size,omitempty" doc:"Download size in bytes"`
	UpdateAvailable bool      `json:"update_available" example:"true" doc:"Whether an update is available"`
}

type UpdateCheckResponse struct {
	Body UpdateCheckData
}

type UpdateStatusData struct {
	State           string     `json:"state" example:"idle" doc:"Updater state"`
	CurrentVersion  string     `json:"current_version" example:"1.2.0" doc:"Running version"`
	TargetVersion   string     `json:"target_version,omitempty" doc:"Version being applied"`
	Error           string     `json:"error,omitempty" doc:"Last updater error"`
	LastChecked     *time.Time `json:"last_checked,omitempty" doc:"Last successful check"`
	BackupAvailable bool       `json:"backup_available" doc:"Whether a rollback backup exists"`
	BackupVersion   string     `json:"backup_version,omitempty" doc:"Version held in the backup"`
}

type UpdateStatusResponse struct {
	Body UpdateStatusData
}
