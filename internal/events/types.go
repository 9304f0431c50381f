package events

import "github.com/tapeworks/tapedeck/internal/devices"

// Event type constants for kelindar/event.
const (
	TypeRestoreProgress uint32 = iota + 1
	TypeRestoreState
	TypeCaptureState
	TypeDeviceDiscovery
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// RestoreProgressEvent carries one progress observation from a running
// restoration session.
type RestoreProgressEvent struct {
	SessionID   string  `json:"session_id" example:"restore-001" doc:"Restoration session identifier"`
	Frame       int64   `json:"frame" example:"4521" doc:"Frames encoded so far"`
	TotalFrames int64   `json:"total_frames,omitempty" example:"107892" doc:"Total frames, 0 when unknown"`
	FPS         float64 `json:"fps" example:"23.7" doc:"Current encoding rate"`
	Timestamp   string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Observation timestamp"`
}

// Type returns the event type identifier for RestoreProgressEvent.
func (e RestoreProgressEvent) Type() uint32 { return TypeRestoreProgress }

// RestoreStateEvent is published on every restoration state transition.
type RestoreStateEvent struct {
	SessionID string `json:"session_id" example:"restore-001" doc:"Restoration session identifier"`
	State     string `json:"state" example:"running" doc:"New session state"`
	Error     string `json:"error,omitempty" doc:"Failure detail when state is failed"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for RestoreStateEvent.
func (e RestoreStateEvent) Type() uint32 { return TypeRestoreState }

// CaptureStateEvent is published on every capture session state
// transition.
type CaptureStateEvent struct {
	SessionID string `json:"session_id" example:"capture-001" doc:"Capture session identifier"`
	Device    string `json:"device" example:"Elgato Video Capture" doc:"Capture device name"`
	State     string `json:"state" example:"running" doc:"New session state"`
	Error     string `json:"error,omitempty" doc:"Failure detail when state is failed"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for CaptureStateEvent.
func (e CaptureStateEvent) Type() uint32 { return TypeCaptureState }

// DeviceDiscoveryEvent is published after a device scan completes.
type DeviceDiscoveryEvent struct {
	Devices   []devices.CaptureDevice `json:"devices" doc:"Devices found by the scan"`
	Mocked    bool                    `json:"mocked" example:"false" doc:"True when the list is the mock fallback"`
	Timestamp string                  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Scan timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"restore" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
