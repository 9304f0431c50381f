package metrics

import (
	"github.com/tapeworks/tapedeck/internal/events"
)

// Recorder bridges the event bus into the Prometheus gauges so session
// supervisors never import this package directly.
type Recorder struct {
	unsubs []func()
}

// NewRecorder subscribes to session events on bus. Call Close to
// detach.
func NewRecorder(bus *events.Bus) *Recorder {
	r := &Recorder{}
	r.unsubs = append(r.unsubs,
		bus.Subscribe(func(e events.RestoreProgressEvent) {
			SetRestoreProgress(e.SessionID, float64(e.Frame), float64(e.TotalFrames), e.FPS)
		}),
		bus.Subscribe(func(e events.RestoreStateEvent) {
			switch e.State {
			case "running":
				SetSessionsActive("restore", 1)
			case "idle":
				SetSessionsActive("restore", 0)
				DeleteRestoreMetrics(e.SessionID)
			}
		}),
		bus.Subscribe(func(e events.CaptureStateEvent) {
			switch e.State {
			case "running":
				SetSessionsActive("capture", 1)
			case "idle":
				SetSessionsActive("capture", 0)
			}
		}),
	)
	return r
}

// Close detaches the recorder from the bus.
func (r *Recorder) Close() {
	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil
}
