package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/tapeworks/tapedeck/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for restoration progress, session state, and device changes",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"restore-progress": events.RestoreProgressEvent{},
		"restore-state":    events.RestoreStateEvent{},
		"capture-state":    events.CaptureStateEvent{},
		"device-discovery": events.DeviceDiscoveryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Per-connection channel; the bus fans in every event type
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.RestoreProgressEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.RestoreStateEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.CaptureStateEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.DeviceDiscoveryEvent](s.options.Bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Send the current session states so a late-joining client
		// doesn't wait for the next transition
		now := time.Now().UTC().Format(time.RFC3339)
		restoreSt := s.options.Restore.Status()
		if err := send.Data(events.RestoreStateEvent{
			SessionID: restoreSt.SessionID,
			State:     string(restoreSt.State),
			Error:     restoreSt.Error,
			Timestamp: now,
		}); err != nil {
			return
		}
		captureSt := s.options.Capture.Status()
		if err := send.Data(events.CaptureStateEvent{
			SessionID: captureSt.SessionID,
			Device:    captureSt.Device,
			State:     string(captureSt.State),
			Error:     captureSt.Error,
			Timestamp: now,
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					// Connection failed, clean up and exit
					return
				}
			}
		}
	})
}
