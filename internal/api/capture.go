package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/tapeworks/tapedeck/internal/api/models"
	"github.com/tapeworks/tapedeck/internal/capture"
	"github.com/tapeworks/tapedeck/internal/devices"
	"github.com/tapeworks/tapedeck/internal/ffmpeg"
	"github.com/tapeworks/tapedeck/internal/process"
)

// registerCaptureRoutes sets up the tape capture endpoints.
func (s *Server) registerCaptureRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "start-capture",
		Method:      http.MethodPost,
		Path:        "/api/capture/start",
		Summary:     "Start capture",
		Description: "Start a lossless capture from an analog or DV deck",
		Tags:        []string{"capture"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CaptureStartRequest) (*models.CaptureSessionResponse, error) {
		req := input.Body

		dev, ok := devices.ByName(s.options.Detector.FindDevices(ctx), req.Device)
		if !ok {
			return nil, huma.Error404NotFound("Capture device not found: " + req.Device)
		}

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = fmt.Sprintf("capture-%d", time.Now().UnixMilli())
		}

		job := capture.Job{
			SessionID: sessionID,
			Device:    dev,
			Settings: ffmpeg.CaptureSettings{
				Codec:       req.Codec,
				Resolution:  req.Resolution,
				Framerate:   req.Framerate,
				PixelFormat: req.PixelFormat,
				VideoInput:  req.VideoInput,
				AudioInput:  req.AudioInput,
			},
			Output: req.Output,
		}

		if err := s.options.Capture.Start(job); err != nil {
			return nil, mapCaptureError(err)
		}

		return s.captureStatusResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-capture",
		Method:      http.MethodPost,
		Path:        "/api/capture/stop",
		Summary:     "Stop capture",
		Description: "Request a graceful shutdown of the running capture session",
		Tags:        []string{"capture"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.MessageResponse, error) {
		s.options.Capture.RequestStop()
		return &models.MessageResponse{
			Body: models.MessageData{Message: "stop requested"},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-capture-status",
		Method:      http.MethodGet,
		Path:        "/api/capture/status",
		Summary:     "Capture status",
		Description: "Get the current capture session snapshot",
		Tags:        []string{"capture"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.CaptureSessionResponse, error) {
		return s.captureStatusResponse(), nil
	})
}

// captureStatusResponse snapshots the orchestrator into the API shape.
func (s *Server) captureStatusResponse() *models.CaptureSessionResponse {
	st := s.options.Capture.Status()
	return &models.CaptureSessionResponse{
		Body: models.CaptureSessionData{
			SessionID:     st.SessionID,
			Device:        st.Device,
			State:         string(st.State),
			Frame:         st.Frame,
			FPS:           st.FPS,
			DroppedFrames: s.options.Capture.DroppedFrames(),
			Timecode:      s.options.Capture.Timecode(),
			Error:         st.Error,
		},
	}
}

// mapCaptureError converts orchestrator start failures to HTTP errors.
func mapCaptureError(err error) error {
	var optErr *ffmpeg.InvalidOptionsError
	var spawnErr *process.SpawnError

	switch {
	case errors.Is(err, capture.ErrSessionActive):
		return huma.Error409Conflict("A capture session is already active", err)
	case errors.As(err, &optErr):
		return huma.Error400BadRequest(optErr.Error(), err)
	case errors.As(err, &spawnErr):
		return huma.Error500InternalServerError("Failed to launch capture: "+spawnErr.Tool, err)
	default:
		return huma.Error500InternalServerError("Failed to start capture", err)
	}
}
