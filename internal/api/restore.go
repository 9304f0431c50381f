package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/tapeworks/tapedeck/internal/api/models"
	"github.com/tapeworks/tapedeck/internal/ffmpeg"
	"github.com/tapeworks/tapedeck/internal/process"
	"github.com/tapeworks/tapedeck/internal/restore"
)

// registerRestoreRoutes sets up the restoration pipeline endpoints.
func (s *Server) registerRestoreRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "start-restore",
		Method:      http.MethodPost,
		Path:        "/api/restore/start",
		Summary:     "Start restoration",
		Description: "Launch the generator/encoder pipeline for a captured tape",
		Tags:        []string{"restore"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.RestoreStartRequest) (*models.RestoreSessionResponse, error) {
		req := input.Body

		job, err := s.buildRestoreJob(ctx, req)
		if err != nil {
			return nil, err
		}

		if err := s.options.Restore.Start(job); err != nil {
			return nil, mapRestoreError(err)
		}

		return s.restoreStatusResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-restore",
		Method:      http.MethodPost,
		Path:        "/api/restore/stop",
		Summary:     "Stop restoration",
		Description: "Request a graceful shutdown of the running restoration session",
		Tags:        []string{"restore"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.MessageResponse, error) {
		s.options.Restore.RequestStop()
		return &models.MessageResponse{
			Body: models.MessageData{Message: "stop requested"},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-restore-status",
		Method:      http.MethodGet,
		Path:        "/api/restore/status",
		Summary:     "Restoration status",
		Description: "Get the current restoration session snapshot",
		Tags:        []string{"restore"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.RestoreSessionResponse, error) {
		return s.restoreStatusResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-codecs",
		Method:      http.MethodGet,
		Path:        "/api/codecs",
		Summary:     "List codecs",
		Description: "Enumerate the encoder codec names accepted by restoration jobs",
		Tags:        []string{"restore"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.CodecListResponse, error) {
		names := ffmpeg.CodecNames()
		return &models.CodecListResponse{
			Body: models.CodecListData{Codecs: names, Count: len(names)},
		}, nil
	})
}

// buildRestoreJob resolves a start request into an orchestrator job:
// preset lookup, script materialization, and source probe.
func (s *Server) buildRestoreJob(ctx context.Context, req models.RestoreStartData) (restore.Job, error) {
	opts := ffmpeg.EncodingOptions{
		Codec:  req.Codec,
		CRF:    req.CRF,
		Preset: req.Preset,
		Audio:  req.Audio,
	}
	script := req.Script

	if req.PresetID != "" {
		preset, ok := s.options.Presets.Get(req.PresetID)
		if !ok {
			return restore.Job{}, huma.Error404NotFound("Preset not found: " + req.PresetID)
		}
		// Inline request fields win over the preset
		if opts.Codec == "" {
			opts.Codec = preset.Codec
		}
		if opts.CRF == 0 {
			opts.CRF = preset.CRF
		}
		if opts.Preset == "" {
			opts.Preset = preset.Preset
		}
		if opts.Audio == "" {
			opts.Audio = preset.Audio
		}
		if script == "" {
			script = preset.Script
		}
	}

	if script == "" {
		script = restore.DefaultScript(req.Input)
	} else {
		script = restore.RenderScript(script, req.Input)
	}

	probe, err := s.options.Prober.Probe(ctx, req.Input)
	if err != nil {
		return restore.Job{}, huma.Error400BadRequest("Failed to probe input file", err)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("restore-%d", time.Now().UnixMilli())
	}

	return restore.Job{
		SessionID:   sessionID,
		Script:      script,
		ScriptDir:   s.options.ScriptDir,
		Output:      req.Output,
		Options:     opts,
		TotalFrames: probe.TotalFrames(),
	}, nil
}

// restoreStatusResponse snapshots the orchestrator into the API shape.
func (s *Server) restoreStatusResponse() *models.RestoreSessionResponse {
	st := s.options.Restore.Status()
	return &models.RestoreSessionResponse{
		Body: models.RestoreSessionData{
			SessionID:   st.SessionID,
			State:       string(st.State),
			Frame:       st.Frame,
			TotalFrames: st.TotalFrames,
			FPS:         st.FPS,
			Error:       st.Error,
		},
	}
}

// mapRestoreError converts orchestrator start failures to HTTP errors.
func mapRestoreError(err error) error {
	var optErr *ffmpeg.InvalidOptionsError
	var spawnErr *process.SpawnError

	switch {
	case errors.Is(err, restore.ErrSessionActive):
		return huma.Error409Conflict("A restoration session is already active", err)
	case errors.As(err, &optErr):
		return huma.Error400BadRequest(optErr.Error(), err)
	case errors.As(err, &spawnErr):
		return huma.Error500InternalServerError("Failed to launch pipeline: "+spawnErr.Tool, err)
	default:
		return huma.Error500InternalServerError("Failed to start restoration", err)
	}
}
