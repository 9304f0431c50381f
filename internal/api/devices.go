package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/tapeworks/tapedeck/internal/api/models"
	"github.com/tapeworks/tapedeck/internal/events"
)

// registerDeviceRoutes sets up capture device discovery endpoints.
func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List capture devices",
		Description: "Enumerate capture devices, falling back to a mock list when no capture backend is available",
		Tags:        []string{"devices"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.DeviceListResponse, error) {
		devs, mocked := s.options.Detector.Discover(ctx)

		if s.options.Bus != nil {
			s.options.Bus.Publish(events.DeviceDiscoveryEvent{
				Devices:   devs,
				Mocked:    mocked,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		}

		return &models.DeviceListResponse{
			Body: models.DeviceListData{
				Devices: devs,
				Count:   len(devs),
				Mocked:  mocked,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "probe-source",
		Method:      http.MethodGet,
		Path:        "/api/probe",
		Summary:     "Probe a source file",
		Description: "Inspect a captured tape file and report its frame count and stream properties",
		Tags:        []string{"devices"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		Path string `query:"path" required:"true" doc:"File to probe"`
	}) (*models.ProbeResponse, error) {
		result, err := s.options.Prober.Probe(ctx, input.Path)
		if err != nil {
			return nil, huma.Error400BadRequest("Failed to probe file", err)
		}

		data := models.ProbeData{
			Path:        input.Path,
			TotalFrames: result.TotalFrames(),
			Duration:    result.Format.Duration,
		}
		if vs := result.VideoStream(); vs != nil {
			data.FPS = vs.FPS()
			data.Width = vs.Width
			data.Height = vs.Height
			data.Codec = vs.CodecName
		}

		return &models.ProbeResponse{Body: data}, nil
	})
}
