package api

import (
	"context"
	"net/http"
	"sort"

	"github.com/danielgtaylor/huma/v2"
	"github.com/tapeworks/tapedeck/internal/api/models"
	"github.com/tapeworks/tapedeck/internal/config"
)

// registerPresetRoutes sets up CRUD for saved restoration presets.
func (s *Server) registerPresetRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-presets",
		Method:      http.MethodGet,
		Path:        "/api/presets",
		Summary:     "List presets",
		Description: "List all saved restoration presets",
		Tags:        []string{"presets"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.PresetListResponse, error) {
		all := s.options.Presets.All()
		presets := make([]models.PresetData, 0, len(all))
		for _, p := range all {
			presets = append(presets, presetToModel(p))
		}
		sort.Slice(presets, func(i, j int) bool { return presets[i].ID < presets[j].ID })
		return &models.PresetListResponse{
			Body: models.PresetListData{Presets: presets, Count: len(presets)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-preset",
		Method:      http.MethodGet,
		Path:        "/api/presets/{id}",
		Summary:     "Get preset",
		Description: "Get one saved restoration preset",
		Tags:        []string{"presets"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		ID string `path:"id" doc:"Preset identifier"`
	}) (*models.PresetResponse, error) {
		p, ok := s.options.Presets.Get(input.ID)
		if !ok {
			return nil, huma.Error404NotFound("Preset not found: " + input.ID)
		}
		return &models.PresetResponse{Body: presetToModel(p)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "create-preset",
		Method:      http.MethodPost,
		Path:        "/api/presets",
		Summary:     "Create preset",
		Description: "Save a new restoration preset",
		Tags:        []string{"presets"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.PresetRequest) (*models.PresetResponse, error) {
		if err := s.options.Presets.Add(presetFromModel(input.Body)); err != nil {
			return nil, huma.Error400BadRequest("Failed to create preset", err)
		}
		p, _ := s.options.Presets.Get(input.Body.ID)
		return &models.PresetResponse{Body: presetToModel(p)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-preset",
		Method:      http.MethodPut,
		Path:        "/api/presets/{id}",
		Summary:     "Update preset",
		Description: "Update a saved restoration preset",
		Tags:        []string{"presets"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id" doc:"Preset identifier"`
		Body models.PresetData
	}) (*models.PresetResponse, error) {
		if err := s.options.Presets.Update(input.ID, presetFromModel(input.Body)); err != nil {
			return nil, huma.Error404NotFound("Failed to update preset", err)
		}
		p, _ := s.options.Presets.Get(input.ID)
		return &models.PresetResponse{Body: presetToModel(p)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-preset",
		Method:      http.MethodDelete,
		Path:        "/api/presets/{id}",
		Summary:     "Delete preset",
		Description: "Delete a saved restoration preset",
		Tags:        []string{"presets"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		ID string `path:"id" doc:"Preset identifier"`
	}) (*models.MessageResponse, error) {
		if err := s.options.Presets.Remove(input.ID); err != nil {
			return nil, huma.Error404NotFound("Failed to delete preset", err)
		}
		return &models.MessageResponse{
			Body: models.MessageData{Message: "preset deleted"},
		}, nil
	})
}

func presetToModel(p config.Preset) models.PresetData {
	return models.PresetData{
		ID:        p.ID,
		Name:      p.Name,
		Codec:     p.Codec,
		CRF:       p.CRF,
		Preset:    p.Preset,
		Audio:     p.Audio,
		Script:    p.Script,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func presetFromModel(m models.PresetData) config.Preset {
	return config.Preset{
		ID:     m.ID,
		Name:   m.Name,
		Codec:  m.Codec,
		CRF:    m.CRF,
		Preset: m.Preset,
		Audio:  m.Audio,
		Script: m.Script,
	}
}
