package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Preset is a saved restoration recipe: the encoder settings plus the
// VapourSynth script that implements the restoration chain.
type Preset struct {
	ID   string `toml:"id" json:"id"`
	Name string `toml:"name" json:"name"`

	// Encoder settings
	Codec  string `toml:"codec,omitempty" json:"codec,omitempty"`
	CRF    int    `toml:"crf,omitempty" json:"crf,omitempty"`
	Preset string `toml:"preset,omitempty" json:"preset,omitempty"`
	Audio  string `toml:"audio,omitempty" json:"audio,omitempty"`

	// Script is the VapourSynth source run through the frame generator.
	Script string `toml:"script,omitempty" json:"script,omitempty"`

	// Metadata
	CreatedAt time.Time `toml:"created_at" json:"created_at"`
	UpdatedAt time.Time `toml:"updated_at" json:"updated_at"`
}

// PresetsFile is the on-disk shape of the preset collection.
type PresetsFile struct {
	Version int               `toml:"version" json:"version"`
	Presets map[string]Preset `toml:"presets" json:"presets"`
}

// PresetStore manages saved restoration presets backed by a TOML file.
type PresetStore struct {
	path string
	file *PresetsFile
}

// NewPresetStore creates a store backed by path, defaulting to
// presets.toml in the working directory.
func NewPresetStore(path string) *PresetStore {
	if path == "" {
		path = "presets.toml"
	}
	return &PresetStore{
		path: path,
		file: &PresetsFile{
			Version: 1,
			Presets: make(map[string]Preset),
		},
	}
}

// Load reads the preset file. A missing file is an empty store, not an
// error.
func (s *PresetStore) Load() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read presets: %w", err)
	}

	if err := toml.Unmarshal(data, s.file); err != nil {
		return fmt.Errorf("failed to parse presets: %w", err)
	}

	if s.file.Presets == nil {
		s.file.Presets = make(map[string]Preset)
	}
	if s.file.Version == 0 {
		s.file.Version = 1
	}

	return nil
}

// Save writes the preset file, creating the directory when needed.
func (s *PresetStore) Save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create preset directory: %w", err)
	}

	data, err := toml.Marshal(s.file)
	if err != nil {
		return fmt.Errorf("failed to marshal presets: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write presets: %w", err)
	}

	return nil
}

// Add inserts a new preset and persists the store.
func (s *PresetStore) Add(p Preset) error {
	if p.ID == "" {
		return fmt.Errorf("preset ID cannot be empty")
	}
	if p.Name == "" {
		p.Name = p.ID
	}

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	s.file.Presets[p.ID] = p
	return s.Save()
}

// Update replaces an existing preset, preserving its identity and
// creation time.
func (s *PresetStore) Update(id string, updates Preset) error {
	existing, exists := s.file.Presets[id]
	if !exists {
		return fmt.Errorf("preset %s not found", id)
	}

	updates.ID = existing.ID
	updates.CreatedAt = existing.CreatedAt
	updates.UpdatedAt = time.Now()
	if updates.Name == "" {
		updates.Name = existing.Name
	}

	s.file.Presets[id] = updates
	return s.Save()
}

// Remove deletes a preset and persists the store.
func (s *PresetStore) Remove(id string) error {
	if _, exists := s.file.Presets[id]; !exists {
		return fmt.Errorf("preset %s not found", id)
	}

	delete(s.file.Presets, id)
	return s.Save()
}

// Get retrieves a preset by ID.
func (s *PresetStore) Get(id string) (Preset, bool) {
	p, exists := s.file.Presets[id]
	return p, exists
}

// All returns every saved preset.
func (s *PresetStore) All() map[string]Preset {
	return s.file.Presets
}
