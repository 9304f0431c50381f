package config

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *PresetStore {
	t.Helper()
	return NewPresetStore(filepath.Join(t.TempDir(), "presets.toml"))
}

func TestPresetStoreLoadMissingFile(t *testing.T) {
	s := newTestStore(t)
	if err := s.Load(); err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if len(s.All()) != 0 {
		t.Errorf("expected empty store, got %d presets", len(s.All()))
	}
}

func TestPresetStoreAddAndRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.toml")
	s := NewPresetStore(path)

	err := s.Add(Preset{
		ID:     "vhs-default",
		Name:   "VHS Default",
		Codec:  "libx264 (H.264, CPU)",
		CRF:    18,
		Preset: "slow",
		Script: "# restoration chain\n",
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	// A fresh store reading the same file must see the preset
	s2 := NewPresetStore(path)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, ok := s2.Get("vhs-default")
	if !ok {
		t.Fatal("preset not found after reload")
	}
	if p.Codec != "libx264 (H.264, CPU)" || p.CRF != 18 {
		t.Errorf("preset round trip lost fields: %+v", p)
	}
	if p.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}
}

func TestPresetStoreAddValidation(t *testing.T) {
	s := newTestStore(t)
	if err := s.Add(Preset{}); err == nil {
		t.Error("Add with empty ID must fail")
	}
}

func TestPresetStoreUpdate(t *testing.T) {
	s := newTestStore(t)
	if err := s.Add(Preset{ID: "p1", Name: "Original", CRF: 18}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	created := s.file.Presets["p1"].CreatedAt

	if err := s.Update("p1", Preset{CRF: 22}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	p, _ := s.Get("p1")
	if p.CRF != 22 {
		t.Errorf("CRF = %d, want 22", p.CRF)
	}
	if p.Name != "Original" {
		t.Errorf("empty name should keep existing, got %q", p.Name)
	}
	if !p.CreatedAt.Equal(created) {
		t.Error("CreatedAt must survive updates")
	}

	if err := s.Update("missing", Preset{}); err == nil {
		t.Error("Update of unknown preset must fail")
	}
}

func TestPresetStoreRemove(t *testing.T) {
	s := newTestStore(t)
	if err := s.Add(Preset{ID: "p1"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Remove("p1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := s.Get("p1"); ok {
		t.Error("preset still present after Remove")
	}
	if err := s.Remove("p1"); err == nil {
		t.Error("Remove of unknown preset must fail")
	}
	if _, err := os.Stat(s.path); err != nil {
		t.Errorf("preset file missing after Remove: %v", err)
	}
}
