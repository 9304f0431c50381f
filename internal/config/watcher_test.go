package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tapeworks/tapedeck/internal/logging"
)

func watcherLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startReloadWatcher(t *testing.T, path string, apply func(logging.Config)) *ReloadWatcher {
	t.Helper()
	w := NewReloadWatcher(path, apply, watcherLogger(), WithReloadDebounce(50*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	// let the directory watch attach before the test writes
	time.Sleep(100 * time.Millisecond)
	return w
}

func waitForReload(t *testing.T, ch <-chan logging.Config) logging.Config {
	t.Helper()
	select {
	case cfg := <-ch:
		return cfg
	case <-time.After(3 * time.Second):
		t.Fatal("no reload delivered")
		return logging.Config{}
	}
}

func TestReloadOnEdit(t *testing.T) {
	path := writeDeckConfig(t, "[logging]\nlevel = \"info\"\n")

	reloads := make(chan logging.Config, 4)
	startReloadWatcher(t, path, func(cfg logging.Config) { reloads <- cfg })

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\nrestore = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := waitForReload(t, reloads)
	if cfg.Level != "debug" {
		t.Errorf("reloaded level = %q, want debug", cfg.Level)
	}
	if cfg.Modules["restore"] != "debug" {
		t.Errorf("module levels = %v, want restore=debug", cfg.Modules)
	}
}

func TestReloadOnAtomicReplace(t *testing.T) {
	// editors and provisioning tools write a sibling file and rename it
	// over the config, which detaches a file-level watch
	path := writeDeckConfig(t, "[logging]\nlevel = \"info\"\n")

	reloads := make(chan logging.Config, 4)
	startReloadWatcher(t, path, func(cfg logging.Config) { reloads <- cfg })

	staging := filepath.Join(filepath.Dir(path), "config.toml.new")
	if err := os.WriteFile(staging, []byte("[logging]\nlevel = \"warn\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(staging, path); err != nil {
		t.Fatal(err)
	}

	if cfg := waitForReload(t, reloads); cfg.Level != "warn" {
		t.Errorf("level after replace = %q, want warn", cfg.Level)
	}

	// the re-created file must still be followed
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"error\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if cfg := waitForReload(t, reloads); cfg.Level != "error" {
		t.Errorf("level after second edit = %q, want error", cfg.Level)
	}
}

func TestReloadDebouncesBursts(t *testing.T) {
	path := writeDeckConfig(t, "[logging]\nlevel = \"info\"\n")

	var count atomic.Int32
	last := make(chan logging.Config, 16)
	w := NewReloadWatcher(path, func(cfg logging.Config) {
		count.Add(1)
		last <- cfg
	}, watcherLogger(), WithReloadDebounce(200*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	time.Sleep(100 * time.Millisecond)

	levels := []string{"debug", "warn", "error"}
	for _, level := range levels {
		if err := os.WriteFile(path, []byte("[logging]\nlevel = \""+level+"\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	if cfg := waitForReload(t, last); cfg.Level != "error" {
		t.Errorf("settled level = %q, want the final write", cfg.Level)
	}
	time.Sleep(300 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Errorf("reloads = %d, want the burst collapsed to 1", got)
	}
}

func TestReloadIgnoresSiblingFiles(t *testing.T) {
	path := writeDeckConfig(t, "[logging]\nlevel = \"info\"\n")

	reloads := make(chan logging.Config, 4)
	startReloadWatcher(t, path, func(cfg logging.Config) { reloads <- cfg })

	sibling := filepath.Join(filepath.Dir(path), "presets.toml")
	if err := os.WriteFile(sibling, []byte("noise = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloads:
		t.Fatal("sibling file write must not trigger a reload")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestReloadStopsCleanly(t *testing.T) {
	path := writeDeckConfig(t, "[logging]\nlevel = \"info\"\n")

	var count atomic.Int32
	w := NewReloadWatcher(path, func(logging.Config) { count.Add(1) },
		watcherLogger(), WithReloadDebounce(50*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	w.Stop()
	w.Stop() // second stop is harmless

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if got := count.Load(); got != 0 {
		t.Errorf("reloads after Stop = %d, want 0", got)
	}
}

func TestReloadSurvivesUnparseableWrite(t *testing.T) {
	path := writeDeckConfig(t, "[logging]\nlevel = \"info\"\n")

	reloads := make(chan logging.Config, 4)
	startReloadWatcher(t, path, func(cfg logging.Config) { reloads <- cfg })

	if err := os.WriteFile(path, []byte("half-saved [["), 0o644); err != nil {
		t.Fatal(err)
	}
	// a broken file applies the defaults rather than stalling the watch
	if cfg := waitForReload(t, reloads); cfg.Level != "info" {
		t.Errorf("level for broken file = %q, want the default", cfg.Level)
	}

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if cfg := waitForReload(t, reloads); cfg.Level != "debug" {
		t.Errorf("level after repair = %q, want debug", cfg.Level)
	}
}
