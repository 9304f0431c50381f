// Package logging wires log/slog to stdout, the systemd journal, and an
// in-memory ring buffer that feeds the SSE log stream. Each subsystem
// gets its own module logger whose level can be changed at runtime,
// which is what the config watcher uses for live level reloads.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Logger is the subset of *slog.Logger the rest of the code depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mu             sync.RWMutex
	globalConfig   Config
	initialized    bool
	moduleLoggers  = make(map[string]*slog.Logger)
	moduleLevels   = make(map[string]*slog.LevelVar)
	globalLevelVar = &slog.LevelVar{}
	logBuffer      *RingBuffer
	logCallback    LogCallback
)

// Initialize sets up the logging system and recreates any module loggers
// that were handed out before configuration was loaded.
func Initialize(config Config) {
	mu.Lock()
	defer mu.Unlock()

	globalConfig = config
	initialized = true
	logBuffer = NewRingBuffer(defaultBufferSize)
	globalLevelVar.Set(parseLevel(config.Level, slog.LevelInfo))

	for module, levelVar := range moduleLevels {
		levelVar.Set(moduleLevel(config, module))
		moduleLoggers[module] = slog.New(newHandler(config.Format, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(newHandler(config.Format, globalLevelVar)))
}

// GetLogger returns the logger for a module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	if logger, ok := moduleLoggers[module]; ok {
		mu.RUnlock()
		return logger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if logger, ok := moduleLoggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if initialized {
		levelVar.Set(moduleLevel(globalConfig, module))
		format = globalConfig.Format
	} else {
		levelVar.Set(slog.LevelInfo)
	}

	logger := slog.New(newHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevels[module] = levelVar
	return logger
}

// ApplyLevels updates the global and per-module log levels at runtime.
// Called by the config watcher when the config file changes on disk.
func ApplyLevels(config Config) {
	mu.Lock()
	defer mu.Unlock()

	globalConfig.Level = config.Level
	globalConfig.Modules = config.Modules
	globalLevelVar.Set(parseLevel(config.Level, slog.LevelInfo))
	for module, levelVar := range moduleLevels {
		levelVar.Set(moduleLevel(globalConfig, module))
	}
}

// GetBuffer returns the ring buffer holding recent log entries.
func GetBuffer() *RingBuffer {
	mu.RLock()
	defer mu.RUnlock()
	return logBuffer
}

// SetLogCallback registers a callback invoked for every buffered entry.
// Used to publish log events to the event bus without an import cycle.
func SetLogCallback(callback LogCallback) {
	mu.Lock()
	defer mu.Unlock()
	logCallback = callback
}

func moduleLevel(config Config, module string) slog.Level {
	level := parseLevel(config.Level, slog.LevelInfo)
	if s, ok := config.Modules[module]; ok {
		level = parseLevel(s, level)
	}
	return level
}

// newHandler builds the handler chain: stdout (text or json), journal
// when running under systemd, and the ring buffer.
func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	handlers := []slog.Handler{stdout}
	if journalAvailable() {
		handlers = append(handlers, newJournalHandler(level))
	}
	handlers = append(handlers, newBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return newMultiHandler(handlers...)
}

func parseLevel(level string, fallback slog.Level) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
