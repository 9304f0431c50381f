package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/tapeworks/tapedeck/cmd"
	"github.com/tapeworks/tapedeck/internal/api"
	"github.com/tapeworks/tapedeck/internal/capture"
	"github.com/tapeworks/tapedeck/internal/config"
	"github.com/tapeworks/tapedeck/internal/devices"
	"github.com/tapeworks/tapedeck/internal/events"
	"github.com/tapeworks/tapedeck/internal/ffmpeg"
	"github.com/tapeworks/tapedeck/internal/logging"
	"github.com/tapeworks/tapedeck/internal/metrics"
	"github.com/tapeworks/tapedeck/internal/restore"
	"github.com/tapeworks/tapedeck/internal/updater"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8070" toml:"server.port" env:"SERVER_PORT"`

	// Session settings
	PresetsFile string `help:"Restoration preset definitions file" default:"presets.toml" toml:"presets.config_file" env:"PRESETS_CONFIG_FILE"`
	ScriptDir   string `help:"Directory for session script files (empty = OS temp dir)" default:"" toml:"restore.script_dir" env:"RESTORE_SCRIPT_DIR"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Update settings
	UpdateRepository string `help:"GitHub repository for self-update" default:"tapeworks/tapedeck" toml:"update.repository" env:"UPDATE_REPOSITORY"`
	UpdatePrerelease bool   `help:"Include prerelease versions in update checks" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingRestore string `help:"Restore pipeline logging level" default:"info" toml:"logging.restore" env:"LOGGING_RESTORE"`
	LoggingCapture string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingDevices string `help:"Devices logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"restore": opts.LoggingRestore,
				"capture": opts.LoggingCapture,
				"devices": opts.LoggingDevices,
				"api":     opts.LoggingAPI,
			},
		})
		logger := logging.GetLogger("main")

		// Event bus carries session state, progress, and log events
		eventBus := events.New()

		// Bridge buffered log entries onto the bus for the SSE log stream
		var logSeq atomic.Uint64
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        logSeq.Add(1),
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		// Prometheus gauges follow bus events
		recorder := metrics.NewRecorder(eventBus)

		// The node stays serviceable without the external tools: device
		// listing falls back to mocks and session starts report spawn
		// errors. Bare names are good enough when lookup fails.
		toolchain, tcErr := ffmpeg.LookupToolchain()
		if tcErr != nil {
			logger.Warn("Toolchain incomplete, sessions may fail to start", "error", tcErr)
			if toolchain.FFmpeg == "" {
				toolchain.FFmpeg = "ffmpeg"
			}
			if toolchain.FFprobe == "" {
				toolchain.FFprobe = "ffprobe"
			}
			if toolchain.VSPipe == "" {
				toolchain.VSPipe = "vspipe"
			}
		}
		builder := ffmpeg.NewCommandBuilder(toolchain)

		presets := config.NewPresetStore(opts.PresetsFile)
		if loadErr := presets.Load(); loadErr != nil {
			logger.Warn("Failed to load presets", "error", loadErr, "file", opts.PresetsFile)
		}

		updateService, svcErr := updater.NewService(&updater.Options{
			Repository: opts.UpdateRepository,
			Prerelease: opts.UpdatePrerelease,
		})
		if svcErr != nil {
			logger.Warn("Updater unavailable", "error", svcErr)
		}

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Bus:               eventBus,
			Restore:           restore.New(builder, eventBus, logging.GetLogger("restore")),
			Capture:           capture.New(builder, eventBus, logging.GetLogger("capture")),
			Detector:          devices.NewDetector(toolchain.FFmpeg, logging.GetLogger("devices")),
			Prober:            ffmpeg.NewProber(toolchain.FFprobe),
			Presets:           presets,
			Updater:           updateService,
			ScriptDir:         opts.ScriptDir,
			PrometheusHandler: metrics.HTTPHandler(),
		})

		// Re-apply logging levels when the config file changes on disk
		watcher := config.NewReloadWatcher(opts.Config, logging.ApplyLevels, logger)

		hooks.OnStart(func() {
			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Config watcher unavailable, level reload disabled", "error", watchErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			watcher.Stop()
			recorder.Close()
		})
	})

	cli.Root().Use = "tapedeck"
	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateRestoreCmd())
	cli.Root().AddCommand(cmd.CreateCaptureCmd())
	cli.Root().AddCommand(cmd.CreateUpdateCmd())

	cli.Run()
}
