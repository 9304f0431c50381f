package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tapeworks/tapedeck/internal/capture"
	"github.com/tapeworks/tapedeck/internal/devices"
	"github.com/tapeworks/tapedeck/internal/events"
	"github.com/tapeworks/tapedeck/internal/ffmpeg"
	"github.com/tapeworks/tapedeck/internal/logging"
)

// CreateCaptureCmd creates the capture command.
func CreateCaptureCmd() *cobra.Command {
	var codec string
	var resolution string
	var framerate string
	var pixelFormat string
	var videoInput string
	var audioInput string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "capture [device] [output]",
		Short: "Capture a tape from a deck",
		Long: `Runs a lossless capture from the named analog or DV device until the tape ` +
			`ends or Ctrl-C is pressed. DV sources are stream-copied into an AVI container.`,
		Args: cobra.ExactArgs(2),
		Run: func(_ *cobra.Command, args []string) {
			deviceName, output := args[0], args[1]

			loggingConfig := logging.Config{Level: "info", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("capture")

			tc, err := ffmpeg.LookupCaptureToolchain()
			if err != nil {
				logger.Error("Toolchain check failed", "error", err)
				os.Exit(1)
			}

			detector := devices.NewDetector(tc.FFmpeg, logging.GetLogger("devices"))
			dev, ok := devices.ByName(detector.FindDevices(context.Background()), deviceName)
			if !ok {
				logger.Error("Capture device not found", "device", deviceName)
				os.Exit(1)
			}

			orch := capture.New(ffmpeg.NewCommandBuilder(tc), events.New(), logger)
			job := capture.Job{
				SessionID: "cli",
				Device:    dev,
				Settings: ffmpeg.CaptureSettings{
					Codec:       codec,
					Resolution:  resolution,
					Framerate:   framerate,
					PixelFormat: pixelFormat,
					VideoInput:  videoInput,
					AudioInput:  audioInput,
				},
				Output: output,
			}

			if err := orch.Start(job); err != nil {
				logger.Error("Failed to start capture", "error", err)
				os.Exit(1)
			}
			logger.Info("Capture running, press Ctrl-C to stop", "device", dev.Name, "output", output)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Println()
				logger.Info("Interrupt received, stopping capture")
				orch.RequestStop()
			}()

			// The capture process only reports on stderr, so progress is
			// polled from the session snapshot
			progressDone := make(chan struct{})
			go func() {
				ticker := time.NewTicker(time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-progressDone:
						return
					case <-ticker.C:
						st := orch.Status()
						fmt.Printf("\rframe %d  %.1f fps", st.Frame, st.FPS)
					}
				}
			}()

			result := <-orch.Done()
			close(progressDone)
			fmt.Println()
			if result.Err != nil {
				logger.Error("Capture failed", "error", result.Err)
				os.Exit(1)
			}
			logger.Info("Capture finished", "frames", result.Frames, "output", output)
		},
	}

	cmd.Flags().StringVar(&codec, "codec", "", "Lossless capture codec (default HuffYUV)")
	cmd.Flags().StringVar(&resolution, "resolution", "", "Capture resolution (default 720x480)")
	cmd.Flags().StringVar(&framerate, "framerate", "", "Capture framerate (default 29.97)")
	cmd.Flags().StringVar(&pixelFormat, "pixel-format", "", "Capture pixel format (default uyvy422)")
	cmd.Flags().StringVar(&videoInput, "video-input", "", "Physical video input jack, e.g. 'S-Video (Y/C)'")
	cmd.Flags().StringVar(&audioInput, "audio-input", "", "Physical audio input source, e.g. 'Line In'")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}
