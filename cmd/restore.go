package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tapeworks/tapedeck/internal/events"
	"github.com/tapeworks/tapedeck/internal/ffmpeg"
	"github.com/tapeworks/tapedeck/internal/logging"
	"github.com/tapeworks/tapedeck/internal/restore"
)

// CreateRestoreCmd creates the restore command.
func CreateRestoreCmd() *cobra.Command {
	var codec string
	var crf int
	var preset string
	var audio string
	var scriptFile string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "restore [input] [output]",
		Short: "Run a restoration pipeline to completion",
		Long: `Runs the frame generator and encoder pipeline for one tape, printing progress ` +
			`until the run finishes. Interrupt with Ctrl-C for a graceful, bounded shutdown.`,
		Args: cobra.ExactArgs(2),
		Run: func(_ *cobra.Command, args []string) {
			input, output := args[0], args[1]

			loggingConfig := logging.Config{Level: "info", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("restore")

			tc, err := ffmpeg.LookupToolchain()
			if err != nil {
				logger.Error("Toolchain check failed", "error", err)
				os.Exit(1)
			}

			script := ""
			if scriptFile != "" {
				data, readErr := os.ReadFile(scriptFile)
				if readErr != nil {
					logger.Error("Failed to read script file", "error", readErr)
					os.Exit(1)
				}
				script = restore.RenderScript(string(data), input)
			} else {
				script = restore.DefaultScript(input)
			}

			prober := ffmpeg.NewProber(tc.FFprobe)
			probe, err := prober.Probe(context.Background(), input)
			if err != nil {
				logger.Error("Failed to probe input", "error", err)
				os.Exit(1)
			}
			totalFrames := probe.TotalFrames()

			bus := events.New()
			bus.Subscribe(func(ev events.RestoreProgressEvent) {
				if ev.TotalFrames > 0 {
					fmt.Printf("\rframe %d/%d  %.1f fps", ev.Frame, ev.TotalFrames, ev.FPS)
				} else {
					fmt.Printf("\rframe %d  %.1f fps", ev.Frame, ev.FPS)
				}
			})

			orch := restore.New(ffmpeg.NewCommandBuilder(tc), bus, logger)
			job := restore.Job{
				SessionID: "cli",
				Script:    script,
				Output:    output,
				Options: ffmpeg.EncodingOptions{
					Codec:  codec,
					CRF:    crf,
					Preset: preset,
					Audio:  audio,
				},
				TotalFrames: totalFrames,
			}

			if err := orch.Start(job); err != nil {
				logger.Error("Failed to start pipeline", "error", err)
				os.Exit(1)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Println()
				logger.Info("Interrupt received, stopping pipeline")
				orch.RequestStop()
			}()

			result := <-orch.Done()
			fmt.Println()
			if result.Err != nil {
				logger.Error("Restoration failed", "error", result.Err)
				os.Exit(1)
			}
			logger.Info("Restoration finished", "frames", result.Frames, "output", output)
		},
	}

	cmd.Flags().StringVar(&codec, "codec", "", "Encoder codec name (default "+ffmpeg.DefaultCodec+")")
	cmd.Flags().IntVar(&crf, "crf", 0, "Constant rate factor (default 18)")
	cmd.Flags().StringVar(&preset, "preset", "", "Encoder speed preset (default slow)")
	cmd.Flags().StringVar(&audio, "audio", "", "Audio handling: copy, none, or a codec name")
	cmd.Flags().StringVar(&scriptFile, "script", "", "Restoration script file; {input} is replaced with the input path")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}
