// Package cmd holds the one-shot cobra subcommands: device listing,
// headless restore and capture runs, and self-update.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tapeworks/tapedeck/internal/devices"
	"github.com/tapeworks/tapedeck/internal/ffmpeg"
	"github.com/tapeworks/tapedeck/internal/logging"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Long: `Enumerates video capture devices through the ffmpeg DirectShow backend. ` +
			`Falls back to a mock device list when no capture backend is available.`,
		Run: func(cmd *cobra.Command, _ []string) {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})
			logger := logging.GetLogger("devices")

			ffmpegPath := "ffmpeg"
			if tc, err := ffmpeg.LookupCaptureToolchain(); err == nil {
				ffmpegPath = tc.FFmpeg
			}

			detector := devices.NewDetector(ffmpegPath, logger)
			devs, mocked := detector.Discover(context.Background())

			if asJSON {
				out := struct {
					Devices []devices.CaptureDevice `json:"devices"`
					Mocked  bool                    `json:"mocked"`
				}{devs, mocked}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					fmt.Fprintln(os.Stderr, "encoding device list:", err)
					os.Exit(1)
				}
				return
			}

			if mocked {
				fmt.Fprintln(cmd.OutOrStdout(), "No capture backend available, showing mock devices:")
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tAUDIO")
			for _, d := range devs {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.Type, d.AudioSelector)
			}
			w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output device list as JSON")

	return cmd
}
