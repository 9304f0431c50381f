package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tapeworks/tapedeck/internal/logging"
	"github.com/tapeworks/tapedeck/internal/updater"
	"github.com/tapeworks/tapedeck/internal/version"
)

// CreateUpdateCmd creates the update command with its subcommands.
func CreateUpdateCmd() *cobra.Command {
	var repository string
	var prerelease bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for and apply binary updates",
	}

	newService := func() *updater.Service {
		logging.Initialize(logging.Config{Level: "info", Format: "text"})
		logger := logging.GetLogger("updater")

		svc, err := updater.NewService(&updater.Options{
			Repository: repository,
			Prerelease: prerelease,
		})
		if err != nil {
			logger.Error("Failed to initialize updater", "error", err)
			os.Exit(1)
		}
		if !svc.IsEnabled() {
			logger.Error("Updater disabled", "reason", svc.DisabledReason())
			os.Exit(1)
		}
		return svc
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Check whether a newer release is available",
		Run: func(cmd *cobra.Command, _ []string) {
			svc := newService()
			info, err := svc.CheckForUpdate(context.Background())
			if err != nil {
				fmt.Fprintln(os.Stderr, "update check failed:", err)
				os.Exit(1)
			}
			if !info.UpdateAvailable {
				fmt.Printf("already up to date (%s)\n", info.CurrentVersion)
				return
			}
			fmt.Printf("update available: %s -> %s\n", info.CurrentVersion, info.LatestVersion)
			if info.ReleaseURL != "" {
				fmt.Println(info.ReleaseURL)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "apply",
		Short: "Download and apply the latest release",
		Run: func(cmd *cobra.Command, _ []string) {
			svc := newService()
			if err := svc.ApplyUpdate(context.Background()); err != nil {
				fmt.Fprintln(os.Stderr, "update failed:", err)
				os.Exit(1)
			}
			fmt.Println("update applied")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rollback",
		Short: "Revert to the previously backed up binary",
		Run: func(cmd *cobra.Command, _ []string) {
			svc := newService()
			if err := svc.Rollback(context.Background()); err != nil {
				fmt.Fprintln(os.Stderr, "rollback failed:", err)
				os.Exit(1)
			}
			fmt.Println("rollback complete")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Println(version.String())
		},
	})

	cmd.PersistentFlags().StringVar(&repository, "repo", "tapeworks/tapedeck", "GitHub repository to update from")
	cmd.PersistentFlags().BoolVar(&prerelease, "prerelease", false, "Include prerelease versions")

	return cmd
}
