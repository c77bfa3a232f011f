package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func detectCommand(app *App) *cobra.Command {
	var (
		outputDir string
		csvPath   string
		noFrames  bool
	)

	cmd := &cobra.Command{
		Use:   "detect [image...]",
		Short: "Detect and reconcile plates in image files",
		Long:  `Runs every image through detection, registry reconciliation and alerting, one frame at a time, then appends the detections to the CSV report.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("output") {
				app.cfg.Output.Dir = outputDir
			}
			if cmd.Flags().Changed("csv") {
				app.cfg.Output.CSVPath = csvPath
			}
			if noFrames {
				app.cfg.Output.SaveFrames = false
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// a missing registry is fatal here, there is nothing to reconcile against
			if _, err := app.plates.ReloadRegistry(ctx); err != nil {
				return err
			}

			summary, err := app.detectionService("cli", nil).ProcessFiles(ctx, args)
			if err != nil {
				return err
			}

			app.log.Info().
				Int("frames", summary.Frames).
				Int("skipped", summary.Skipped).
				Int("failed", summary.Failed).
				Int("detections", len(summary.Rows)).
				Int("alerts", summary.Alerts).
				Str("csv", app.cfg.Output.CSVPath).
				Msg("detection run finished")
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for annotated frames")
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV report path")
	cmd.Flags().BoolVar(&noFrames, "no-frames", false, "Do not save annotated frames")
	return cmd
}
