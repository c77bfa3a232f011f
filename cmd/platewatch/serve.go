package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"platewatch/internal/annotate"
	httphandler "platewatch/internal/http"
)

const (
	shutdownTimeout = 10 * time.Second
	cleanupInterval = 24 * time.Hour
)

func serveCommand(app *App) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the detection pipeline and registry over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				app.cfg.HTTP.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := app.plates.ReloadRegistry(ctx); err != nil {
				return err
			}

			handler := httphandler.NewHandler(app.plates, app.detectionService("http", annotate.UniqueFrameName), app.log)
			router := httphandler.NewRouter(app.cfg, handler, app.promReg, app.log)

			srv := &http.Server{
				Addr:              ":" + app.cfg.HTTP.Port,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			if app.repo != nil && app.cfg.Events.RetentionDays > 0 {
				go runCleanup(ctx, app)
			}

			errCh := make(chan error, 1)
			go func() {
				app.log.Info().Str("addr", srv.Addr).Msg("http server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			app.log.Info().Msg("shutting down http server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "HTTP listen port")
	return cmd
}

func runCleanup(ctx context.Context, app *App) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		if _, err := app.plates.CleanupOldEvents(ctx, app.cfg.Events.RetentionDays); err != nil {
			app.log.Error().Err(err).Msg("event retention cleanup failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
