package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/attendance/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the kiosk web interface",
		Long: `Starts the attendance kiosk on the specified port.

The page shows the camera preview, takes the user's ID and name and marks
attendance against the configured attendance service.`,
		Example: `  # Start kiosk on the default port 8888
  attendance serve

  # Use a still image instead of a webcam
  ATTENDANCE_CAMERA=still ATTENDANCE_STILL_IMAGE=./me.jpg attendance serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			tr, err := newTracker(cfg, nil)
			if err != nil {
				return err
			}
			defer tr.Close()

			// history is best effort, like the page load it replaces
			go func() {
				if err := tr.LoadRecords(cmd.Context()); err != nil {
					slog.Warn("Starting with empty attendance history", "err", err)
				}
			}()

			addr := ":" + cfg.Port
			server := &http.Server{
				Addr:    addr,
				Handler: handlers.NewRouter(handlers.New(tr)),
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Attendance kiosk available", "addr", addr, "url", "http://localhost"+addr, "backend", cfg.BackendURL)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on (overrides ATTENDANCE_PORT)")

	return cmd
}
