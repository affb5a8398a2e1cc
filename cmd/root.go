package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/attendance/internal/config"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	logLevel   string
	backendURL string
	configPath string
}

func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "attendance",
		Short: "Camera-based attendance kiosk",
		Long: `Attendance captures a still frame from a webcam, checks it for a face and
submits it together with the user's ID and name to an attendance service.

It runs as a local kiosk web UI (serve) or straight from the terminal (capture, history).`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return setupLogger(flags.logLevel)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.backendURL, "backend", "", "Attendance service base URL (overrides ATTENDANCE_BACKEND_URL)")
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to a YAML config file")

	// Add subcommands
	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newCaptureCmd(flags))
	cmd.AddCommand(newHistoryCmd(flags))

	return cmd
}

func setupLogger(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}

// loadConfig layers the flags over file and environment configuration
func (f *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.backendURL != "" {
		cfg.BackendURL = f.backendURL
	}
	return cfg, nil
}
