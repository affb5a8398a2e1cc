package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/attendance/internal/config"
	"github.com/lehigh-university-libraries/attendance/internal/models"
	"github.com/spf13/cobra"
)

func newCaptureCmd(flags *globalFlags) *cobra.Command {
	var userID string
	var userName string
	var stillImage string

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Mark attendance once from the terminal",
		Long: `Opens the camera, captures one frame and submits it for the given user.

Status updates are printed as they happen; the command fails when the
attendance could not be marked.`,
		Example: `  # Mark attendance with the default webcam
  attendance capture --id S123 --name "Ada Lovelace"

  # Use a still image as the camera
  attendance capture --id S123 --name "Ada Lovelace" --still ./ada.jpg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if stillImage != "" {
				cfg.Camera.Source = config.CameraStill
				cfg.Camera.StillImage = stillImage
			}

			out := cmd.OutOrStdout()
			tr, err := newTracker(cfg, func(s models.Status) {
				fmt.Fprintf(out, "[%s] %s\n", s.Kind, s.Message)
			})
			if err != nil {
				return err
			}
			defer tr.Close()

			if err := tr.StartCamera(cmd.Context()); err != nil {
				return err
			}
			tr.SetIdentity(userID, userName)

			if err := tr.Capture(cmd.Context()); err != nil {
				return fmt.Errorf("attendance not marked: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "id", "", "User identifier (required)")
	cmd.Flags().StringVar(&userName, "name", "", "User display name (required)")
	cmd.Flags().StringVar(&stillImage, "still", "", "Use this image file instead of a webcam")

	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
