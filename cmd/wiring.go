package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/attendance/internal/backend"
	"github.com/lehigh-university-libraries/attendance/internal/camera"
	"github.com/lehigh-university-libraries/attendance/internal/camera/gstcam"
	"github.com/lehigh-university-libraries/attendance/internal/camera/stillcam"
	"github.com/lehigh-university-libraries/attendance/internal/config"
	"github.com/lehigh-university-libraries/attendance/internal/models"
	"github.com/lehigh-university-libraries/attendance/internal/recognition"
	"github.com/lehigh-university-libraries/attendance/internal/tracker"
)

func newCamera(cfg config.CameraConfig) (camera.Camera, error) {
	switch cfg.Source {
	case config.CameraV4L2:
		return gstcam.New(cfg.Device), nil
	case config.CameraStill:
		return stillcam.New(cfg.StillImage), nil
	default:
		return nil, fmt.Errorf("unsupported camera source: %s", cfg.Source)
	}
}

// newTracker builds a session controller from validated configuration
func newTracker(cfg *config.Config, onStatus func(models.Status)) (*tracker.Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cam, err := newCamera(cfg.Camera)
	if err != nil {
		return nil, err
	}

	recognizer, err := recognition.New(cfg.Recognition)
	if err != nil {
		return nil, err
	}

	constraints := camera.DefaultConstraints()
	constraints.Width = cfg.Camera.Width
	constraints.Height = cfg.Camera.Height

	return tracker.New(tracker.Options{
		Camera:      cam,
		Recognizer:  recognizer,
		Backend:     backend.NewClient(cfg.BackendURL, cfg.HTTPTimeout),
		Constraints: constraints,
		OnStatus:    onStatus,
	}), nil
}
