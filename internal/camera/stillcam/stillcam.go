// Package stillcam serves frames from an image file on disk. The file is
// re-read on every Frame call so an external grabber can keep overwriting it.
package stillcam

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/lehigh-university-libraries/attendance/internal/camera"
)

var errStopped = errors.New("stillcam: stream stopped")

// Camera opens streams backed by a single image path
type Camera struct {
	Path string
}

func New(path string) *Camera {
	return &Camera{Path: path}
}

func (c *Camera) Open(ctx context.Context, constraints camera.Constraints) (camera.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := decodeFile(c.Path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	slog.Info("Still image camera opened",
		"path", c.Path,
		"width", bounds.Dx(),
		"height", bounds.Dy(),
		"ideal_width", constraints.Width,
		"ideal_height", constraints.Height)

	return &stream{
		path:   c.Path,
		width:  bounds.Dx(),
		height: bounds.Dy(),
		last:   img,
	}, nil
}

type stream struct {
	path    string
	width   int
	height  int
	mu      sync.Mutex
	last    image.Image
	stopped bool
}

func (s *stream) Dimensions() (int, int) {
	return s.width, s.height
}

func (s *stream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, errStopped
	}

	img, err := decodeFile(s.path)
	if err != nil {
		// Keep serving the previous frame while the writer replaces the file
		slog.Warn("Failed to refresh still frame, reusing previous", "path", s.path, "error", err)
		return s.last, nil
	}
	s.last = img
	return img, nil
}

func (s *stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.last = nil
	return nil
}

func decodeFile(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to open %s: %w", path, camera.ErrDeviceNotFound)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("failed to open %s: %w", path, camera.ErrPermissionDenied)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}
