package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
)

// DefaultQuality matches a 0.8 lossy encoder setting
const DefaultQuality = 80

const dataURLPrefix = "data:image/jpeg;base64,"

// Surface is the offscreen drawing target a video frame is snapshotted onto.
// It is sized once from the negotiated stream dimensions.
type Surface struct {
	width  int
	height int
	canvas *image.RGBA
}

func NewSurface(width, height int) *Surface {
	s := &Surface{}
	s.Resize(width, height)
	return s
}

// Resize reallocates the surface; a no-op when the size is unchanged
func (s *Surface) Resize(width, height int) {
	if s.canvas != nil && width == s.width && height == s.height {
		return
	}
	s.width = width
	s.height = height
	s.canvas = image.NewRGBA(image.Rect(0, 0, width, height))
}

func (s *Surface) Size() (int, int) {
	return s.width, s.height
}

// Draw copies frame onto the surface, anchored at the origin. Parts of the
// frame outside the surface are clipped.
func (s *Surface) Draw(frame image.Image) error {
	if s.width <= 0 || s.height <= 0 {
		return fmt.Errorf("capture surface has no size (%dx%d)", s.width, s.height)
	}
	if frame == nil {
		return fmt.Errorf("no frame to draw")
	}
	draw.Draw(s.canvas, s.canvas.Bounds(), frame, frame.Bounds().Min, draw.Src)
	return nil
}

// JPEG encodes the surface contents
func (s *Surface) JPEG(quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, s.canvas, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL encodes the surface as a base64 JPEG data URL
func (s *Surface) DataURL(quality int) (string, error) {
	data, err := s.JPEG(quality)
	if err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(data), nil
}

// Snapshot draws frame and returns it as a data URL together with the raw JPEG
func (s *Surface) Snapshot(frame image.Image, quality int) (*Frame, error) {
	if err := s.Draw(frame); err != nil {
		return nil, err
	}
	data, err := s.JPEG(quality)
	if err != nil {
		return nil, err
	}
	return &Frame{
		JPEG:    data,
		DataURL: dataURLPrefix + base64.StdEncoding.EncodeToString(data),
		Width:   s.width,
		Height:  s.height,
	}, nil
}

// Frame is the frame-capture artifact handed to recognition and submission
type Frame struct {
	JPEG    []byte
	DataURL string
	Width   int
	Height  int
}

// DecodeDataURL returns the JPEG bytes of a data URL produced by DataURL
func DecodeDataURL(url string) ([]byte, error) {
	if len(url) < len(dataURLPrefix) || url[:len(dataURLPrefix)] != dataURLPrefix {
		return nil, fmt.Errorf("not a JPEG data URL")
	}
	data, err := base64.StdEncoding.DecodeString(url[len(dataURLPrefix):])
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL: %w", err)
	}
	return data, nil
}
