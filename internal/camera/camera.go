package camera

import (
	"context"
	"errors"
	"image"
	"strings"
)

var (
	// ErrPermissionDenied means the platform refused access to the device
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrDeviceNotFound means no capture device is available
	ErrDeviceNotFound = errors.New("camera not found")
)

// FacingMode selects which camera to prefer on devices with several
type FacingMode string

const (
	FacingUser        FacingMode = "user"
	FacingEnvironment FacingMode = "environment"
)

// Constraints describes the requested video stream. Width and Height are
// ideal values; the negotiated size is reported by Stream.Dimensions.
type Constraints struct {
	Width  int
	Height int
	Facing FacingMode
}

// DefaultConstraints requests a 640x480 front-facing stream without audio
func DefaultConstraints() Constraints {
	return Constraints{
		Width:  640,
		Height: 480,
		Facing: FacingUser,
	}
}

// Camera acquires video streams from a capture device
type Camera interface {
	// Open blocks until the stream delivers metadata (negotiated size) or fails.
	Open(ctx context.Context, constraints Constraints) (Stream, error)
}

// Stream is an exclusively owned, running video stream
type Stream interface {
	// Dimensions returns the negotiated frame size
	Dimensions() (width, height int)
	// Frame returns the most recent video frame
	Frame() (image.Image, error)
	// Stop releases every track of the stream. Safe to call more than once.
	Stop() error
}

// Kind classifies a camera failure for the user-facing message
type Kind int

const (
	KindOther Kind = iota
	KindPermissionDenied
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotFound:
		return "not_found"
	default:
		return "other"
	}
}

// KindOf maps an error returned by Open onto a failure kind
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindOther
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrDeviceNotFound):
		return KindNotFound
	default:
		return KindOther
	}
}

// ClassifyMessage turns a driver or pipeline error text into one of the
// sentinel errors, or nil when the text matches neither.
func ClassifyMessage(msg string) error {
	msg = strings.ToLower(msg)

	for _, kw := range []string{"permission denied", "not allowed", "eacces", "operation not permitted"} {
		if strings.Contains(msg, kw) {
			return ErrPermissionDenied
		}
	}

	for _, kw := range []string{
		"no such file",
		"no such device",
		"cannot identify device",
		"not found",
		"does not exist",
		"enodev",
		"enoent",
	} {
		if strings.Contains(msg, kw) {
			return ErrDeviceNotFound
		}
	}

	return nil
}
