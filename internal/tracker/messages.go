package tracker

import (
	"errors"

	"github.com/lehigh-university-libraries/attendance/internal/backend"
	"github.com/lehigh-university-libraries/attendance/internal/camera"
	"github.com/lehigh-university-libraries/attendance/internal/recognition"
)

const (
	msgRequestingCamera = "Requesting camera access..."
	msgCameraReady      = "Camera ready - Fill in your details to mark attendance"
	msgCameraStopped    = "Camera stopped"
	msgCapturing        = "Capturing face... Please wait..."
	msgMarked           = "Attendance marked successfully!"
	msgNextAttendance   = "Ready for next attendance"
	msgCaptureCancelled = "Capture cancelled"

	msgNotRecognized   = "Face not recognized clearly"
	msgAlreadyMarked   = "Attendance already marked today"
	msgFaceMismatch    = "Face already linked to another ID"
	msgBackendError    = "Some backend error"
	msgConnection      = "Failed to connect to server"
	msgCaptureFallback = "Failed to mark attendance."

	msgCameraDenied   = "Camera error. Please allow access."
	msgCameraNotFound = "Camera error. No camera found."
	msgCameraOther    = "Camera error. Try again."
)

// cameraMessage turns a camera open failure into the status text
func cameraMessage(err error) string {
	switch camera.KindOf(err) {
	case camera.KindPermissionDenied:
		return msgCameraDenied
	case camera.KindNotFound:
		return msgCameraNotFound
	default:
		return msgCameraOther
	}
}

// captureMessage turns a capture failure into the status text
func captureMessage(err error) string {
	var mismatch *backend.FaceMismatchError
	var rejected *backend.RejectedError
	var transport *backend.TransportError

	switch {
	case errors.Is(err, recognition.ErrNotRecognized):
		return msgNotRecognized
	case errors.Is(err, backend.ErrAlreadyMarked):
		return msgAlreadyMarked
	case errors.As(err, &mismatch):
		if mismatch.Message != "" {
			return mismatch.Message
		}
		return msgFaceMismatch
	case errors.As(err, &rejected):
		if rejected.Message != "" {
			return rejected.Message
		}
		return msgBackendError
	case errors.As(err, &transport):
		return msgConnection
	default:
		return msgCaptureFallback
	}
}
