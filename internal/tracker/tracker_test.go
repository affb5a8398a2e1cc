package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/attendance/internal/backend"
	"github.com/lehigh-university-libraries/attendance/internal/camera"
	"github.com/lehigh-university-libraries/attendance/internal/models"
	"github.com/lehigh-university-libraries/attendance/internal/recognition"
)

type harness struct {
	tracker *Tracker
	camera  *fakeCamera
	backend *fakeBackend
	clock   *fakeClock
}

func newHarness(t *testing.T, recognizer recognition.Recognizer) *harness {
	t.Helper()
	if recognizer == nil {
		recognizer = &fakeRecognizer{result: &recognition.Result{Confidence: 0.971}}
	}
	h := &harness{
		camera:  &fakeCamera{},
		backend: &fakeBackend{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)},
		clock:   &fakeClock{},
	}
	h.tracker = New(Options{
		Camera:     h.camera,
		Recognizer: recognizer,
		Backend:    h.backend,
		AfterFunc:  h.clock.AfterFunc,
		Location:   time.UTC,
	})
	t.Cleanup(h.tracker.Close)
	return h
}

func (h *harness) ready(t *testing.T) {
	t.Helper()
	if err := h.tracker.StartCamera(context.Background()); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}
	h.tracker.SetIdentity("S123", "Ada Lovelace")
	if !h.tracker.State().Controls.Capture {
		t.Fatal("Expected capture to be enabled")
	}
}

func TestCaptureEligibility(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		userName string
		camera   bool
		expected bool
	}{
		{"all set", "S1", "Ada", true, true},
		{"padded fields", "  S1 ", " Ada ", true, true},
		{"blank id", "   ", "Ada", true, false},
		{"empty name", "S1", "", true, false},
		{"tab only name", "S1", "\t", true, false},
		{"camera off", "S1", "Ada", false, false},
		{"nothing", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			if tt.camera {
				if err := h.tracker.StartCamera(context.Background()); err != nil {
					t.Fatalf("StartCamera failed: %v", err)
				}
			}
			h.tracker.SetIdentity(tt.userID, tt.userName)

			if got := h.tracker.State().Controls.Capture; got != tt.expected {
				t.Errorf("Expected capture enabled=%v, got %v", tt.expected, got)
			}
			if got := h.tracker.Validate(); got != tt.expected {
				t.Errorf("Validate(): expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestStartCamera(t *testing.T) {
	h := newHarness(t, nil)

	var seen []models.Status
	h.tracker.onStatus = func(s models.Status) { seen = append(seen, s) }

	if err := h.tracker.StartCamera(context.Background()); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}

	state := h.tracker.State()
	if state.Status.Kind != models.StatusReady || state.Status.Message != "Camera ready - Fill in your details to mark attendance" {
		t.Errorf("Unexpected status %+v", state.Status)
	}
	if state.Width != 320 || state.Height != 240 {
		t.Errorf("Expected surface 320x240, got %dx%d", state.Width, state.Height)
	}
	if state.Controls.Start || !state.Controls.Stop || state.Controls.Capture {
		t.Errorf("Unexpected controls %+v", state.Controls)
	}
	if h.camera.constraints != camera.DefaultConstraints() {
		t.Errorf("Expected default constraints, got %+v", h.camera.constraints)
	}
	if len(seen) != 2 || seen[0].Kind != models.StatusRequesting || seen[0].Message != "Requesting camera access..." {
		t.Errorf("Expected requesting then ready, got %+v", seen)
	}
}

func TestStartCameraFailureMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"permission denied", fmt.Errorf("open /dev/video0: %w", camera.ErrPermissionDenied), "allow access"},
		{"not found", camera.ErrDeviceNotFound, "No camera found"},
		{"other", errors.New("device busy"), "Try again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.camera.err = tt.err

			err := h.tracker.StartCamera(context.Background())
			if !errors.Is(err, tt.err) {
				t.Errorf("Expected wrapped %v, got %v", tt.err, err)
			}

			state := h.tracker.State()
			if state.Status.Kind != models.StatusError {
				t.Errorf("Expected error status, got %s", state.Status.Kind)
			}
			if !strings.Contains(state.Status.Message, tt.contains) {
				t.Errorf("Expected message containing %q, got %q", tt.contains, state.Status.Message)
			}
			if !state.Controls.Start || state.CameraActive {
				t.Errorf("Expected camera to stay startable and inactive, got %+v", state)
			}
		})
	}
}

func TestRepeatedStartStopsPriorStream(t *testing.T) {
	h := newHarness(t, nil)

	for i := 0; i < 2; i++ {
		if err := h.tracker.StartCamera(context.Background()); err != nil {
			t.Fatalf("StartCamera %d failed: %v", i, err)
		}
	}

	if len(h.camera.streams) != 2 {
		t.Fatalf("Expected 2 opened streams, got %d", len(h.camera.streams))
	}
	if got := h.camera.streams[0].stopCount(); got != 1 {
		t.Errorf("Expected first stream stopped once, got %d", got)
	}
	if got := h.camera.streams[1].stopCount(); got != 0 {
		t.Errorf("Expected second stream running, got %d stops", got)
	}
}

func TestStopCamera(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	h.tracker.StopCamera()

	state := h.tracker.State()
	if state.Status.Kind != models.StatusIdle || state.Status.Message != "Camera stopped" {
		t.Errorf("Unexpected status %+v", state.Status)
	}
	if !state.Controls.Start || state.Controls.Stop || state.Controls.Capture {
		t.Errorf("Unexpected controls %+v", state.Controls)
	}
	if state.CameraActive {
		t.Error("Expected camera inactive")
	}
	if got := h.camera.streams[0].stopCount(); got != 1 {
		t.Errorf("Expected stream stopped once, got %d", got)
	}
	if _, err := h.tracker.Preview(); !errors.Is(err, ErrCameraInactive) {
		t.Errorf("Expected ErrCameraInactive from Preview, got %v", err)
	}
}

func TestCaptureSuccessResetsAfterDelay(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	if err := h.tracker.Capture(context.Background()); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	state := h.tracker.State()
	if state.Status.Kind != models.StatusSuccess || state.Status.Message != "Attendance marked successfully!" {
		t.Errorf("Unexpected status %+v", state.Status)
	}
	if state.Phase != "idle" {
		t.Errorf("Expected idle phase, got %s", state.Phase)
	}
	if !state.Flashing {
		t.Error("Expected flash to still be showing")
	}
	if state.Controls.Capture {
		t.Error("Expected capture disabled until revalidation")
	}

	sub := h.backend.submissions[0]
	if sub.UserID != "S123" || sub.UserName != "Ada Lovelace" || sub.Confidence != "0.97" {
		t.Errorf("Unexpected submission %+v", sub)
	}
	if !strings.HasPrefix(sub.ImageData, "data:image/jpeg;base64,") {
		t.Errorf("Expected JPEG data URL, got %.30s", sub.ImageData)
	}

	records := h.tracker.Records()
	if len(records) != 1 || records[0].UserID != "S123" {
		t.Fatalf("Expected the new record first, got %+v", records)
	}

	if n := h.clock.Fire(FlashDuration); n != 1 {
		t.Errorf("Expected one flash timer, got %d", n)
	}
	if h.tracker.State().Flashing {
		t.Error("Expected flash cleared")
	}

	h.clock.Fire(ResetDelay)

	state = h.tracker.State()
	if state.UserID != "" || state.UserName != "" {
		t.Errorf("Expected identity cleared, got %q/%q", state.UserID, state.UserName)
	}
	if state.Status.Kind != models.StatusReady || state.Status.Message != "Ready for next attendance" {
		t.Errorf("Unexpected status after reset %+v", state.Status)
	}
	if state.Controls.Capture {
		t.Error("Expected capture disabled with empty identity")
	}
}

func TestCaptureFailures(t *testing.T) {
	tests := []struct {
		name          string
		recognizerErr error
		backendErr    error
		message       string
		backendCalls  int
	}{
		{"not recognized", recognition.ErrNotRecognized, nil, "Face not recognized clearly", 0},
		{"already marked", nil, backend.ErrAlreadyMarked, "Attendance already marked today", 1},
		{"mismatch with message", nil, &backend.FaceMismatchError{Message: "Face already linked"}, "Face already linked", 1},
		{"mismatch without message", nil, &backend.FaceMismatchError{}, "Face already linked to another ID", 1},
		{"rejected with message", nil, &backend.RejectedError{StatusCode: 400, Status: "error", Message: "incomplete data"}, "incomplete data", 1},
		{"rejected without message", nil, &backend.RejectedError{StatusCode: 500}, "Some backend error", 1},
		{"network", nil, &backend.TransportError{Op: "mark attendance", Err: errors.New("connection refused")}, "Failed to connect to server", 1},
		{"network timeout", nil, &backend.TransportError{Op: "mark attendance", Err: context.DeadlineExceeded}, "Failed to connect to server", 1},
		{"unknown", nil, errors.New("strange"), "Failed to mark attendance.", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecognizer{result: &recognition.Result{Confidence: 0.96}, err: tt.recognizerErr}
			h := newHarness(t, rec)
			h.backend.err = tt.backendErr
			h.ready(t)

			err := h.tracker.Capture(context.Background())
			if err == nil {
				t.Fatal("Expected capture to fail")
			}

			state := h.tracker.State()
			if state.Status.Kind != models.StatusError || state.Status.Message != tt.message {
				t.Errorf("Expected error %q, got %+v", tt.message, state.Status)
			}
			if got := h.backend.callCount(); got != tt.backendCalls {
				t.Errorf("Expected %d backend calls, got %d", tt.backendCalls, got)
			}
			if len(h.tracker.Records()) != 0 {
				t.Error("Expected history unchanged")
			}
			if state.Controls.Capture {
				t.Error("Expected capture disabled until revalidation")
			}

			h.clock.Fire(RevalidateDelay)
			if !h.tracker.State().Controls.Capture {
				t.Error("Expected capture re-enabled after revalidation")
			}
			if h.tracker.State().UserID != "S123" {
				t.Error("Expected identity kept after failure")
			}
		})
	}
}

func TestCaptureTwiceMakesOneBackendCall(t *testing.T) {
	rec := newBlockingRecognizer()
	h := newHarness(t, rec)
	h.ready(t)

	done := make(chan error, 1)
	go func() { done <- h.tracker.Capture(context.Background()) }()
	<-rec.entered

	if err := h.tracker.Capture(context.Background()); !errors.Is(err, ErrCaptureInProgress) {
		t.Errorf("Expected ErrCaptureInProgress, got %v", err)
	}
	state := h.tracker.State()
	if state.Phase != "processing" || state.Controls.Capture {
		t.Errorf("Expected processing with capture disabled, got %+v", state)
	}
	if state.Status.Message != "Capturing face... Please wait..." {
		t.Errorf("Unexpected status %+v", state.Status)
	}

	close(rec.release)
	if err := <-done; err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if got := h.backend.callCount(); got != 1 {
		t.Errorf("Expected exactly one backend call, got %d", got)
	}
}

func TestStopCameraCancelsCapture(t *testing.T) {
	rec := newBlockingRecognizer()
	h := newHarness(t, rec)
	h.ready(t)

	done := make(chan error, 1)
	go func() { done <- h.tracker.Capture(context.Background()) }()
	<-rec.entered

	h.tracker.StopCamera()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if got := h.backend.callCount(); got != 0 {
		t.Errorf("Expected no backend call, got %d", got)
	}

	state := h.tracker.State()
	if state.Status.Message != "Camera stopped" {
		t.Errorf("Expected stop status to survive, got %+v", state.Status)
	}
	if state.Phase != "idle" {
		t.Errorf("Expected idle phase, got %s", state.Phase)
	}

	h.clock.Fire(RevalidateDelay)
	if h.tracker.State().Controls.Capture {
		t.Error("Expected capture disabled with the camera off")
	}
}

func TestCaptureNotAllowed(t *testing.T) {
	h := newHarness(t, nil)
	h.tracker.SetIdentity("S1", "Ada")

	if err := h.tracker.Capture(context.Background()); !errors.Is(err, ErrCaptureNotAllowed) {
		t.Errorf("Expected ErrCaptureNotAllowed, got %v", err)
	}
	if h.tracker.State().Status.Kind != models.StatusIdle {
		t.Error("Expected status untouched")
	}
	if h.clock.Pending() != 0 {
		t.Error("Expected no timers scheduled")
	}
}

func TestLoadRecords(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.list = []models.AttendanceRecord{
		{UserID: "S2", UserName: "Grace", Confidence: 0.98, Timestamp: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)},
		{UserID: "S1", UserName: "Ada", Confidence: 0.9537, Timestamp: time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC)},
	}

	if err := h.tracker.LoadRecords(context.Background()); err != nil {
		t.Fatalf("LoadRecords failed: %v", err)
	}

	view := h.tracker.View()
	if view.Empty || len(view.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %+v", view)
	}
	if view.Entries[1].Confidence != "95.4%" {
		t.Errorf("Expected 95.4%%, got %s", view.Entries[1].Confidence)
	}

	h.backend.listErr = errors.New("unreachable")
	if err := h.tracker.LoadRecords(context.Background()); err == nil {
		t.Error("Expected error from failed load")
	}
	if len(h.tracker.Records()) != 2 {
		t.Error("Expected history untouched after failed load")
	}
}

func TestViewEmpty(t *testing.T) {
	h := newHarness(t, nil)
	view := h.tracker.View()
	if !view.Empty || view.Placeholder != "No attendance records yet" {
		t.Errorf("Expected placeholder view, got %+v", view)
	}
}

func TestCloseReleasesCameraAndTimers(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	if err := h.tracker.Capture(context.Background()); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if h.clock.Pending() == 0 {
		t.Fatal("Expected pending timers after capture")
	}

	h.tracker.Close()

	if h.clock.Pending() != 0 {
		t.Errorf("Expected timers stopped, %d pending", h.clock.Pending())
	}
	if got := h.camera.streams[0].stopCount(); got != 1 {
		t.Errorf("Expected stream stopped once, got %d", got)
	}
	if err := h.tracker.StartCamera(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestPreview(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	data, err := h.tracker.Preview()
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if len(data) < 2 || data[0] != 0xff || data[1] != 0xd8 {
		t.Error("Expected JPEG bytes")
	}
}

func TestPhaseTransitions(t *testing.T) {
	tests := []struct {
		from, to Phase
		allowed  bool
	}{
		{PhaseIdle, PhaseRequestingCapture, true},
		{PhaseIdle, PhaseProcessing, false},
		{PhaseRequestingCapture, PhaseRequestingCapture, false},
		{PhaseRequestingCapture, PhaseProcessing, true},
		{PhaseProcessing, PhaseSucceeded, true},
		{PhaseProcessing, PhaseFailed, true},
		{PhaseSucceeded, PhaseIdle, true},
		{PhaseFailed, PhaseProcessing, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.allowed, got)
		}
	}
}

func TestCaptureBackendTimeoutIsConnectionError(t *testing.T) {
	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(300 * time.Millisecond):
		}
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer service.Close()

	clock := &fakeClock{}
	cam := &fakeCamera{}
	tr := New(Options{
		Camera:     cam,
		Recognizer: &fakeRecognizer{result: &recognition.Result{Confidence: 0.97}},
		Backend:    backend.NewClient(service.URL, 50*time.Millisecond),
		AfterFunc:  clock.AfterFunc,
	})
	defer tr.Close()

	if err := tr.StartCamera(context.Background()); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}
	tr.SetIdentity("S1", "Ada")

	err := tr.Capture(context.Background())
	var transport *backend.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("Expected TransportError, got %v", err)
	}

	status := tr.Status()
	if status.Kind != models.StatusError || status.Message != "Failed to connect to server" {
		t.Errorf("Expected connection error status, got %+v", status)
	}
}
