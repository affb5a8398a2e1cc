// Package tracker is the attendance session controller. It owns the camera
// stream, runs the capture pipeline and projects a single status for the UI.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/attendance/internal/camera"
	"github.com/lehigh-university-libraries/attendance/internal/capture"
	"github.com/lehigh-university-libraries/attendance/internal/history"
	"github.com/lehigh-university-libraries/attendance/internal/models"
	"github.com/lehigh-university-libraries/attendance/internal/recognition"
	"github.com/lehigh-university-libraries/attendance/internal/storage"
)

const (
	FlashDuration   = 500 * time.Millisecond
	ResetDelay      = 2 * time.Second
	RevalidateDelay = 2 * time.Second
)

var (
	ErrCaptureInProgress = errors.New("capture already in progress")
	ErrCaptureNotAllowed = errors.New("capture not allowed: camera inactive or identity incomplete")
	ErrCameraInactive    = errors.New("camera is not active")
	ErrClosed            = errors.New("tracker closed")
)

// Backend is the attendance service the tracker submits to
type Backend interface {
	MarkAttendance(ctx context.Context, sub models.Submission) (*models.AttendanceRecord, error)
	ListAttendance(ctx context.Context) ([]models.AttendanceRecord, error)
}

// Timer is the handle returned by AfterFunc
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Options struct {
	Camera      camera.Camera
	Recognizer  recognition.Recognizer
	Backend     Backend
	Constraints camera.Constraints
	Quality     int
	AfterFunc   AfterFunc
	Location    *time.Location

	// OnStatus sees every status change. It runs with the tracker locked and
	// must not call back into the tracker.
	OnStatus func(models.Status)
}

// Controls mirrors which UI actions are currently enabled
type Controls struct {
	Start   bool `json:"start"`
	Stop    bool `json:"stop"`
	Capture bool `json:"capture"`
}

// State is a point-in-time snapshot of the session
type State struct {
	Status       models.Status `json:"status"`
	Phase        string        `json:"phase"`
	Controls     Controls      `json:"controls"`
	UserID       string        `json:"userId"`
	UserName     string        `json:"userName"`
	Flashing     bool          `json:"flashing"`
	CameraActive bool          `json:"cameraActive"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	Records      int           `json:"records"`
}

type Tracker struct {
	camera      camera.Camera
	recognizer  recognition.Recognizer
	backend     Backend
	constraints camera.Constraints
	quality     int
	afterFunc   AfterFunc
	location    *time.Location
	onStatus    func(models.Status)

	records *storage.RecordStore

	mu            sync.Mutex
	stream        camera.Stream
	surface       *capture.Surface
	cameraGen     uint64
	phase         Phase
	status        models.Status
	controls      Controls
	userID        string
	userName      string
	flashing      bool
	captureCancel context.CancelFunc
	timers        map[uint64]Timer
	nextTimer     uint64
	closed        bool
}

func New(opts Options) *Tracker {
	constraints := opts.Constraints
	if constraints.Width == 0 && constraints.Height == 0 && constraints.Facing == "" {
		constraints = camera.DefaultConstraints()
	}
	quality := opts.Quality
	if quality <= 0 {
		quality = capture.DefaultQuality
	}
	afterFunc := opts.AfterFunc
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	recognizer := opts.Recognizer
	if recognizer == nil {
		recognizer = recognition.NewSimulated()
	}

	return &Tracker{
		camera:      opts.Camera,
		recognizer:  recognizer,
		backend:     opts.Backend,
		constraints: constraints,
		quality:     quality,
		afterFunc:   afterFunc,
		location:    loc,
		onStatus:    opts.OnStatus,
		records:     storage.New(),
		status:      models.Status{Kind: models.StatusIdle},
		controls:    Controls{Start: true},
		timers:      make(map[uint64]Timer),
	}
}

// StartCamera acquires a stream. A stream that is already running is stopped
// first.
func (t *Tracker) StartCamera(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.stream != nil {
		slog.Warn("Camera already running, stopping previous stream before restarting")
		t.releaseStreamLocked()
	}
	t.setStatusLocked(models.StatusRequesting, msgRequestingCamera)
	cam := t.camera
	t.mu.Unlock()

	if cam == nil {
		return t.cameraFailed(fmt.Errorf("no camera configured"))
	}

	stream, err := cam.Open(ctx, t.constraints)
	if err != nil {
		return t.cameraFailed(err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		_ = stream.Stop()
		return ErrClosed
	}
	// a concurrent start may have won the race
	if t.stream != nil {
		t.releaseStreamLocked()
	}

	width, height := stream.Dimensions()
	t.stream = stream
	t.surface = capture.NewSurface(width, height)
	t.cameraGen++

	t.controls.Start = false
	t.controls.Stop = true
	t.setStatusLocked(models.StatusReady, msgCameraReady)
	t.validateLocked()

	slog.Info("Camera started", "width", width, "height", height, "facing", t.constraints.Facing)
	return nil
}

func (t *Tracker) cameraFailed(err error) error {
	slog.Error("Camera error", "kind", camera.KindOf(err).String(), "err", err)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.setStatusLocked(models.StatusError, cameraMessage(err))
	return fmt.Errorf("failed to start camera: %w", err)
}

// StopCamera releases the stream and cancels any capture in flight
func (t *Tracker) StopCamera() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.releaseStreamLocked()
	t.controls = Controls{Start: true}
	t.setStatusLocked(models.StatusIdle, msgCameraStopped)
}

func (t *Tracker) releaseStreamLocked() {
	if t.captureCancel != nil {
		slog.Info("Cancelling capture in flight")
		t.captureCancel()
		t.captureCancel = nil
	}
	if t.stream != nil {
		if err := t.stream.Stop(); err != nil {
			slog.Error("Failed to stop camera stream", "err", err)
		}
		t.stream = nil
	}
	t.surface = nil
	t.cameraGen++
}

// SetIdentity stores the identity fields and recomputes capture eligibility
func (t *Tracker) SetIdentity(userID, userName string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.userID = userID
	t.userName = userName
	t.validateLocked()
}

// Validate recomputes capture eligibility and reports it
func (t *Tracker) Validate() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.validateLocked()
}

func (t *Tracker) validateLocked() bool {
	t.controls.Capture = strings.TrimSpace(t.userID) != "" &&
		strings.TrimSpace(t.userName) != "" &&
		t.stream != nil &&
		t.phase == PhaseIdle
	return t.controls.Capture
}

// Capture runs one capture: snapshot, recognition, submission. It returns
// ErrCaptureInProgress or ErrCaptureNotAllowed without side effects when it
// cannot start; otherwise the outcome is reflected in the status and returned.
func (t *Tracker) Capture(ctx context.Context) error {
	t.mu.Lock()
	if t.phase != PhaseIdle {
		t.mu.Unlock()
		return ErrCaptureInProgress
	}
	if !t.controls.Capture {
		t.mu.Unlock()
		return ErrCaptureNotAllowed
	}

	captureID := uuid.New().String()
	t.transitionLocked(PhaseRequestingCapture)
	t.controls.Capture = false
	t.flashing = true
	t.scheduleLocked(FlashDuration, func() {
		t.flashing = false
	})

	captureCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	t.captureCancel = cancel
	gen := t.cameraGen

	frame, err := t.snapshotLocked()
	if err != nil {
		t.finishLocked(captureID, gen, false, nil, err)
		t.mu.Unlock()
		return err
	}

	t.transitionLocked(PhaseProcessing)
	t.setStatusLocked(models.StatusProcessing, msgCapturing)
	sub := models.Submission{
		UserID:    strings.TrimSpace(t.userID),
		UserName:  strings.TrimSpace(t.userName),
		ImageData: frame.DataURL,
	}
	slog.Info("Capture started", "capture_id", captureID, "user_id", sub.UserID, "width", frame.Width, "height", frame.Height)
	t.mu.Unlock()

	record, err := t.recognizeAndSubmit(captureCtx, frame, sub)
	// client timeouts also wrap context errors; only the capture's own
	// context decides cancellation
	cancelled := err != nil && captureCtx.Err() != nil

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finishLocked(captureID, gen, cancelled, record, err)
}

func (t *Tracker) snapshotLocked() (*capture.Frame, error) {
	if t.stream == nil || t.surface == nil {
		return nil, ErrCameraInactive
	}
	img, err := t.stream.Frame()
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	return t.surface.Snapshot(img, t.quality)
}

func (t *Tracker) recognizeAndSubmit(ctx context.Context, frame *capture.Frame, sub models.Submission) (*models.AttendanceRecord, error) {
	result, err := t.recognizer.Recognize(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("recognition failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.backend == nil {
		return nil, fmt.Errorf("no attendance backend configured")
	}

	sub.Confidence = fmt.Sprintf("%.2f", result.Confidence)
	record, err := t.backend.MarkAttendance(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("submission failed: %w", err)
	}
	return record, nil
}

// finishLocked records the outcome of a capture and returns the phase to idle
func (t *Tracker) finishLocked(captureID string, gen uint64, cancelled bool, record *models.AttendanceRecord, err error) error {
	t.captureCancel = nil

	defer func() {
		if t.phase != PhaseIdle {
			t.transitionLocked(PhaseIdle)
		}
		t.scheduleLocked(RevalidateDelay, func() {
			t.validateLocked()
		})
	}()

	if cancelled {
		slog.Warn("Capture cancelled", "capture_id", captureID, "err", err)
		// stopping the camera already set the status
		if gen == t.cameraGen {
			t.setStatusLocked(models.StatusError, msgCaptureCancelled)
		}
		if t.phase == PhaseProcessing {
			t.transitionLocked(PhaseIdle)
		}
		return err
	}

	if err != nil {
		if t.phase == PhaseRequestingCapture || t.phase == PhaseProcessing {
			t.transitionLocked(PhaseFailed)
		}
		slog.Error("Capture failed", "capture_id", captureID, "err", err)
		t.setStatusLocked(models.StatusError, captureMessage(err))
		return err
	}

	t.transitionLocked(PhaseSucceeded)
	t.records.Prepend(*record)
	t.setStatusLocked(models.StatusSuccess, msgMarked)
	slog.Info("Attendance marked", "capture_id", captureID, "user_id", record.UserID, "confidence", record.Confidence)

	t.scheduleLocked(ResetDelay, func() {
		if gen != t.cameraGen {
			return
		}
		t.userID = ""
		t.userName = ""
		t.setStatusLocked(models.StatusReady, msgNextAttendance)
		t.validateLocked()
	})
	return nil
}

func (t *Tracker) transitionLocked(to Phase) {
	if !canTransition(t.phase, to) {
		// programming error; keep the pipeline usable
		slog.Error("Rejected capture phase transition", "from", t.phase.String(), "to", to.String(), "err", errIllegalTransition)
		return
	}
	slog.Debug("Capture phase", "from", t.phase.String(), "to", to.String())
	t.phase = to
}

func (t *Tracker) setStatusLocked(kind models.StatusKind, message string) {
	t.status = models.Status{Kind: kind, Message: message}
	if kind == models.StatusError {
		slog.Warn("Status", "kind", kind, "message", message)
	} else {
		slog.Info("Status", "kind", kind, "message", message)
	}
	if t.onStatus != nil {
		t.onStatus(t.status)
	}
}

// scheduleLocked runs f with the tracker locked after d, unless closed first
func (t *Tracker) scheduleLocked(d time.Duration, f func()) {
	if t.closed {
		return
	}
	t.nextTimer++
	id := t.nextTimer
	t.timers[id] = t.afterFunc(d, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, pending := t.timers[id]; !pending || t.closed {
			return
		}
		delete(t.timers, id)
		f()
	})
}

// LoadRecords replaces the history with the service's list. On failure the
// history is left as it was.
func (t *Tracker) LoadRecords(ctx context.Context) error {
	if t.backend == nil {
		return fmt.Errorf("no attendance backend configured")
	}

	records, err := t.backend.ListAttendance(ctx)
	if err != nil {
		slog.Error("Error getting records", "err", err)
		return fmt.Errorf("failed to load attendance records: %w", err)
	}

	t.records.Replace(records)
	slog.Info("Loaded attendance records", "count", len(records))
	return nil
}

// Records returns every retained record, newest first
func (t *Tracker) Records() []models.AttendanceRecord {
	return t.records.All()
}

// View renders the retained history
func (t *Tracker) View() history.View {
	return history.Render(t.records.All(), t.location)
}

func (t *Tracker) Status() models.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := State{
		Status:       t.status,
		Phase:        t.phase.String(),
		Controls:     t.controls,
		UserID:       t.userID,
		UserName:     t.userName,
		Flashing:     t.flashing,
		CameraActive: t.stream != nil,
		Records:      t.records.Len(),
	}
	if t.surface != nil {
		s.Width, s.Height = t.surface.Size()
	}
	return s
}

// Preview encodes the current camera frame as JPEG
func (t *Tracker) Preview() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stream == nil || t.surface == nil {
		return nil, ErrCameraInactive
	}
	img, err := t.stream.Frame()
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	if err := t.surface.Draw(img); err != nil {
		return nil, err
	}
	return t.surface.JPEG(t.quality)
}

// SetVisible reports page visibility. The camera keeps running when hidden.
func (t *Tracker) SetVisible(visible bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !visible && t.stream != nil {
		slog.Info("Page hidden - camera still running")
	}
}

// Close releases the camera and drops pending timers
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
	t.releaseStreamLocked()
	t.controls = Controls{}
	slog.Info("Tracker closed")
}
