package tracker

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/attendance/internal/camera"
	"github.com/lehigh-university-libraries/attendance/internal/capture"
	"github.com/lehigh-university-libraries/attendance/internal/models"
	"github.com/lehigh-university-libraries/attendance/internal/recognition"
)

type fakeStream struct {
	mu      sync.Mutex
	width   int
	height  int
	stopped int
}

func (s *fakeStream) Dimensions() (int, int) { return s.width, s.height }

func (s *fakeStream) Frame() (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, s.width, s.height)), nil
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	return nil
}

func (s *fakeStream) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeCamera struct {
	mu          sync.Mutex
	err         error
	streams     []*fakeStream
	constraints camera.Constraints
}

func (c *fakeCamera) Open(ctx context.Context, constraints camera.Constraints) (camera.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.constraints = constraints
	if c.err != nil {
		return nil, c.err
	}
	s := &fakeStream{width: 320, height: 240}
	c.streams = append(c.streams, s)
	return s, nil
}

type fakeRecognizer struct {
	result *recognition.Result
	err    error
}

func (r *fakeRecognizer) Recognize(ctx context.Context, frame *capture.Frame) (*recognition.Result, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

// blockingRecognizer holds the capture in processing until released
type blockingRecognizer struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingRecognizer() *blockingRecognizer {
	return &blockingRecognizer{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (r *blockingRecognizer) Recognize(ctx context.Context, frame *capture.Frame) (*recognition.Result, error) {
	r.once.Do(func() { close(r.entered) })
	select {
	case <-r.release:
		return &recognition.Result{Confidence: 0.97}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fakeBackend struct {
	mu          sync.Mutex
	calls       int
	submissions []models.Submission
	err         error
	list        []models.AttendanceRecord
	listErr     error
	now         time.Time
}

func (b *fakeBackend) MarkAttendance(ctx context.Context, sub models.Submission) (*models.AttendanceRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.submissions = append(b.submissions, sub)
	if b.err != nil {
		return nil, b.err
	}
	return &models.AttendanceRecord{
		UserID:     sub.UserID,
		UserName:   sub.UserName,
		Confidence: 0.97,
		Timestamp:  b.now,
	}, nil
}

func (b *fakeBackend) ListAttendance(ctx context.Context) ([]models.AttendanceRecord, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.list, nil
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

// fakeClock collects scheduled callbacks; Fire runs the ones due at d
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, timer)
	return timer
}

func (c *fakeClock) Fire(d time.Duration) int {
	c.mu.Lock()
	var due []*fakeTimer
	for _, timer := range c.timers {
		if timer.d == d && !timer.fired && !timer.stopped {
			timer.fired = true
			due = append(due, timer)
		}
	}
	c.mu.Unlock()

	for _, timer := range due {
		timer.f()
	}
	return len(due)
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, timer := range c.timers {
		if !timer.fired && !timer.stopped {
			n++
		}
	}
	return n
}
