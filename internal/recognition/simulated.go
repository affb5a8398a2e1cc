package recognition

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/lehigh-university-libraries/attendance/internal/capture"
)

// Simulated stands in for a real recognizer: it waits a random delay and
// fails a small share of the time. No image analysis happens.
type Simulated struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	FailureRate float64

	// Float64 returns values in [0,1); rand.Float64 when nil
	Float64 func() float64
	// Sleep waits d or until ctx is done
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewSimulated() *Simulated {
	return &Simulated{
		MinDelay:    time.Second,
		MaxDelay:    2 * time.Second,
		FailureRate: 0.05,
	}
}

func (s *Simulated) Recognize(ctx context.Context, frame *capture.Frame) (*Result, error) {
	random := s.Float64
	if random == nil {
		random = rand.Float64
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	delay := s.MinDelay + time.Duration(random()*float64(s.MaxDelay-s.MinDelay))
	slog.Debug("Simulating face recognition", "delay", delay)

	if err := sleep(ctx, delay); err != nil {
		return nil, err
	}

	if random() < s.FailureRate {
		return nil, ErrNotRecognized
	}

	return &Result{Confidence: 0.95 + random()*0.05}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
