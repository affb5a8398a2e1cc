package tracker

import (
	"errors"
	"fmt"
)

// Phase is where the capture pipeline currently is
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRequestingCapture
	PhaseProcessing
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRequestingCapture:
		return "requesting-capture"
	case PhaseProcessing:
		return "processing"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

var errIllegalTransition = errors.New("illegal phase transition")

var transitions = map[Phase][]Phase{
	PhaseIdle:              {PhaseRequestingCapture},
	PhaseRequestingCapture: {PhaseProcessing, PhaseFailed},
	PhaseProcessing:        {PhaseSucceeded, PhaseFailed, PhaseIdle},
	PhaseSucceeded:         {PhaseIdle},
	PhaseFailed:            {PhaseIdle},
}

func canTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}
