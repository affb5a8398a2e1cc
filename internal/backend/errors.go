package backend

import (
	"errors"
	"fmt"
)

// ErrAlreadyMarked is returned when the user already has attendance for today
var ErrAlreadyMarked = errors.New("attendance already marked today")

// FaceMismatchError means the face is linked to a different identity
type FaceMismatchError struct {
	Message string
}

func (e *FaceMismatchError) Error() string {
	if e.Message == "" {
		return "face already linked to another ID"
	}
	return "face mismatch: " + e.Message
}

// RejectedError is any other non-success answer from the service
type RejectedError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("attendance service rejected request (http %d, status %q)", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("attendance service rejected request (http %d, status %q): %s", e.StatusCode, e.Status, e.Message)
}

// TransportError wraps failures reaching the service at all
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
