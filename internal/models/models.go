package models

import "time"

// AttendanceRecord represents one successful attendance submission
type AttendanceRecord struct {
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Submission is the payload sent to the attendance service
type Submission struct {
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	Confidence string `json:"confidence"` // decimal, 2 places
	ImageData  string `json:"imageData"`  // data:image/jpeg;base64,...
}

// StatusKind is the coarse state shown next to the status message
type StatusKind string

const (
	StatusIdle       StatusKind = "idle"
	StatusRequesting StatusKind = "requesting"
	StatusReady      StatusKind = "ready"
	StatusProcessing StatusKind = "processing"
	StatusSuccess    StatusKind = "success"
	StatusError      StatusKind = "error"
)

// Status is the single (kind, message) pair projected to the user
type Status struct {
	Kind    StatusKind `json:"kind"`
	Message string     `json:"message"`
}
