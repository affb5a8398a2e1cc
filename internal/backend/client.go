// Package backend is the HTTP JSON client for the attendance service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/attendance/internal/models"
)

const (
	markAttendancePath = "/api/mark_attendance"
	attendanceListPath = "/api/attendance_list"

	// the service stores date and time in separate columns
	listTimestampLayout = "2006-01-02T15:04:05"
)

// Client represents an attendance service API client
type Client struct {
	BaseURL    string
	Location   *time.Location
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a new attendance service client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Location: time.Local,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

type markResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// MarkAttendance submits a capture. On success the returned record carries the
// submission time.
func (c *Client) MarkAttendance(ctx context.Context, sub models.Submission) (*models.AttendanceRecord, error) {
	jsonData, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, markAttendancePath, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	submittedAt := c.now()
	slog.Info("Submitting attendance",
		"user_id", sub.UserID,
		"confidence", sub.Confidence,
		"request_id", req.Header.Get("X-Request-ID"),
		"image_bytes", len(sub.ImageData))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "mark attendance", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read mark attendance response", Err: err}
	}

	// error answers still carry a JSON status
	var result markResponse
	if err := json.Unmarshal(body, &result); err != nil {
		slog.Error("Undecodable attendance response", "http_status", resp.StatusCode, "body", truncate(string(body), 200))
		return nil, &RejectedError{StatusCode: resp.StatusCode}
	}

	switch result.Status {
	case "success":
		confidence, _ := strconv.ParseFloat(sub.Confidence, 64)
		return &models.AttendanceRecord{
			UserID:     sub.UserID,
			UserName:   sub.UserName,
			Confidence: confidence,
			Timestamp:  submittedAt,
		}, nil
	case "exists":
		return nil, ErrAlreadyMarked
	case "face_mismatch":
		return nil, &FaceMismatchError{Message: result.Message}
	default:
		return nil, &RejectedError{
			StatusCode: resp.StatusCode,
			Status:     result.Status,
			Message:    result.Message,
		}
	}
}

// flexFloat accepts "0.97", 0.97 or null; anything unparseable reads as 0
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

type listEntry struct {
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	Confidence flexFloat `json:"confidence"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
}

type listResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    []listEntry `json:"data"`
}

// ListAttendance fetches the records known to the service, in the order the
// service returns them.
func (c *Client) ListAttendance(ctx context.Context) ([]models.AttendanceRecord, error) {
	req, err := c.newRequest(ctx, http.MethodGet, attendanceListPath, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "fetch attendance list", Err: err}
	}
	defer resp.Body.Close()

	var result listResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode attendance list: %w", err)
	}

	if result.Status != "success" {
		return nil, &RejectedError{
			StatusCode: resp.StatusCode,
			Status:     result.Status,
			Message:    result.Message,
		}
	}

	loc := c.Location
	if loc == nil {
		loc = time.Local
	}

	records := make([]models.AttendanceRecord, 0, len(result.Data))
	for _, entry := range result.Data {
		ts, err := time.ParseInLocation(listTimestampLayout, entry.Date+"T"+entry.Time, loc)
		if err != nil {
			slog.Warn("Unparseable attendance timestamp", "user_id", entry.UserID, "date", entry.Date, "time", entry.Time, "err", err)
		}
		records = append(records, models.AttendanceRecord{
			UserID:     entry.UserID,
			UserName:   entry.UserName,
			Confidence: float64(entry.Confidence),
			Timestamp:  ts,
		})
	}

	slog.Info("Fetched attendance list", "count", len(records))
	return records, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	return req, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
