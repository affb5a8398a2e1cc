// Package history projects retained attendance records for display and
// moves them in and out of files.
package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/attendance/internal/models"
)

// MaxRendered is how many records the list shows
const MaxRendered = 10

// Placeholder is rendered instead of an empty list
const Placeholder = "No attendance records yet"

const (
	timeLayout = "3:04:05 PM"
	dateLayout = "1/2/2006"
)

// Entry is one rendered record
type Entry struct {
	Name       string `json:"name"`
	ID         string `json:"id"`
	Time       string `json:"time"`
	Date       string `json:"date"`
	Confidence string `json:"confidence"`
}

// View is the rendered attendance list
type View struct {
	Empty       bool    `json:"empty"`
	Placeholder string  `json:"placeholder,omitempty"`
	Entries     []Entry `json:"entries"`
	Total       int     `json:"total"`
}

// Render projects newest-first records into at most MaxRendered entries,
// formatted in loc.
func Render(records []models.AttendanceRecord, loc *time.Location) View {
	if loc == nil {
		loc = time.Local
	}

	if len(records) == 0 {
		return View{
			Empty:       true,
			Placeholder: Placeholder,
			Entries:     []Entry{},
		}
	}

	n := len(records)
	if n > MaxRendered {
		n = MaxRendered
	}

	entries := make([]Entry, 0, n)
	for _, r := range records[:n] {
		ts := r.Timestamp.In(loc)
		entries = append(entries, Entry{
			Name:       r.UserName,
			ID:         r.UserID,
			Time:       ts.Format(timeLayout),
			Date:       ts.Format(dateLayout),
			Confidence: FormatConfidence(r.Confidence),
		})
	}

	return View{
		Entries: entries,
		Total:   len(records),
	}
}

// FormatConfidence renders 0.9537 as "95.4%"
func FormatConfidence(confidence float64) string {
	return fmt.Sprintf("%.1f%%", confidence*100)
}

// Text renders a view for terminals
func Text(view View) string {
	if view.Empty {
		return view.Placeholder + "\n"
	}

	var b strings.Builder
	for _, e := range view.Entries {
		fmt.Fprintf(&b, "%-24s ID: %-12s %11s  %-10s  %6s\n", e.Name, e.ID, e.Time, e.Date, e.Confidence)
	}
	if view.Total > len(view.Entries) {
		fmt.Fprintf(&b, "(%d more not shown)\n", view.Total-len(view.Entries))
	}
	return b.String()
}
