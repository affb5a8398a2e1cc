package storage

import (
	"sync"

	"github.com/lehigh-university-libraries/attendance/internal/models"
)

// RecordStore keeps every attendance record of the session, newest first.
type RecordStore struct {
	records []models.AttendanceRecord
	mu      sync.RWMutex
}

func New() *RecordStore {
	return &RecordStore{}
}

// Prepend adds a record in front of the existing ones.
func (s *RecordStore) Prepend(record models.AttendanceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]models.AttendanceRecord{record}, s.records...)
}

// Replace swaps the whole history, e.g. after a bulk fetch.
func (s *RecordStore) Replace(records []models.AttendanceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]models.AttendanceRecord(nil), records...)
}

func (s *RecordStore) All() []models.AttendanceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AttendanceRecord(nil), s.records...)
}

// Recent returns at most n records, newest first.
func (s *RecordStore) Recent(n int) []models.AttendanceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n < 0 || n > len(s.records) {
		n = len(s.records)
	}
	return append([]models.AttendanceRecord(nil), s.records[:n]...)
}

func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
