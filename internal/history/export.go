package history

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/attendance/internal/models"
	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// Row is the flat, file-friendly form of an attendance record
type Row struct {
	UserID     string  `yaml:"userid" parquet:"user_id"`
	UserName   string  `yaml:"username" parquet:"user_name"`
	Confidence float64 `yaml:"confidence" parquet:"confidence"`
	Timestamp  string  `yaml:"timestamp" parquet:"timestamp"`
}

// Document is the YAML export layout
type Document struct {
	ExportedAt string `yaml:"exportedat"`
	Count      int    `yaml:"count"`
	Records    []Row  `yaml:"records"`
}

func toRows(records []models.AttendanceRecord) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, Row{
			UserID:     r.UserID,
			UserName:   r.UserName,
			Confidence: r.Confidence,
			Timestamp:  r.Timestamp.Format(time.RFC3339),
		})
	}
	return rows
}

func fromRows(rows []Row) []models.AttendanceRecord {
	records := make([]models.AttendanceRecord, 0, len(rows))
	for _, row := range rows {
		ts, err := time.Parse(time.RFC3339, row.Timestamp)
		if err != nil {
			slog.Warn("Skipping unparseable timestamp", "user_id", row.UserID, "timestamp", row.Timestamp)
		}
		records = append(records, models.AttendanceRecord{
			UserID:     row.UserID,
			UserName:   row.UserName,
			Confidence: row.Confidence,
			Timestamp:  ts,
		})
	}
	return records
}

// Export writes records to path; the extension picks the format
func Export(path string, records []models.AttendanceRecord) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return WriteYAML(path, records)
	case ".parquet":
		return WriteParquet(path, records)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: .yaml, .parquet)", filepath.Ext(path))
	}
}

// Import reads records written by Export
func Import(path string) ([]models.AttendanceRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ReadYAML(path)
	case ".parquet":
		return ReadParquet(path)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .yaml, .parquet)", filepath.Ext(path))
	}
}

// WriteYAML saves records as a YAML document
func WriteYAML(path string, records []models.AttendanceRecord) error {
	doc := Document{
		ExportedAt: time.Now().Format(time.RFC3339),
		Count:      len(records),
		Records:    toRows(records),
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}

	slog.Info("Exported attendance history", "path", path, "format", "yaml", "count", len(records))
	return nil
}

// ReadYAML loads a document written by WriteYAML
func ReadYAML(path string) ([]models.AttendanceRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file: %w", err)
	}

	return fromRows(doc.Records), nil
}

// WriteParquet saves records as a Parquet file
func WriteParquet(path string, records []models.AttendanceRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[Row](file)
	if _, err := writer.Write(toRows(records)); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}

	slog.Info("Exported attendance history", "path", path, "format", "parquet", "count", len(records))
	return nil
}

// ReadParquet loads records from a Parquet file
func ReadParquet(path string) ([]models.AttendanceRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet file opened", "path", path, "num_rows", pf.NumRows())

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	var all []Row
	rows := make([]Row, 128)
	for {
		n, err := reader.Read(rows)
		if n > 0 {
			all = append(all, rows[:n]...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	return fromRows(all), nil
}
