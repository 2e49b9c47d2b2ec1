package csvlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"zonewatch/internal/model"
)

// Header is the column layout read by the analytics tooling.
var Header = []string{"Timestamp", "Object", "Confidence", "In_ROI", "Zone", "Alert_Triggered"}

const timestampLayout = "2006-01-02 15:04:05"

// FileName returns the daily log file name for t.
func FileName(t time.Time) string {
	return "detections_" + t.Format("20060102") + ".csv"
}

// Writer appends records to one CSV file per day.
type Writer struct {
	dir  string
	day  string
	file *os.File
	csv  *csv.Writer
	mu   sync.Mutex
}

// NewWriter creates the log directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Name identifies the sink.
func (w *Writer) Name() string {
	return "csv"
}

// AppendBatch writes records in order, switching files at day boundaries,
// and syncs the file before returning.
func (w *Writer) AppendBatch(records []model.LogRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, rec := range records {
		if err := w.rotate(rec.Timestamp); err != nil {
			return err
		}
		if err := w.csv.Write(row(rec)); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	return w.flush()
}

// Close flushes and closes the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.flush()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.file, w.csv, w.day = nil, nil, ""
	return err
}

func (w *Writer) rotate(ts time.Time) error {
	day := ts.Format("20060102")
	if w.file != nil && day == w.day {
		return nil
	}
	if w.file != nil {
		err := w.flush()
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
		// A failed open below must not leave the closed file behind.
		w.file, w.csv, w.day = nil, nil, ""
		if err != nil {
			return fmt.Errorf("failed to close previous log: %w", err)
		}
	}

	path := filepath.Join(w.dir, FileName(ts))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	w.file, w.csv, w.day = file, csv.NewWriter(file), day
	if info.Size() == 0 {
		if err := w.csv.Write(Header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	return nil
}

func (w *Writer) flush() error {
	if w.csv == nil {
		return nil
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return w.file.Sync()
}

func row(rec model.LogRecord) []string {
	return []string{
		rec.Timestamp.Format(timestampLayout),
		rec.Class,
		strconv.FormatFloat(rec.Confidence, 'f', 2, 64),
		titleBool(rec.InZone),
		rec.Zone,
		titleBool(rec.AlertTriggered),
	}
}

// titleBool matches the True/False spelling the report scripts parse.
func titleBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
