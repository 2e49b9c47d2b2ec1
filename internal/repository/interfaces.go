package repository

import (
	"zonewatch/internal/model"
)

// RecordSink is an append-only destination for event log records.
type RecordSink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	// AppendBatch writes records in order.
	AppendBatch(records []model.LogRecord) error
}

// RecordRepository is a RecordSink that can also be read back by tooling.
type RecordRepository interface {
	RecordSink
	Recent(limit int) ([]model.LogRecord, error)
}

// AlertRepository defines the interface for alert data operations.
type AlertRepository interface {
	// Create operations
	Insert(alert *model.Alert) error

	// Update operations
	UpdateClip(id, clipPath string, frames int, status model.AlertStatus) error

	// Read operations
	GetByID(id string) (*model.Alert, error)
	Recent(limit int) ([]model.Alert, error)
}

// ClipRepository defines the interface for clip catalog operations.
type ClipRepository interface {
	Insert(clip *model.Clip) (int64, error)
	InsertBatch(clips []model.Clip) (int, error)
	GetAll() ([]model.Clip, error)
	DeleteByFilename(filename string) error
}
