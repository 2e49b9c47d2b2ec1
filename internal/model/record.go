package model

import "time"

// LogRecord is one evaluated detection as written to the event log.
type LogRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	Class          string    `json:"class"`
	Confidence     float64   `json:"confidence"`
	InZone         bool      `json:"in_zone"`
	Zone           string    `json:"zone"`
	AlertTriggered bool      `json:"alert_triggered"`
}

// AlertStatus tracks what happened to the clip of an alert.
type AlertStatus string

const (
	AlertRecording   AlertStatus = "recording"
	AlertSkippedBusy AlertStatus = "skipped_busy"
	AlertClipReady   AlertStatus = "clip_ready"
	AlertClipFailed  AlertStatus = "clip_failed"
)

// Alert is a permitted trigger for a (zone, class) pair.
type Alert struct {
	ID          string      `json:"id"`
	Zone        string      `json:"zone"`
	Class       string      `json:"class"`
	Confidence  float64     `json:"confidence"`
	Box         Box         `json:"box"`
	TriggeredAt time.Time   `json:"triggered_at"`
	ClipPath    string      `json:"clip_path,omitempty"`
	Frames      int         `json:"frames"`
	Status      AlertStatus `json:"status"`
}

// Clip is a recorded alert video known to the catalog.
type Clip struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
}
