package dto

import (
	"time"

	"zonewatch/internal/model"
)

const (
	EventAlert     = "alert"
	EventClipReady = "clip_ready"
	EventClipFail  = "clip_failed"
)

// AlertEvent is published to brokers and viewers when an alert fires and
// again when its clip is finished.
type AlertEvent struct {
	Type        string    `json:"type"`
	ID          string    `json:"id"`
	Zone        string    `json:"zone"`
	Class       string    `json:"class"`
	Confidence  float64   `json:"confidence"`
	Box         model.Box `json:"box"`
	TriggeredAt time.Time `json:"triggered_at"`
	ClipPath    string    `json:"clip_path,omitempty"`
	Frames      int       `json:"frames,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// NewAlertEvent builds an event of the given type from an alert.
func NewAlertEvent(eventType string, a model.Alert) AlertEvent {
	return AlertEvent{
		Type:        eventType,
		ID:          a.ID,
		Zone:        a.Zone,
		Class:       a.Class,
		Confidence:  a.Confidence,
		Box:         a.Box,
		TriggeredAt: a.TriggeredAt,
		ClipPath:    a.ClipPath,
		Frames:      a.Frames,
	}
}
