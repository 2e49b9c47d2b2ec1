package dto

import (
	"encoding/json"
	"time"
)

// ClipInfo represents parsed metadata about a recorded alert clip.
type ClipInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Date      time.Time `json:"date"`
	TimeOfDay time.Time `json:"timeOfDay"`
	Size      int64     `json:"size"`
}

// MarshalJSON customizes JSON output for ClipInfo to format date and time-of-day.
func (c ClipInfo) MarshalJSON() ([]byte, error) {
	type Alias ClipInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      c.Date.Format("02-01-2006"),
		TimeOfDay: c.TimeOfDay.Format("15:04:05"),
		Alias:     (Alias)(c),
	})
}

// ClipSummary aggregates a clip directory.
type ClipSummary struct {
	Count     int            `json:"count"`
	TotalSize int64          `json:"total_size"`
	First     time.Time      `json:"first,omitempty"`
	Last      time.Time      `json:"last,omitempty"`
	PerDay    map[string]int `json:"per_day"`
}
