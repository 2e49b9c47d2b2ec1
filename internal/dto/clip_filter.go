package dto

import "time"

// ClipFilters narrow a clip listing to a time range.
type ClipFilters struct {
	After  time.Time
	Before time.Time
	Limit  int
}

// Match reports whether t falls within the filter range.
func (f ClipFilters) Match(t time.Time) bool {
	if !f.After.IsZero() && t.Before(f.After) {
		return false
	}
	if !f.Before.IsZero() && t.After(f.Before) {
		return false
	}
	return true
}
