package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClipInfo_MarshalJSON(t *testing.T) {
	ts := time.Date(2025, 6, 15, 14, 30, 5, 0, time.UTC)
	info := ClipInfo{Name: "alert_20250615_143005.avi", Date: ts, TimeOfDay: ts, Size: 2048}

	data, err := json.Marshal(info)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "15-06-2025", out["date"])
	assert.Equal(t, "14:30:05", out["timeOfDay"])
	assert.Equal(t, "alert_20250615_143005.avi", out["name"])
	assert.EqualValues(t, 2048, out["size"])
}

func TestClipFilters_Match(t *testing.T) {
	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	f := ClipFilters{After: day, Before: day.Add(24*time.Hour - time.Nanosecond)}

	assert.True(t, ClipFilters{}.Match(day), "empty filter matches everything")
	assert.True(t, f.Match(day))
	assert.True(t, f.Match(day.Add(23*time.Hour)))
	assert.False(t, f.Match(day.Add(-time.Second)))
	assert.False(t, f.Match(day.Add(24*time.Hour)))
}
