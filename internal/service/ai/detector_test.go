package ai

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonewatch/internal/config"
	"zonewatch/internal/logger"
	"zonewatch/internal/model"
)

func TestDecode(t *testing.T) {
	predictions := [][]float32{
		// person at the frame center, 0.2 x 0.4 of the frame
		{0.5, 0.5, 0.2, 0.4, 0.9, 0.8, 0.1, 0.0},
		// best score at the threshold is dropped
		{0.1, 0.1, 0.1, 0.1, 0.9, 0.5, 0.2, 0.1},
		// truncated row
		{0.5, 0.5, 0.1},
		// car
		{0.25, 0.75, 0.1, 0.1, 0.7, 0.0, 0.1, 0.65},
	}

	got := decode(predictions, 640, 480, 0.5)

	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].classID)
	assert.InDelta(t, 0.8, got[0].score, 1e-6)
	assert.Equal(t, model.Box{X: 256, Y: 144, Width: 128, Height: 192}, got[0].box)
	assert.Equal(t, model.Point{X: 320, Y: 240}, got[0].box.Center())

	assert.Equal(t, 2, got[1].classID)
	assert.Equal(t, model.Box{X: 128, Y: 336, Width: 64, Height: 48}, got[1].box)
}

func TestLoadClasses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coco.names")
	require.NoError(t, os.WriteFile(path, []byte("person\nbicycle\n\n car \n"), 0644))

	classes, err := LoadClasses(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"person", "bicycle", "car"}, classes)
}

func TestLoadClasses_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.names")
	require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0644))

	_, err := LoadClasses(path)
	var cfgErr *model.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestNewDetector_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DetectorConfig{
		ModelPath:   filepath.Join(dir, "yolov3.weights"),
		ConfigPath:  filepath.Join(dir, "yolov3.cfg"),
		ClassesPath: filepath.Join(dir, "coco.names"),
	}

	_, err := NewDetector(cfg, logger.Discard())
	var cfgErr *model.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Field, "detector.")
}

func TestDetectorLabel(t *testing.T) {
	d := &Detector{classes: []string{"person", "car"}}
	assert.Equal(t, "car", d.label(1))
	assert.Equal(t, "class7", d.label(7))
}

func TestClassColor_Stable(t *testing.T) {
	assert.Equal(t, ClassColor("person"), ClassColor("person"))
	assert.Contains(t, palette, ClassColor("truck"))
}

func TestAnnotate_InvalidFrameUnchanged(t *testing.T) {
	a := NewAnnotator(logger.Discard())
	frame := model.Frame{Seq: 3, Width: 10, Height: 10, Data: []byte{1, 2, 3}}

	got := a.Annotate(frame, []model.Detection{{Class: "person"}}, nil)
	assert.Equal(t, frame, got)
}

func TestAnnotate_DrawsOnCopy(t *testing.T) {
	a := NewAnnotator(logger.Discard())
	frame := model.Frame{Seq: 1, Width: 64, Height: 48, Data: make([]byte, 64*48*3)}
	zones := []model.Zone{{Name: "Gate", X: 4, Y: 4, Width: 20, Height: 20, Color: "#ff0000"}}

	got := a.Annotate(frame, nil, zones)

	assert.Equal(t, make([]byte, 64*48*3), frame.Data)
	assert.NotEqual(t, frame.Data, got.Data)
	assert.Equal(t, frame.Seq, got.Seq)
}
