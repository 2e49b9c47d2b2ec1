package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonewatch/internal/config"
	"zonewatch/internal/logger"
	"zonewatch/internal/model"
	"zonewatch/internal/repository/csvlog"
	"zonewatch/internal/repository/sqlite"
	"zonewatch/internal/service/recorder"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu     sync.Mutex
	next   uint64
	total  uint64
	closed bool
}

func (s *fakeSource) Read() (model.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= s.total {
		return model.Frame{}, model.ErrSourceExhausted
	}
	s.next++
	return model.Frame{
		Seq:       s.next,
		Timestamp: epoch.Add(time.Duration(s.next) * 100 * time.Millisecond),
		Width:     64,
		Height:    48,
		Data:      make([]byte, 64*48*3),
	}, nil
}

func (s *fakeSource) FPS() float64 { return 10 }

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// fakeDetector reports a person in the middle of the frame at triggerSeq.
type fakeDetector struct {
	triggerSeq uint64
	failSeq    uint64
}

func (d *fakeDetector) Detect(frame model.Frame) ([]model.Detection, error) {
	switch frame.Seq {
	case d.failSeq:
		return nil, errors.New("inference failed")
	case d.triggerSeq:
		return []model.Detection{{Class: "person", Confidence: 0.9, Box: model.Box{X: 20, Y: 10, Width: 20, Height: 30}}}, nil
	}
	return nil, nil
}

type countingWriter struct {
	mu     sync.Mutex
	path   string
	frames int
}

func (w *countingWriter) Write(model.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames++
	return nil
}

func (w *countingWriter) Close() error {
	return os.WriteFile(w.path, []byte("clip"), 0644)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Zones = []model.Zone{{Name: "Gate", X: 0, Y: 0, Width: 64, Height: 48, Color: "#ff0000"}}
	cfg.Alerting.ROIEnabled = true
	cfg.Alerting.WatchedClasses = []string{"person"}
	cfg.Output.ClipsDir = filepath.Join(dir, "clips")
	cfg.Output.LogsDir = filepath.Join(dir, "logs")
	cfg.Output.SQLitePath = filepath.Join(dir, "events.db")
	cfg.HTTP.Addr = ""
	cfg.Workers.ShutdownTimeout = 5 * time.Second
	return cfg
}

func TestRun_AlertProducesClipAndRecords(t *testing.T) {
	cfg := testConfig(t)
	source := &fakeSource{total: 200}

	var writers []*countingWriter
	var mu sync.Mutex
	factory := func(path string, fps float64, width, height int) (recorder.VideoWriter, error) {
		mu.Lock()
		defer mu.Unlock()
		w := &countingWriter{path: path}
		writers = append(writers, w)
		return w, nil
	}

	a, err := New(cfg, source, &fakeDetector{triggerSeq: 60, failSeq: 70}, factory, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	assert.True(t, source.closed)
	stats := a.Pipeline().Stats()
	assert.Equal(t, uint64(200), stats.FramesProcessed)
	assert.Equal(t, uint64(1), stats.Alerts)

	require.Len(t, writers, 1)
	assert.Equal(t, 150, writers[0].frames)
	clipPath := filepath.Join(cfg.Output.ClipsDir, "alert_20240501_120006.avi")
	assert.Equal(t, clipPath, writers[0].path)
	assert.FileExists(t, clipPath)

	assert.FileExists(t, filepath.Join(cfg.Output.LogsDir, csvlog.FileName(epoch)))

	db, err := sqlite.New(cfg.Output.SQLitePath)
	require.NoError(t, err)
	defer db.Close()

	alerts, err := sqlite.NewAlertRepository(db).Recent(10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Gate", alerts[0].Zone)
	assert.Equal(t, model.AlertClipReady, alerts[0].Status)
	assert.Equal(t, 150, alerts[0].Frames)

	clips, err := sqlite.NewClipRepository(db).GetAll()
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.Equal(t, "alert_20240501_120006.avi", clips[0].Filename)

	records, err := sqlite.NewRecordRepository(db).Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].InZone)
	assert.True(t, records[0].AlertTriggered)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	source := &fakeSource{total: 1 << 40}
	factory := func(path string, fps float64, width, height int) (recorder.VideoWriter, error) {
		return &countingWriter{path: path}, nil
	}

	a, err := New(cfg, source, &fakeDetector{}, factory, logger.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.True(t, source.closed)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Zones = nil

	_, err := New(cfg, &fakeSource{}, &fakeDetector{}, nil, logger.Discard())
	var cfgErr *model.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "zones", cfgErr.Field)
}
