package sqlite_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"zonewatch/internal/model"
	"zonewatch/internal/repository"
	"zonewatch/internal/repository/sqlite"
)

var (
	_ repository.RecordRepository = (*sqlite.RecordRepository)(nil)
	_ repository.AlertRepository  = (*sqlite.AlertRepository)(nil)
	_ repository.ClipRepository   = (*sqlite.ClipRepository)(nil)
)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "data", "events.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// ========================================
// Database Tests
// ========================================

func TestDatabase_CreatesDirectoryAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	dbPath := filepath.Join(dir, "test.db")

	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestDatabase_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	repo := sqlite.NewRecordRepository(db)
	if err := repo.AppendBatch([]model.LogRecord{{Timestamp: time.Now(), Class: "person"}}); err != nil {
		t.Fatalf("AppendBatch failed: %v", err)
	}
	db.Close()

	db, err = sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db.Close()

	records, err := sqlite.NewRecordRepository(db).Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected 1 record after reopen, got %d", len(records))
	}
}

// ========================================
// Record Repository Tests
// ========================================

func TestRecordRepository_AppendBatchKeepsOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewRecordRepository(db)

	ts := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	batch := []model.LogRecord{
		{Timestamp: ts, Class: "person", Confidence: 0.8, InZone: true, Zone: "Gate", AlertTriggered: true},
		{Timestamp: ts, Class: "person", Confidence: 0.8, InZone: true, Zone: "Door"},
		{Timestamp: ts.Add(time.Second), Class: "dog", Confidence: 0.6},
	}
	if err := repo.AppendBatch(batch); err != nil {
		t.Fatalf("AppendBatch failed: %v", err)
	}

	records, err := repo.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}

	// Recent is newest first.
	if records[2].Zone != "Gate" || !records[2].AlertTriggered || !records[2].InZone {
		t.Errorf("Unexpected first record: %+v", records[2])
	}
	if records[1].Zone != "Door" || records[1].AlertTriggered {
		t.Errorf("Unexpected second record: %+v", records[1])
	}
	if records[0].Class != "dog" || records[0].InZone {
		t.Errorf("Unexpected third record: %+v", records[0])
	}
	if !records[2].Timestamp.Equal(ts) {
		t.Errorf("Expected timestamp %v, got %v", ts, records[2].Timestamp)
	}
}

func TestRecordRepository_EmptyBatch(t *testing.T) {
	repo := sqlite.NewRecordRepository(setupTestDB(t))
	if err := repo.AppendBatch(nil); err != nil {
		t.Errorf("Empty batch should be a no-op, got %v", err)
	}
	if repo.Name() != "sqlite" {
		t.Errorf("Expected sink name sqlite, got %s", repo.Name())
	}
}

// ========================================
// Alert Repository Tests
// ========================================

func TestAlertRepository_Lifecycle(t *testing.T) {
	repo := sqlite.NewAlertRepository(setupTestDB(t))

	// Step 1: Insert the alert when it fires
	alert := &model.Alert{
		ID:          "a1",
		Zone:        "Gate",
		Class:       "person",
		Confidence:  0.8,
		Box:         model.Box{X: 40, Y: 30, Width: 20, Height: 40},
		TriggeredAt: time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC),
		ClipPath:    "outputs/clips/alert_20250615_143000.avi",
		Status:      model.AlertRecording,
	}
	if err := repo.Insert(alert); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Step 2: Record the finished clip
	if err := repo.UpdateClip("a1", alert.ClipPath, 150, model.AlertClipReady); err != nil {
		t.Fatalf("UpdateClip failed: %v", err)
	}

	// Step 3: Read it back
	got, err := repo.GetByID("a1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected alert, got nil")
	}
	if got.Status != model.AlertClipReady || got.Frames != 150 {
		t.Errorf("Unexpected alert after update: %+v", got)
	}
	if got.Box != alert.Box {
		t.Errorf("Expected box %+v, got %+v", alert.Box, got.Box)
	}

	missing, err := repo.GetByID("nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil, nil for missing alert, got %v, %v", missing, err)
	}

	if err := repo.UpdateClip("nope", "", 0, model.AlertClipFailed); err == nil {
		t.Error("Expected error updating unknown alert")
	}
}

func TestAlertRepository_RecentNewestFirst(t *testing.T) {
	repo := sqlite.NewAlertRepository(setupTestDB(t))

	base := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		err := repo.Insert(&model.Alert{ID: id, Zone: "Gate", Class: "person", TriggeredAt: base.Add(time.Duration(i) * time.Minute), Status: model.AlertRecording})
		if err != nil {
			t.Fatalf("Insert %s failed: %v", id, err)
		}
	}

	alerts, err := repo.Recent(2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(alerts) != 2 || alerts[0].ID != "new" || alerts[1].ID != "mid" {
		t.Errorf("Unexpected recent alerts: %+v", alerts)
	}
}

// ========================================
// Clip Repository Tests
// ========================================

func TestClipRepository_InsertIgnoresDuplicates(t *testing.T) {
	repo := sqlite.NewClipRepository(setupTestDB(t))

	ts := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	clips := []model.Clip{
		{Filename: "alert_20250615_143000.avi", Timestamp: ts, FilePath: "clips/alert_20250615_143000.avi", FileSize: 2048},
		{Filename: "alert_20250615_150000.avi", Timestamp: ts.Add(30 * time.Minute), FilePath: "clips/alert_20250615_150000.avi", FileSize: 4096},
	}

	n, err := repo.InsertBatch(clips)
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 new clips, got %d", n)
	}

	n, err = repo.InsertBatch(clips)
	if err != nil {
		t.Fatalf("Second InsertBatch failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 new clips on re-index, got %d", n)
	}

	id, err := repo.Insert(&clips[0])
	if err != nil || id != 0 {
		t.Errorf("Expected duplicate insert to return 0, nil; got %d, %v", id, err)
	}

	all, err := repo.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 2 || all[0].Filename != "alert_20250615_150000.avi" {
		t.Errorf("Unexpected clip listing: %+v", all)
	}

	if err := repo.DeleteByFilename("alert_20250615_143000.avi"); err != nil {
		t.Fatalf("DeleteByFilename failed: %v", err)
	}
	all, _ = repo.GetAll()
	if len(all) != 1 {
		t.Errorf("Expected 1 clip after delete, got %d", len(all))
	}
}

func TestClipRepository_ConcurrentInserts(t *testing.T) {
	repo := sqlite.NewClipRepository(setupTestDB(t))

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(idx int) {
			clip := &model.Clip{
				Filename:  "alert_concurrent_" + string(rune('a'+idx)) + ".avi",
				Timestamp: time.Now(),
				FilePath:  "/clips/",
				FileSize:  100,
			}
			if _, err := repo.Insert(clip); err != nil {
				t.Errorf("Concurrent insert %d failed: %v", idx, err)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	all, _ := repo.GetAll()
	if len(all) != 10 {
		t.Errorf("Expected 10 clips, got %d", len(all))
	}
}
