package sqlite

import (
	"fmt"

	"zonewatch/internal/model"
)

// RecordRepository implements repository.RecordRepository for SQLite.
type RecordRepository struct {
	db *DB
}

// NewRecordRepository creates a new SQLite record repository.
func NewRecordRepository(db *DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Name identifies the sink.
func (r *RecordRepository) Name() string {
	return "sqlite"
}

// AppendBatch adds multiple records in a single transaction, preserving order.
func (r *RecordRepository) AppendBatch(records []model.LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO records (timestamp, class, confidence, in_zone, zone, alert_triggered)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.Exec(rec.Timestamp, rec.Class, rec.Confidence, rec.InZone, rec.Zone, rec.AlertTriggered); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	return tx.Commit()
}

// Recent returns the latest records, newest first.
func (r *RecordRepository) Recent(limit int) ([]model.LogRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT timestamp, class, confidence, in_zone, zone, alert_triggered
		FROM records ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []model.LogRecord
	for rows.Next() {
		var rec model.LogRecord
		if err := rows.Scan(&rec.Timestamp, &rec.Class, &rec.Confidence, &rec.InZone, &rec.Zone, &rec.AlertTriggered); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
