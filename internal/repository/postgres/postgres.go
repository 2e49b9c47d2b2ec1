package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver

	"zonewatch/internal/model"
)

// Database wraps a PostgreSQL connection used as an additional event log sink.
type Database struct {
	DB *sql.DB
}

// New opens and verifies a PostgreSQL connection, then creates the schema.
func New(dsn string) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	d := &Database{DB: db}
	if err := d.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Init creates the required tables if they don't exist.
func (d *Database) Init() error {
	createTables := `
	CREATE TABLE IF NOT EXISTS detection_records (
		id BIGSERIAL PRIMARY KEY,
		recorded_at TIMESTAMPTZ NOT NULL,
		class TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		in_zone BOOLEAN NOT NULL,
		zone TEXT NOT NULL DEFAULT '',
		alert_triggered BOOLEAN NOT NULL
	);
	`

	if _, err := d.DB.Exec(createTables); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.DB.Close()
}

// RecordRepository appends event log records to PostgreSQL.
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository creates a repository on an open connection.
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Name identifies the sink.
func (r *RecordRepository) Name() string {
	return "postgres"
}

// AppendBatch inserts records in one transaction, preserving order.
func (r *RecordRepository) AppendBatch(records []model.LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO detection_records (recorded_at, class, confidence, in_zone, zone, alert_triggered)
		VALUES ($1, $2, $3, $4, $5, $6)
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

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}
