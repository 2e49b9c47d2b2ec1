package sqlite

import (
	"database/sql"
	"fmt"

	"zonewatch/internal/model"
)

// AlertRepository implements repository.AlertRepository for SQLite.
type AlertRepository struct {
	db *DB
}

// NewAlertRepository creates a new SQLite alert repository.
func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Insert adds a new alert.
func (r *AlertRepository) Insert(a *model.Alert) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO alerts (id, zone, class, confidence, x, y, width, height, triggered_at, clip_path, frames, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Zone, a.Class, a.Confidence, a.Box.X, a.Box.Y, a.Box.Width, a.Box.Height,
		a.TriggeredAt, a.ClipPath, a.Frames, string(a.Status))
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// UpdateClip records the outcome of the alert's recording.
func (r *AlertRepository) UpdateClip(id, clipPath string, frames int, status model.AlertStatus) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		UPDATE alerts SET clip_path = ?, frames = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, clipPath, frames, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to update alert: %s not found", id)
	}
	return nil
}

// GetByID retrieves an alert by its ID, nil when absent.
func (r *AlertRepository) GetByID(id string) (*model.Alert, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	a, err := scanAlert(r.db.Conn().QueryRow(`
		SELECT id, zone, class, confidence, x, y, width, height, triggered_at, clip_path, frames, status
		FROM alerts WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

// Recent returns the latest alerts, newest first.
func (r *AlertRepository) Recent(limit int) ([]model.Alert, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, zone, class, confidence, x, y, width, height, triggered_at, clip_path, frames, status
		FROM alerts ORDER BY triggered_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(row scanner) (*model.Alert, error) {
	var (
		a      model.Alert
		status string
	)
	err := row.Scan(&a.ID, &a.Zone, &a.Class, &a.Confidence,
		&a.Box.X, &a.Box.Y, &a.Box.Width, &a.Box.Height,
		&a.TriggeredAt, &a.ClipPath, &a.Frames, &status)
	if err != nil {
		return nil, err
	}
	a.Status = model.AlertStatus(status)
	return &a, nil
}
