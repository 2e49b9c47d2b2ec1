package sqlite

import (
	"fmt"

	"zonewatch/internal/model"
)

// ClipRepository implements repository.ClipRepository for SQLite.
type ClipRepository struct {
	db *DB
}

// NewClipRepository creates a new SQLite clip repository.
func NewClipRepository(db *DB) *ClipRepository {
	return &ClipRepository{db: db}
}

// Insert adds a clip, ignoring filenames already known. It returns 0 for duplicates.
func (r *ClipRepository) Insert(clip *model.Clip) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT OR IGNORE INTO clips (filename, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?)
	`, clip.Filename, clip.Timestamp, clip.FilePath, clip.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert clip: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return 0, nil
	}
	return result.LastInsertId()
}

// InsertBatch adds clips in one transaction and returns how many were new.
func (r *ClipRepository) InsertBatch(clips []model.Clip) (int, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO clips (filename, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, clip := range clips {
		result, err := stmt.Exec(clip.Filename, clip.Timestamp, clip.FilePath, clip.FileSize)
		if err != nil {
			return 0, fmt.Errorf("failed to insert clip %s: %w", clip.Filename, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit clips: %w", err)
	}
	return inserted, nil
}

// GetAll returns every clip, newest first.
func (r *ClipRepository) GetAll() ([]model.Clip, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, filename, timestamp, filepath, filesize
		FROM clips ORDER BY timestamp DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clips: %w", err)
	}
	defer rows.Close()

	var clips []model.Clip
	for rows.Next() {
		var c model.Clip
		if err := rows.Scan(&c.ID, &c.Filename, &c.Timestamp, &c.FilePath, &c.FileSize); err != nil {
			return nil, fmt.Errorf("failed to scan clip: %w", err)
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

// DeleteByFilename removes a clip from the catalog.
func (r *ClipRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM clips WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("failed to delete clip: %w", err)
	}
	return nil
}
