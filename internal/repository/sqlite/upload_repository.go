package sqlite

import (
	"database/sql"
	"fmt"

	"garbageapi/internal/dto"
	"garbageapi/internal/model"
)

// UploadRepository implements repository.UploadRepository for SQLite.
type UploadRepository struct {
	db *DB
}

// NewUploadRepository creates a new SQLite upload repository.
func NewUploadRepository(db *DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Save stores an upload record. A record with the same filename is replaced together
// with its detections, mirroring the overwrite of the file on disk.
func (r *UploadRepository) Save(upload *model.Upload) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteByFilename(tx, upload.Filename); err != nil {
		return 0, err
	}

	result, err := tx.Exec(`
		INSERT INTO uploads (filename, filepath, filesize, sha256, total_objects, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, upload.Filename, upload.FilePath, upload.FileSize, upload.SHA256, upload.TotalObjects, upload.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to insert upload: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read upload id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upload: %w", err)
	}
	return id, nil
}

// GetByFilename retrieves an upload by its filename. It returns nil when absent.
func (r *UploadRepository) GetByFilename(filename string) (*model.Upload, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var u model.Upload
	err := r.db.Conn().QueryRow(`
		SELECT id, filename, filepath, filesize, sha256, total_objects, timestamp
		FROM uploads WHERE filename = ?
	`, filename).Scan(&u.ID, &u.Filename, &u.FilePath, &u.FileSize, &u.SHA256, &u.TotalObjects, &u.Timestamp)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	return &u, nil
}

// GetAll retrieves uploads matching the filter, newest first.
func (r *UploadRepository) GetAll(filter *dto.UploadFilters) ([]model.Upload, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT DISTINCT u.id, u.filename, u.filepath, u.filesize, u.sha256, u.total_objects, u.timestamp
		FROM uploads u
		LEFT JOIN detections d ON u.id = d.upload_id
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Label != "" {
		query += " AND d.label = ?"
		args = append(args, filter.Label)
	}

	query += " ORDER BY u.timestamp DESC, u.id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	var uploads []model.Upload
	for rows.Next() {
		var u model.Upload
		if err := rows.Scan(&u.ID, &u.Filename, &u.FilePath, &u.FileSize, &u.SHA256, &u.TotalObjects, &u.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		uploads = append(uploads, u)
	}

	return uploads, rows.Err()
}

// GetTotalCount returns the number of uploads matching the filter, ignoring paging.
func (r *UploadRepository) GetTotalCount(filter *dto.UploadFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT COUNT(DISTINCT u.id)
		FROM uploads u
		LEFT JOIN detections d ON u.id = d.upload_id
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Label != "" {
		query += " AND d.label = ?"
		args = append(args, filter.Label)
	}

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count uploads: %w", err)
	}

	return count, nil
}

// GetDirectorySize returns the total size in bytes of recorded uploads still kept on disk.
func (r *UploadRepository) GetDirectorySize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM uploads WHERE filepath != ''`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum upload sizes: %w", err)
	}
	return size, nil
}

// DeleteByFilename removes an upload and its detections by filename.
func (r *UploadRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteByFilename(tx, filename); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteAll removes all uploads and their detections.
func (r *UploadRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM uploads`); err != nil {
		return fmt.Errorf("failed to delete uploads: %w", err)
	}

	return nil
}

// deleteByFilename removes an upload row and its detections inside tx.
func deleteByFilename(tx *sql.Tx, filename string) error {
	var uploadID int64
	err := tx.QueryRow(`SELECT id FROM uploads WHERE filename = ?`, filename).Scan(&uploadID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get upload id: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM detections WHERE upload_id = ?`, uploadID); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM uploads WHERE id = ?`, uploadID); err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	return nil
}
