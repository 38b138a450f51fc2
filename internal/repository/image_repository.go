package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/timelapser/server/internal/models"
)

// ImageRepository handles captured frame persistence
type ImageRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewImageRepository creates a new ImageRepository
func NewImageRepository(db *sql.DB, dialect Dialect) *ImageRepository {
	return &ImageRepository{db: db, dialect: dialect}
}

// GetByID retrieves an image by its ID
func (r *ImageRepository) GetByID(ctx context.Context, id string) (*models.Image, error) {
	query := r.dialect.rebind(`
		SELECT id, camera_id, filename, file_path, file_size_bytes, width, height, format, day_number, captured_at, created_at
		FROM images WHERE id = ?
	`)

	var image models.Image
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&image.ID,
		&image.CameraID,
		&image.Filename,
		&image.FilePath,
		&image.FileSizeBytes,
		&image.Width,
		&image.Height,
		&image.Format,
		&image.DayNumber,
		&image.CapturedAt,
		&image.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &image, nil
}

// GetByCamera retrieves a page of a camera's frames, newest first
func (r *ImageRepository) GetByCamera(ctx context.Context, cameraID string, skip, take int) ([]*models.Image, error) {
	query := r.dialect.rebind(`
		SELECT id, camera_id, filename, file_path, file_size_bytes, width, height, format, day_number, captured_at, created_at
		FROM images WHERE camera_id = ?
		ORDER BY captured_at DESC
		LIMIT ? OFFSET ?
	`)

	rows, err := r.db.QueryContext(ctx, query, cameraID, take, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []*models.Image
	for rows.Next() {
		var image models.Image
		err := rows.Scan(
			&image.ID,
			&image.CameraID,
			&image.Filename,
			&image.FilePath,
			&image.FileSizeBytes,
			&image.Width,
			&image.Height,
			&image.Format,
			&image.DayNumber,
			&image.CapturedAt,
			&image.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		images = append(images, &image)
	}

	return images, rows.Err()
}

// GetCountByCamera returns the number of frames recorded for a camera
func (r *ImageRepository) GetCountByCamera(ctx context.Context, cameraID string) (int, error) {
	query := r.dialect.rebind(`SELECT COUNT(*) FROM images WHERE camera_id = ?`)

	var count int
	err := r.db.QueryRowContext(ctx, query, cameraID).Scan(&count)
	return count, err
}

// Add inserts a new image record
func (r *ImageRepository) Add(ctx context.Context, image *models.Image) error {
	query := r.dialect.rebind(`
		INSERT INTO images (id, camera_id, filename, file_path, file_size_bytes, width, height, format, day_number, captured_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		image.ID,
		image.CameraID,
		image.Filename,
		image.FilePath,
		image.FileSizeBytes,
		image.Width,
		image.Height,
		image.Format,
		image.DayNumber,
		image.CapturedAt,
		image.CreatedAt,
	)
	return err
}

// DeleteOlderThan removes frame records captured before the cutoff and
// returns the number deleted
func (r *ImageRepository) DeleteOlderThan(ctx context.Context, cameraID string, cutoff time.Time) (int64, error) {
	query := r.dialect.rebind(`DELETE FROM images WHERE camera_id = ? AND captured_at < ?`)

	result, err := r.db.ExecContext(ctx, query, cameraID, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
