package repository

import (
	"context"
	"database/sql"

	"github.com/timelapser/server/internal/models"
)

// AttemptRepository handles capture attempt persistence
type AttemptRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewAttemptRepository creates a new AttemptRepository
func NewAttemptRepository(db *sql.DB, dialect Dialect) *AttemptRepository {
	return &AttemptRepository{db: db, dialect: dialect}
}

// Add inserts a capture attempt record
func (r *AttemptRepository) Add(ctx context.Context, attempt *models.CaptureAttempt) error {
	query := r.dialect.rebind(`
		INSERT INTO capture_attempts (id, camera_id, status, image_id, error_message, duration_ms, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.CameraID,
		attempt.Status,
		attempt.ImageID,
		attempt.ErrorMessage,
		attempt.DurationMS,
		attempt.AttemptedAt,
	)
	return err
}

// GetCounts returns the total number of attempts and how many succeeded
func (r *AttemptRepository) GetCounts(ctx context.Context) (int64, int64, error) {
	query := r.dialect.rebind(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM capture_attempts
	`)

	var total, succeeded int64
	err := r.db.QueryRowContext(ctx, query, models.CaptureSuccess).Scan(&total, &succeeded)
	return total, succeeded, err
}

// GetRecentByCamera retrieves a camera's most recent attempts, newest first
func (r *AttemptRepository) GetRecentByCamera(ctx context.Context, cameraID string, take int) ([]*models.CaptureAttempt, error) {
	query := r.dialect.rebind(`
		SELECT id, camera_id, status, image_id, error_message, duration_ms, attempted_at
		FROM capture_attempts
		WHERE camera_id = ?
		ORDER BY attempted_at DESC
		LIMIT ?
	`)

	rows, err := r.db.QueryContext(ctx, query, cameraID, take)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.CaptureAttempt
	for rows.Next() {
		var attempt models.CaptureAttempt
		var errorMessage sql.NullString
		err := rows.Scan(
			&attempt.ID,
			&attempt.CameraID,
			&attempt.Status,
			&attempt.ImageID,
			&errorMessage,
			&attempt.DurationMS,
			&attempt.AttemptedAt,
		)
		if err != nil {
			return nil, err
		}
		attempt.ErrorMessage = errorMessage.String
		attempts = append(attempts, &attempt)
	}

	return attempts, rows.Err()
}
