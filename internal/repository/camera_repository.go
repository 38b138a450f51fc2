package repository

import (
	"context"
	"database/sql"

	"github.com/timelapser/server/internal/models"
)

// CameraRepository handles camera persistence
type CameraRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewCameraRepository creates a new CameraRepository
func NewCameraRepository(db *sql.DB, dialect Dialect) *CameraRepository {
	return &CameraRepository{db: db, dialect: dialect}
}

// GetByID retrieves a camera by its ID
func (r *CameraRepository) GetByID(ctx context.Context, id string) (*models.Camera, error) {
	query := r.dialect.rebind(`
		SELECT id, name, url_hash, enabled, rotation, day_counter_start_date, created_at, updated_at
		FROM cameras WHERE id = ?
	`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByName retrieves a camera by its configured name
func (r *CameraRepository) GetByName(ctx context.Context, name string) (*models.Camera, error) {
	query := r.dialect.rebind(`
		SELECT id, name, url_hash, enabled, rotation, day_counter_start_date, created_at, updated_at
		FROM cameras WHERE name = ?
	`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, name))
}

// GetAll retrieves all persisted cameras
func (r *CameraRepository) GetAll(ctx context.Context) ([]*models.Camera, error) {
	query := `
		SELECT id, name, url_hash, enabled, rotation, day_counter_start_date, created_at, updated_at
		FROM cameras ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cameras []*models.Camera
	for rows.Next() {
		camera, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, camera)
	}

	return cameras, rows.Err()
}

// Add inserts a new camera record
func (r *CameraRepository) Add(ctx context.Context, camera *models.Camera) error {
	query := r.dialect.rebind(`
		INSERT INTO cameras (id, name, url_hash, enabled, rotation, day_counter_start_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		camera.ID,
		camera.Name,
		camera.URLHash,
		camera.Enabled,
		camera.Rotation,
		camera.DayCounterStartDate,
		camera.CreatedAt,
		camera.UpdatedAt,
	)
	return err
}

// Update persists changes to an existing camera record
func (r *CameraRepository) Update(ctx context.Context, camera *models.Camera) error {
	query := r.dialect.rebind(`
		UPDATE cameras
		SET url_hash = ?, enabled = ?, rotation = ?, day_counter_start_date = ?, updated_at = ?
		WHERE id = ?
	`)

	_, err := r.db.ExecContext(ctx, query,
		camera.URLHash,
		camera.Enabled,
		camera.Rotation,
		camera.DayCounterStartDate,
		camera.UpdatedAt,
		camera.ID,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *CameraRepository) scanOne(row *sql.Row) (*models.Camera, error) {
	camera, err := r.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return camera, nil
}

func (r *CameraRepository) scanRow(row rowScanner) (*models.Camera, error) {
	var camera models.Camera
	err := row.Scan(
		&camera.ID,
		&camera.Name,
		&camera.URLHash,
		&camera.Enabled,
		&camera.Rotation,
		&camera.DayCounterStartDate,
		&camera.CreatedAt,
		&camera.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &camera, nil
}
