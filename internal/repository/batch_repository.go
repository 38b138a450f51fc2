package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/timelapser/server/internal/models"
)

// BatchRepository handles timelapse batch persistence
type BatchRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewBatchRepository creates a new BatchRepository
func NewBatchRepository(db *sql.DB, dialect Dialect) *BatchRepository {
	return &BatchRepository{db: db, dialect: dialect}
}

// GetByID retrieves a batch by its ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*models.TimelapseBatch, error) {
	query := r.dialect.rebind(`
		SELECT id, camera_id, batch_type, status, generation_mode, total_frames, frame_rate,
		       output_path, file_size_bytes, error_message, started_at, completed_at, created_at
		FROM timelapse_batches WHERE id = ?
	`)

	batch, err := scanBatch(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// GetProcessingByCamera retrieves a camera's batches still marked processing,
// newest first. After a clean shutdown this is empty; entries here at startup
// mean the previous run ended without completing them.
func (r *BatchRepository) GetProcessingByCamera(ctx context.Context, cameraID string) ([]*models.TimelapseBatch, error) {
	query := r.dialect.rebind(`
		SELECT id, camera_id, batch_type, status, generation_mode, total_frames, frame_rate,
		       output_path, file_size_bytes, error_message, started_at, completed_at, created_at
		FROM timelapse_batches
		WHERE camera_id = ? AND status = ?
		ORDER BY created_at DESC
	`)

	rows, err := r.db.QueryContext(ctx, query, cameraID, models.BatchProcessing)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []*models.TimelapseBatch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}

	return batches, rows.Err()
}

// Add inserts a new batch record
func (r *BatchRepository) Add(ctx context.Context, batch *models.TimelapseBatch) error {
	query := r.dialect.rebind(`
		INSERT INTO timelapse_batches (id, camera_id, batch_type, status, generation_mode, total_frames,
			frame_rate, output_path, file_size_bytes, error_message, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		batch.ID,
		batch.CameraID,
		batch.BatchType,
		batch.Status,
		batch.GenerationMode,
		batch.TotalFrames,
		batch.FrameRate,
		batch.OutputPath,
		batch.FileSizeBytes,
		batch.ErrorMessage,
		batch.StartedAt,
		batch.CompletedAt,
		batch.CreatedAt,
	)
	return err
}

// UpdateStatus transitions a batch to a terminal or intermediate status.
// Completed and failed batches get a completion timestamp.
func (r *BatchRepository) UpdateStatus(ctx context.Context, id string, status models.BatchStatus, errorMessage string) error {
	query := r.dialect.rebind(`
		UPDATE timelapse_batches SET status = ?, error_message = ?, completed_at = ? WHERE id = ?
	`)

	var completedAt *time.Time
	if status == models.BatchCompleted || status == models.BatchFailed {
		now := time.Now().UTC()
		completedAt = &now
	}

	_, err := r.db.ExecContext(ctx, query, status, errorMessage, completedAt, id)
	return err
}

// UpdateTotalFrames records the frame count accumulated by a batch
func (r *BatchRepository) UpdateTotalFrames(ctx context.Context, id string, totalFrames int) error {
	query := r.dialect.rebind(`UPDATE timelapse_batches SET total_frames = ? WHERE id = ?`)

	_, err := r.db.ExecContext(ctx, query, totalFrames, id)
	return err
}

// UpdateOutput records the rendered video path and size for a batch
func (r *BatchRepository) UpdateOutput(ctx context.Context, id string, outputPath string, fileSizeBytes int64) error {
	query := r.dialect.rebind(`
		UPDATE timelapse_batches SET output_path = ?, file_size_bytes = ? WHERE id = ?
	`)

	_, err := r.db.ExecContext(ctx, query, outputPath, fileSizeBytes, id)
	return err
}

func scanBatch(row rowScanner) (*models.TimelapseBatch, error) {
	var batch models.TimelapseBatch
	var outputPath, errorMessage sql.NullString
	err := row.Scan(
		&batch.ID,
		&batch.CameraID,
		&batch.BatchType,
		&batch.Status,
		&batch.GenerationMode,
		&batch.TotalFrames,
		&batch.FrameRate,
		&outputPath,
		&batch.FileSizeBytes,
		&errorMessage,
		&batch.StartedAt,
		&batch.CompletedAt,
		&batch.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	batch.OutputPath = outputPath.String
	batch.ErrorMessage = errorMessage.String
	return &batch, nil
}
