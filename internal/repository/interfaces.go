package repository

import (
	"context"
	"time"

	"github.com/timelapser/server/internal/models"
)

// CameraRepo defines the interface for camera persistence operations
type CameraRepo interface {
	GetByID(ctx context.Context, id string) (*models.Camera, error)
	GetByName(ctx context.Context, name string) (*models.Camera, error)
	GetAll(ctx context.Context) ([]*models.Camera, error)
	Add(ctx context.Context, camera *models.Camera) error
	Update(ctx context.Context, camera *models.Camera) error
}

// ImageRepo defines the interface for captured frame persistence
type ImageRepo interface {
	GetByID(ctx context.Context, id string) (*models.Image, error)
	GetByCamera(ctx context.Context, cameraID string, skip, take int) ([]*models.Image, error)
	GetCountByCamera(ctx context.Context, cameraID string) (int, error)
	Add(ctx context.Context, image *models.Image) error
	DeleteOlderThan(ctx context.Context, cameraID string, cutoff time.Time) (int64, error)
}

// BatchRepo defines the interface for timelapse batch persistence
type BatchRepo interface {
	GetByID(ctx context.Context, id string) (*models.TimelapseBatch, error)
	GetProcessingByCamera(ctx context.Context, cameraID string) ([]*models.TimelapseBatch, error)
	Add(ctx context.Context, batch *models.TimelapseBatch) error
	UpdateStatus(ctx context.Context, id string, status models.BatchStatus, errorMessage string) error
	UpdateTotalFrames(ctx context.Context, id string, totalFrames int) error
	UpdateOutput(ctx context.Context, id string, outputPath string, fileSizeBytes int64) error
}

// AttemptRepo defines the interface for capture attempt persistence
type AttemptRepo interface {
	Add(ctx context.Context, attempt *models.CaptureAttempt) error
	GetCounts(ctx context.Context) (total int64, succeeded int64, err error)
	GetRecentByCamera(ctx context.Context, cameraID string, take int) ([]*models.CaptureAttempt, error)
}
