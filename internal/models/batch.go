package models

import (
	"time"

	"github.com/google/uuid"
)

// BatchType classifies a timelapse batch
type BatchType string

const (
	BatchContinuous BatchType = "continuous"
	BatchCheckpoint BatchType = "checkpoint"
	BatchManual     BatchType = "manual"
)

// BatchStatus is the processing status of a timelapse batch
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// GenerationMode controls when automatic timelapse encoding fires
type GenerationMode string

const (
	GenerateEveryCapture GenerationMode = "every_capture"
	GeneratePeriodic     GenerationMode = "periodic"
	GenerateManualOnly   GenerationMode = "manual_only"
)

// StaleBatchMessage is recorded on batches force-completed during startup
// reconciliation after an unclean shutdown.
const StaleBatchMessage = "auto-completed due to restart"

// TimelapseBatch is one recording session for a camera, spanning start to
// stop, during which frames accumulate into eventual video output.
type TimelapseBatch struct {
	ID             string         `json:"id"`
	CameraID       string         `json:"cameraId"`
	BatchType      BatchType      `json:"batchType"`
	Status         BatchStatus    `json:"status"`
	GenerationMode GenerationMode `json:"generationMode"`
	TotalFrames    int            `json:"totalFrames"`
	FrameRate      int            `json:"frameRate"`
	OutputPath     string         `json:"outputPath,omitempty"`
	FileSizeBytes  int64          `json:"fileSizeBytes,omitempty"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// NewTimelapseBatch creates a batch in the processing state
func NewTimelapseBatch(cameraID string, batchType BatchType, mode GenerationMode, frameRate int) (*TimelapseBatch, error) {
	if cameraID == "" {
		return nil, ErrEmptyCameraID
	}
	if frameRate <= 0 {
		frameRate = 30
	}

	now := time.Now().UTC()
	return &TimelapseBatch{
		ID:             uuid.New().String(),
		CameraID:       cameraID,
		BatchType:      batchType,
		Status:         BatchProcessing,
		GenerationMode: mode,
		FrameRate:      frameRate,
		StartedAt:      &now,
		CreatedAt:      now,
	}, nil
}
