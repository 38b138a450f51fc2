package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CaptureStatus is the outcome of a single capture attempt
type CaptureStatus string

const (
	CaptureSuccess CaptureStatus = "success"
	CaptureFailed  CaptureStatus = "failed"
	CaptureTimeout CaptureStatus = "timeout"
	CaptureError   CaptureStatus = "error"
)

// CaptureAttempt is an append-only audit record of one end-to-end capture
// operation for a camera. It is never mutated after creation.
type CaptureAttempt struct {
	ID           string        `json:"id"`
	CameraID     string        `json:"cameraId"`
	Status       CaptureStatus `json:"status"`
	ImageID      *string       `json:"imageId,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	DurationMS   int64         `json:"durationMs"`
	AttemptedAt  time.Time     `json:"attemptedAt"`
}

// NewCaptureAttempt creates an audit record for a capture outcome
func NewCaptureAttempt(cameraID string, status CaptureStatus, duration time.Duration) (*CaptureAttempt, error) {
	if cameraID == "" {
		return nil, ErrEmptyCameraID
	}

	return &CaptureAttempt{
		ID:          uuid.New().String(),
		CameraID:    cameraID,
		Status:      status,
		DurationMS:  duration.Milliseconds(),
		AttemptedAt: time.Now().UTC(),
	}, nil
}

// Image is the persisted record for one successfully captured frame
type Image struct {
	ID            string    `json:"id"`
	CameraID      string    `json:"cameraId"`
	Filename      string    `json:"filename"`
	FilePath      string    `json:"filePath"`
	FileSizeBytes int64     `json:"fileSizeBytes"`
	Width         *int      `json:"width,omitempty"`
	Height        *int      `json:"height,omitempty"`
	Format        string    `json:"format"`
	DayNumber     *int      `json:"dayNumber,omitempty"`
	CapturedAt    time.Time `json:"capturedAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewImage creates an image record for a frame file on disk
func NewImage(cameraID, filePath string, fileSize int64, capturedAt time.Time) (*Image, error) {
	if cameraID == "" {
		return nil, ErrEmptyCameraID
	}
	if strings.TrimSpace(filePath) == "" {
		return nil, ErrEmptyFilePath
	}
	if fileSize <= 0 {
		return nil, ErrInvalidFileSize
	}

	return &Image{
		ID:            uuid.New().String(),
		CameraID:      cameraID,
		Filename:      filepath.Base(filePath),
		FilePath:      filePath,
		FileSizeBytes: fileSize,
		Format:        strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), "."),
		CapturedAt:    capturedAt.UTC(),
		CreatedAt:     time.Now().UTC(),
	}, nil
}
