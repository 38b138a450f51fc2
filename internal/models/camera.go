package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CameraStatus describes the operational status of a camera
type CameraStatus string

const (
	StatusOnline   CameraStatus = "online"
	StatusOffline  CameraStatus = "offline"
	StatusError    CameraStatus = "error"
	StatusDisabled CameraStatus = "disabled"
)

// TimelapseState is the recording lifecycle state of a camera's timelapse
type TimelapseState string

const (
	TimelapseStopped TimelapseState = "stopped"
	TimelapseRunning TimelapseState = "running"
	TimelapsePaused  TimelapseState = "paused"
)

// Rotation describes how captured frames are rotated
type Rotation string

const (
	RotationNone   Rotation = "none"
	RotationLeft   Rotation = "left"
	RotationRight  Rotation = "right"
	RotationInvert Rotation = "invert"
)

// CameraState is the in-memory operational record for one configured camera.
// It is owned by the camera manager for the process lifetime; the database
// rows are its durable projection.
type CameraState struct {
	Name                string         `json:"name"`
	Status              CameraStatus   `json:"status"`
	LastCaptureTime     *time.Time     `json:"lastCaptureTime,omitempty"`
	LastError           string         `json:"lastError,omitempty"`
	ConsecutiveFailures int            `json:"consecutiveFailures"`
	TotalCaptures       int64          `json:"totalCaptures"`
	TimelapseState      TimelapseState `json:"timelapseState"`
	TimelapseFrameCount int            `json:"timelapseFrameCount"`
	TimelapseStartedAt  *time.Time     `json:"timelapseStartedAt,omitempty"`
	TimelapsePausedAt   *time.Time     `json:"timelapsePausedAt,omitempty"`
}

// Camera is the persisted record for a configured camera
type Camera struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	URLHash             string     `json:"urlHash"`
	Enabled             bool       `json:"enabled"`
	Rotation            Rotation   `json:"rotation"`
	DayCounterStartDate *time.Time `json:"dayCounterStartDate,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// NewCamera creates a persisted camera record for a configured camera.
// The camera URL is never stored raw; only a hash used for change detection.
func NewCamera(name, url string, enabled bool, rotation Rotation) (*Camera, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyCameraName
	}
	if rotation == "" {
		rotation = RotationNone
	}

	now := time.Now().UTC()
	return &Camera{
		ID:        uuid.New().String(),
		Name:      name,
		URLHash:   HashCameraURL(name, url),
		Enabled:   enabled,
		Rotation:  rotation,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HashCameraURL derives a stable opaque identifier from a camera name and URL
func HashCameraURL(name, url string) string {
	sum := sha256.Sum256([]byte(name + "_" + url))
	return hex.EncodeToString(sum[:])[:32]
}
