package models

import "time"

// HealthResponse is returned by the health endpoints
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is the standard error body for API failures
type ErrorResponse struct {
	Error string `json:"error"`
}

// ControlResponse is returned by timelapse control endpoints
type ControlResponse struct {
	Camera         string         `json:"camera"`
	Action         string         `json:"action"`
	TimelapseState TimelapseState `json:"timelapseState"`
	Message        string         `json:"message,omitempty"`
}

// CameraSummary is the per-camera health view exposed to operators
type CameraSummary struct {
	Status              CameraStatus `json:"status"`
	LastCapture         *time.Time   `json:"lastCapture,omitempty"`
	TotalCaptures       int64        `json:"totalCaptures"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	LastError           string       `json:"lastError,omitempty"`
	IsHealthy           bool         `json:"isHealthy"`
}

// SystemStats is the aggregate view across all cameras
type SystemStats struct {
	TotalCameras       int     `json:"totalCameras"`
	EnabledCameras     int     `json:"enabledCameras"`
	HealthyCameras     int     `json:"healthyCameras"`
	UnhealthyCameras   int     `json:"unhealthyCameras"`
	TotalCaptures      int64   `json:"totalCaptures"`
	CaptureSuccessRate float64 `json:"captureSuccessRate"`
}
