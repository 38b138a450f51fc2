package models

// StateError is a domain error with a stable message, comparable with errors.Is
type StateError struct {
	Message string
}

func (e StateError) Error() string {
	return e.Message
}

var (
	ErrEmptyCameraName = StateError{"camera name cannot be empty"}
	ErrEmptyCameraID   = StateError{"camera id cannot be empty"}
	ErrEmptyFilePath   = StateError{"file path cannot be empty"}
	ErrInvalidFileSize = StateError{"file size must be positive"}

	ErrCameraNotFound      = StateError{"camera not found"}
	ErrTimelapseNotRunning = StateError{"timelapse is not running"}
	ErrTimelapseNotPaused  = StateError{"timelapse is not paused"}
)
