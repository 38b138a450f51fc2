package ffmpeg

import (
	"fmt"

	"github.com/timelapser/server/internal/models"
)

// CaptureSpec describes a single still-frame grab from a camera stream
type CaptureSpec struct {
	StreamURL  string
	OutputPath string
	Width      int
	Height     int
	Rotation   models.Rotation
}

// EncodeSpec describes one timelapse render from a directory of frames
type EncodeSpec struct {
	FramePattern string // glob over the frame files, chronological by name
	OutputPath   string
	FrameRate    int
	Rotation     models.Rotation
}

// RotationFilter returns the ffmpeg video filter for a rotation, or ""
// when no filtering is needed
func RotationFilter(r models.Rotation) string {
	switch r {
	case models.RotationLeft:
		return "transpose=2"
	case models.RotationRight:
		return "transpose=1"
	case models.RotationInvert:
		return "transpose=1,transpose=1"
	default:
		return ""
	}
}

// BuildCaptureArgs builds the ffmpeg argument list for grabbing a single
// frame over RTSP. TCP transport avoids the packet loss artifacts UDP
// produces on congested networks.
func BuildCaptureArgs(spec CaptureSpec) []string {
	args := []string{
		"-y",
		"-rtsp_transport", "tcp",
		"-i", spec.StreamURL,
		"-vframes", "1",
		"-q:v", "1",
	}

	if spec.Width > 0 && spec.Height > 0 {
		args = append(args, "-s", fmt.Sprintf("%dx%d", spec.Width, spec.Height))
	}

	if filter := RotationFilter(spec.Rotation); filter != "" {
		args = append(args, "-vf", filter)
	}

	return append(args, spec.OutputPath)
}

// BuildEncodeArgs builds the ffmpeg argument list for rendering a timelapse
// video from frame files matching a glob pattern.
func BuildEncodeArgs(spec EncodeSpec) []string {
	frameRate := spec.FrameRate
	if frameRate <= 0 {
		frameRate = 30
	}

	args := []string{
		"-y",
		"-framerate", fmt.Sprintf("%d", frameRate),
		"-pattern_type", "glob",
		"-i", spec.FramePattern,
	}

	if filter := RotationFilter(spec.Rotation); filter != "" {
		args = append(args, "-vf", filter)
	}

	return append(args,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		spec.OutputPath,
	)
}
