package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/timelapser/server/internal/models"
)

func TestBuildCaptureArgs(t *testing.T) {
	t.Run("minimal", func(t *testing.T) {
		args := BuildCaptureArgs(CaptureSpec{
			StreamURL:  "rtsp://cam/stream",
			OutputPath: "/media/driveway/frames/driveway_20260830_120000.jpg",
		})

		assert.Equal(t, []string{
			"-y",
			"-rtsp_transport", "tcp",
			"-i", "rtsp://cam/stream",
			"-vframes", "1",
			"-q:v", "1",
			"/media/driveway/frames/driveway_20260830_120000.jpg",
		}, args)
	})

	t.Run("with resolution and rotation", func(t *testing.T) {
		args := BuildCaptureArgs(CaptureSpec{
			StreamURL:  "rtsp://cam/stream",
			OutputPath: "out.jpg",
			Width:      1920,
			Height:     1080,
			Rotation:   models.RotationLeft,
		})

		assert.Contains(t, args, "-s")
		assert.Contains(t, args, "1920x1080")
		assert.Contains(t, args, "-vf")
		assert.Contains(t, args, "transpose=2")
		assert.Equal(t, "out.jpg", args[len(args)-1])
	})

	t.Run("no scaling when only width set", func(t *testing.T) {
		args := BuildCaptureArgs(CaptureSpec{
			StreamURL:  "rtsp://cam/stream",
			OutputPath: "out.jpg",
			Width:      1920,
		})

		assert.NotContains(t, args, "-s")
	})
}

func TestBuildEncodeArgs(t *testing.T) {
	args := BuildEncodeArgs(EncodeSpec{
		FramePattern: "/media/driveway/frames/driveway_*.jpg",
		OutputPath:   "/media/driveway/timelapses/driveway_timelapse_daily_20260830.mp4",
		FrameRate:    24,
	})

	assert.Equal(t, []string{
		"-y",
		"-framerate", "24",
		"-pattern_type", "glob",
		"-i", "/media/driveway/frames/driveway_*.jpg",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"/media/driveway/timelapses/driveway_timelapse_daily_20260830.mp4",
	}, args)
}

func TestBuildEncodeArgsDefaultsFrameRate(t *testing.T) {
	args := BuildEncodeArgs(EncodeSpec{
		FramePattern: "frames/*.jpg",
		OutputPath:   "out.mp4",
	})

	assert.Contains(t, args, "30")
}

func TestRotationFilter(t *testing.T) {
	tests := []struct {
		rotation models.Rotation
		expected string
	}{
		{models.RotationNone, ""},
		{models.RotationLeft, "transpose=2"},
		{models.RotationRight, "transpose=1"},
		{models.RotationInvert, "transpose=1,transpose=1"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, RotationFilter(tt.rotation), "rotation %q", tt.rotation)
	}
}
