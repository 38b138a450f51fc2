package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelapser/server/internal/config"
	"github.com/timelapser/server/internal/models"
)

func captureFixture(t *testing.T, cameras ...config.CameraConfig) (*managerFixture, *fakeCapturer, *CaptureService) {
	t.Helper()

	f := newManagerFixture(t, cameras...)
	for _, cc := range cameras {
		if cc.Enabled {
			_, err := f.manager.StartTimelapse(context.Background(), cc.Name)
			require.NoError(t, err)
		}
	}

	capturer := newFakeCapturer()
	service := NewCaptureService(capturer, f.manager, f.layout, nil)
	return f, capturer, service
}

func framesOnDisk(t *testing.T, f *managerFixture, camera string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(f.layout.FramesDir(camera), camera+"_*"))
	require.NoError(t, err)
	return matches
}

func testSettings() CaptureSettings {
	return CaptureSettings{
		ImageType: "jpg",
		Retries:   3,
	}
}

func TestCaptureOneSucceedsAfterRetries(t *testing.T) {
	f, capturer, service := captureFixture(t, drivewayConfig())
	capturer.failuresFor["rtsp://cam/driveway"] = 2

	target := f.manager.EligibleTargets()[0]
	err := service.CaptureOne(context.Background(), target, testSettings())
	require.NoError(t, err)

	// Two failed attempts plus the successful one.
	assert.Equal(t, 3, capturer.callCount())

	state, _ := f.manager.Get("driveway")
	assert.Equal(t, int64(1), state.TotalCaptures)
	assert.Equal(t, models.StatusOnline, state.Status)

	// Only the end-to-end outcome is recorded, not the inner retries.
	assert.Equal(t, 1, f.attemptRepo.count())
	assert.Equal(t, 1, f.imageRepo.count())
}

func TestCaptureOneExhaustsRetries(t *testing.T) {
	f, capturer, service := captureFixture(t, drivewayConfig())
	capturer.failuresFor["rtsp://cam/driveway"] = 10

	target := f.manager.EligibleTargets()[0]
	err := service.CaptureOne(context.Background(), target, testSettings())
	require.Error(t, err)

	assert.Equal(t, 3, capturer.callCount())

	state, _ := f.manager.Get("driveway")
	assert.Equal(t, models.StatusError, state.Status)
	assert.Equal(t, 1, state.ConsecutiveFailures)
	assert.Zero(t, state.TotalCaptures)
	assert.Zero(t, f.imageRepo.count())
}

func TestCaptureOneRejectsEmptyFrame(t *testing.T) {
	f, capturer, service := captureFixture(t, drivewayConfig())
	capturer.emptyFile = true

	target := f.manager.EligibleTargets()[0]
	err := service.CaptureOne(context.Background(), target, testSettings())
	require.ErrorIs(t, err, errEmptyFrame)

	// The empty files must not survive to pollute a render.
	frames := framesOnDisk(t, f, "driveway")
	assert.Empty(t, frames)

	state, _ := f.manager.Get("driveway")
	assert.Equal(t, models.StatusError, state.Status)
}

func TestCaptureAllFansOut(t *testing.T) {
	cameras := []config.CameraConfig{
		{Name: "cam1", URL: "rtsp://cam/1", Enabled: true},
		{Name: "cam2", URL: "rtsp://cam/2", Enabled: true},
		{Name: "cam3", URL: "rtsp://cam/3", Enabled: true},
		{Name: "cam4", URL: "rtsp://cam/4", Enabled: true},
		{Name: "cam5", URL: "rtsp://cam/5", Enabled: true},
	}
	f, capturer, service := captureFixture(t, cameras...)
	capturer.failuresFor["rtsp://cam/3"] = 10

	results := service.CaptureAll(context.Background(), testSettings())
	require.Len(t, results, 5)

	failures := 0
	for name, err := range results {
		if err != nil {
			failures++
			assert.Equal(t, "cam3", name)
		}
	}
	assert.Equal(t, 1, failures)

	state, _ := f.manager.Get("cam1")
	assert.Equal(t, int64(1), state.TotalCaptures)
}

func TestCaptureAllSkipsDisabledCameras(t *testing.T) {
	_, _, service := captureFixture(t,
		drivewayConfig(),
		config.CameraConfig{Name: "garden", URL: "rtsp://cam/garden", Enabled: false},
	)

	results := service.CaptureAll(context.Background(), testSettings())
	require.Len(t, results, 1)
	assert.Contains(t, results, "driveway")
}

func TestCaptureAllCancelled(t *testing.T) {
	f, _, service := captureFixture(t, drivewayConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := service.CaptureAll(ctx, testSettings())
	assert.Empty(t, results)

	// A cancelled cycle must not advance any counters.
	state, _ := f.manager.Get("driveway")
	assert.Zero(t, state.TotalCaptures)
	assert.Zero(t, state.TimelapseFrameCount)
}

func TestCaptureAllNoCameras(t *testing.T) {
	_, _, service := captureFixture(t)

	results := service.CaptureAll(context.Background(), testSettings())
	assert.Empty(t, results)
}

func TestCaptureOneRetryDelayHonorsCancellation(t *testing.T) {
	f, capturer, service := captureFixture(t, drivewayConfig())
	capturer.failuresFor["rtsp://cam/driveway"] = 10

	settings := testSettings()
	settings.RetryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	target := f.manager.EligibleTargets()[0]
	err := service.CaptureOne(ctx, target, settings)

	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
