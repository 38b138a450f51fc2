package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelapser/server/internal/config"
	"github.com/timelapser/server/internal/models"
)

type managerFixture struct {
	manager     *CameraManager
	cameraRepo  *fakeCameraRepo
	imageRepo   *fakeImageRepo
	batchRepo   *fakeBatchRepo
	attemptRepo *fakeAttemptRepo
	layout      StorageLayout
}

func newManagerFixture(t *testing.T, cameras ...config.CameraConfig) *managerFixture {
	t.Helper()

	f := &managerFixture{
		cameraRepo:  newFakeCameraRepo(),
		imageRepo:   newFakeImageRepo(),
		batchRepo:   newFakeBatchRepo(),
		attemptRepo: newFakeAttemptRepo(),
		layout:      StorageLayout{Root: t.TempDir()},
	}
	f.manager = NewCameraManager(f.cameraRepo, f.imageRepo, f.batchRepo, f.attemptRepo, f.layout, nil)

	if len(cameras) > 0 {
		require.NoError(t, f.manager.Reconcile(context.Background(), cameras))
	}
	return f
}

func drivewayConfig() config.CameraConfig {
	return config.CameraConfig{
		Name:    "driveway",
		URL:     "rtsp://cam/driveway",
		Enabled: true,
	}
}

func TestReconcileRegistersCamera(t *testing.T) {
	f := newManagerFixture(t, drivewayConfig())

	record, err := f.cameraRepo.GetByName(context.Background(), "driveway")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, models.HashCameraURL("driveway", "rtsp://cam/driveway"), record.URLHash)

	state, ok := f.manager.Get("driveway")
	require.True(t, ok)
	assert.Equal(t, models.TimelapseStopped, state.TimelapseState)
	assert.Equal(t, models.StatusOffline, state.Status)

	assert.DirExists(t, f.layout.FramesDir("driveway"))
	assert.DirExists(t, f.layout.TimelapsesDir("driveway"))
	assert.DirExists(t, f.layout.ContinuousDir("driveway"))
}

func TestReconcileDetectsURLChange(t *testing.T) {
	f := newManagerFixture(t, drivewayConfig())

	changed := drivewayConfig()
	changed.URL = "rtsp://cam/driveway-new"
	require.NoError(t, f.manager.Reconcile(context.Background(), []config.CameraConfig{changed}))

	record, err := f.cameraRepo.GetByName(context.Background(), "driveway")
	require.NoError(t, err)
	assert.Equal(t, models.HashCameraURL("driveway", "rtsp://cam/driveway-new"), record.URLHash)
	assert.Equal(t, 1, f.cameraRepo.updates)
}

func TestReconcileRecoversProcessingBatch(t *testing.T) {
	f := newManagerFixture(t, drivewayConfig())
	ctx := context.Background()

	cameraID := f.manager.CameraID("driveway")
	require.NotEmpty(t, cameraID)

	older, err := models.NewTimelapseBatch(cameraID, models.BatchContinuous, models.GeneratePeriodic, 30)
	require.NoError(t, err)
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	older.TotalFrames = 5
	require.NoError(t, f.batchRepo.Add(ctx, older))

	newest, err := models.NewTimelapseBatch(cameraID, models.BatchContinuous, models.GeneratePeriodic, 30)
	require.NoError(t, err)
	newest.TotalFrames = 42
	require.NoError(t, f.batchRepo.Add(ctx, newest))

	// Simulate restart: re-reconcile the same camera.
	require.NoError(t, f.manager.Reconcile(ctx, []config.CameraConfig{drivewayConfig()}))

	state, ok := f.manager.Get("driveway")
	require.True(t, ok)
	assert.Equal(t, models.TimelapseRunning, state.TimelapseState)
	assert.Equal(t, 42, state.TimelapseFrameCount)
	assert.Equal(t, newest.ID, f.manager.ActiveBatchID("driveway"))

	stale := f.batchRepo.get(older.ID)
	require.NotNil(t, stale)
	assert.Equal(t, models.BatchCompleted, stale.Status)
	assert.Equal(t, models.StaleBatchMessage, stale.ErrorMessage)
}

func TestTimelapseLifecycle(t *testing.T) {
	f := newManagerFixture(t, drivewayConfig())
	ctx := context.Background()

	t.Run("start creates batch", func(t *testing.T) {
		state, err := f.manager.StartTimelapse(ctx, "driveway")
		require.NoError(t, err)
		assert.Equal(t, models.TimelapseRunning, state.TimelapseState)
		assert.NotNil(t, state.TimelapseStartedAt)
		assert.Equal(t, 0, state.TimelapseFrameCount)

		batchID := f.manager.ActiveBatchID("driveway")
		require.NotEmpty(t, batchID)
		batch := f.batchRepo.get(batchID)
		require.NotNil(t, batch)
		assert.Equal(t, models.BatchProcessing, batch.Status)
	})

	t.Run("start while running is idempotent", func(t *testing.T) {
		before, _ := f.manager.Get("driveway")
		batchBefore := f.manager.ActiveBatchID("driveway")

		state, err := f.manager.StartTimelapse(ctx, "driveway")
		require.NoError(t, err)
		assert.Equal(t, before.TimelapseStartedAt, state.TimelapseStartedAt)
		assert.Equal(t, batchBefore, f.manager.ActiveBatchID("driveway"))
	})

	t.Run("pause and resume", func(t *testing.T) {
		state, err := f.manager.PauseTimelapse(ctx, "driveway")
		require.NoError(t, err)
		assert.Equal(t, models.TimelapsePaused, state.TimelapseState)
		assert.NotNil(t, state.TimelapsePausedAt)

		// Pausing twice is a conflict.
		_, err = f.manager.PauseTimelapse(ctx, "driveway")
		assert.ErrorIs(t, err, models.ErrTimelapseNotRunning)

		state, err = f.manager.ResumeTimelapse(ctx, "driveway")
		require.NoError(t, err)
		assert.Equal(t, models.TimelapseRunning, state.TimelapseState)
		assert.Nil(t, state.TimelapsePausedAt)

		_, err = f.manager.ResumeTimelapse(ctx, "driveway")
		assert.ErrorIs(t, err, models.ErrTimelapseNotPaused)
	})

	t.Run("start while paused begins a fresh session", func(t *testing.T) {
		result := CaptureResult{
			FilePath:   filepath.Join(f.layout.FramesDir("driveway"), "driveway_20260830_090000.jpg"),
			FileSize:   100,
			CapturedAt: time.Now(),
		}
		require.NoError(t, f.manager.RecordSuccess(ctx, "driveway", result))

		pausedBatch := f.manager.ActiveBatchID("driveway")
		_, err := f.manager.PauseTimelapse(ctx, "driveway")
		require.NoError(t, err)

		state, err := f.manager.StartTimelapse(ctx, "driveway")
		require.NoError(t, err)
		assert.Equal(t, models.TimelapseRunning, state.TimelapseState)
		assert.Equal(t, 0, state.TimelapseFrameCount)
		assert.Nil(t, state.TimelapsePausedAt)

		// The paused session's batch is closed and a new one begins.
		assert.NotEqual(t, pausedBatch, f.manager.ActiveBatchID("driveway"))
		closed := f.batchRepo.get(pausedBatch)
		require.NotNil(t, closed)
		assert.Equal(t, models.BatchCompleted, closed.Status)
		assert.Equal(t, 1, closed.TotalFrames)
	})

	t.Run("stop completes batch", func(t *testing.T) {
		batchID := f.manager.ActiveBatchID("driveway")

		state, err := f.manager.StopTimelapse(ctx, "driveway")
		require.NoError(t, err)
		assert.Equal(t, models.TimelapseStopped, state.TimelapseState)
		assert.Nil(t, state.TimelapseStartedAt)
		assert.Empty(t, f.manager.ActiveBatchID("driveway"))

		batch := f.batchRepo.get(batchID)
		require.NotNil(t, batch)
		assert.Equal(t, models.BatchCompleted, batch.Status)
		assert.NotNil(t, batch.CompletedAt)
	})

	t.Run("stop while stopped is idempotent", func(t *testing.T) {
		state, err := f.manager.StopTimelapse(ctx, "driveway")
		require.NoError(t, err)
		assert.Equal(t, models.TimelapseStopped, state.TimelapseState)
	})

	t.Run("unknown camera", func(t *testing.T) {
		_, err := f.manager.StartTimelapse(ctx, "nope")
		assert.ErrorIs(t, err, models.ErrCameraNotFound)
	})
}

func TestResetDeletesFrames(t *testing.T) {
	f := newManagerFixture(t, drivewayConfig())
	ctx := context.Background()

	_, err := f.manager.StartTimelapse(ctx, "driveway")
	require.NoError(t, err)

	framesDir := f.layout.FramesDir("driveway")
	for _, name := range []string{"driveway_20260830_100000.jpg", "driveway_20260830_100500.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(framesDir, name), []byte("x"), 0644))
	}
	// Another camera's file in the same dir should survive.
	require.NoError(t, os.WriteFile(filepath.Join(framesDir, "other_20260830_100000.jpg"), []byte("x"), 0644))

	state, err := f.manager.ResetTimelapse(ctx, "driveway")
	require.NoError(t, err)
	assert.Equal(t, models.TimelapseStopped, state.TimelapseState)
	assert.Equal(t, 0, state.TimelapseFrameCount)

	remaining, err := filepath.Glob(filepath.Join(framesDir, "*"))
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Contains(t, remaining[0], "other_")
}

func TestRecordSuccess(t *testing.T) {
	f := newManagerFixture(t, drivewayConfig())
	ctx := context.Background()

	_, err := f.manager.StartTimelapse(ctx, "driveway")
	require.NoError(t, err)

	framePath := filepath.Join(f.layout.FramesDir("driveway"), "driveway_20260830_100000.jpg")
	result := CaptureResult{
		FilePath:   framePath,
		FileSize:   1234,
		CapturedAt: time.Now(),
		Duration:   2 * time.Second,
	}
	require.NoError(t, f.manager.RecordSuccess(ctx, "driveway", result))

	state, _ := f.manager.Get("driveway")
	assert.Equal(t, int64(1), state.TotalCaptures)
	assert.Equal(t, 1, state.TimelapseFrameCount)
	assert.Equal(t, models.StatusOnline, state.Status)
	assert.Zero(t, state.ConsecutiveFailures)
	assert.NotNil(t, state.LastCaptureTime)

	assert.Equal(t, 1, f.imageRepo.count())
	assert.Equal(t, 1, f.attemptRepo.count())

	batch := f.batchRepo.get(f.manager.ActiveBatchID("driveway"))
	require.NotNil(t, batch)
	assert.Equal(t, 1, batch.TotalFrames)
}

func TestRecordSuccessWhileStoppedDoesNotCountFrames(t *testing.T) {
	f := newManagerFixture(t, drivewayConfig())
	ctx := context.Background()

	result := CaptureResult{
		FilePath:   filepath.Join(f.layout.FramesDir("driveway"), "driveway_20260830_100000.jpg"),
		FileSize:   100,
		CapturedAt: time.Now(),
	}
	require.NoError(t, f.manager.RecordSuccess(ctx, "driveway", result))

	state, _ := f.manager.Get("driveway")
	assert.Equal(t, int64(1), state.TotalCaptures)
	assert.Equal(t, 0, state.TimelapseFrameCount)
}

func TestRecordFailure(t *testing.T) {
	f := newManagerFixture(t, drivewayConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.manager.RecordFailure(ctx, "driveway", models.CaptureFailed, "connection refused", time.Second))
	}

	state, _ := f.manager.Get("driveway")
	assert.Equal(t, models.StatusError, state.Status)
	assert.Equal(t, 3, state.ConsecutiveFailures)
	assert.Equal(t, "connection refused", state.LastError)

	summary := f.manager.Summaries()["driveway"]
	assert.False(t, summary.IsHealthy)
}

func TestStats(t *testing.T) {
	f := newManagerFixture(t, drivewayConfig(), config.CameraConfig{
		Name:    "garden",
		URL:     "rtsp://cam/garden",
		Enabled: false,
	})
	ctx := context.Background()

	result := CaptureResult{
		FilePath:   filepath.Join(f.layout.FramesDir("driveway"), "driveway_20260830_100000.jpg"),
		FileSize:   100,
		CapturedAt: time.Now(),
	}
	require.NoError(t, f.manager.RecordSuccess(ctx, "driveway", result))
	require.NoError(t, f.manager.RecordFailure(ctx, "driveway", models.CaptureFailed, "boom", time.Second))

	stats, err := f.manager.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalCameras)
	assert.Equal(t, 1, stats.EnabledCameras)
	assert.Equal(t, int64(1), stats.TotalCaptures)
	assert.InDelta(t, 0.5, stats.CaptureSuccessRate, 0.001)
}

func TestEligibleTargets(t *testing.T) {
	f := newManagerFixture(t,
		drivewayConfig(),
		config.CameraConfig{Name: "garden", URL: "rtsp://cam/garden", Enabled: false},
		config.CameraConfig{Name: "porch", URL: "rtsp://cam/porch", Enabled: true},
	)
	ctx := context.Background()

	// Nobody is recording yet, so nothing is eligible.
	assert.Empty(t, f.manager.EligibleTargets())

	_, err := f.manager.StartTimelapse(ctx, "driveway")
	require.NoError(t, err)

	// porch is enabled but stopped, garden is disabled.
	targets := f.manager.EligibleTargets()
	require.Len(t, targets, 1)
	assert.Equal(t, "driveway", targets[0].Name)

	_, err = f.manager.PauseTimelapse(ctx, "driveway")
	require.NoError(t, err)
	assert.Empty(t, f.manager.EligibleTargets())

	// Maintenance sweeps see every camera regardless of state.
	assert.Len(t, f.manager.AllTargets(), 3)
}
