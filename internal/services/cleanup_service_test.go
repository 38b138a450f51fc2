package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelapser/server/internal/models"
)

func cleanupFixture(t *testing.T) (*managerFixture, *CleanupService) {
	t.Helper()
	f := newManagerFixture(t, drivewayConfig())
	return f, NewCleanupService(f.manager, f.imageRepo, f.layout, nil)
}

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
}

func TestPurgeOldFrames(t *testing.T) {
	f, cleanup := cleanupFixture(t)
	ctx := context.Background()
	framesDir := f.layout.FramesDir("driveway")

	writeAged(t, filepath.Join(framesDir, "driveway_20260701_100000.jpg"), 40*24*time.Hour)
	writeAged(t, filepath.Join(framesDir, "driveway_20260829_100000.jpg"), 24*time.Hour)

	oldImage, err := models.NewImage(f.manager.CameraID("driveway"), "driveway_20260701_100000.jpg", 10, time.Now().Add(-40*24*time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.imageRepo.Add(ctx, oldImage))

	cleanup.PurgeOldFrames(ctx, "driveway", f.manager.CameraID("driveway"), 30)

	remaining, err := filepath.Glob(filepath.Join(framesDir, "*"))
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Contains(t, remaining[0], "20260829")

	assert.Zero(t, f.imageRepo.count())
}

func TestPurgeOldFramesDisabled(t *testing.T) {
	f, cleanup := cleanupFixture(t)
	framesDir := f.layout.FramesDir("driveway")

	writeAged(t, filepath.Join(framesDir, "driveway_20260701_100000.jpg"), 365*24*time.Hour)

	cleanup.PurgeOldFrames(context.Background(), "driveway", f.manager.CameraID("driveway"), 0)

	remaining, _ := filepath.Glob(filepath.Join(framesDir, "*"))
	assert.Len(t, remaining, 1)
}

func TestCleanupContinuousVideos(t *testing.T) {
	f, cleanup := cleanupFixture(t)
	dir := f.layout.ContinuousDir("driveway")

	writeAged(t, filepath.Join(dir, "driveway_timelapse_daily_20260828.mp4"), 48*time.Hour)
	writeAged(t, filepath.Join(dir, "driveway_timelapse_daily_20260830.mp4"), time.Hour)

	cleanup.CleanupContinuousVideos("driveway", 24)

	remaining, err := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Contains(t, remaining[0], "20260830")
}

func TestCleanupContinuousVideosThrottled(t *testing.T) {
	f, cleanup := cleanupFixture(t)
	dir := f.layout.ContinuousDir("driveway")

	cleanup.CleanupContinuousVideos("driveway", 24)

	// A file that ages out right after a sweep survives until the next
	// hourly window.
	writeAged(t, filepath.Join(dir, "driveway_timelapse_daily_20260801.mp4"), 72*time.Hour)
	cleanup.CleanupContinuousVideos("driveway", 24)

	remaining, _ := filepath.Glob(filepath.Join(dir, "*"))
	assert.Len(t, remaining, 1)
}
