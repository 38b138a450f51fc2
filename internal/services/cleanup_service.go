package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/timelapser/server/internal/observability"
	"github.com/timelapser/server/internal/repository"
)

// CleanupService enforces retention: old frame files and their database
// records, and aged-out continuous timelapse videos.
type CleanupService struct {
	manager   *CameraManager
	imageRepo repository.ImageRepo
	layout    StorageLayout
	metrics   *observability.CaptureMetrics
	logger    *observability.Logger

	mu          sync.Mutex
	lastVideoGC map[string]time.Time
}

// NewCleanupService creates a new CleanupService. Metrics may be nil.
func NewCleanupService(
	manager *CameraManager,
	imageRepo repository.ImageRepo,
	layout StorageLayout,
	metrics *observability.CaptureMetrics,
) *CleanupService {
	return &CleanupService{
		manager:     manager,
		imageRepo:   imageRepo,
		layout:      layout,
		metrics:     metrics,
		logger:      observability.GetLogger().WithField("service", "cleanup"),
		lastVideoGC: make(map[string]time.Time),
	}
}

// Run purges old frames for every camera on an hourly cadence until the
// context is cancelled
func (s *CleanupService) Run(ctx context.Context, cleanupDays int) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	// First pass immediately so a long-stopped deployment catches up.
	s.purgeAll(ctx, cleanupDays)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeAll(ctx, cleanupDays)
		}
	}
}

func (s *CleanupService) purgeAll(ctx context.Context, cleanupDays int) {
	if cleanupDays <= 0 {
		return
	}
	for _, target := range s.manager.AllTargets() {
		if ctx.Err() != nil {
			return
		}
		s.PurgeOldFrames(ctx, target.Name, target.CameraID, cleanupDays)
	}
}

// PurgeOldFrames removes the camera's frame files older than cleanupDays
// and the image records that describe them
func (s *CleanupService) PurgeOldFrames(ctx context.Context, camera, cameraID string, cleanupDays int) {
	if cleanupDays <= 0 {
		return
	}

	cutoff := time.Now().Add(-time.Duration(cleanupDays) * 24 * time.Hour)
	removed := s.removeFilesOlderThan(filepath.Join(s.layout.FramesDir(camera), camera+"_*"), cutoff)

	if removed > 0 {
		s.logger.WithCamera(camera).Infof("Purged %d frames older than %d days", removed, cleanupDays)
		if s.metrics != nil {
			s.metrics.RecordFramesPurged(ctx, camera, removed)
		}
	}

	if deleted, err := s.imageRepo.DeleteOlderThan(ctx, cameraID, cutoff.UTC()); err != nil {
		s.logger.Warnf("Failed to delete old image records for %s: %v", camera, err)
	} else if deleted > 0 {
		s.logger.WithCamera(camera).Debugf("Deleted %d image records", deleted)
	}
}

// CleanupContinuousVideos removes continuous renders older than maxAgeHours.
// Throttled to once per hour per camera since it runs inside the capture
// cycle.
func (s *CleanupService) CleanupContinuousVideos(camera string, maxAgeHours int) {
	if maxAgeHours <= 0 {
		return
	}

	now := time.Now()

	s.mu.Lock()
	if last, ok := s.lastVideoGC[camera]; ok && now.Sub(last) < time.Hour {
		s.mu.Unlock()
		return
	}
	s.lastVideoGC[camera] = now
	s.mu.Unlock()

	cutoff := now.Add(-time.Duration(maxAgeHours) * time.Hour)
	removed := s.removeFilesOlderThan(filepath.Join(s.layout.ContinuousDir(camera), camera+"_*"), cutoff)

	if removed > 0 {
		s.logger.WithCamera(camera).Infof("Removed %d continuous videos older than %dh", removed, maxAgeHours)
	}
}

func (s *CleanupService) removeFilesOlderThan(pattern string, cutoff time.Time) int {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0
	}

	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			s.logger.Warnf("Failed to remove %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed
}
