package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/timelapser/server/internal/ffmpeg"
	"github.com/timelapser/server/internal/models"
	"github.com/timelapser/server/internal/observability"
	"github.com/timelapser/server/internal/timeutil"
)

// Capturer grabs a single frame from a camera stream
type Capturer interface {
	Capture(ctx context.Context, spec ffmpeg.CaptureSpec) error
}

// CaptureSettings are the per-cycle capture parameters from configuration
type CaptureSettings struct {
	ImageType          string
	Width              int
	Height             int
	Retries            int
	RetryDelay         time.Duration
	Timeout            time.Duration
	MaxImageSizeKB     int
	CompressionQuality int
	QualityStep        int
}

var errEmptyFrame = errors.New("capture produced an empty file")

// CaptureService runs the capture pipeline: frame grab with retries, size
// validation, compression, metadata extraction, and state reporting.
type CaptureService struct {
	capturer   Capturer
	manager    *CameraManager
	layout     StorageLayout
	compressor *CompressionService
	metadata   *MetadataService
	metrics    *observability.CaptureMetrics
	logger     *observability.Logger
}

// NewCaptureService creates a new CaptureService. Metrics may be nil.
func NewCaptureService(
	capturer Capturer,
	manager *CameraManager,
	layout StorageLayout,
	metrics *observability.CaptureMetrics,
) *CaptureService {
	return &CaptureService{
		capturer:   capturer,
		manager:    manager,
		layout:     layout,
		compressor: NewCompressionService(),
		metadata:   NewMetadataService(),
		metrics:    metrics,
		logger:     observability.GetLogger().WithField("service", "capture"),
	}
}

// CaptureAll fans out one capture per eligible camera and joins the
// results. A cancelled context aborts the cycle: in-flight ffmpeg processes
// are killed and an empty map is returned.
func (s *CaptureService) CaptureAll(ctx context.Context, settings CaptureSettings) map[string]error {
	targets := s.manager.EligibleTargets()
	if len(targets) == 0 {
		return map[string]error{}
	}

	type outcome struct {
		name string
		err  error
	}

	results := make(chan outcome, len(targets))
	for _, target := range targets {
		go func(t CaptureTarget) {
			results <- outcome{name: t.Name, err: s.CaptureOne(ctx, t, settings)}
		}(target)
	}

	joined := make(map[string]error, len(targets))
	for range targets {
		select {
		case <-ctx.Done():
			return map[string]error{}
		case r := <-results:
			joined[r.name] = r.err
		}
	}
	return joined
}

// CaptureOne captures a single frame for one camera, retrying transient
// failures. On success the frame is compressed if oversized, its metadata
// extracted, and the result reported to the camera manager.
func (s *CaptureService) CaptureOne(ctx context.Context, target CaptureTarget, settings CaptureSettings) error {
	start := time.Now()
	logger := s.logger.WithCamera(target.Name)

	imageType := settings.ImageType
	if imageType == "" {
		imageType = "jpg"
	}
	retries := settings.Retries
	if retries <= 0 {
		retries = 1
	}

	capturedAt := time.Now()
	outputPath := filepath.Join(s.layout.FramesDir(target.Name),
		timeutil.TimestampedName(target.Name, capturedAt, imageType))

	spec := ffmpeg.CaptureSpec{
		StreamURL:  target.URL,
		OutputPath: outputPath,
		Width:      settings.Width,
		Height:     settings.Height,
		Rotation:   target.Rotation,
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		lastErr = s.attemptCapture(ctx, spec, settings.Timeout)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warnf("Capture attempt %d/%d failed: %v", attempt, retries, lastErr)

		if attempt < retries && settings.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(settings.RetryDelay):
			}
		}
	}

	duration := time.Since(start)

	if lastErr != nil {
		status := models.CaptureFailed
		if errors.Is(lastErr, context.DeadlineExceeded) {
			status = models.CaptureTimeout
		}
		if err := s.manager.RecordFailure(ctx, target.Name, status, lastErr.Error(), duration); err != nil {
			logger.Errorf("Failed to record capture failure: %v", err)
		}
		if s.metrics != nil {
			s.metrics.RecordCapture(ctx, target.Name, duration, false)
		}
		return lastErr
	}

	s.compressor.CompressIfNeeded(outputPath, settings.MaxImageSizeKB, settings.CompressionQuality, settings.QualityStep)

	info, err := os.Stat(outputPath)
	if err != nil {
		return err
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	meta := s.metadata.Extract(outputPath)
	if meta.CapturedAt != nil {
		capturedAt = *meta.CapturedAt
	}

	result := CaptureResult{
		FilePath:   outputPath,
		FileSize:   info.Size(),
		Width:      meta.Width,
		Height:     meta.Height,
		CapturedAt: capturedAt,
		Duration:   duration,
	}

	if err := s.manager.RecordSuccess(ctx, target.Name, result); err != nil {
		logger.Errorf("Failed to record capture success: %v", err)
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordCapture(ctx, target.Name, duration, true)
	}

	logger.Debugf("Captured frame %s in %s", outputPath, duration)
	return nil
}

// attemptCapture runs one ffmpeg invocation with a per-attempt timeout and
// validates the produced file. Zero-byte output counts as a failure and is
// removed so it never pollutes a timelapse render.
func (s *CaptureService) attemptCapture(ctx context.Context, spec ffmpeg.CaptureSpec, timeout time.Duration) error {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := s.capturer.Capture(attemptCtx, spec); err != nil {
		os.Remove(spec.OutputPath)
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return context.DeadlineExceeded
		}
		return err
	}

	info, err := os.Stat(spec.OutputPath)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		os.Remove(spec.OutputPath)
		return errEmptyFrame
	}

	return nil
}
