package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/timelapser/server/internal/ffmpeg"
	"github.com/timelapser/server/internal/models"
	"github.com/timelapser/server/internal/observability"
	"github.com/timelapser/server/internal/repository"
	"github.com/timelapser/server/internal/timeutil"
)

// Encoder renders a timelapse video from frame files
type Encoder interface {
	Encode(ctx context.Context, spec ffmpeg.EncodeSpec) error
}

// RenderSettings are the encoding parameters from configuration
type RenderSettings struct {
	Format    string
	FrameRate int
	ImageType string
	Mode      models.GenerationMode
}

// TimelapseService renders videos from a camera's accumulated frames
type TimelapseService struct {
	encoder   Encoder
	manager   *CameraManager
	batchRepo repository.BatchRepo
	layout    StorageLayout
	hub       *WebSocketHub
	metrics   *observability.CaptureMetrics
	logger    *observability.Logger
}

// NewTimelapseService creates a new TimelapseService. Hub and metrics may
// be nil.
func NewTimelapseService(
	encoder Encoder,
	manager *CameraManager,
	batchRepo repository.BatchRepo,
	layout StorageLayout,
	hub *WebSocketHub,
	metrics *observability.CaptureMetrics,
) *TimelapseService {
	return &TimelapseService{
		encoder:   encoder,
		manager:   manager,
		batchRepo: batchRepo,
		layout:    layout,
		hub:       hub,
		metrics:   metrics,
		logger:    observability.GetLogger().WithField("service", "timelapse"),
	}
}

// CreateTimelapse renders a video over all of the camera's current frames.
// Continuous renders overwrite the camera's daily video; checkpoint and
// manual renders each produce a new timestamped file with their own batch
// record.
func (s *TimelapseService) CreateTimelapse(ctx context.Context, camera string, kind models.BatchType, settings RenderSettings) (string, int, error) {
	logger := s.logger.WithCamera(camera)
	start := time.Now()

	format := settings.Format
	if format == "" {
		format = "mp4"
	}
	imageType := settings.ImageType
	if imageType == "" {
		imageType = "jpg"
	}

	pattern := s.layout.FramePattern(camera, imageType)
	frames, err := filepath.Glob(pattern)
	if err != nil {
		return "", 0, err
	}
	if len(frames) == 0 {
		return "", 0, fmt.Errorf("no frames to render for camera %s", camera)
	}

	outputPath := s.outputPath(camera, kind, format, start)

	batchID, err := s.beginBatch(ctx, camera, kind, settings, len(frames))
	if err != nil {
		return "", 0, err
	}

	spec := ffmpeg.EncodeSpec{
		FramePattern: pattern,
		OutputPath:   outputPath,
		FrameRate:    settings.FrameRate,
	}

	encodeErr := s.encoder.Encode(ctx, spec)
	duration := time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordEncode(ctx, camera, string(kind), duration, encodeErr == nil)
	}

	if encodeErr != nil {
		s.finishBatch(ctx, batchID, models.BatchFailed, encodeErr.Error())
		return "", 0, fmt.Errorf("encode timelapse for %s: %w", camera, encodeErr)
	}

	var size int64
	if info, err := os.Stat(outputPath); err == nil {
		size = info.Size()
	}

	if batchID != "" {
		if err := s.batchRepo.UpdateOutput(ctx, batchID, outputPath, size); err != nil {
			logger.Warnf("Failed to record output for batch %s: %v", batchID, err)
		}
	}
	s.finishBatch(ctx, batchID, models.BatchCompleted, "")

	logger.Infof("Rendered %s timelapse from %d frames in %s: %s", kind, len(frames), duration, outputPath)

	if s.hub != nil {
		s.hub.BroadcastToTopic(TopicCameras, WSMessage{
			Type: WSTypeTimelapseGenerated,
			Payload: TimelapseGeneratedPayload{
				Camera:     camera,
				OutputPath: outputPath,
				BatchType:  string(kind),
				Frames:     len(frames),
			},
		})
	}

	return outputPath, len(frames), nil
}

// outputPath picks the destination file for a render. Continuous renders
// reuse one file per day so repeated renders replace it in place.
func (s *TimelapseService) outputPath(camera string, kind models.BatchType, format string, now time.Time) string {
	switch kind {
	case models.BatchCheckpoint:
		name := fmt.Sprintf("%s_timelapse_checkpoint_%s.%s", camera, now.Format("20060102_150405"), format)
		return filepath.Join(s.layout.TimelapsesDir(camera), name)
	case models.BatchManual:
		name := fmt.Sprintf("%s_timelapse_manual_%s.%s", camera, now.Format("20060102_150405"), format)
		return filepath.Join(s.layout.TimelapsesDir(camera), name)
	default:
		name := fmt.Sprintf("%s_timelapse_daily_%s.%s", camera, now.Format("20060102"), format)
		return filepath.Join(s.layout.ContinuousDir(camera), name)
	}
}

// beginBatch creates a batch record for renders that get their own row.
// Continuous renders update the camera's active recording batch instead.
func (s *TimelapseService) beginBatch(ctx context.Context, camera string, kind models.BatchType, settings RenderSettings, frames int) (string, error) {
	if kind == models.BatchContinuous {
		return s.manager.ActiveBatchID(camera), nil
	}

	cameraID := s.manager.CameraID(camera)
	if cameraID == "" {
		return "", models.ErrCameraNotFound
	}

	batch, err := models.NewTimelapseBatch(cameraID, kind, settings.Mode, settings.FrameRate)
	if err != nil {
		return "", err
	}
	batch.TotalFrames = frames

	if err := s.batchRepo.Add(ctx, batch); err != nil {
		return "", err
	}
	return batch.ID, nil
}

// finishBatch closes a checkpoint or manual batch row. Continuous batches
// stay processing until the recording is stopped.
func (s *TimelapseService) finishBatch(ctx context.Context, batchID string, status models.BatchStatus, message string) {
	if batchID == "" {
		return
	}

	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil || batch == nil {
		return
	}
	if batch.BatchType == models.BatchContinuous {
		return
	}

	if err := s.batchRepo.UpdateStatus(ctx, batchID, status, message); err != nil {
		s.logger.Warnf("Failed to update batch %s status: %v", batchID, err)
	}
}

// DailyVideoName returns the continuous render filename for a given day
func DailyVideoName(camera, format string, day time.Time) string {
	return fmt.Sprintf("%s_timelapse_daily_%s.%s", camera, day.Format("20060102"), format)
}

// FrameName returns the frame filename a capture at the given time produces
func FrameName(camera, imageType string, at time.Time) string {
	return timeutil.TimestampedName(camera, at, imageType)
}
