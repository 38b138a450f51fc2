package services

import (
	"context"
	"fmt"
	"time"

	"github.com/timelapser/server/internal/config"
	"github.com/timelapser/server/internal/models"
	"github.com/timelapser/server/internal/observability"
	"github.com/timelapser/server/internal/timeutil"
)

const (
	// sleepChunk bounds how long a shutdown request can go unnoticed
	// while the orchestrator waits between cycles.
	sleepChunk = 10 * time.Second

	// errorBackoff is how long the loop waits after a cycle fails before
	// trying again.
	errorBackoff = 60 * time.Second
)

// OrchestratorService drives the capture and generation cycle: wait for
// the operating window, capture all cameras, render timelapses per policy,
// enforce retention, and fire the end-of-day checkpoint.
type OrchestratorService struct {
	provider  *config.Provider
	manager   *CameraManager
	capture   *CaptureService
	timelapse *TimelapseService
	cleanup   *CleanupService
	policy    *GenerationPolicy
	logger    *observability.Logger

	lastCheckpointDate string
}

// NewOrchestratorService creates a new OrchestratorService
func NewOrchestratorService(
	provider *config.Provider,
	manager *CameraManager,
	capture *CaptureService,
	timelapse *TimelapseService,
	cleanup *CleanupService,
) *OrchestratorService {
	return &OrchestratorService{
		provider:  provider,
		manager:   manager,
		capture:   capture,
		timelapse: timelapse,
		cleanup:   cleanup,
		policy:    NewGenerationPolicy(),
		logger:    observability.GetLogger().WithField("service", "orchestrator"),
	}
}

// Run executes capture cycles until the context is cancelled. A panicking
// or failing cycle backs off and retries; the loop itself never exits
// early.
func (s *OrchestratorService) Run(ctx context.Context) {
	s.logger.Info("Orchestrator started")

	for ctx.Err() == nil {
		err := s.safeCycle(ctx)
		if ctx.Err() != nil {
			break
		}

		wait := s.provider.Current().CaptureInterval()
		if err != nil {
			s.logger.Errorf("Capture cycle failed: %v", err)
			wait = errorBackoff
		}

		s.sleep(ctx, wait)
	}

	s.logger.Info("Orchestrator stopped")
}

func (s *OrchestratorService) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	return s.runCycle(ctx)
}

func (s *OrchestratorService) runCycle(ctx context.Context) error {
	cfg := s.provider.Current()

	s.manager.UpdateSettings(
		cfg.Timelapse.GenerationMode,
		cfg.Timelapse.FrameRate,
		cfg.Timelapse.UnhealthyFailureThreshold,
	)

	// Retention on rendered videos runs every cycle regardless of window
	// or recording state; the cleanup service throttles it per camera.
	defer s.sweepContinuousVideos(cfg)

	now := time.Now().In(cfg.Location())
	start, stop := cfg.Window()
	if !timeutil.IsWithinWindow(timeutil.FromTime(now), start, stop) {
		s.logger.Debugf("Outside operating window %s-%s, skipping cycle", start, stop)
		return nil
	}

	results := s.capture.CaptureAll(ctx, captureSettings(cfg))
	if ctx.Err() != nil {
		return nil
	}

	succeeded := 0
	for name, err := range results {
		if err != nil {
			s.logger.WithCamera(name).Debugf("Capture failed this cycle: %v", err)
			continue
		}
		succeeded++
		s.afterCapture(ctx, cfg, name, now)
	}

	s.logger.Debugf("Cycle complete: %d/%d cameras captured", succeeded, len(results))
	return nil
}

// afterCapture triggers a continuous render when the generation policy
// fires for a camera that captured successfully this cycle.
func (s *OrchestratorService) afterCapture(ctx context.Context, cfg *config.Config, name string, now time.Time) {
	if !cfg.Timelapse.Enabled {
		return
	}

	state, ok := s.manager.Get(name)
	if !ok || state.TimelapseState != models.TimelapseRunning {
		return
	}

	frequency := time.Duration(cfg.Timelapse.GenerationFrequencySec) * time.Second
	if s.policy.ShouldGenerate(name, cfg.Timelapse.GenerationMode, frequency, now) {
		_, _, err := s.timelapse.CreateTimelapse(ctx, name, models.BatchContinuous, renderSettings(cfg))
		if err != nil {
			s.logger.WithCamera(name).Warnf("Continuous render failed: %v", err)
		}
	}
}

// sweepContinuousVideos applies continuous-render retention to every
// camera, recording or not
func (s *OrchestratorService) sweepContinuousVideos(cfg *config.Config) {
	for _, target := range s.manager.AllTargets() {
		s.cleanup.CleanupContinuousVideos(target.Name, cfg.Timelapse.ContinuousMaxAgeHours)
	}
}

// sleep waits out the inter-cycle interval in short chunks so shutdown is
// prompt and the end-of-day checkpoint fires regardless of interval length
func (s *OrchestratorService) sleep(ctx context.Context, total time.Duration) {
	deadline := time.Now().Add(total)

	for {
		s.maybeCheckpoint(ctx)

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}

		chunk := remaining
		if chunk > sleepChunk {
			chunk = sleepChunk
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(chunk):
		}
	}
}

// maybeCheckpoint fires the end-of-day render once per day at 23:59 local
// time for every camera still recording
func (s *OrchestratorService) maybeCheckpoint(ctx context.Context) {
	cfg := s.provider.Current()
	if !cfg.Timelapse.Enabled || !cfg.Timelapse.CheckpointEnabled {
		return
	}

	now := time.Now().In(cfg.Location())
	if now.Hour() != 23 || now.Minute() != 59 {
		return
	}

	today := now.Format("2006-01-02")
	if s.lastCheckpointDate == today {
		return
	}
	s.lastCheckpointDate = today

	for name, state := range s.manager.States() {
		if state.Status == models.StatusDisabled {
			continue
		}
		if state.TimelapseFrameCount == 0 && state.TimelapseState != models.TimelapseRunning {
			continue
		}

		s.logger.WithCamera(name).Info("Rendering end-of-day checkpoint")
		_, _, err := s.timelapse.CreateTimelapse(ctx, name, models.BatchCheckpoint, renderSettings(cfg))
		if err != nil {
			s.logger.WithCamera(name).Warnf("Checkpoint render failed: %v", err)
		}
	}
}

func captureSettings(cfg *config.Config) CaptureSettings {
	return CaptureSettings{
		ImageType:          cfg.Capture.ImageType,
		Width:              cfg.Capture.ImageWidth,
		Height:             cfg.Capture.ImageHeight,
		Retries:            cfg.Capture.Retries,
		RetryDelay:         time.Duration(cfg.Capture.RetryDelaySeconds) * time.Second,
		Timeout:            time.Duration(cfg.Capture.TimeoutSeconds) * time.Second,
		MaxImageSizeKB:     cfg.Capture.MaxImageSizeKB,
		CompressionQuality: cfg.Capture.CompressionQuality,
		QualityStep:        cfg.Capture.QualityStep,
	}
}

func renderSettings(cfg *config.Config) RenderSettings {
	return RenderSettings{
		Format:    cfg.Timelapse.Format,
		FrameRate: cfg.Timelapse.FrameRate,
		ImageType: cfg.Capture.ImageType,
		Mode:      cfg.Timelapse.GenerationMode,
	}
}
