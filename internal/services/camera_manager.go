package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/timelapser/server/internal/config"
	"github.com/timelapser/server/internal/models"
	"github.com/timelapser/server/internal/observability"
	"github.com/timelapser/server/internal/repository"
	"github.com/timelapser/server/internal/timeutil"
)

// CaptureTarget is what the capture pipeline needs to know about one camera
type CaptureTarget struct {
	Name     string
	URL      string
	Rotation models.Rotation
	CameraID string
}

// CaptureResult is the outcome of one successful end-to-end capture
type CaptureResult struct {
	FilePath   string
	FileSize   int64
	Width      *int
	Height     *int
	CapturedAt time.Time
	Duration   time.Duration
}

// cameraEntry pairs a camera's live state with its own lock. Capture
// reports and API control calls for the same camera serialize on it;
// different cameras never contend.
type cameraEntry struct {
	mu       sync.Mutex
	state    models.CameraState
	cameraID string
	batchID  string
	url      string
	rotation models.Rotation
	enabled  bool
	dayStart *time.Time
}

// CameraManager owns the in-memory state of every configured camera and
// keeps the database rows in sync with it.
type CameraManager struct {
	cameraRepo  repository.CameraRepo
	imageRepo   repository.ImageRepo
	batchRepo   repository.BatchRepo
	attemptRepo repository.AttemptRepo
	layout      StorageLayout
	hub         *WebSocketHub
	logger      *observability.Logger

	mu      sync.RWMutex
	cameras map[string]*cameraEntry

	settingsMu sync.RWMutex
	genMode    models.GenerationMode
	frameRate  int
	threshold  int
}

// NewCameraManager creates a new CameraManager. The hub may be nil when no
// dashboard push is wanted.
func NewCameraManager(
	cameraRepo repository.CameraRepo,
	imageRepo repository.ImageRepo,
	batchRepo repository.BatchRepo,
	attemptRepo repository.AttemptRepo,
	layout StorageLayout,
	hub *WebSocketHub,
) *CameraManager {
	return &CameraManager{
		cameraRepo:  cameraRepo,
		imageRepo:   imageRepo,
		batchRepo:   batchRepo,
		attemptRepo: attemptRepo,
		layout:      layout,
		hub:         hub,
		logger:      observability.GetLogger().WithField("service", "camera_manager"),
		cameras:     make(map[string]*cameraEntry),
		genMode:     models.GeneratePeriodic,
		frameRate:   30,
		threshold:   3,
	}
}

// UpdateSettings applies the current generation settings. Called by the
// orchestrator whenever configuration is reloaded.
func (m *CameraManager) UpdateSettings(mode models.GenerationMode, frameRate, unhealthyThreshold int) {
	m.settingsMu.Lock()
	defer m.settingsMu.Unlock()
	m.genMode = mode
	if frameRate > 0 {
		m.frameRate = frameRate
	}
	if unhealthyThreshold > 0 {
		m.threshold = unhealthyThreshold
	}
}

func (m *CameraManager) currentSettings() (models.GenerationMode, int, int) {
	m.settingsMu.RLock()
	defer m.settingsMu.RUnlock()
	return m.genMode, m.frameRate, m.threshold
}

// Reconcile registers the configured cameras, syncs their database rows,
// and recovers recording state left behind by an unclean shutdown. Must be
// called once before the first capture cycle.
func (m *CameraManager) Reconcile(ctx context.Context, cameras []config.CameraConfig) error {
	for _, cc := range cameras {
		if err := m.reconcileCamera(ctx, cc); err != nil {
			return fmt.Errorf("reconcile camera %s: %w", cc.Name, err)
		}
	}
	return nil
}

func (m *CameraManager) reconcileCamera(ctx context.Context, cc config.CameraConfig) error {
	if err := m.layout.EnsureCameraDirs(cc.Name); err != nil {
		return err
	}

	record, err := m.cameraRepo.GetByName(ctx, cc.Name)
	if err != nil {
		return err
	}

	if record == nil {
		record, err = models.NewCamera(cc.Name, cc.URL, cc.Enabled, cc.Rotation)
		if err != nil {
			return err
		}
		record.DayCounterStartDate = parseDayStart(cc.DayCounterStartDate)
		if err := m.cameraRepo.Add(ctx, record); err != nil {
			return err
		}
		m.logger.WithCamera(cc.Name).Info("Registered new camera")
	} else if changed := m.syncRecord(record, cc); changed {
		record.UpdatedAt = time.Now().UTC()
		if err := m.cameraRepo.Update(ctx, record); err != nil {
			return err
		}
		m.logger.WithCamera(cc.Name).Info("Camera configuration changed, record updated")
	}

	entry := &cameraEntry{
		state: models.CameraState{
			Name:           cc.Name,
			Status:         initialStatus(cc.Enabled),
			TimelapseState: models.TimelapseStopped,
		},
		cameraID: record.ID,
		url:      cc.URL,
		rotation: cc.Rotation,
		enabled:  cc.Enabled,
		dayStart: record.DayCounterStartDate,
	}

	if err := m.recoverBatches(ctx, entry); err != nil {
		return err
	}

	m.mu.Lock()
	m.cameras[cc.Name] = entry
	m.mu.Unlock()

	return nil
}

func (m *CameraManager) syncRecord(record *models.Camera, cc config.CameraConfig) bool {
	changed := false

	if hash := models.HashCameraURL(cc.Name, cc.URL); hash != record.URLHash {
		record.URLHash = hash
		changed = true
	}
	if record.Enabled != cc.Enabled {
		record.Enabled = cc.Enabled
		changed = true
	}
	rotation := cc.Rotation
	if rotation == "" {
		rotation = models.RotationNone
	}
	if record.Rotation != rotation {
		record.Rotation = rotation
		changed = true
	}
	if dayStart := parseDayStart(cc.DayCounterStartDate); !equalDay(record.DayCounterStartDate, dayStart) {
		record.DayCounterStartDate = dayStart
		changed = true
	}

	return changed
}

// recoverBatches restores recording state from batches the previous run
// left in the processing status. The newest one becomes the active batch
// again; any older ones are force-completed as stale.
func (m *CameraManager) recoverBatches(ctx context.Context, entry *cameraEntry) error {
	batches, err := m.batchRepo.GetProcessingByCamera(ctx, entry.cameraID)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		return nil
	}

	active := batches[0]
	entry.batchID = active.ID
	entry.state.TimelapseState = models.TimelapseRunning
	entry.state.TimelapseFrameCount = active.TotalFrames
	entry.state.TimelapseStartedAt = active.StartedAt

	m.logger.WithCamera(entry.state.Name).
		Infof("Resumed recording batch %s with %d frames", active.ID, active.TotalFrames)

	for _, stale := range batches[1:] {
		if err := m.batchRepo.UpdateStatus(ctx, stale.ID, models.BatchCompleted, models.StaleBatchMessage); err != nil {
			m.logger.Warnf("Failed to close stale batch %s: %v", stale.ID, err)
		}
	}

	return nil
}

// Get returns a snapshot of one camera's state
func (m *CameraManager) Get(name string) (*models.CameraState, bool) {
	entry, ok := m.entry(name)
	if !ok {
		return nil, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	state := entry.state
	return &state, true
}

// States returns a snapshot of every camera's state
func (m *CameraManager) States() map[string]models.CameraState {
	m.mu.RLock()
	names := make([]string, 0, len(m.cameras))
	for name := range m.cameras {
		names = append(names, name)
	}
	m.mu.RUnlock()

	states := make(map[string]models.CameraState, len(names))
	for _, name := range names {
		if state, ok := m.Get(name); ok {
			states[name] = *state
		}
	}
	return states
}

// Summaries returns the per-camera health view for the dashboard
func (m *CameraManager) Summaries() map[string]models.CameraSummary {
	_, _, threshold := m.currentSettings()

	summaries := make(map[string]models.CameraSummary)
	for name, state := range m.States() {
		summaries[name] = models.CameraSummary{
			Status:              state.Status,
			LastCapture:         state.LastCaptureTime,
			TotalCaptures:       state.TotalCaptures,
			ConsecutiveFailures: state.ConsecutiveFailures,
			LastError:           state.LastError,
			IsHealthy:           state.Status != models.StatusDisabled && state.ConsecutiveFailures < threshold,
		}
	}
	return summaries
}

// Stats returns system-wide aggregates
func (m *CameraManager) Stats(ctx context.Context) (*models.SystemStats, error) {
	summaries := m.Summaries()

	stats := &models.SystemStats{TotalCameras: len(summaries)}
	for _, s := range summaries {
		if s.Status != models.StatusDisabled {
			stats.EnabledCameras++
		}
		if s.IsHealthy {
			stats.HealthyCameras++
		} else {
			stats.UnhealthyCameras++
		}
		stats.TotalCaptures += s.TotalCaptures
	}

	total, succeeded, err := m.attemptRepo.GetCounts(ctx)
	if err != nil {
		return nil, err
	}
	if total > 0 {
		stats.CaptureSuccessRate = float64(succeeded) / float64(total)
	}

	return stats, nil
}

// EligibleTargets returns the cameras the capture coordinator should fan
// out to this cycle: enabled and currently recording
func (m *CameraManager) EligibleTargets() []CaptureTarget {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var targets []CaptureTarget
	for name, entry := range m.cameras {
		entry.mu.Lock()
		switch {
		case !entry.enabled:
			m.logger.WithCamera(name).Debug("Skipping capture: camera disabled")
		case entry.state.TimelapseState == models.TimelapsePaused:
			m.logger.WithCamera(name).Debug("Skipping capture: recording paused")
		case entry.state.TimelapseState != models.TimelapseRunning:
			m.logger.WithCamera(name).Debug("Skipping capture: not recording")
		default:
			targets = append(targets, CaptureTarget{
				Name:     name,
				URL:      entry.url,
				Rotation: entry.rotation,
				CameraID: entry.cameraID,
			})
		}
		entry.mu.Unlock()
	}
	return targets
}

// AllTargets returns every registered camera regardless of state, for
// maintenance work like retention sweeps
func (m *CameraManager) AllTargets() []CaptureTarget {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var targets []CaptureTarget
	for name, entry := range m.cameras {
		entry.mu.Lock()
		targets = append(targets, CaptureTarget{
			Name:     name,
			URL:      entry.url,
			Rotation: entry.rotation,
			CameraID: entry.cameraID,
		})
		entry.mu.Unlock()
	}
	return targets
}

// StartTimelapse begins a new recording batch. Starting an already running
// camera is a no-op; starting a paused one discards the paused session and
// begins fresh.
func (m *CameraManager) StartTimelapse(ctx context.Context, name string) (*models.CameraState, error) {
	entry, ok := m.entry(name)
	if !ok {
		return nil, models.ErrCameraNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.state.TimelapseState == models.TimelapseRunning {
		m.logger.WithCamera(name).Warn("Recording already running, start ignored")
		state := entry.state
		return &state, nil
	}

	if entry.state.TimelapseState == models.TimelapsePaused {
		m.completeBatch(ctx, entry, "")
	}

	mode, frameRate, _ := m.currentSettings()
	batch, err := models.NewTimelapseBatch(entry.cameraID, models.BatchContinuous, mode, frameRate)
	if err != nil {
		return nil, err
	}
	if err := m.batchRepo.Add(ctx, batch); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry.batchID = batch.ID
	entry.state.TimelapseState = models.TimelapseRunning
	entry.state.TimelapseFrameCount = 0
	entry.state.TimelapseStartedAt = &now
	entry.state.TimelapsePausedAt = nil

	m.logger.WithCamera(name).Infof("Recording started, batch %s", batch.ID)
	m.notifyState(name, entry.state.TimelapseState, "start")

	state := entry.state
	return &state, nil
}

// PauseTimelapse suspends frame accumulation for a running camera
func (m *CameraManager) PauseTimelapse(ctx context.Context, name string) (*models.CameraState, error) {
	entry, ok := m.entry(name)
	if !ok {
		return nil, models.ErrCameraNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.state.TimelapseState != models.TimelapseRunning {
		return nil, models.ErrTimelapseNotRunning
	}

	now := time.Now().UTC()
	entry.state.TimelapseState = models.TimelapsePaused
	entry.state.TimelapsePausedAt = &now

	m.logger.WithCamera(name).Info("Recording paused")
	m.notifyState(name, entry.state.TimelapseState, "pause")

	state := entry.state
	return &state, nil
}

// ResumeTimelapse continues a paused recording
func (m *CameraManager) ResumeTimelapse(ctx context.Context, name string) (*models.CameraState, error) {
	entry, ok := m.entry(name)
	if !ok {
		return nil, models.ErrCameraNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.state.TimelapseState != models.TimelapsePaused {
		return nil, models.ErrTimelapseNotPaused
	}

	entry.state.TimelapseState = models.TimelapseRunning
	entry.state.TimelapsePausedAt = nil

	m.logger.WithCamera(name).Info("Recording resumed")
	m.notifyState(name, entry.state.TimelapseState, "resume")

	state := entry.state
	return &state, nil
}

// StopTimelapse ends the recording batch. Stopping a stopped camera is a
// no-op. The batch row is completed best-effort: the in-memory transition
// always succeeds even when the database write does not.
func (m *CameraManager) StopTimelapse(ctx context.Context, name string) (*models.CameraState, error) {
	entry, ok := m.entry(name)
	if !ok {
		return nil, models.ErrCameraNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.state.TimelapseState == models.TimelapseStopped {
		state := entry.state
		return &state, nil
	}

	m.completeBatch(ctx, entry, "")
	m.clearRecording(entry)

	m.logger.WithCamera(name).Info("Recording stopped")
	m.notifyState(name, entry.state.TimelapseState, "stop")

	state := entry.state
	return &state, nil
}

// ResetTimelapse stops any recording and deletes the camera's accumulated
// frame files. File deletion failures are logged, not returned: the state
// reset must not be blockable by a bad filesystem.
func (m *CameraManager) ResetTimelapse(ctx context.Context, name string) (*models.CameraState, error) {
	entry, ok := m.entry(name)
	if !ok {
		return nil, models.ErrCameraNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.state.TimelapseState != models.TimelapseStopped {
		m.completeBatch(ctx, entry, "reset requested")
	}
	m.clearRecording(entry)

	pattern := filepath.Join(m.layout.FramesDir(name), name+"_*")
	matches, err := filepath.Glob(pattern)
	if err == nil {
		removed := 0
		for _, path := range matches {
			if err := os.Remove(path); err != nil {
				m.logger.Warnf("Failed to remove frame %s: %v", path, err)
				continue
			}
			removed++
		}
		m.logger.WithCamera(name).Infof("Reset removed %d frame files", removed)
	}

	m.notifyState(name, entry.state.TimelapseState, "reset")

	state := entry.state
	return &state, nil
}

// RecordSuccess reports a successful capture for a camera and persists the
// frame and attempt records
func (m *CameraManager) RecordSuccess(ctx context.Context, name string, result CaptureResult) error {
	entry, ok := m.entry(name)
	if !ok {
		return models.ErrCameraNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now().UTC()
	entry.state.Status = models.StatusOnline
	entry.state.LastCaptureTime = &now
	entry.state.LastError = ""
	entry.state.ConsecutiveFailures = 0
	entry.state.TotalCaptures++

	if entry.state.TimelapseState == models.TimelapseRunning {
		entry.state.TimelapseFrameCount++
		if entry.batchID != "" {
			if err := m.batchRepo.UpdateTotalFrames(ctx, entry.batchID, entry.state.TimelapseFrameCount); err != nil {
				m.logger.Warnf("Failed to update frame count for batch %s: %v", entry.batchID, err)
			}
		}
	}

	image, err := models.NewImage(entry.cameraID, result.FilePath, result.FileSize, result.CapturedAt)
	if err != nil {
		return err
	}
	image.Width = result.Width
	image.Height = result.Height
	if entry.dayStart != nil {
		day := timeutil.DayNumber(*entry.dayStart, result.CapturedAt)
		if day > 0 {
			image.DayNumber = &day
		}
	}

	if err := m.imageRepo.Add(ctx, image); err != nil {
		return err
	}

	attempt, err := models.NewCaptureAttempt(entry.cameraID, models.CaptureSuccess, result.Duration)
	if err != nil {
		return err
	}
	attempt.ImageID = &image.ID
	if err := m.attemptRepo.Add(ctx, attempt); err != nil {
		m.logger.Warnf("Failed to record capture attempt: %v", err)
	}

	if m.hub != nil {
		m.hub.BroadcastToTopic(TopicCameras, WSMessage{
			Type: WSTypeCaptureComplete,
			Payload: CaptureCompletePayload{
				Camera:        name,
				Success:       true,
				TotalCaptures: entry.state.TotalCaptures,
				FrameCount:    entry.state.TimelapseFrameCount,
			},
		})
	}

	return nil
}

// RecordFailure reports a failed capture for a camera
func (m *CameraManager) RecordFailure(ctx context.Context, name string, status models.CaptureStatus, errMsg string, duration time.Duration) error {
	entry, ok := m.entry(name)
	if !ok {
		return models.ErrCameraNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.state.Status = models.StatusError
	entry.state.LastError = errMsg
	entry.state.ConsecutiveFailures++

	attempt, err := models.NewCaptureAttempt(entry.cameraID, status, duration)
	if err != nil {
		return err
	}
	attempt.ErrorMessage = errMsg
	if err := m.attemptRepo.Add(ctx, attempt); err != nil {
		m.logger.Warnf("Failed to record capture attempt: %v", err)
	}

	if m.hub != nil {
		m.hub.BroadcastToTopic(TopicCameras, WSMessage{
			Type: WSTypeCameraStatus,
			Payload: CameraStatusPayload{
				Camera:              name,
				Status:              string(entry.state.Status),
				ConsecutiveFailures: entry.state.ConsecutiveFailures,
				LastError:           errMsg,
			},
		})
	}

	return nil
}

// ActiveBatchID returns the camera's current recording batch, if any
func (m *CameraManager) ActiveBatchID(name string) string {
	entry, ok := m.entry(name)
	if !ok {
		return ""
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.batchID
}

// CameraID returns the database row ID for a configured camera
func (m *CameraManager) CameraID(name string) string {
	entry, ok := m.entry(name)
	if !ok {
		return ""
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.cameraID
}

func (m *CameraManager) entry(name string) (*cameraEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.cameras[name]
	return entry, ok
}

// completeBatch closes the active batch row. Caller holds entry.mu.
func (m *CameraManager) completeBatch(ctx context.Context, entry *cameraEntry, message string) {
	if entry.batchID == "" {
		return
	}

	if err := m.batchRepo.UpdateTotalFrames(ctx, entry.batchID, entry.state.TimelapseFrameCount); err != nil {
		m.logger.Warnf("Failed to update frame count for batch %s: %v", entry.batchID, err)
	}
	if err := m.batchRepo.UpdateStatus(ctx, entry.batchID, models.BatchCompleted, message); err != nil {
		m.logger.Warnf("Failed to complete batch %s: %v", entry.batchID, err)
	}
}

// clearRecording resets the recording fields. Caller holds entry.mu.
func (m *CameraManager) clearRecording(entry *cameraEntry) {
	entry.batchID = ""
	entry.state.TimelapseState = models.TimelapseStopped
	entry.state.TimelapseFrameCount = 0
	entry.state.TimelapseStartedAt = nil
	entry.state.TimelapsePausedAt = nil
}

func (m *CameraManager) notifyState(name string, state models.TimelapseState, action string) {
	if m.hub == nil {
		return
	}
	m.hub.BroadcastToTopic(TopicCameras, WSMessage{
		Type: WSTypeTimelapseState,
		Payload: TimelapseStatePayload{
			Camera: name,
			State:  string(state),
			Action: action,
		},
	})
}

func initialStatus(enabled bool) models.CameraStatus {
	if !enabled {
		return models.StatusDisabled
	}
	return models.StatusOffline
}

func parseDayStart(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func equalDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
