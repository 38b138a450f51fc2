package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timelapser/server/internal/config"
	"github.com/timelapser/server/internal/models"
	"github.com/timelapser/server/internal/observability"
	"github.com/timelapser/server/internal/services"
)

// TimelapseHandler serves the recording control and manual render endpoints
type TimelapseHandler struct {
	manager   *services.CameraManager
	timelapse *services.TimelapseService
	provider  *config.Provider
	logger    *observability.Logger
}

// NewTimelapseHandler creates a new TimelapseHandler
func NewTimelapseHandler(manager *services.CameraManager, timelapse *services.TimelapseService, provider *config.Provider) *TimelapseHandler {
	return &TimelapseHandler{
		manager:   manager,
		timelapse: timelapse,
		provider:  provider,
		logger:    observability.GetLogger().WithField("handler", "timelapse"),
	}
}

// Start begins recording for a camera
// @Summary Start recording
// @Description Starts a new timelapse recording batch for the camera
// @Tags timelapse
// @Produce json
// @Param name path string true "Camera name"
// @Success 200 {object} models.ControlResponse
// @Failure 404 {object} models.ErrorResponse "Camera not found"
// @Security ApiKeyAuth
// @Router /api/cameras/{name}/timelapse/start [post]
func (h *TimelapseHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, "start", h.manager.StartTimelapse)
}

// Pause suspends recording for a camera
// @Summary Pause recording
// @Description Pauses a running timelapse recording
// @Tags timelapse
// @Produce json
// @Param name path string true "Camera name"
// @Success 200 {object} models.ControlResponse
// @Failure 404 {object} models.ErrorResponse "Camera not found"
// @Failure 409 {object} models.ErrorResponse "Recording is not running"
// @Security ApiKeyAuth
// @Router /api/cameras/{name}/timelapse/pause [post]
func (h *TimelapseHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, "pause", h.manager.PauseTimelapse)
}

// Resume continues a paused recording
// @Summary Resume recording
// @Description Resumes a paused timelapse recording
// @Tags timelapse
// @Produce json
// @Param name path string true "Camera name"
// @Success 200 {object} models.ControlResponse
// @Failure 404 {object} models.ErrorResponse "Camera not found"
// @Failure 409 {object} models.ErrorResponse "Recording is not paused"
// @Security ApiKeyAuth
// @Router /api/cameras/{name}/timelapse/resume [post]
func (h *TimelapseHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, "resume", h.manager.ResumeTimelapse)
}

// Stop ends recording for a camera
// @Summary Stop recording
// @Description Stops the timelapse recording and completes its batch
// @Tags timelapse
// @Produce json
// @Param name path string true "Camera name"
// @Success 200 {object} models.ControlResponse
// @Failure 404 {object} models.ErrorResponse "Camera not found"
// @Security ApiKeyAuth
// @Router /api/cameras/{name}/timelapse/stop [post]
func (h *TimelapseHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, "stop", h.manager.StopTimelapse)
}

// Reset stops recording and deletes the camera's accumulated frames
// @Summary Reset recording
// @Description Stops any recording and removes the camera's frame files
// @Tags timelapse
// @Produce json
// @Param name path string true "Camera name"
// @Success 200 {object} models.ControlResponse
// @Failure 404 {object} models.ErrorResponse "Camera not found"
// @Security ApiKeyAuth
// @Router /api/cameras/{name}/timelapse/reset [post]
func (h *TimelapseHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, "reset", h.manager.ResetTimelapse)
}

// Generate renders a timelapse on demand from the camera's current frames
// @Summary Manual render
// @Description Renders a timelapse video immediately from the camera's frames
// @Tags timelapse
// @Produce json
// @Param name path string true "Camera name"
// @Success 200 {object} models.ControlResponse
// @Failure 404 {object} models.ErrorResponse "Camera not found"
// @Failure 500 {object} models.ErrorResponse "Render failed"
// @Security ApiKeyAuth
// @Router /api/cameras/{name}/timelapse/generate [post]
func (h *TimelapseHandler) Generate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if _, ok := h.manager.Get(name); !ok {
		respondError(w, http.StatusNotFound, "Camera not found.")
		return
	}

	cfg := h.provider.Current()
	settings := services.RenderSettings{
		Format:    cfg.Timelapse.Format,
		FrameRate: cfg.Timelapse.FrameRate,
		ImageType: cfg.Capture.ImageType,
		Mode:      models.GenerateManualOnly,
	}

	outputPath, frames, err := h.timelapse.CreateTimelapse(r.Context(), name, models.BatchManual, settings)
	if err != nil {
		h.logger.WithCamera(name).Errorf("Manual render failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Timelapse generation failed.")
		return
	}

	state, _ := h.manager.Get(name)
	respondJSON(w, http.StatusOK, models.ControlResponse{
		Camera:         name,
		Action:         "generate",
		TimelapseState: state.TimelapseState,
		Message:        fmt.Sprintf("rendered %d frames to %s", frames, outputPath),
	})
}

type controlFunc func(ctx context.Context, name string) (*models.CameraState, error)

func (h *TimelapseHandler) control(w http.ResponseWriter, r *http.Request, action string, fn controlFunc) {
	name := chi.URLParam(r, "name")

	state, err := fn(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrCameraNotFound):
			respondError(w, http.StatusNotFound, "Camera not found.")
		case errors.Is(err, models.ErrTimelapseNotRunning), errors.Is(err, models.ErrTimelapseNotPaused):
			respondError(w, http.StatusConflict, err.Error())
		default:
			h.logger.WithCamera(name).Errorf("Control %s failed: %v", action, err)
			respondError(w, http.StatusInternalServerError, "Operation failed.")
		}
		return
	}

	respondJSON(w, http.StatusOK, models.ControlResponse{
		Camera:         name,
		Action:         action,
		TimelapseState: state.TimelapseState,
	})
}
