package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timelapser/server/internal/services"
)

// CameraHandler serves camera state and system statistics
type CameraHandler struct {
	manager *services.CameraManager
}

// NewCameraHandler creates a new CameraHandler
func NewCameraHandler(manager *services.CameraManager) *CameraHandler {
	return &CameraHandler{manager: manager}
}

// ListCameras returns the state of every configured camera
// @Summary List camera states
// @Description Returns the live operational state of all configured cameras
// @Tags cameras
// @Produce json
// @Success 200 {object} map[string]models.CameraState
// @Security ApiKeyAuth
// @Router /api/cameras [get]
func (h *CameraHandler) ListCameras(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.manager.States())
}

// GetCamera returns one camera's state
// @Summary Get camera state
// @Description Returns the live operational state of a single camera
// @Tags cameras
// @Produce json
// @Param name path string true "Camera name"
// @Success 200 {object} models.CameraState
// @Failure 404 {object} models.ErrorResponse "Camera not found"
// @Security ApiKeyAuth
// @Router /api/cameras/{name} [get]
func (h *CameraHandler) GetCamera(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	state, ok := h.manager.Get(name)
	if !ok {
		respondError(w, http.StatusNotFound, "Camera not found.")
		return
	}

	respondJSON(w, http.StatusOK, state)
}

// GetSummary returns the per-camera health summary
// @Summary Camera health summary
// @Description Returns the health view of all cameras for dashboards
// @Tags cameras
// @Produce json
// @Success 200 {object} map[string]models.CameraSummary
// @Security ApiKeyAuth
// @Router /api/cameras/summary [get]
func (h *CameraHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.manager.Summaries())
}

// GetStats returns system-wide statistics
// @Summary System statistics
// @Description Returns aggregate capture statistics across all cameras
// @Tags cameras
// @Produce json
// @Success 200 {object} models.SystemStats
// @Failure 500 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/stats [get]
func (h *CameraHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.manager.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to compute statistics.")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
