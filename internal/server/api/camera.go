package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ayusman/camrelay/internal/capture"
	"github.com/ayusman/camrelay/internal/delivery"
)

// Controller is the part of the capture engine the camera API drives.
type Controller interface {
	Start()
	Stop()
	SetResolution(width, height int) error
	Stats() delivery.Stats
}

// ResolutionSaver persists a resolution chosen through the API.
type ResolutionSaver interface {
	SetResolution(res capture.Resolution) error
}

// CameraHandler handles /api/camera and its sub-resources.
type CameraHandler struct {
	ctrl   Controller
	saver  ResolutionSaver
	logger *slog.Logger
}

// NewCameraHandler creates a handler for ctrl. saver may be nil.
func NewCameraHandler(ctrl Controller, saver ResolutionSaver, logger *slog.Logger) *CameraHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CameraHandler{ctrl: ctrl, saver: saver, logger: logger}
}

type resolutionRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ServeHTTP routes:
//
//	GET  /api/camera
//	POST /api/camera/start
//	POST /api/camera/stop
//	POST /api/camera/resolution
func (h *CameraHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/camera")
	path = strings.Trim(path, "/")

	switch path {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, h.ctrl.Stats())
	case "start":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.ctrl.Start()
		writeJSON(w, http.StatusAccepted, h.ctrl.Stats())
	case "stop":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.ctrl.Stop()
		writeJSON(w, http.StatusAccepted, h.ctrl.Stats())
	case "resolution":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.setResolution(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *CameraHandler) setResolution(w http.ResponseWriter, r *http.Request) {
	var req resolutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	res := capture.Resolution{Width: req.Width, Height: req.Height}
	if !res.Valid() {
		writeError(w, http.StatusBadRequest, "Width and height must be positive")
		return
	}

	if err := h.ctrl.SetResolution(res.Width, res.Height); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	if h.saver != nil {
		if err := h.saver.SetResolution(res); err != nil {
			h.logger.Warn("Failed to persist resolution", "error", err)
		}
	}

	writeJSON(w, http.StatusAccepted, res)
}
