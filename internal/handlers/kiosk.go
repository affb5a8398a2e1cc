package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/attendance/internal/tracker"
)

type identityRequest struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.tracker.State())
}

func (h *Handler) HandleCameraStart(w http.ResponseWriter, r *http.Request) {
	// failures are reported through the status
	if err := h.tracker.StartCamera(r.Context()); err != nil {
		slog.Warn("Camera start failed", "err", err)
	}
	h.writeJSON(w, h.tracker.State())
}

func (h *Handler) HandleCameraStop(w http.ResponseWriter, r *http.Request) {
	h.tracker.StopCamera()
	h.writeJSON(w, h.tracker.State())
}

func (h *Handler) HandleIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.tracker.SetIdentity(req.UserID, req.UserName)
	h.writeJSON(w, h.tracker.State())
}

func (h *Handler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	// a capture runs to completion even if the browser goes away
	err := h.tracker.Capture(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, tracker.ErrCaptureInProgress):
		h.writeJSONStatus(w, http.StatusConflict, h.tracker.State())
	case errors.Is(err, tracker.ErrCaptureNotAllowed):
		h.writeJSONStatus(w, http.StatusUnprocessableEntity, h.tracker.State())
	default:
		if err != nil {
			slog.Info("Capture finished with error", "err", err)
		}
		h.writeJSON(w, h.tracker.State())
	}
}

func (h *Handler) HandleRecords(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.tracker.View())
}

func (h *Handler) HandleRecordsReload(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.LoadRecords(r.Context()); err != nil {
		h.writeError(w, "Failed to load attendance records: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.writeJSON(w, h.tracker.View())
}

func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	data, err := h.tracker.Preview()
	if errors.Is(err, tracker.ErrCameraInactive) {
		http.Error(w, "Camera is not active", http.StatusConflict)
		return
	}
	if err != nil {
		h.writeError(w, "Failed to read preview: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(data); err != nil {
		slog.Error("Unable to write preview", "err", err)
	}
}

func (h *Handler) HandleVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.tracker.SetVisible(req.Visible)
	w.WriteHeader(http.StatusNoContent)
}
