package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the kiosk page and its JSON API
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	}).Methods("GET")

	r.HandleFunc("/api/state", h.HandleState).Methods("GET")
	r.HandleFunc("/api/camera/start", h.HandleCameraStart).Methods("POST")
	r.HandleFunc("/api/camera/stop", h.HandleCameraStop).Methods("POST")
	r.HandleFunc("/api/identity", h.HandleIdentity).Methods("PUT")
	r.HandleFunc("/api/capture", h.HandleCapture).Methods("POST")
	r.HandleFunc("/api/records", h.HandleRecords).Methods("GET")
	r.HandleFunc("/api/records/reload", h.HandleRecordsReload).Methods("POST")
	r.HandleFunc("/api/preview.jpg", h.HandlePreview).Methods("GET")
	r.HandleFunc("/api/visibility", h.HandleVisibility).Methods("POST")

	r.HandleFunc("/", h.HandleIndex).Methods("GET")
	r.HandleFunc("/index.html", h.HandleIndex).Methods("GET")

	return r
}
