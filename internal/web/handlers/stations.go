package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/station"
)

// StationsHandler handles station endpoints.
type StationsHandler struct {
	manager   *station.Manager
	keepAlive time.Duration
}

// NewStationsHandler creates a new stations handler.
func NewStationsHandler(manager *station.Manager) *StationsHandler {
	return &StationsHandler{manager: manager}
}

// ToggleResponse is returned by Start and Stop.
type ToggleResponse struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Changed bool   `json:"changed"`
}

// lookup finds the station named in the URL or writes a 404.
func (h *StationsHandler) lookup(w http.ResponseWriter, r *http.Request) (*station.Station, bool) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "missing station name")
		return nil, false
	}
	s, err := h.manager.Get(name)
	if err != nil {
		if errors.Is(err, station.ErrStationNotFound) {
			respondError(w, http.StatusNotFound, "station not found")
			return nil, false
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return s, true
}

// List returns the status of every station.
func (h *StationsHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.manager.Statuses())
}

// Get returns one station's status.
func (h *StationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.Status())
}

// Start enables a station's capture loop.
func (h *StationsHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

// Stop disables a station's capture loop. An in-flight match still completes.
func (h *StationsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

func (h *StationsHandler) toggle(w http.ResponseWriter, r *http.Request, enable bool) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "missing station name")
		return
	}

	toggle, action := h.manager.Stop, "stopped"
	if enable {
		toggle, action = h.manager.Start, "started"
	}
	changed, err := toggle(name)
	if err != nil {
		if errors.Is(err, station.ErrStationNotFound) {
			respondError(w, http.StatusNotFound, "station not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("Station %s %s (changed=%v)", sanitizeForLog(name), action, changed)
	respondJSON(w, http.StatusOK, ToggleResponse{Name: name, Enabled: enable, Changed: changed})
}

// Events streams a station's notifications as server-sent events.
func (h *StationsHandler) Events(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	streamSSEEvents(w, r, s.Broadcaster(), s.Status(), h.keepAlive)
}

// Snapshot returns the newest frame of a station as JPEG.
func (h *StationsHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	data, err := s.Snapshot()
	if err != nil {
		if errors.Is(err, station.ErrNotPlaying) {
			respondError(w, http.StatusNotFound, "stream not playing yet")
			return
		}
		log.Printf("Snapshot of station %s failed: %v", sanitizeForLog(s.Name()), err)
		respondError(w, http.StatusInternalServerError, "failed to encode snapshot")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
