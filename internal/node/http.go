package node

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/brunomcebola/argos/internal/camera"
)

// Router builds the Node Service's HTTP surface: camera listing/status,
// config replace, launch, stream toggle, and log tail. The event-socket
// side is wired separately via the Manager's Hub.
func (m *Manager) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/cameras", m.handleListCameras)
	r.Get("/cameras/{sn}/status", m.handleCameraStatus)
	r.Put("/cameras/{sn}/config", m.handleUpdateConfig)
	r.Post("/cameras/{sn}/launch", m.handleLaunch)
	r.Post("/cameras/{sn}/stream/{action}", m.handleStream)
	r.Get("/logs", m.handleLogs)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (m *Manager) handleListCameras(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, m.Cameras())
}

func (m *Manager) handleCameraStatus(w http.ResponseWriter, r *http.Request) {
	sn := chi.URLParam(r, "sn")
	known, operational := m.Status(sn)
	if !known {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown camera"})
		return
	}
	if !operational {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"serial": sn, "status": "not operational"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"serial": sn, "status": "operational"})
}

func (m *Manager) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	sn := chi.URLParam(r, "sn")

	var cf CameraFile
	if err := json.NewDecoder(r.Body).Decode(&cf); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := m.UpdateConfig(sn, cf); err != nil {
		status := http.StatusBadRequest
		if _, ok := err.(*camera.ConfigurationError); !ok {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"serial": sn, "status": "relaunched"})
}

func (m *Manager) handleLaunch(w http.ResponseWriter, r *http.Request) {
	sn := chi.URLParam(r, "sn")
	if err := m.Launch(sn); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"serial": sn, "status": "launched"})
}

func (m *Manager) handleStream(w http.ResponseWriter, r *http.Request) {
	sn := chi.URLParam(r, "sn")
	action := chi.URLParam(r, "action")

	var start bool
	switch action {
	case "start":
		start = true
	case "stop":
		start = false
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "action must be start or stop"})
		return
	}

	if err := m.Stream(sn, start); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	// State errors (e.g. start on an already-streaming camera) are
	// idempotent no-ops at the Group level, so always 200 here.
	writeJSON(w, http.StatusOK, map[string]string{"serial": sn, "action": action})
}

func (m *Manager) handleLogs(w http.ResponseWriter, r *http.Request) {
	startLine, _ := strconv.Atoi(r.URL.Query().Get("start_line"))
	nbLines, _ := strconv.Atoi(r.URL.Query().Get("nb_lines"))
	if startLine <= 0 {
		startLine = 1
	}
	writeJSON(w, http.StatusOK, m.Logs(startLine, nbLines))
}
