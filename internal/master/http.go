package master

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brunomcebola/argos/internal/dataset"
	"github.com/brunomcebola/argos/internal/middleware"
	"github.com/brunomcebola/argos/internal/ratelimit"
)

// proxyTimeout bounds every node->node proxy request, per §5's 30s upper
// bound on this path.
const proxyTimeout = 30 * time.Second

// Server wires the registry, the fan-out Fleet, the dataset registry, and
// the ambient stack (rate limiting, metrics) into the master's HTTP
// control plane.
type Server struct {
	registry   *Registry
	fleet      *Fleet
	datasets   *dataset.Registry
	imagesDir  string
	limiter    *ratelimit.Limiter
	limits     ratelimit.LimitConfig
	recordLims ratelimit.LimitConfig
}

// NewServer constructs a Server. limiter may be nil, in which case rate
// limiting is skipped entirely (used by tests that don't wire Redis).
func NewServer(registry *Registry, fleet *Fleet, datasets *dataset.Registry, imagesDir string, limiter *ratelimit.Limiter) *Server {
	return &Server{
		registry:  registry,
		fleet:     fleet,
		datasets:  datasets,
		imagesDir: imagesDir,
		limiter:   limiter,
		limits:    ratelimit.LimitConfig{Rate: 120, Window: time.Minute},
		recordLims: ratelimit.LimitConfig{Rate: 30, Window: time.Minute},
	}
}

// Router builds the full master HTTP surface described in §4.5 and §6.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/nodes", s.handleListNodes)
	r.Post("/nodes", s.handleCreateNode)
	r.Put("/nodes/{id}", s.handleUpdateNode)
	r.Delete("/nodes/{id}", s.handleDeleteNode)
	r.Get("/nodes/{id}/image", s.handleNodeImage)
	r.Post("/nodes/{id}/cameras/{cid}/record", s.handleToggleRecording)
	r.Post("/nodes/emit_update_events_list_events", s.handleEmitUpdateEventsList)
	r.Handle("/nodes/{id}/*", s.proxyHandler())

	r.Mount("/datasets", s.datasets.Router())

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

// handleCreateNode accepts a multipart form (name, address, and an
// optional image file) per §4.5.
func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	rec := Record{
		Name:    r.FormValue("name"),
		Address: r.FormValue("address"),
	}

	file, header, err := r.FormFile("image")
	var imageBytes []byte
	var imageExt string
	if err == nil {
		defer file.Close()
		imageBytes, imageExt, err = readImage(file, header)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		rec.HasImage = true
	}

	created, err := s.registry.Create(rec)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	if imageBytes != nil {
		if err := s.saveImage(created.ID, imageExt, imageBytes); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
	}

	s.fleet.StartNode(r.Context(), created)
	writeJSON(w, http.StatusCreated, created)
}

func readImage(file multipart.File, header *multipart.FileHeader) ([]byte, string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	ext := strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	if ext == "" {
		ext = "png"
	}
	return data, ext, nil
}

func (s *Server) saveImage(id int, ext string, data []byte) error {
	for _, e := range []string{"png", "jpg", "jpeg"} {
		_ = os.Remove(filepath.Join(s.imagesDir, fmt.Sprintf("%d.%s", id, e)))
	}
	path := filepath.Join(s.imagesDir, fmt.Sprintf("%d.%s", id, ext))
	return os.WriteFile(path, data, 0o640)
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	var rec Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	updated, err := s.registry.Update(id, rec)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.registry.Delete(id); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"id": id})
}

func (s *Server) handleNodeImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, ext := range []string{"png", "jpg", "jpeg"} {
		path := filepath.Join(s.imagesDir, fmt.Sprintf("%s.%s", id, ext))
		if data, err := os.ReadFile(path); err == nil {
			contentType := "image/png"
			if ext != "png" {
				contentType = "image/jpeg"
			}
			w.Header().Set("Content-Type", contentType)
			_, _ = w.Write(data)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "no image for node"})
}

// proxyHandler implements "ANY /nodes/{id}/{subpath}": forward the request
// to http://<address>/<subpath>, preserving method, query, and body, and
// relay back the node's status and body verbatim.
func (s *Server) proxyHandler() http.HandlerFunc {
	client := &http.Client{Timeout: proxyTimeout}

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		rec, ok := s.registry.Get(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown node"})
			return
		}

		if s.limiter != nil && !s.limiter.Allow(r.Context(), ratelimit.ScopeProxyIP, clientIP(r), s.limits) {
			middleware.RecordRateLimitReject(string(ratelimit.ScopeProxyIP))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}

		subpath := chi.URLParam(r, "*")
		target := fmt.Sprintf("http://%s/%s", rec.Address, subpath)
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}

		ctx, cancel := context.WithTimeout(r.Context(), proxyTimeout)
		defer cancel()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, r.Method, target, strings.NewReader(string(body)))
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		req.Header = r.Header.Clone()

		resp, err := client.Do(req)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		defer resp.Body.Close()

		for k, vv := range resp.Header {
			for _, v := range vv {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	}
}

func clientIP(r *http.Request) string {
	if idx := strings.LastIndex(r.RemoteAddr, ":"); idx >= 0 {
		return r.RemoteAddr[:idx]
	}
	return r.RemoteAddr
}

// handleToggleRecording implements "POST /nodes/{id}/cameras/{cid}/record":
// toggle a recording session for (node, camera) into/out-of the named
// dataset.
func (s *Server) handleToggleRecording(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	cameraSN := chi.URLParam(r, "cid")

	if s.limiter != nil && !s.limiter.Allow(r.Context(), ratelimit.ScopeRecording, idStr+"/"+cameraSN, s.recordLims) {
		middleware.RecordRateLimitReject(string(ratelimit.ScopeRecording))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}

	var body struct {
		Dataset string `json:"dataset"`
		Start   bool   `json:"start"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	if !body.Start {
		s.fleet.recorder.Stop(idStr, cameraSN)
		writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
		return
	}

	ds, ok := s.datasets.Get(body.Dataset)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown dataset"})
		return
	}
	if err := s.fleet.recorder.Start(idStr, cameraSN, ds); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started", "dataset": ds.Name})
}

// handleEmitUpdateEventsList implements the analytics bridge's reconnect
// hook (§4.9): it causes "update_events_list" to be re-emitted on
// /analytics for every currently-registered node, so a freshly (re)started
// bridge rebuilds every per-camera subscription without waiting for the
// next frame.
func (s *Server) handleEmitUpdateEventsList(w http.ResponseWriter, r *http.Request) {
	for _, rec := range s.registry.List() {
		cameras, _ := s.fleet.Session(rec.ID)
		sort.Strings(cameras)
		payload, _ := json.Marshal(map[string]any{
			"node_id": rec.ID,
			"cameras": cameras,
		})
		s.fleet.hub.Broadcast("/analytics", "update_events_list", payload)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "emitted"})
}
