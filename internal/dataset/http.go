package dataset

import (
	"encoding/json"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Router builds the Dataset Registry's HTTP surface: list/create/rename/
// delete plus raw-frame image serving (§4.8). Mounted by the master under
// /datasets.
func (r *Registry) Router() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.handleList)
	router.Post("/", r.handleCreate)
	router.Put("/{name}", r.handleRename)
	router.Delete("/{name}", r.handleDelete)
	router.Get("/{name}/raw", r.handleListRaw)
	router.Get("/{name}/raw/{file}", r.handleRawImage)

	return router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (r *Registry) handleList(w http.ResponseWriter, req *http.Request) {
	names := r.List()
	sort.Strings(names)
	writeJSON(w, http.StatusOK, names)
}

func (r *Registry) handleCreate(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	ds, err := r.Create(body.Name)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": ds.Name})
}

func (r *Registry) handleRename(w http.ResponseWriter, req *http.Request) {
	oldName := chi.URLParam(req, "name")
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := r.Rename(oldName, body.Name); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": body.Name})
}

func (r *Registry) handleDelete(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "name")
	if err := r.Delete(name); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name})
}

// handleListRaw enumerates the .npy files currently sitting in a dataset's
// raw directory, for a caller (e.g. the analytics side, or an operator
// browsing the dataset) to pick a frame to fetch as an image.
func (r *Registry) handleListRaw(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "name")
	ds, ok := r.Get(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown dataset"})
		return
	}
	entries, err := os.ReadDir(ds.RawDir())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	writeJSON(w, http.StatusOK, files)
}

// handleRawImage serves one stored frame file as a browser-displayable
// image: color slots are re-encoded as PNG, depth slots normalised and
// colormapped to JPEG, per §4.8.
func (r *Registry) handleRawImage(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "name")
	file := chi.URLParam(req, "file")

	ds, ok := r.Get(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown dataset"})
		return
	}
	if strings.ContainsAny(file, "/\\") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid file name"})
		return
	}

	path := slotPath(ds, file)
	switch {
	case strings.HasSuffix(file, "_color.npy"):
		w.Header().Set("Content-Type", "image/png")
		if err := ReadColorImage(path, w); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	case strings.HasSuffix(file, "_depth.npy"):
		w.Header().Set("Content-Type", "image/jpeg")
		if err := ReadDepthImage(path, w); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported slot file"})
	}
}
