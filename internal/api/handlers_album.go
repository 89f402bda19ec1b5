package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sydlexius/driftwood/internal/library"
	"github.com/sydlexius/driftwood/internal/media"
)

// handleGetAlbum returns a single canonical album as JSON.
// GET /api/v1/albums/{id}
func (r *Router) handleGetAlbum(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	a, err := r.library.GetAlbum(req.Context(), id)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeError(w, http.StatusNotFound, "album not found")
			return
		}
		r.logger.Error("getting album", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"album": a})
}

// handleAddAlbum adds a provider-sourced album to the library.
// POST /api/v1/albums
func (r *Router) handleAddAlbum(w http.ResponseWriter, req *http.Request) {
	var item media.Item
	if err := json.NewDecoder(req.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := r.library.AddAlbum(req.Context(), &item)
	if err != nil {
		if errors.Is(err, media.ErrNoMappings) || errors.Is(err, library.ErrNotCanonical) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		r.logger.Error("adding album", "name", item.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"album": a})
}

// handleGetTrack returns a single canonical track as JSON.
// GET /api/v1/tracks/{id}
func (r *Router) handleGetTrack(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	tr, err := r.library.GetTrack(req.Context(), id)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeError(w, http.StatusNotFound, "track not found")
			return
		}
		r.logger.Error("getting track", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"track": tr})
}

// handleAddTrack adds a provider-sourced track to the library.
// POST /api/v1/tracks
func (r *Router) handleAddTrack(w http.ResponseWriter, req *http.Request) {
	var item media.Item
	if err := json.NewDecoder(req.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tr, err := r.library.AddTrack(req.Context(), &item)
	if err != nil {
		if errors.Is(err, media.ErrNoMappings) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		r.logger.Error("adding track", "name", item.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"track": tr})
}
