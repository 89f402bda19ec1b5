package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sydlexius/driftwood/internal/library"
	"github.com/sydlexius/driftwood/internal/media"
)

// handleListArtists returns the canonical artists as JSON.
// GET /api/v1/artists
func (r *Router) handleListArtists(w http.ResponseWriter, req *http.Request) {
	artists, err := r.library.ListArtists(req.Context())
	if err != nil {
		r.logger.Error("listing artists", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artists": artists,
		"total":   len(artists),
	})
}

// handleGetArtist returns a single canonical artist as JSON.
// GET /api/v1/artists/{id}
func (r *Router) handleGetArtist(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	a, err := r.library.GetArtist(req.Context(), id)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeError(w, http.StatusNotFound, "artist not found")
			return
		}
		r.logger.Error("getting artist", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artist": a})
}

// handleAddArtist adds a provider-sourced artist to the library.
// POST /api/v1/artists
func (r *Router) handleAddArtist(w http.ResponseWriter, req *http.Request) {
	var item media.Item
	if err := json.NewDecoder(req.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := r.library.AddArtist(req.Context(), &item)
	if err != nil {
		if errors.Is(err, media.ErrNoMappings) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		r.logger.Error("adding artist", "name", item.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"artist": a})
}

// handleUpdateArtist updates a canonical artist. The overwrite query
// parameter selects replacement over additive merge.
// PUT /api/v1/artists/{id}?overwrite=true
func (r *Router) handleUpdateArtist(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	var item media.Item
	if err := json.NewDecoder(req.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	overwrite, _ := strconv.ParseBool(req.URL.Query().Get("overwrite"))

	a, err := r.library.UpdateArtist(req.Context(), id, &item, overwrite)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeError(w, http.StatusNotFound, "artist not found")
			return
		}
		r.logger.Error("updating artist", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artist": a})
}

// handleDeleteArtist removes a canonical artist and its dependent records.
// DELETE /api/v1/artists/{id}
func (r *Router) handleDeleteArtist(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	if err := r.library.DeleteArtist(req.Context(), id); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeError(w, http.StatusNotFound, "artist not found")
			return
		}
		r.logger.Error("deleting artist", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleArtistTopTracks aggregates an artist's top tracks across providers.
// GET /api/v1/artists/{id}/toptracks
func (r *Router) handleArtistTopTracks(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	tracks, err := r.library.TopTracks(req.Context(), id)
	if err != nil {
		writeAggregationError(w, r, "aggregating top tracks", id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

// handleArtistAlbums aggregates an artist's albums across providers.
// GET /api/v1/artists/{id}/albums
func (r *Router) handleArtistAlbums(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	albums, err := r.library.Albums(req.Context(), id)
	if err != nil {
		writeAggregationError(w, r, "aggregating albums", id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"albums": albums})
}

// handleMatchArtist tries to link an artist on providers it has no mapping
// for yet.
// POST /api/v1/artists/{id}/match
func (r *Router) handleMatchArtist(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	a, err := r.library.GetArtist(req.Context(), id)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeError(w, http.StatusNotFound, "artist not found")
			return
		}
		r.logger.Error("getting artist for match", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := r.library.MatchArtist(req.Context(), a); err != nil {
		r.logger.Error("matching artist", "id", id, "error", err)
		writeError(w, http.StatusBadGateway, "matching failed")
		return
	}

	a, err = r.library.GetArtist(req.Context(), id)
	if err != nil {
		r.logger.Error("reloading matched artist", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artist": a})
}

// writeAggregationError maps aggregation failures: a missing artist is the
// caller's fault, a provider failure is upstream.
func writeAggregationError(w http.ResponseWriter, r *Router, op, id string, err error) {
	if errors.Is(err, library.ErrNotFound) {
		writeError(w, http.StatusNotFound, "artist not found")
		return
	}
	r.logger.Error(op, "id", id, "error", err)
	writeError(w, http.StatusBadGateway, "provider aggregation failed")
}
