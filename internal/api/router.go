// Package api exposes the library over JSON HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sydlexius/driftwood/internal/library"
	"github.com/sydlexius/driftwood/internal/provider"
)

// RouterDeps are the services the HTTP surface needs.
type RouterDeps struct {
	Library  *library.Service
	Registry *provider.Registry
	Logger   *slog.Logger
}

// Router holds HTTP handlers and their dependencies.
type Router struct {
	library  *library.Service
	registry *provider.Registry
	logger   *slog.Logger
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		library:  deps.Library,
		registry: deps.Registry,
		logger:   deps.Logger,
	}
}

// Handler returns the fully configured HTTP handler.
func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", r.handleHealth)

	mux.HandleFunc("GET /api/v1/artists", r.handleListArtists)
	mux.HandleFunc("POST /api/v1/artists", r.handleAddArtist)
	mux.HandleFunc("GET /api/v1/artists/{id}", r.handleGetArtist)
	mux.HandleFunc("PUT /api/v1/artists/{id}", r.handleUpdateArtist)
	mux.HandleFunc("DELETE /api/v1/artists/{id}", r.handleDeleteArtist)

	mux.HandleFunc("GET /api/v1/artists/{id}/toptracks", r.handleArtistTopTracks)
	mux.HandleFunc("GET /api/v1/artists/{id}/albums", r.handleArtistAlbums)
	mux.HandleFunc("POST /api/v1/artists/{id}/match", r.handleMatchArtist)

	mux.HandleFunc("GET /api/v1/albums/{id}", r.handleGetAlbum)
	mux.HandleFunc("POST /api/v1/albums", r.handleAddAlbum)
	mux.HandleFunc("GET /api/v1/tracks/{id}", r.handleGetTrack)
	mux.HandleFunc("POST /api/v1/tracks", r.handleAddTrack)

	mux.HandleFunc("GET /api/v1/providers", r.handleListProviders)

	return mux
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Router) handleListProviders(w http.ResponseWriter, req *http.Request) {
	type instance struct {
		Type       string `json:"type"`
		InstanceID string `json:"instance_id"`
	}
	var instances []instance
	for _, c := range r.registry.All() {
		instances = append(instances, instance{
			Type:       string(c.Type()),
			InstanceID: c.InstanceID(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": instances})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
