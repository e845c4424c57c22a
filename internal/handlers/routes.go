package handlers

import (
	"github.com/gorilla/mux"
)

// SetupRoutes registers every API route on the router.
func (h *Handlers) SetupRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/items", h.ListItems).Methods("GET")
	api.HandleFunc("/items/{id}/tags", h.GetTags).Methods("GET")
	api.HandleFunc("/items/{id}/tags", h.SetTags).Methods("PUT")
	api.HandleFunc("/items/{id}/title", h.SetTitle).Methods("PUT")
	api.HandleFunc("/items/{id}/watch", h.AddWatchTime).Methods("POST")
	api.HandleFunc("/items/{id}/progress", h.GetProgress).Methods("GET")
	api.HandleFunc("/items/{id}/progress", h.SetProgress).Methods("PUT")
	api.HandleFunc("/items/{id}/preview", h.GetPreview).Methods("GET")

	api.HandleFunc("/tags", h.AllTags).Methods("GET")
	api.HandleFunc("/favorites", h.GetFavorites).Methods("GET")
	api.HandleFunc("/favorites/toggle", h.ToggleFavorite).Methods("POST")
	api.HandleFunc("/watch/reset", h.ResetWatchTime).Methods("POST")
	api.HandleFunc("/volume", h.GetVolume).Methods("GET")
	api.HandleFunc("/volume", h.SetVolume).Methods("PUT")
	api.HandleFunc("/autotag/run", h.RunAutotag).Methods("POST")
	api.HandleFunc("/featured", h.GetFeatured).Methods("GET")

	api.HandleFunc("/viewer/state", h.ViewerState).Methods("GET")
	api.HandleFunc("/viewer/open", h.ViewerOpen).Methods("POST")
	api.HandleFunc("/viewer/close", h.ViewerClose).Methods("POST")
	api.HandleFunc("/viewer/next", h.ViewerNext).Methods("POST")
	api.HandleFunc("/viewer/prev", h.ViewerPrev).Methods("POST")
	api.HandleFunc("/viewer/select", h.ViewerSelect).Methods("POST")
	api.HandleFunc("/viewer/metadata", h.ViewerMetadata).Methods("POST")
	api.HandleFunc("/viewer/position", h.ViewerPosition).Methods("POST")
	api.HandleFunc("/viewer/ended", h.ViewerEnded).Methods("POST")
	api.HandleFunc("/viewer/visibility", h.ViewerVisibility).Methods("POST")
	api.HandleFunc("/viewer/seek", h.ViewerSeek).Methods("POST")
	api.HandleFunc("/viewer/pause", h.ViewerPause).Methods("POST")
	api.HandleFunc("/viewer/swipe", h.ViewerSwipe).Methods("POST")

	api.HandleFunc("/cards/{id}/hover", h.CardHover).Methods("POST")
	api.HandleFunc("/cards/{id}/frame-failed", h.CardFrameFailed).Methods("POST")

	api.HandleFunc("/events", h.Events).Methods("GET")
	api.HandleFunc("/health", h.HealthCheck).Methods("GET")
	api.HandleFunc("/version", h.VersionInfo).Methods("GET")
}
