package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"gallery-engine/internal/autotag"
)

// FavoriteRequest is the body of favorite mutations.
type FavoriteRequest struct {
	ID string `json:"id"`
}

// GetFavorites returns the favorited item ids.
func (h *Handlers) GetFavorites(w http.ResponseWriter, r *http.Request) {
	favorites := h.store.Favorites(r.Context())
	if favorites == nil {
		favorites = []string{}
	}
	writeJSON(w, favorites)
}

// ToggleFavorite flips an item's favorite membership.
func (h *Handlers) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req FavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "Item id is required", http.StatusBadRequest)
		return
	}

	now, err := h.store.ToggleFavorite(r.Context(), req.ID)
	if err != nil {
		http.Error(w, "Failed to toggle favorite", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"favorite": now})
}

// TagsResponse carries an item's manual and merged tags.
type TagsResponse struct {
	ID     string   `json:"id"`
	Manual []string `json:"manual"`
	Merged []string `json:"merged"`
}

// GetTags returns an item's manual tags plus the read-time union with
// its derived tags.
func (h *Handlers) GetTags(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	manual := h.store.Tags(r.Context(), id)
	meta, _ := h.store.AutoTagMeta(r.Context(), id)

	resp := TagsResponse{ID: id, Manual: manual, Merged: autotag.Merged(manual, meta)}
	if resp.Manual == nil {
		resp.Manual = []string{}
	}
	writeJSON(w, resp)
}

// SetTags replaces an item's manual tags with the normalized form of
// the request body.
func (h *Handlers) SetTags(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var tags []string
	if err := json.NewDecoder(r.Body).Decode(&tags); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	stored, err := h.store.SetTags(r.Context(), id, tags)
	if err != nil {
		http.Error(w, "Failed to set tags", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stored)
}

// AllTags returns the sorted union of every known tag across the
// catalog, the choices offered by the tag editor.
func (h *Handlers) AllTags(w http.ResponseWriter, r *http.Request) {
	tags := h.store.AllTags(r.Context())
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, tags)
}

// TitleRequest is the body of a title override update.
type TitleRequest struct {
	Title string `json:"title"`
}

// SetTitle stores or clears an item's title override.
func (h *Handlers) SetTitle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req TitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.SetTitle(r.Context(), id, req.Title); err != nil {
		http.Error(w, "Failed to set title", http.StatusInternalServerError)
		return
	}
	writeStatusOK(w)
}

// WatchRequest carries a watch-time delta in seconds.
type WatchRequest struct {
	Delta float64 `json:"delta"`
}

// AddWatchTime accumulates a watch-time delta for an item and returns
// the new total.
func (h *Handlers) AddWatchTime(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req WatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Delta < 0 {
		http.Error(w, "Delta must be non-negative", http.StatusBadRequest)
		return
	}

	total, err := h.store.AddWatchTime(r.Context(), id, req.Delta)
	if err != nil {
		http.Error(w, "Failed to add watch time", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]float64{"watchSeconds": total})
}

// ResetWatchTime zeroes all watch-time counters.
func (h *Handlers) ResetWatchTime(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ResetAllWatchTime(r.Context()); err != nil {
		http.Error(w, "Failed to reset watch time", http.StatusInternalServerError)
		return
	}
	writeStatusOK(w)
}

// ProgressRequest carries a resume position update.
type ProgressRequest struct {
	Seconds  float64 `json:"seconds"`
	Duration float64 `json:"duration"`
}

// GetProgress returns the stored resume position for an item.
func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	writeJSON(w, map[string]float64{"seconds": h.store.Progress(r.Context(), id)})
}

// SetProgress stores a clamped resume position for an item.
func (h *Handlers) SetProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	clamped, err := h.store.SetProgress(r.Context(), id, req.Seconds, req.Duration)
	if err != nil {
		http.Error(w, "Failed to set progress", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]float64{"seconds": clamped})
}

// VolumeRequest carries a global volume update.
type VolumeRequest struct {
	Volume float64 `json:"volume"`
}

// GetVolume returns the global playback volume.
func (h *Handlers) GetVolume(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]float64{"volume": h.store.Volume(r.Context())})
}

// SetVolume stores the clamped global playback volume.
func (h *Handlers) SetVolume(w http.ResponseWriter, r *http.Request) {
	var req VolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	clamped, err := h.store.SetVolume(r.Context(), req.Volume)
	if err != nil {
		http.Error(w, "Failed to set volume", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]float64{"volume": clamped})
}
