package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"gallery-engine/internal/autotag"
)

// RunAutotag runs a catalog-wide retag pass. Items whose cached
// deriver version is current are skipped, so repeat runs are cheap.
func (h *Handlers) RunAutotag(w http.ResponseWriter, r *http.Request) {
	items := h.lastCatalog(r.Context())
	stats, err := autotag.RetagAll(r.Context(), h.store, items)
	if err != nil {
		http.Error(w, "Autotag pass interrupted", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// GetPreview returns the resolved preview frame URLs for a video
// item. An empty list means no preview exists and the client should
// show a static placeholder.
func (h *Handlers) GetPreview(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	item, ok := h.itemByID(r.Context(), id)
	if !ok {
		http.Error(w, "Unknown item", http.StatusNotFound)
		return
	}

	count := 0
	if v := r.URL.Query().Get("frames"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			count = n
		}
	}
	if count <= 0 {
		count = h.cfg.PreviewFrames
	}

	frames := h.previews.Resolve(item, count)
	if frames == nil {
		frames = []string{}
	}
	writeJSON(w, frames)
}

// GetFeatured returns the featured image and video picks. Picks are
// re-drawn only when the catalog size changes.
func (h *Handlers) GetFeatured(w http.ResponseWriter, r *http.Request) {
	items := h.lastCatalog(r.Context())
	writeJSON(w, h.featured.Pick(items))
}

// CardHover drives a card's hover preview rotation: state=start arms
// the rotation delay, state=end stops rotation and resets the frame.
func (h *Handlers) CardHover(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	card, ok := h.grid.Card(id)
	if !ok {
		http.Error(w, "Unknown item", http.StatusNotFound)
		return
	}

	switch r.URL.Query().Get("state") {
	case "start":
		card.HoverStart()
	case "end":
		card.HoverEnd()
	default:
		http.Error(w, "state must be start or end", http.StatusBadRequest)
		return
	}
	writeStatusOK(w)
}

// CardFrameFailed marks a card's preview as broken; the card falls
// back to the static placeholder for the rest of its life.
func (h *Handlers) CardFrameFailed(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	card, ok := h.grid.Card(id)
	if !ok {
		http.Error(w, "Unknown item", http.StatusNotFound)
		return
	}
	card.FrameLoadFailed()
	writeStatusOK(w)
}
