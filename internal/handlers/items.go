package handlers

import (
	"net/http"

	"gallery-engine/internal/gallery"
)

// ItemListing is the response body for /api/items.
type ItemListing struct {
	Items      []gallery.CardView `json:"items"`
	TotalItems int                `json:"totalItems"`
}

// ListItems returns the filtered, sorted catalog with the engagement
// overlay. Fetching the list also establishes the "current visible
// order" the viewer freezes when it opens.
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	visible, err := h.refreshView(r.Context(), parseViewQuery(r))
	if err != nil {
		http.Error(w, "Failed to load catalog", http.StatusInternalServerError)
		return
	}

	views := h.grid.Views(r.Context(), visible)
	if views == nil {
		views = []gallery.CardView{}
	}
	writeJSON(w, ItemListing{Items: views, TotalItems: len(views)})
}
