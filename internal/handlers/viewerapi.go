package handlers

import (
	"encoding/json"
	"net/http"

	"gallery-engine/internal/viewer"
)

// ViewerOpenRequest asks the viewer to open at an item. If the item is
// not in the currently visible order the open is deferred until a
// catalog refresh contains it.
type ViewerOpenRequest struct {
	ID string `json:"id"`
}

// ViewerState returns the viewer snapshot.
func (h *Handlers) ViewerState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.viewer.Snapshot())
}

// ViewerOpen opens (or defers opening) the viewer at an item.
func (h *Handlers) ViewerOpen(w http.ResponseWriter, r *http.Request) {
	var req ViewerOpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "Item id is required", http.StatusBadRequest)
		return
	}

	// Make sure a view order exists before freezing it.
	h.lastCatalog(r.Context())
	writeJSON(w, h.viewer.Open(req.ID, nil, nil))
}

// ViewerClose closes the viewer, flushing watch time and progress.
func (h *Handlers) ViewerClose(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.viewer.Close())
}

// ViewerNext advances the frozen sequence.
func (h *Handlers) ViewerNext(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.viewer.Next())
}

// ViewerPrev retreats the frozen sequence.
func (h *Handlers) ViewerPrev(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.viewer.Prev())
}

// ViewerSelect jumps to an id within the frozen sequence.
func (h *Handlers) ViewerSelect(w http.ResponseWriter, r *http.Request) {
	var req ViewerOpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, h.viewer.Select(req.ID))
}

// ViewerMetadataRequest reports that the media element knows its
// duration and became seekable.
type ViewerMetadataRequest struct {
	Duration float64 `json:"duration"`
}

// ViewerMetadata feeds the resume state machine.
func (h *Handlers) ViewerMetadata(w http.ResponseWriter, r *http.Request) {
	var req ViewerMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, h.viewer.MetadataReady(req.Duration))
}

// ViewerPositionRequest is the steady playback heartbeat.
type ViewerPositionRequest struct {
	Seconds float64 `json:"seconds"`
	Volume  float64 `json:"volume"`
	Playing bool    `json:"playing"`
}

// ViewerPosition accrues watch time and persists progress/volume on a
// coalesced cadence.
func (h *Handlers) ViewerPosition(w http.ResponseWriter, r *http.Request) {
	var req ViewerPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, h.viewer.ReportPosition(req.Seconds, req.Volume, req.Playing))
}

// ViewerEnded reports natural end of playback and starts the
// recommendation flow.
func (h *Handlers) ViewerEnded(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.viewer.ReportEnded())
}

// ViewerVisibilityRequest reports the surface being hidden or shown.
type ViewerVisibilityRequest struct {
	Hidden bool `json:"hidden"`
}

// ViewerVisibility flushes watch time at the visibility boundary.
func (h *Handlers) ViewerVisibility(w http.ResponseWriter, r *http.Request) {
	var req ViewerVisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, h.viewer.VisibilityChanged(req.Hidden))
}

// ViewerInputRequest carries directional and gesture input.
type ViewerInputRequest struct {
	Direction string  `json:"direction,omitempty"` // "forward" or "back"
	DX        float64 `json:"dx,omitempty"`
	DY        float64 `json:"dy,omitempty"`
}

// ViewerSeek applies directional input: playhead seek for video,
// sequence navigation for images. Vertical directions adjust volume.
func (h *Handlers) ViewerSeek(w http.ResponseWriter, r *http.Request) {
	var req ViewerInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	switch req.Direction {
	case "forward":
		writeJSON(w, h.viewer.SeekBy(viewer.Forward))
	case "back":
		writeJSON(w, h.viewer.SeekBy(viewer.Backward))
	case "volume-up":
		writeJSON(w, map[string]float64{"volume": h.viewer.AdjustVolume(viewer.Forward)})
	case "volume-down":
		writeJSON(w, map[string]float64{"volume": h.viewer.AdjustVolume(viewer.Backward)})
	case "fullscreen":
		h.viewer.ToggleFullscreen()
		writeStatusOK(w)
	default:
		http.Error(w, "Unknown direction", http.StatusBadRequest)
	}
}

// ViewerPause toggles playback.
func (h *Handlers) ViewerPause(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.viewer.TogglePause())
}

// ViewerSwipe classifies a touch drag; only long, predominantly
// horizontal drags navigate.
func (h *Handlers) ViewerSwipe(w http.ResponseWriter, r *http.Request) {
	var req ViewerInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, h.viewer.Swipe(req.DX, req.DY))
}
