package handlers

import (
	"net/http"
	"runtime"
	"time"

	"gallery-engine/internal/startup"
	"gallery-engine/internal/viewer"
)

// HealthResponse is the health check body.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	CatalogItems int    `json:"catalogItems"`
	ViewerOpen   bool   `json:"viewerOpen"`
	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports service liveness and a small state summary.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	catalogSize := len(h.lastItems)
	h.mu.Unlock()

	writeJSON(w, HealthResponse{
		Status:       "healthy",
		Version:      startup.Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		CatalogItems: catalogSize,
		ViewerOpen:   h.viewer.Snapshot().State != viewer.StateClosed,
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	})
}

// VersionInfo returns build information.
func (h *Handlers) VersionInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, startup.GetBuildInfo())
}
