package ui

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ancine-dash/internal/ui/assets"
)

// MountRoutes registers the dashboard under r, which is expected to be
// mounted at /ui.
func MountRoutes(r chi.Router, h *Handler) {
	r.Handle("/static/*", http.StripPrefix("/ui/static/", http.FileServer(http.FS(assets.Static()))))
	r.Get("/", h.Overview)
	r.Get("/title", h.Title)
	r.Get("/runs", h.RunsList)
	r.Get("/runs/{runID}", h.RunDetail)
}
