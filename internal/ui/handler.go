// Package ui renders the server-side dashboard pages.
package ui

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ancine-dash/internal/domain"

	. "maragu.dev/gomponents"
)

// Handler serves the dashboard. Movies and Runs are optional.
type Handler struct {
	Warehouse domain.BoxOffice
	Movies    domain.MetadataProvider
	Runs      domain.RunRepository
	Logger    *slog.Logger

	// Today anchors the default date range; tests pin it.
	Today func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(wh domain.BoxOffice, movies domain.MetadataProvider, runs domain.RunRepository, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Warehouse: wh,
		Movies:    movies,
		Runs:      runs,
		Logger:    logger.With("component", "ui"),
		Today:     time.Now,
	}
}

func pageFromRequest(r *http.Request, defaultPageSize int) domain.PageRequest {
	maxResults := defaultPageSize
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			maxResults = parsed
		}
	}
	maxResults = max(1, min(maxResults, 200))
	return domain.PageRequest{
		MaxResults: maxResults,
		PageToken:  r.URL.Query().Get("page_token"),
	}
}

func renderHTML(w http.ResponseWriter, status int, node Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}

func (h *Handler) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	title := "Erro inesperado"
	message := "Ocorreu um erro ao carregar esta página."

	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	if errors.As(err, &notFound) {
		status = http.StatusNotFound
		title = "Não encontrado"
		message = notFound.Error()
	} else if errors.As(err, &validation) {
		status = http.StatusBadRequest
		title = "Requisição inválida"
		message = validation.Error()
	} else {
		h.Logger.ErrorContext(r.Context(), "render page", "path", r.URL.Path, "error", err)
	}
	renderHTML(w, status, errorPage(title, message))
}
