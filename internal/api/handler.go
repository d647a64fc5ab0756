// Package api serves the JSON view of the box-office dataset and the run ledger.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ancine-dash/internal/domain"
)

// Ranking sizes shared with the dashboard overview.
const (
	topN            = 10
	leastWatchedN   = 5
	municipalitiesN = 5
)

// Handler implements the /api/v1 endpoints. movies and runs may be nil.
type Handler struct {
	warehouse domain.BoxOffice
	movies    domain.MetadataProvider
	runs      domain.RunRepository
	logger    *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(wh domain.BoxOffice, movies domain.MetadataProvider, runs domain.RunRepository, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		warehouse: wh,
		movies:    movies,
		runs:      runs,
		logger:    logger.With("component", "api"),
	}
}

// MountRoutes registers the endpoints under r, which is expected to be
// mounted at /api/v1.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/summary", h.Summary)
	r.Get("/titles", h.Titles)
	r.Get("/movies/search", h.SearchMovies)
	r.Get("/movies/{movieID}", h.GetMovie)
	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{runID}", h.GetRun)
}

// Summary is the aggregate view of one filter selection.
type Summary struct {
	From              *string             `json:"from"`
	To                *string             `json:"to"`
	TopAudience       []domain.Ranked     `json:"top_audience"`
	TopSessions       []domain.Ranked     `json:"top_sessions"`
	AudienceByState   []domain.Ranked     `json:"audience_by_state"`
	TopAverage        []domain.Ranked     `json:"top_average_per_session"`
	LeastWatched      []domain.Ranked     `json:"least_watched"`
	TopMunicipalities []domain.Ranked     `json:"top_municipalities"`
	Daily             []domain.DailyPoint `json:"daily"`
}

// Summary handles GET /summary. Missing dates default to the bounds of the
// selection, so an unfiltered call covers the whole dataset.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := filterFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if f.From.IsZero() || f.To.IsZero() {
		bounds, err := h.warehouse.Bounds(ctx, domain.TitleFilter{
			Title: f.Title, States: f.States, Municipalities: f.Municipalities,
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if !bounds.Valid() {
			writeJSON(w, http.StatusOK, Summary{})
			return
		}
		if f.From.IsZero() {
			f.From = bounds.Min
		}
		if f.To.IsZero() {
			f.To = bounds.Max
		}
	}
	if f.To.Before(f.From) {
		f.From, f.To = f.To, f.From
	}

	var out Summary
	from, to := f.From.Format(time.DateOnly), f.To.Format(time.DateOnly)
	out.From, out.To = &from, &to

	steps := []struct {
		dst *[]domain.Ranked
		run func() ([]domain.Ranked, error)
	}{
		{&out.TopAudience, func() ([]domain.Ranked, error) { return h.warehouse.TopByAudience(ctx, f, topN) }},
		{&out.TopSessions, func() ([]domain.Ranked, error) { return h.warehouse.TopBySessions(ctx, f, topN) }},
		{&out.AudienceByState, func() ([]domain.Ranked, error) { return h.warehouse.AudienceByState(ctx, f) }},
		{&out.TopAverage, func() ([]domain.Ranked, error) { return h.warehouse.TopAveragePerSession(ctx, f, topN) }},
		{&out.LeastWatched, func() ([]domain.Ranked, error) { return h.warehouse.LeastWatched(ctx, f, leastWatchedN) }},
		{&out.TopMunicipalities, func() ([]domain.Ranked, error) { return h.warehouse.TopMunicipalities(ctx, f, municipalitiesN) }},
	}
	for _, s := range steps {
		rows, err := s.run()
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		*s.dst = rows
	}
	if out.Daily, err = h.warehouse.DailySeries(ctx, f); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Titles handles GET /titles.
func (h *Handler) Titles(w http.ResponseWriter, r *http.Request) {
	titles, err := h.warehouse.Titles(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if titles == nil {
		titles = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"titles": titles})
}

// SearchMovies handles GET /movies/search?title=.
func (h *Handler) SearchMovies(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		h.writeError(w, r, domain.ErrValidation("title is required"))
		return
	}
	results := []domain.MovieCandidate{}
	if h.movies != nil {
		if found := h.movies.Search(r.Context(), title); found != nil {
			results = found
		}
	}
	writeJSON(w, http.StatusOK, map[string][]domain.MovieCandidate{"results": results})
}

// GetMovie handles GET /movies/{movieID}.
func (h *Handler) GetMovie(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "movieID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, r, domain.ErrValidation("invalid movie id %q", raw))
		return
	}
	if h.movies == nil {
		h.writeError(w, r, domain.ErrNotFound("movie %d: metadata unavailable", id))
		return
	}
	details, ok := h.movies.Details(r.Context(), id)
	if !ok {
		h.writeError(w, r, domain.ErrNotFound("movie %d: metadata unavailable", id))
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func filterFromQuery(r *http.Request) (domain.TitleFilter, error) {
	q := r.URL.Query()
	f := domain.TitleFilter{
		Title:  strings.TrimSpace(q.Get("title")),
		States: nonEmpty(q["state"]),
	}
	if len(f.States) > 0 {
		f.Municipalities = nonEmpty(q["municipality"])
	}
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := strings.TrimSpace(q.Get(p.key))
		if v == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return f, domain.ErrValidation("invalid %s %q: expected YYYY-MM-DD", p.key, v)
		}
		*p.dst = t
	}
	return f, nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
