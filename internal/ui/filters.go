package ui

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"ancine-dash/internal/domain"
)

// filterParams is the sidebar state as submitted in the query string.
type filterParams struct {
	Title          string
	From           string
	To             string
	States         []string
	Municipalities []string
}

func parseFilterParams(r *http.Request) (filterParams, error) {
	q := r.URL.Query()
	p := filterParams{
		Title:          strings.TrimSpace(q.Get("title")),
		From:           strings.TrimSpace(q.Get("from")),
		To:             strings.TrimSpace(q.Get("to")),
		States:         nonEmpty(q["state"]),
		Municipalities: nonEmpty(q["municipality"]),
	}
	for _, v := range []string{p.From, p.To} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, v); err != nil {
			return p, domain.ErrValidation("invalid date %q: expected YYYY-MM-DD", v)
		}
	}
	if len(p.Municipalities) > 0 && len(p.States) == 0 {
		// Municipalities are chosen within states; without states they do not apply.
		p.Municipalities = nil
	}
	return p, nil
}

// resolve turns the params into a query filter. Missing dates default to the
// first day of the month of min(today, dataset max) through that day, clamped
// to the dataset bounds.
func (p filterParams) resolve(bounds domain.DateBounds, today time.Time) domain.TitleFilter {
	f := domain.TitleFilter{
		Title:          p.Title,
		States:         p.States,
		Municipalities: p.Municipalities,
	}
	end := truncateDay(today)
	if bounds.Valid() && bounds.Max.Before(end) {
		end = truncateDay(bounds.Max)
	}
	start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	if bounds.Valid() && start.Before(truncateDay(bounds.Min)) {
		start = truncateDay(bounds.Min)
	}

	f.From, f.To = start, end
	if t, err := time.Parse(time.DateOnly, p.From); err == nil {
		f.From = t
	}
	if t, err := time.Parse(time.DateOnly, p.To); err == nil {
		f.To = t
	}
	if f.To.Before(f.From) {
		f.From, f.To = f.To, f.From
	}
	return f
}

// filterQuery re-encodes a filter for links between pages.
func filterQuery(f domain.TitleFilter) url.Values {
	v := url.Values{}
	if f.Title != "" {
		v.Set("title", f.Title)
	}
	if !f.From.IsZero() {
		v.Set("from", f.From.Format(time.DateOnly))
	}
	if !f.To.IsZero() {
		v.Set("to", f.To.Format(time.DateOnly))
	}
	for _, s := range f.States {
		v.Add("state", s)
	}
	for _, m := range f.Municipalities {
		v.Add("municipality", m)
	}
	return v
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
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
