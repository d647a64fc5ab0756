package domain

import "time"

// MovieCandidate is one ranked search hit from the metadata provider.
type MovieCandidate struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	ReleaseDate   string  `json:"release_date"`
	Popularity    float64 `json:"popularity"`
}

// MovieDetails is the enrichment record shown next to a title.
type MovieDetails struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Overview    string  `json:"overview"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int64   `json:"vote_count"`
	Runtime     int     `json:"runtime"`
	PosterPath  string  `json:"poster_path"`

	Directors []string `json:"directors,omitempty"`
	Cast      []string `json:"cast,omitempty"`
}

// ReleaseYear returns the first four characters of the release date.
func (m *MovieDetails) ReleaseYear() string {
	if len(m.ReleaseDate) < 4 {
		return ""
	}
	return m.ReleaseDate[:4]
}

// TitleFilter selects rows of the master dataset. Empty fields do not filter.
type TitleFilter struct {
	Title          string
	From           time.Time
	To             time.Time
	States         []string
	Municipalities []string
}

// DateBounds is the min/max exhibition date of a selection.
type DateBounds struct {
	Min time.Time
	Max time.Time
}

// Valid reports whether both bounds were found.
func (b DateBounds) Valid() bool { return !b.Min.IsZero() && !b.Max.IsZero() }

// Ranked is one row of a top-N aggregate.
type Ranked struct {
	Label    string  `json:"label"`
	Audience int64   `json:"audience"`
	Sessions int64   `json:"sessions"`
	Average  float64 `json:"average"`
}

// DailyPoint is one day of the audience time series.
type DailyPoint struct {
	Date      time.Time `json:"date"`
	Audience  int64     `json:"audience"`
	Sessions  int64     `json:"sessions"`
	MovingAvg *float64  `json:"moving_avg_7d,omitempty"`
}
