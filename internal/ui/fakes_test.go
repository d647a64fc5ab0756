package ui

import (
	"context"
	"time"

	"ancine-dash/internal/domain"
)

// fakeBoxOffice answers every query from fixed data and records the last filter.
type fakeBoxOffice struct {
	bounds     domain.DateBounds
	titleRange domain.DateBounds
	ranked     []domain.Ranked
	daily      []domain.DailyPoint
	err        error
	last       domain.TitleFilter
}

func (f *fakeBoxOffice) Bounds(_ context.Context, _ domain.TitleFilter) (domain.DateBounds, error) {
	return f.bounds, f.err
}
func (f *fakeBoxOffice) Titles(context.Context) ([]string, error) {
	return []string{"AQUARIUS", "BACURAU"}, f.err
}
func (f *fakeBoxOffice) States(context.Context) ([]string, error) { return []string{"PE", "SP"}, f.err }
func (f *fakeBoxOffice) Municipalities(_ context.Context, states []string) ([]string, error) {
	if len(states) == 0 {
		return nil, f.err
	}
	return []string{"RECIFE"}, f.err
}
func (f *fakeBoxOffice) TitleRange(_ context.Context, _ string) (domain.DateBounds, error) {
	return f.titleRange, f.err
}
func (f *fakeBoxOffice) rank(fl domain.TitleFilter) ([]domain.Ranked, error) {
	f.last = fl
	return f.ranked, f.err
}
func (f *fakeBoxOffice) TopByAudience(_ context.Context, fl domain.TitleFilter, _ int) ([]domain.Ranked, error) {
	return f.rank(fl)
}
func (f *fakeBoxOffice) TopBySessions(_ context.Context, fl domain.TitleFilter, _ int) ([]domain.Ranked, error) {
	return f.rank(fl)
}
func (f *fakeBoxOffice) AudienceByState(_ context.Context, fl domain.TitleFilter) ([]domain.Ranked, error) {
	return f.rank(fl)
}
func (f *fakeBoxOffice) TopStates(_ context.Context, fl domain.TitleFilter, _ int) ([]domain.Ranked, error) {
	return f.rank(fl)
}
func (f *fakeBoxOffice) TopAveragePerSession(_ context.Context, fl domain.TitleFilter, _ int) ([]domain.Ranked, error) {
	return f.rank(fl)
}
func (f *fakeBoxOffice) LeastWatched(_ context.Context, fl domain.TitleFilter, _ int) ([]domain.Ranked, error) {
	return f.rank(fl)
}
func (f *fakeBoxOffice) TopMunicipalities(_ context.Context, fl domain.TitleFilter, _ int) ([]domain.Ranked, error) {
	return f.rank(fl)
}
func (f *fakeBoxOffice) DailySeries(_ context.Context, fl domain.TitleFilter) ([]domain.DailyPoint, error) {
	f.last = fl
	return f.daily, f.err
}

type fakeMovies struct {
	details *domain.MovieDetails
}

func (f *fakeMovies) Search(context.Context, string) []domain.MovieCandidate {
	if f.details == nil {
		return nil
	}
	// The more popular decoy comes second; the title page must take the first hit.
	return []domain.MovieCandidate{
		{ID: f.details.ID, Title: f.details.Title, Popularity: 1},
		{ID: f.details.ID + 1000, Title: f.details.Title + " (remake)", Popularity: 99},
	}
}

func (f *fakeMovies) Details(_ context.Context, id int64) (*domain.MovieDetails, bool) {
	if f.details == nil || f.details.ID != id {
		return nil, false
	}
	return f.details, true
}

type fakeRuns struct {
	domain.RunRepository
	runs  []domain.IngestionRun
	files []domain.FileResult
}

func (f *fakeRuns) ListRuns(_ context.Context, page domain.PageRequest) ([]domain.IngestionRun, int64, error) {
	end := min(page.Offset()+page.Limit(), len(f.runs))
	return f.runs[page.Offset():end], int64(len(f.runs)), nil
}

func (f *fakeRuns) GetRun(_ context.Context, id string) (*domain.IngestionRun, error) {
	for i := range f.runs {
		if f.runs[i].ID == id {
			return &f.runs[i], nil
		}
	}
	return nil, domain.ErrNotFound("run %s not found", id)
}

func (f *fakeRuns) ListFiles(context.Context, string) ([]domain.FileResult, error) {
	return f.files, nil
}

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}
