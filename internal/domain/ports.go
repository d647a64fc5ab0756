package domain

import "context"

// Guard decides whether the step producing outputPath has already run.
// Implemented by ingestion.ExistenceGuard.
type Guard interface {
	Done(outputPath string) (bool, error)
}

// MetadataProvider looks up movie enrichment data.
// Implemented by tmdb.Client. Failures are swallowed: an empty result or
// false means no data available.
type MetadataProvider interface {
	Search(ctx context.Context, title string) []MovieCandidate
	Details(ctx context.Context, id int64) (*MovieDetails, bool)
}

// BoxOffice is the read-only query surface over the master dataset.
// Implemented by warehouse.Warehouse.
type BoxOffice interface {
	Bounds(ctx context.Context, f TitleFilter) (DateBounds, error)
	Titles(ctx context.Context) ([]string, error)
	States(ctx context.Context) ([]string, error)
	Municipalities(ctx context.Context, states []string) ([]string, error)
	TitleRange(ctx context.Context, title string) (DateBounds, error)
	TopByAudience(ctx context.Context, f TitleFilter, n int) ([]Ranked, error)
	TopBySessions(ctx context.Context, f TitleFilter, n int) ([]Ranked, error)
	AudienceByState(ctx context.Context, f TitleFilter) ([]Ranked, error)
	TopStates(ctx context.Context, f TitleFilter, n int) ([]Ranked, error)
	TopAveragePerSession(ctx context.Context, f TitleFilter, n int) ([]Ranked, error)
	LeastWatched(ctx context.Context, f TitleFilter, n int) ([]Ranked, error)
	TopMunicipalities(ctx context.Context, f TitleFilter, n int) ([]Ranked, error)
	DailySeries(ctx context.Context, f TitleFilter) ([]DailyPoint, error)
}
