package warehouse

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ancine-dash/internal/config"
	"ancine-dash/internal/ddl"
	"ancine-dash/internal/domain"
)

var testColumns = config.Columns{
	Title:        "TITULO_BRASIL",
	Date:         "DT_INICIO_EXIBICAO",
	Audience:     "PUBLICO",
	State:        "UF_SALA_COMPLEXO",
	Municipality: "MUNICIPIO_SALA_COMPLEXO",
}

// sessions is a small master dataset; every value is text as written by ingestion.
const sessions = `VALUES
	('BACURAU',  '2023-01-01', '100', 'PE', 'RECIFE'),
	('BACURAU',  '2023-01-02', '50',  'PE', 'RECIFE'),
	('BACURAU',  '03/01/2023', '30',  'SP', 'SAO PAULO'),
	('AQUARIUS', '2023-01-01', '10',  'PE', 'OLINDA'),
	('AQUARIUS', '2023-01-01', '20',  'SP', 'SAO PAULO'),
	('AQUARIUS', '2023-01-05', NULL,  'SP', 'CAMPINAS'),
	('TATUAGEM', 'sem data',   'x',   'RJ', 'RIO DE JANEIRO')`

func newTestWarehouse(t *testing.T) *Warehouse {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	master := filepath.Join(t.TempDir(), "ancine_all.parquet")
	query := "SELECT * FROM (" + sessions + ") AS t(TITULO_BRASIL, DT_INICIO_EXIBICAO, PUBLICO, UF_SALA_COMPLEXO, MUNICIPIO_SALA_COMPLEXO)"
	stmt, err := ddl.CopyToParquet(query, master, "snappy")
	require.NoError(t, err)
	_, err = db.Exec(stmt)
	require.NoError(t, err)

	return New(db, master, testColumns)
}

func day(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestWarehouse_MissingMaster(t *testing.T) {
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	w := New(db, filepath.Join(t.TempDir(), "none.parquet"), testColumns)
	_, err = w.Titles(context.Background())
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestWarehouse_Lists(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()

	titles, err := w.Titles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AQUARIUS", "BACURAU", "TATUAGEM"}, titles)

	states, err := w.States(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"PE", "RJ", "SP"}, states)

	munis, err := w.Municipalities(ctx, []string{"SP"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CAMPINAS", "SAO PAULO"}, munis)

	none, err := w.Municipalities(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWarehouse_Bounds(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()

	all, err := w.Bounds(ctx, domain.TitleFilter{})
	require.NoError(t, err)
	assert.Equal(t, day("2023-01-01"), all.Min.UTC())
	assert.Equal(t, day("2023-01-05"), all.Max.UTC())

	bacurau, err := w.TitleRange(ctx, "BACURAU")
	require.NoError(t, err)
	assert.Equal(t, day("2023-01-03"), bacurau.Max.UTC(), "dd/mm/yyyy dates are parsed")

	unknown, err := w.TitleRange(ctx, "NAO EXISTE")
	require.NoError(t, err)
	assert.False(t, unknown.Valid())

	_, err = w.TitleRange(ctx, " ")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestWarehouse_Rankings(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()
	all := domain.TitleFilter{}

	top, err := w.TopByAudience(ctx, all, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, domain.Ranked{Label: "BACURAU", Audience: 180, Sessions: 3, Average: 60}, top[0])
	assert.Equal(t, "AQUARIUS", top[1].Label)
	assert.Equal(t, int64(30), top[1].Audience, "null and non-numeric audiences are ignored")
	assert.Equal(t, int64(3), top[1].Sessions)

	sess, err := w.TopBySessions(ctx, all, 1)
	require.NoError(t, err)
	require.Len(t, sess, 1)
	assert.Equal(t, "AQUARIUS", sess[0].Label, "ties break on label")

	least, err := w.LeastWatched(ctx, all, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"TATUAGEM", "AQUARIUS"}, labels(least))

	avg, err := w.TopAveragePerSession(ctx, all, 10)
	require.NoError(t, err)
	assert.Equal(t, "BACURAU", avg[0].Label)

	byState, err := w.AudienceByState(ctx, all)
	require.NoError(t, err)
	assert.Equal(t, []string{"PE", "SP", "RJ"}, labels(byState))

	munis, err := w.TopMunicipalities(ctx, all, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"RECIFE", "SAO PAULO"}, labels(munis))
}

func TestWarehouse_Filters(t *testing.T) {
	w := newTestWarehouse(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter domain.TitleFilter
		want   []string
	}{
		{"title", domain.TitleFilter{Title: "AQUARIUS"}, []string{"AQUARIUS"}},
		{"date range", domain.TitleFilter{From: day("2023-01-02"), To: day("2023-01-03")}, []string{"BACURAU"}},
		{"state", domain.TitleFilter{States: []string{"SP"}}, []string{"BACURAU", "AQUARIUS"}},
		{"municipality", domain.TitleFilter{States: []string{"SP", "PE"}, Municipalities: []string{"OLINDA"}}, []string{"AQUARIUS"}},
		{"quote in value", domain.TitleFilter{Title: "O'HARA"}, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := w.TopByAudience(ctx, tc.filter, 10)
			require.NoError(t, err)
			assert.Equal(t, tc.want, labels(got))
		})
	}
}

func TestWarehouse_DailySeries(t *testing.T) {
	w := newTestWarehouse(t)

	points, err := w.DailySeries(context.Background(), domain.TitleFilter{})
	require.NoError(t, err)
	require.Len(t, points, 4, "rows without a parseable date are dropped")
	assert.Equal(t, day("2023-01-01"), points[0].Date.UTC())
	assert.Equal(t, int64(130), points[0].Audience)
	assert.Equal(t, int64(3), points[0].Sessions)
	assert.Equal(t, int64(0), points[3].Audience)
	for _, p := range points {
		assert.Nil(t, p.MovingAvg, "fewer points than the window")
	}
}

func TestApplyMovingAverage(t *testing.T) {
	points := make([]domain.DailyPoint, 9)
	for i := range points {
		points[i].Audience = int64(i + 1)
	}
	ApplyMovingAverage(points, 7)

	for i := 0; i < 6; i++ {
		assert.Nil(t, points[i].MovingAvg)
	}
	require.NotNil(t, points[6].MovingAvg)
	assert.InDelta(t, 4.0, *points[6].MovingAvg, 1e-9)
	assert.InDelta(t, 6.0, *points[8].MovingAvg, 1e-9)
}

func TestSeriesExtremes(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	points := []domain.DailyPoint{
		{Date: day("2023-01-01")},
		{Date: day("2023-01-02"), MovingAvg: f(5)},
		{Date: day("2023-01-03"), MovingAvg: f(2)},
		{Date: day("2023-01-04"), MovingAvg: f(9)},
		{Date: day("2023-01-05"), MovingAvg: f(2)},
	}
	e, ok := SeriesExtremes(points)
	require.True(t, ok)
	assert.Equal(t, Extreme{Date: day("2023-01-03"), Value: 2}, e.Min)
	assert.Equal(t, Extreme{Date: day("2023-01-04"), Value: 9}, e.Max)

	_, ok = SeriesExtremes(points[:1])
	assert.False(t, ok)
}

func labels(rs []domain.Ranked) []string {
	out := []string{}
	for _, r := range rs {
		out = append(out, r.Label)
	}
	return out
}
