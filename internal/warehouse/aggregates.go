package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"ancine-dash/internal/ddl"
	"ancine-dash/internal/domain"
)

// rankOrder selects how a grouped aggregate is ranked.
type rankOrder string

const (
	byAudienceDesc rankOrder = "audience DESC"
	bySessionsDesc rankOrder = "sessions DESC"
	byAverageDesc  rankOrder = "average DESC"
	byAverageAsc   rankOrder = "average ASC"
)

// ranked groups the filtered rows by column and returns the first n groups
// in the given order. n <= 0 returns every group.
func (w *Warehouse) ranked(ctx context.Context, f domain.TitleFilter, column string, order rankOrder, n int) ([]domain.Ranked, error) {
	from, _, err := w.source()
	if err != nil {
		return nil, err
	}
	where, args := w.where(f)
	q := fmt.Sprintf(`SELECT %[1]s AS label,
       CAST(COALESCE(SUM(%[2]s), 0) AS BIGINT) AS audience,
       COUNT(*) AS sessions,
       ROUND(CAST(COALESCE(SUM(%[2]s), 0) AS DOUBLE) / COUNT(*), 2) AS average
FROM %[3]s%[4]s
GROUP BY label
ORDER BY %[5]s, label`, ddl.QuoteIdentifier(column), w.audienceExpr(), from, where, order)
	if n > 0 {
		q += fmt.Sprintf(" LIMIT %d", n)
	}

	rows, err := w.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("rank by %s: %w", column, err)
	}
	defer rows.Close() //nolint:errcheck

	out := []domain.Ranked{}
	for rows.Next() {
		var (
			r     domain.Ranked
			label sql.NullString
		)
		if err := rows.Scan(&label, &r.Audience, &r.Sessions, &r.Average); err != nil {
			return nil, fmt.Errorf("scan ranked row: %w", err)
		}
		r.Label = label.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// TopByAudience returns the n titles with the largest total audience.
func (w *Warehouse) TopByAudience(ctx context.Context, f domain.TitleFilter, n int) ([]domain.Ranked, error) {
	return w.ranked(ctx, f, w.cols.Title, byAudienceDesc, n)
}

// TopBySessions returns the n titles with the most sessions.
func (w *Warehouse) TopBySessions(ctx context.Context, f domain.TitleFilter, n int) ([]domain.Ranked, error) {
	return w.ranked(ctx, f, w.cols.Title, bySessionsDesc, n)
}

// AudienceByState returns the total audience of every state.
func (w *Warehouse) AudienceByState(ctx context.Context, f domain.TitleFilter) ([]domain.Ranked, error) {
	return w.ranked(ctx, f, w.cols.State, byAudienceDesc, 0)
}

// TopStates returns the n states with the largest audience.
func (w *Warehouse) TopStates(ctx context.Context, f domain.TitleFilter, n int) ([]domain.Ranked, error) {
	return w.ranked(ctx, f, w.cols.State, byAudienceDesc, n)
}

// TopAveragePerSession returns the n titles with the highest audience per session.
func (w *Warehouse) TopAveragePerSession(ctx context.Context, f domain.TitleFilter, n int) ([]domain.Ranked, error) {
	return w.ranked(ctx, f, w.cols.Title, byAverageDesc, n)
}

// LeastWatched returns the n titles with the lowest audience per session.
func (w *Warehouse) LeastWatched(ctx context.Context, f domain.TitleFilter, n int) ([]domain.Ranked, error) {
	return w.ranked(ctx, f, w.cols.Title, byAverageAsc, n)
}

// TopMunicipalities returns the n municipalities with the largest audience.
func (w *Warehouse) TopMunicipalities(ctx context.Context, f domain.TitleFilter, n int) ([]domain.Ranked, error) {
	return w.ranked(ctx, f, w.cols.Municipality, byAudienceDesc, n)
}
