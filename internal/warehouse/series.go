package warehouse

import (
	"context"
	"fmt"
	"time"

	"ancine-dash/internal/domain"
)

// MovingAverageWindow is the number of consecutive days averaged in a daily series.
const MovingAverageWindow = 7

// DailySeries returns audience and session totals per exhibition day, in
// date order, with a trailing moving average over MovingAverageWindow points.
// Rows whose date cannot be parsed are left out.
func (w *Warehouse) DailySeries(ctx context.Context, f domain.TitleFilter) ([]domain.DailyPoint, error) {
	from, _, err := w.source()
	if err != nil {
		return nil, err
	}
	where, args := w.where(f)
	q := fmt.Sprintf(`SELECT d, CAST(COALESCE(SUM(a), 0) AS BIGINT), COUNT(*)
FROM (SELECT %s AS d, %s AS a FROM %s%s)
WHERE d IS NOT NULL
GROUP BY d
ORDER BY d`, w.dateExpr(), w.audienceExpr(), from, where)

	rows, err := w.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily series: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := []domain.DailyPoint{}
	for rows.Next() {
		var p domain.DailyPoint
		if err := rows.Scan(&p.Date, &p.Audience, &p.Sessions); err != nil {
			return nil, fmt.Errorf("scan daily point: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	ApplyMovingAverage(out, MovingAverageWindow)
	return out, nil
}

// ApplyMovingAverage sets MovingAvg on every point that has window-1
// predecessors; earlier points keep a nil average.
func ApplyMovingAverage(points []domain.DailyPoint, window int) {
	if window <= 0 {
		return
	}
	var sum int64
	for i := range points {
		sum += points[i].Audience
		if i >= window {
			sum -= points[i-window].Audience
		}
		if i >= window-1 {
			avg := float64(sum) / float64(window)
			points[i].MovingAvg = &avg
		}
	}
}

// Extreme is one marked point of a moving-average line.
type Extreme struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Extremes holds the lowest and highest moving average of a series.
type Extremes struct {
	Min Extreme `json:"min"`
	Max Extreme `json:"max"`
}

// SeriesExtremes returns the minimum and maximum moving average. The first
// occurrence wins on ties. ok is false when no point has an average.
func SeriesExtremes(points []domain.DailyPoint) (e Extremes, ok bool) {
	for _, p := range points {
		if p.MovingAvg == nil {
			continue
		}
		v := *p.MovingAvg
		if !ok {
			e.Min = Extreme{Date: p.Date, Value: v}
			e.Max = e.Min
			ok = true
			continue
		}
		if v < e.Min.Value {
			e.Min = Extreme{Date: p.Date, Value: v}
		}
		if v > e.Max.Value {
			e.Max = Extreme{Date: p.Date, Value: v}
		}
	}
	return e, ok
}
