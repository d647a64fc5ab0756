// Package warehouse answers dashboard questions over the unified master dataset.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"ancine-dash/internal/config"
	"ancine-dash/internal/ddl"
	"ancine-dash/internal/domain"
)

var _ domain.BoxOffice = (*Warehouse)(nil)

// Warehouse runs read-only aggregate queries against the master Parquet file.
// Every user-supplied value is bound as a query parameter.
type Warehouse struct {
	db     *sql.DB
	master string
	cols   config.Columns

	mu          sync.Mutex
	titles      []string
	titlesStamp time.Time
}

// New creates a Warehouse. db is a DuckDB handle owned by the caller.
func New(db *sql.DB, masterPath string, cols config.Columns) *Warehouse {
	return &Warehouse{db: db, master: masterPath, cols: cols}
}

// MasterPath returns the dataset file the warehouse reads.
func (w *Warehouse) MasterPath() string { return w.master }

// source returns the FROM clause, or a NotFoundError when ingestion has not
// produced the master dataset yet.
func (w *Warehouse) source() (string, time.Time, error) {
	info, err := os.Stat(w.master)
	if errors.Is(err, os.ErrNotExist) {
		return "", time.Time{}, domain.ErrNotFound("master dataset %s not found; run ingest first", w.master)
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("stat master dataset: %w", err)
	}
	return "read_parquet(" + ddl.QuoteLiteral(w.master) + ")", info.ModTime(), nil
}

func (w *Warehouse) dateExpr() string     { return ddl.TryCastDate(w.cols.Date) }
func (w *Warehouse) audienceExpr() string { return ddl.TryCastBigint(w.cols.Audience) }

// where renders the filter as a WHERE clause with positional parameters.
func (w *Warehouse) where(f domain.TitleFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !f.From.IsZero() {
		conds = append(conds, w.dateExpr()+" >= CAST(? AS DATE)")
		args = append(args, f.From.Format(time.DateOnly))
	}
	if !f.To.IsZero() {
		conds = append(conds, w.dateExpr()+" <= CAST(? AS DATE)")
		args = append(args, f.To.Format(time.DateOnly))
	}
	if f.Title != "" {
		conds = append(conds, ddl.QuoteIdentifier(w.cols.Title)+" = ?")
		args = append(args, f.Title)
	}
	if len(f.States) > 0 {
		conds = append(conds, inList(w.cols.State, len(f.States)))
		args = appendStrings(args, f.States)
	}
	if len(f.Municipalities) > 0 {
		conds = append(conds, inList(w.cols.Municipality, len(f.Municipalities)))
		args = appendStrings(args, f.Municipalities)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func inList(column string, n int) string {
	return ddl.QuoteIdentifier(column) + " IN (" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

func appendStrings(args []any, values []string) []any {
	for _, v := range values {
		args = append(args, v)
	}
	return args
}

// Bounds returns the first and last exhibition date matching f.
func (w *Warehouse) Bounds(ctx context.Context, f domain.TitleFilter) (domain.DateBounds, error) {
	from, _, err := w.source()
	if err != nil {
		return domain.DateBounds{}, err
	}
	where, args := w.where(f)
	q := fmt.Sprintf("SELECT MIN(%[1]s), MAX(%[1]s) FROM %[2]s%[3]s", w.dateExpr(), from, where)

	var lo, hi sql.NullTime
	if err := w.db.QueryRowContext(ctx, q, args...).Scan(&lo, &hi); err != nil {
		return domain.DateBounds{}, fmt.Errorf("query date bounds: %w", err)
	}
	return domain.DateBounds{Min: lo.Time, Max: hi.Time}, nil
}

// TitleRange returns the exhibition period of one title.
func (w *Warehouse) TitleRange(ctx context.Context, title string) (domain.DateBounds, error) {
	if strings.TrimSpace(title) == "" {
		return domain.DateBounds{}, domain.ErrValidation("title is required")
	}
	return w.Bounds(ctx, domain.TitleFilter{Title: title})
}

// Titles returns every distinct title, sorted. The list is cached until the
// master dataset changes on disk.
func (w *Warehouse) Titles(ctx context.Context) ([]string, error) {
	from, stamp, err := w.source()
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.titles != nil && w.titlesStamp.Equal(stamp) {
		return w.titles, nil
	}

	titles, err := w.distinct(ctx, w.cols.Title, from, "", nil)
	if err != nil {
		return nil, err
	}
	w.titles, w.titlesStamp = titles, stamp
	return titles, nil
}

// States returns every distinct state code, sorted.
func (w *Warehouse) States(ctx context.Context) ([]string, error) {
	from, _, err := w.source()
	if err != nil {
		return nil, err
	}
	return w.distinct(ctx, w.cols.State, from, "", nil)
}

// Municipalities returns the distinct municipalities of the given states.
// With no states selected there is nothing to choose from.
func (w *Warehouse) Municipalities(ctx context.Context, states []string) ([]string, error) {
	if len(states) == 0 {
		return []string{}, nil
	}
	from, _, err := w.source()
	if err != nil {
		return nil, err
	}
	where := " WHERE " + inList(w.cols.State, len(states))
	return w.distinct(ctx, w.cols.Municipality, from, where, appendStrings(nil, states))
}

func (w *Warehouse) distinct(ctx context.Context, column, from, where string, args []any) ([]string, error) {
	col := ddl.QuoteIdentifier(column)
	cond := col + " IS NOT NULL"
	if where == "" {
		where = " WHERE " + cond
	} else {
		where += " AND " + cond
	}
	q := fmt.Sprintf("SELECT DISTINCT %[1]s FROM %[2]s%[3]s ORDER BY %[1]s", col, from, where)

	rows, err := w.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list distinct %s: %w", column, err)
	}
	defer rows.Close() //nolint:errcheck

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
