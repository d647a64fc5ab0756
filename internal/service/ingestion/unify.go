package ingestion

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ancine-dash/internal/ddl"
	"ancine-dash/internal/domain"
)

// UnifyResult describes the master dataset that was written.
type UnifyResult struct {
	Output  string
	Sources []string
	Columns []string
	Rows    int64
}

// Unifier merges every per-source Parquet file in a directory into the master
// dataset with union-by-name semantics: columns missing from a file are null.
type Unifier struct {
	duck        *sql.DB
	dataDir     string
	masterFile  string
	compression string
}

// NewUnifier creates a Unifier. duck is an open DuckDB handle owned by the caller.
func NewUnifier(duck *sql.DB, dataDir, masterFile, compression string) *Unifier {
	if compression == "" {
		compression = "snappy"
	}
	return &Unifier{duck: duck, dataDir: dataDir, masterFile: masterFile, compression: compression}
}

// MasterPath returns where the master dataset is written.
func (u *Unifier) MasterPath() string {
	return filepath.Join(u.dataDir, u.masterFile)
}

// Sources lists the per-source Parquet files, sorted, excluding the master.
func (u *Unifier) Sources() ([]string, error) {
	entries, err := os.ReadDir(u.dataDir)
	if err != nil {
		return nil, fmt.Errorf("list data dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == u.masterFile || !strings.EqualFold(filepath.Ext(name), ".parquet") {
			continue
		}
		out = append(out, filepath.Join(u.dataDir, name))
	}
	sort.Strings(out)
	return out, nil
}

// Unify writes the master dataset. It fails with domain.ErrNoSources when
// there is nothing to merge and with domain.ErrOutputExists rather than
// replacing an existing master.
func (u *Unifier) Unify(ctx context.Context) (UnifyResult, error) {
	sources, err := u.Sources()
	if err != nil {
		return UnifyResult{}, err
	}
	if len(sources) == 0 {
		return UnifyResult{}, domain.ErrNoSources
	}

	columns, err := unionColumns(sources)
	if err != nil {
		return UnifyResult{}, err
	}

	master := u.MasterPath()
	partial := partialPath(master)
	query, err := ddl.UnionSelect(sources, columns)
	if err != nil {
		return UnifyResult{}, err
	}
	stmt, err := ddl.CopyToParquet(query, partial, u.compression)
	if err != nil {
		return UnifyResult{}, err
	}
	if _, err := u.duck.ExecContext(ctx, stmt); err != nil {
		_ = os.Remove(partial)
		return UnifyResult{}, fmt.Errorf("unify %d files: %w", len(sources), classifyDuckDBError(err))
	}

	var rows int64
	countSQL := "SELECT count(*) FROM read_parquet(" + ddl.QuoteLiteral(partial) + ")"
	if err := u.duck.QueryRowContext(ctx, countSQL).Scan(&rows); err != nil {
		_ = os.Remove(partial)
		return UnifyResult{}, fmt.Errorf("count unified rows: %w", classifyDuckDBError(err))
	}

	if _, err := os.Stat(master); err == nil {
		_ = os.Remove(partial)
		return UnifyResult{}, fmt.Errorf("finalize %s: %w", master, domain.ErrOutputExists)
	}
	if err := os.Rename(partial, master); err != nil {
		_ = os.Remove(partial)
		return UnifyResult{}, fmt.Errorf("finalize %s: %w", master, err)
	}
	return UnifyResult{Output: master, Sources: sources, Columns: columns, Rows: rows}, nil
}

// unionColumns is the ordered union of the sources' column names. DuckDB
// matches names ignoring case, so PUBLICO and Publico are one column and the
// first spelling seen names it.
func unionColumns(sources []string) ([]string, error) {
	var columns []string
	seen := make(map[string]bool)
	for _, src := range sources {
		cols, _, err := parquetInfo(src)
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			if key := domain.FoldName(c); !seen[key] {
				seen[key] = true
				columns = append(columns, c)
			}
		}
	}
	return columns, nil
}
