package ingestion

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/stretchr/testify/require"

	"ancine-dash/internal/domain"
)

// parquetTable is a parquet file read back as text: column names plus rows
// keyed by column, with nil for null.
type parquetTable struct {
	Columns []string
	Rows    []map[string]*string
}

func readParquet(t *testing.T, path string) parquetTable {
	t.Helper()
	rdr, err := file.OpenParquetFile(path, false)
	require.NoError(t, err)
	defer rdr.Close() //nolint:errcheck

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	tbl, err := fr.ReadTable(context.Background())
	require.NoError(t, err)
	defer tbl.Release()

	out := parquetTable{Rows: make([]map[string]*string, tbl.NumRows())}
	for i := range out.Rows {
		out.Rows[i] = map[string]*string{}
	}
	for c := 0; c < int(tbl.NumCols()); c++ {
		col := tbl.Column(c)
		out.Columns = append(out.Columns, col.Name())
		row := 0
		for _, chunk := range col.Data().Chunks() {
			strs, ok := chunk.(*array.String)
			require.True(t, ok, "column %s is %s, want utf8", col.Name(), chunk.DataType())
			for k := 0; k < strs.Len(); k++ {
				if strs.IsNull(k) {
					out.Rows[row][col.Name()] = nil
				} else {
					v := strs.Value(k)
					out.Rows[row][col.Name()] = &v
				}
				row++
			}
		}
	}
	return out
}

func str(s string) *string { return &s }

func mustBatch(t *testing.T, columns []string, rows ...[]string) *domain.Batch {
	t.Helper()
	schema, err := domain.NewSchema(columns...)
	require.NoError(t, err)
	b := domain.NewBatch(schema, len(rows))
	for _, r := range rows {
		values := make([]domain.Value, len(r))
		for i, v := range r {
			if v != "" {
				values[i] = domain.Text(v)
			}
		}
		require.NoError(t, b.AppendRow(values))
	}
	return b
}

// writeParquet writes one batch as dir/name and returns the path.
func writeParquet(t *testing.T, dir, name string, b *domain.Batch) string {
	t.Helper()
	path := filepath.Join(dir, name)
	w, err := NewColumnarWriter(path, WriterOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), b))
	require.NoError(t, w.Close())
	return path
}

func openDuck(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
