package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ancine-dash/internal/domain"
)

func TestColumnarWriter_WritesBatches(t *testing.T) {
	out := filepath.Join(t.TempDir(), "sessoes.parquet")
	w, err := NewColumnarWriter(out, WriterOptions{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, mustBatch(t, []string{"TITULO_BRASIL", "PUBLICO"},
		[]string{"BACURAU", "120"}, []string{"AQUARIUS", ""})))
	// Same columns, different order.
	require.NoError(t, w.Write(ctx, mustBatch(t, []string{"PUBLICO", "TITULO_BRASIL"},
		[]string{"7", "CENTRAL DO BRASIL"})))
	assert.NoFileExists(t, out, "output appears only after Close")
	require.NoError(t, w.Close())
	assert.Equal(t, int64(3), w.Rows())

	assert.FileExists(t, out)
	assert.NoFileExists(t, partialPath(out))

	tbl := readParquet(t, out)
	assert.Equal(t, []string{"TITULO_BRASIL", "PUBLICO"}, tbl.Columns)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, str("BACURAU"), tbl.Rows[0]["TITULO_BRASIL"])
	assert.Nil(t, tbl.Rows[1]["PUBLICO"])
	assert.Equal(t, str("CENTRAL DO BRASIL"), tbl.Rows[2]["TITULO_BRASIL"])
	assert.Equal(t, str("7"), tbl.Rows[2]["PUBLICO"])
}

func TestColumnarWriter_NoBatchesCreatesNothing(t *testing.T) {
	out := filepath.Join(t.TempDir(), "vazio.parquet")
	w, err := NewColumnarWriter(out, WriterOptions{Compression: "zstd"})
	require.NoError(t, err)

	require.NoError(t, w.Close())
	assert.NoFileExists(t, out)
	assert.NoFileExists(t, partialPath(out))
}

func TestColumnarWriter_SchemaDrift(t *testing.T) {
	out := filepath.Join(t.TempDir(), "drift.parquet")
	w, err := NewColumnarWriter(out, WriterOptions{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, mustBatch(t, []string{"a", "b"}, []string{"1", "2"})))
	err = w.Write(ctx, mustBatch(t, []string{"a", "c"}, []string{"1", "3"}))
	require.Error(t, err)

	var drift *domain.SchemaDriftError
	require.ErrorAs(t, err, &drift)
	assert.Equal(t, out, drift.Path)
	assert.Equal(t, []string{"a", "b"}, drift.Expected)
	assert.Equal(t, []string{"a", "c"}, drift.Got)

	require.NoError(t, w.Close())
	assert.NoFileExists(t, out)
	assert.NoFileExists(t, partialPath(out))
}

func TestColumnarWriter_RefusesExistingOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "pronto.parquet")
	require.NoError(t, os.WriteFile(out, []byte("keep me"), 0o644))

	w, err := NewColumnarWriter(out, WriterOptions{})
	require.NoError(t, err)
	err = w.Write(context.Background(), mustBatch(t, []string{"a"}, []string{"1"}))
	require.True(t, errors.Is(err, domain.ErrOutputExists))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(got))
}

func TestColumnarWriter_Abort(t *testing.T) {
	out := filepath.Join(t.TempDir(), "abortado.parquet")
	w, err := NewColumnarWriter(out, WriterOptions{})
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), mustBatch(t, []string{"a"}, []string{"1"})))
	assert.FileExists(t, partialPath(out))
	w.Abort()

	assert.NoFileExists(t, partialPath(out))
	assert.NoFileExists(t, out)
	require.Error(t, w.Write(context.Background(), mustBatch(t, []string{"a"}, []string{"2"})))
}

func TestColumnarWriter_InvalidCompression(t *testing.T) {
	_, err := NewColumnarWriter(filepath.Join(t.TempDir(), "x.parquet"), WriterOptions{Compression: "rar"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported parquet compression")
}

func TestParquetInfo(t *testing.T) {
	out := filepath.Join(t.TempDir(), "cols.parquet")
	w, err := NewColumnarWriter(out, WriterOptions{Compression: "gzip"})
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), mustBatch(t, []string{"B", "A", "C"}, []string{"1", "2", "3"})))
	require.NoError(t, w.Close())

	cols, rows, err := parquetInfo(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, cols)
	assert.Equal(t, int64(1), rows)

	_, _, err = parquetInfo(filepath.Join(t.TempDir(), "missing.parquet"))
	require.Error(t, err)
}
