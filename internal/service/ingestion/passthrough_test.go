package ingestion

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ancine-dash/internal/domain"
)

func TestPassthrough(t *testing.T) {
	t.Run("moves valid file", func(t *testing.T) {
		src := writeParquet(t, t.TempDir(), "in.parquet",
			mustBatch(t, []string{"A"}, []string{"1"}, []string{"2"}))
		dst := filepath.Join(t.TempDir(), "out.parquet")

		rows, err := passthrough(src, dst)
		require.NoError(t, err)
		assert.Equal(t, int64(2), rows)
		assert.FileExists(t, dst)
		assert.NoFileExists(t, src)
	})

	t.Run("rejects corrupt file", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "bad.parquet")
		require.NoError(t, os.WriteFile(src, []byte("PAR1garbage"), 0o644))
		dst := filepath.Join(dir, "out.parquet")

		_, err := passthrough(src, dst)
		require.Error(t, err)
		assert.FileExists(t, src)
		assert.NoFileExists(t, dst)
	})

	t.Run("refuses existing output", func(t *testing.T) {
		dir := t.TempDir()
		src := writeParquet(t, dir, "in.parquet", mustBatch(t, []string{"A"}, []string{"1"}))
		dst := filepath.Join(dir, "out.parquet")
		require.NoError(t, os.WriteFile(dst, []byte("keep"), 0o644))

		_, err := passthrough(src, dst)
		assert.True(t, errors.Is(err, domain.ErrOutputExists))
		assert.FileExists(t, src)
	})
}
