package ingestion

import (
	"fmt"
	"io"
	"os"

	"ancine-dash/internal/domain"
)

// passthrough moves an already-columnar source into place after checking that
// its footer and schema are readable, and returns its row count. Rename is
// tried first; across devices the file is copied to a partial path, renamed, and the source removed.
func passthrough(src, dst string) (int64, error) {
	_, rows, err := parquetInfo(src)
	if err != nil {
		return 0, err
	}
	if _, err := os.Stat(dst); err == nil {
		return 0, fmt.Errorf("move %s: %w", dst, domain.ErrOutputExists)
	}
	if err := os.Rename(src, dst); err == nil {
		return rows, nil
	}

	partial := partialPath(dst)
	if err := copyFile(src, partial); err != nil {
		_ = os.Remove(partial)
		return 0, fmt.Errorf("copy %s: %w", src, err)
	}
	if err := os.Rename(partial, dst); err != nil {
		_ = os.Remove(partial)
		return 0, fmt.Errorf("move %s: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return 0, fmt.Errorf("remove moved source %s: %w", src, err)
	}
	return rows, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // path comes from the data directory listing
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck
	return writeFile(dst, io.Reader(in))
}
