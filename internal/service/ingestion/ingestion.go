// Package ingestion turns heterogeneous ANCINE source files into per-source
// Parquet files and unifies them into the master dataset.
package ingestion

import (
	"strings"

	"ancine-dash/internal/domain"
)

// classifyDuckDBError maps DuckDB errors raised while unifying into domain errors.
func classifyDuckDBError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "No files found"),
		strings.Contains(msg, "does not exist"):
		return domain.ErrNotFound("%s", msg)
	case strings.Contains(msg, "Could not read file"),
		strings.Contains(msg, "Invalid Input Error"),
		strings.Contains(msg, "Conversion Error"):
		return domain.ErrValidation("%s", msg)
	default:
		return err
	}
}
