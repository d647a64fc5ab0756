// Package ddl builds DuckDB statements for unifying and querying Parquet files.
package ddl

import (
	"fmt"
	"strings"
)

// parquetCodecs are the compression codecs DuckDB's Parquet writer accepts.
var parquetCodecs = map[string]bool{
	"uncompressed": true,
	"snappy":       true,
	"gzip":         true,
	"zstd":         true,
	"brotli":       true,
	"lz4":          true,
	"lz4_raw":      true,
}

// ValidateCompression checks that codec is a Parquet codec DuckDB can write.
func ValidateCompression(codec string) error {
	if !parquetCodecs[strings.ToLower(codec)] {
		return fmt.Errorf("unsupported parquet compression %q", codec)
	}
	return nil
}

// ReadParquet returns a table function reading every path with
// union-by-name semantics: read_parquet(['a', 'b'], union_by_name = true).
func ReadParquet(paths []string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("at least one parquet path is required")
	}
	quoted := make([]string, len(paths))
	for i, p := range paths {
		if p == "" {
			return "", fmt.Errorf("parquet path %d is empty", i)
		}
		quoted[i] = QuoteLiteral(p)
	}
	return fmt.Sprintf("read_parquet([%s], union_by_name = true)", strings.Join(quoted, ", ")), nil
}

// UnionSelect returns a SELECT projecting columns, in order, out of the
// union-by-name read of paths. Columns missing from a file read as NULL.
func UnionSelect(paths, columns []string) (string, error) {
	from, err := ReadParquet(paths)
	if err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("at least one column is required")
	}
	cols := make([]string, len(columns))
	for i, c := range columns {
		if c == "" {
			return "", fmt.Errorf("column %d has an empty name", i)
		}
		cols[i] = QuoteIdentifier(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), from), nil
}

// CopyToParquet returns: COPY (<query>) TO '<path>' (FORMAT PARQUET, COMPRESSION <codec>).
func CopyToParquet(query, path, codec string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is required")
	}
	if path == "" {
		return "", fmt.Errorf("output path is required")
	}
	if err := ValidateCompression(codec); err != nil {
		return "", err
	}
	return fmt.Sprintf("COPY (%s) TO %s (FORMAT PARQUET, COMPRESSION %s)",
		query, QuoteLiteral(path), strings.ToUpper(codec)), nil
}

// TryCastBigint returns TRY_CAST("<column>" AS BIGINT).
func TryCastBigint(column string) string {
	return fmt.Sprintf("TRY_CAST(%s AS BIGINT)", QuoteIdentifier(column))
}

// TryCastDate parses a text date column written either as ISO (2023-01-31)
// or as dd/mm/yyyy. Anything else is NULL.
func TryCastDate(column string) string {
	q := QuoteIdentifier(column)
	return fmt.Sprintf("COALESCE(TRY_CAST(%s AS DATE), CAST(TRY_STRPTIME(%s, '%%d/%%m/%%Y') AS DATE))", q, q)
}
