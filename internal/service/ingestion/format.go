package ingestion

import (
	"path/filepath"
	"strings"
)

// format identifies how a source file is handled.
type format int

const (
	formatUnknown format = iota
	formatCSV
	formatXLSX
	formatXLS
	formatJSON
	formatParquet
)

func (f format) String() string {
	switch f {
	case formatCSV:
		return "csv"
	case formatXLSX:
		return "xlsx"
	case formatXLS:
		return "xls"
	case formatJSON:
		return "json"
	case formatParquet:
		return "parquet"
	default:
		return "unknown"
	}
}

func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return formatCSV
	case ".xlsx", ".xlsm":
		return formatXLSX
	case ".xls":
		return formatXLS
	case ".json":
		return formatJSON
	case ".parquet":
		return formatParquet
	default:
		return formatUnknown
	}
}

// archiveKind identifies a compressed bundle.
type archiveKind int

const (
	archiveNone archiveKind = iota
	archiveZip
	archiveGzip
	archiveZstd
	archiveXz
)

func archiveKindOf(path string) archiveKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return archiveZip
	case ".gz", ".gzip":
		return archiveGzip
	case ".zst", ".zstd":
		return archiveZstd
	case ".xz":
		return archiveXz
	default:
		return archiveNone
	}
}

// IsSource reports whether name is a file the pipeline picks up from the
// data directory: a supported archive or a supported tabular format.
func IsSource(name string) bool {
	return archiveKindOf(name) != archiveNone || formatOf(name) != formatUnknown
}

// stem returns the file name without its final extension:
// "bilheteria_2023.csv" -> "bilheteria_2023", "x.csv.gz" -> "x.csv".
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// outputName is the per-source columnar file name for a source path.
func outputName(path string) string {
	return stem(path) + ".parquet"
}

// partialPath is where an output is written before it is renamed into place.
func partialPath(path string) string {
	return path + ".partial"
}
