package ingestion

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"ancine-dash/internal/domain"
)

// DecoderOptions configures source decoding.
type DecoderOptions struct {
	CSVDelimiter rune   // field separator, ';' for ANCINE exports
	CSVEncoding  string // "latin1" or "utf-8"
	JSONKeyPath  string // streamed array location, e.g. "data.item"
	BatchSize    int    // JSON rows per batch
}

// Decoder turns one source file into batches, chosen by file extension.
type Decoder struct {
	opts DecoderOptions
}

// NewDecoder creates a Decoder.
func NewDecoder(opts DecoderOptions) *Decoder {
	if opts.CSVDelimiter == 0 {
		opts.CSVDelimiter = ';'
	}
	if opts.CSVEncoding == "" {
		opts.CSVEncoding = "latin1"
	}
	if opts.JSONKeyPath == "" {
		opts.JSONKeyPath = "data.item"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100_000
	}
	return &Decoder{opts: opts}
}

// Decode reads path and hands its rows to emit. CSV and spreadsheets arrive
// as one batch; JSON is streamed in bounded batches. It returns the number of
// rows emitted.
func (d *Decoder) Decode(ctx context.Context, path string, emit func(*domain.Batch) error) (int64, error) {
	switch f := formatOf(path); f {
	case formatCSV:
		return d.decodeCSV(ctx, path, emit)
	case formatXLSX:
		return d.decodeXLSX(ctx, path, emit)
	case formatJSON:
		src, err := os.Open(path) //nolint:gosec // path comes from the data directory listing
		if err != nil {
			return 0, err
		}
		defer src.Close() //nolint:errcheck
		return Materialize(ctx, src, d.opts.JSONKeyPath, d.opts.BatchSize, emit)
	case formatXLS:
		return d.decodeXLS(ctx, path, emit)
	default:
		return 0, fmt.Errorf("no batch decoder for %s files", f)
	}
}

// normalizeHeaders makes header cells usable as column names: surrounding
// space and a UTF-8 BOM are trimmed, blank cells become column_<n> (1-based)
// and repeated names get _2, _3, ... suffixes. Names that differ only in case
// count as repeats.
func normalizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		name := h
		for n := 2; used[domain.FoldName(name)]; n++ {
			name = h + "_" + strconv.Itoa(n)
		}
		used[domain.FoldName(name)] = true
		out[i] = name
	}
	return out
}

// tableBatch builds a single batch from a header and string rows. Short rows
// are padded with nulls, empty cells become null and rows longer than the
// header are rejected.
func tableBatch(header []string, rows [][]string, firstLine int) (*domain.Batch, error) {
	schema, err := domain.NewSchema(normalizeHeaders(header)...)
	if err != nil {
		return nil, err
	}
	batch := domain.NewBatch(schema, len(rows))
	width := schema.Len()
	for i, cells := range rows {
		if len(cells) > width {
			return nil, domain.ErrValidation("line %d has %d fields, header has %d", firstLine+i, len(cells), width)
		}
		values := make([]domain.Value, width)
		for j, c := range cells {
			if c != "" {
				values[j] = domain.Text(c)
			}
		}
		if err := batch.AppendRow(values); err != nil {
			return nil, err
		}
	}
	return batch, nil
}
