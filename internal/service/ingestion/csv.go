package ingestion

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"ancine-dash/internal/domain"
)

func (d *Decoder) decodeCSV(ctx context.Context, path string, emit func(*domain.Batch) error) (int64, error) {
	src, err := os.Open(path) //nolint:gosec // path comes from the data directory listing
	if err != nil {
		return 0, err
	}
	defer src.Close() //nolint:errcheck

	r := csv.NewReader(textReader(src, d.opts.CSVEncoding))
	r.Comma = d.opts.CSVDelimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = false

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read csv: %w", err)
		}
		if len(rows)%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	batch, err := tableBatch(header, rows, 2)
	if err != nil {
		return 0, err
	}
	if err := emit(batch); err != nil {
		return 0, err
	}
	return int64(batch.Len()), nil
}

// textReader decodes src into UTF-8. ANCINE exports are ISO-8859-1.
func textReader(src io.Reader, encoding string) io.Reader {
	switch strings.ToLower(encoding) {
	case "utf-8", "utf8":
		br := bufio.NewReader(src)
		if b, err := br.Peek(3); err == nil && string(b) == "\xef\xbb\xbf" {
			_, _ = br.Discard(3)
		}
		return br
	default:
		return charmap.ISO8859_1.NewDecoder().Reader(src)
	}
}
