package ingestion

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"ancine-dash/internal/domain"
)

// decodeXLSX reads the first worksheet; its first row is the header.
func (d *Decoder) decodeXLSX(ctx context.Context, path string, emit func(*domain.Batch) error) (int64, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return 0, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close() //nolint:errcheck

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return 0, domain.ErrValidation("workbook has no sheets")
	}
	iter, err := wb.Rows(sheets[0])
	if err != nil {
		return 0, fmt.Errorf("open rows of sheet %s: %w", sheets[0], err)
	}
	defer iter.Close() //nolint:errcheck

	var (
		header []string
		rows   [][]string
	)
	for iter.Next() {
		cells, err := iter.Columns()
		if err != nil {
			return 0, fmt.Errorf("read sheet %s: %w", sheets[0], err)
		}
		if header == nil {
			if allBlank(cells) {
				continue
			}
			header = cells
			continue
		}
		if allBlank(cells) {
			continue
		}
		if len(rows)%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		rows = append(rows, cells)
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("read sheet %s: %w", sheets[0], err)
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

func allBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
