package ingestion

import (
	"context"
	"fmt"
	"os"

	"github.com/extrame/xls"

	"ancine-dash/internal/domain"
)

// xlsMaxCols is the BIFF8 column limit, used when a header row carries no
// ROW record to size it.
const xlsMaxCols = 256

// decodeXLS reads the first worksheet of an Excel 97-2003 workbook; its first
// non-blank row is the header.
func (d *Decoder) decodeXLS(ctx context.Context, path string, emit func(*domain.Batch) error) (n int64, err error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the data directory listing
	if err != nil {
		return 0, err
	}
	defer f.Close() //nolint:errcheck

	// The BIFF parser indexes records without bounds checks.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("read workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(f, "utf-8")
	if err != nil {
		return 0, fmt.Errorf("open workbook: %w", err)
	}
	if wb == nil {
		return 0, domain.ErrValidation("no workbook stream in %s", path)
	}
	if wb.NumSheets() == 0 {
		return 0, domain.ErrValidation("workbook has no sheets")
	}
	sheet := wb.GetSheet(0)

	var (
		header []string
		rows   [][]string
	)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			continue
		}
		width := max(row.LastCol(), len(header))
		if header == nil && width == 0 {
			width = xlsMaxCols
		}
		cells := make([]string, width)
		for j := range cells {
			cells[j] = row.Col(j)
		}
		cells = trimTrailingBlank(cells)
		if allBlank(cells) {
			continue
		}
		if header == nil {
			header = cells
			continue
		}
		if len(rows)%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		rows = append(rows, cells)
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

// xlsRow returns nil for a row index the sheet holds no record for.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

func trimTrailingBlank(cells []string) []string {
	n := len(cells)
	for n > 0 && cells[n-1] == "" {
		n--
	}
	return cells[:n]
}
