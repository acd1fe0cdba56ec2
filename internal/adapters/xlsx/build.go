package xlsx

import (
	"fmt"

	"github.com/okian/kpisync/internal/domain/workbook"
	"github.com/xuri/excelize/v2"
)

// EnsureSheet creates a sheet if it does not exist yet.
func (d *Document) EnsureSheet(sheet string) error {
	if d.HasSheet(sheet) {
		return nil
	}
	if _, err := d.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	return nil
}

// PutTable writes a header and rows at (row, col) and declares a named table
// over them. It is used to seed workbooks, mostly in tests and fixtures.
func (d *Document) PutTable(sheet, name string, row, col int, header []string, rows [][]workbook.Value) (workbook.Table, error) {
	if err := d.EnsureSheet(sheet); err != nil {
		return workbook.Table{}, err
	}
	for j, h := range header {
		if err := d.SetCell(sheet, row, col+j, h); err != nil {
			return workbook.Table{}, err
		}
	}
	for i, values := range rows {
		for j, v := range values {
			if err := d.SetCell(sheet, row+1+i, col+j, v); err != nil {
				return workbook.Table{}, err
			}
		}
	}
	last := row + len(rows)
	if len(rows) == 0 {
		last = row + 1
	}
	r := workbook.Range{FromRow: row, FromCol: col, ToRow: last, ToCol: col + len(header) - 1}
	ref, err := FormatRange(r)
	if err != nil {
		return workbook.Table{}, err
	}
	if err := d.f.AddTable(sheet, &excelize.Table{Range: ref, Name: name, StyleName: "TableStyleMedium2"}); err != nil {
		return workbook.Table{}, fmt.Errorf("declare table %s: %w", name, err)
	}
	return workbook.Table{Name: name, Sheet: sheet, Range: r}, nil
}
