package xlsx

import (
	"fmt"
	"strings"

	"github.com/okian/kpisync/internal/domain/workbook"
	"github.com/xuri/excelize/v2"
)

// ParseRange converts "A1:O7" (absolute markers allowed) to a Range.
func ParseRange(ref string) (workbook.Range, error) {
	parts := strings.Split(strings.ReplaceAll(ref, "$", ""), ":")
	if len(parts) == 1 {
		parts = append(parts, parts[0])
	}
	if len(parts) != 2 {
		return workbook.Range{}, fmt.Errorf("%w: %q", workbook.ErrInvalidRange, ref)
	}
	c1, r1, err := excelize.CellNameToCoordinates(parts[0])
	if err != nil {
		return workbook.Range{}, fmt.Errorf("%w: %q: %v", workbook.ErrInvalidRange, ref, err)
	}
	c2, r2, err := excelize.CellNameToCoordinates(parts[1])
	if err != nil {
		return workbook.Range{}, fmt.Errorf("%w: %q: %v", workbook.ErrInvalidRange, ref, err)
	}
	return workbook.Range{FromRow: min(r1, r2), FromCol: min(c1, c2), ToRow: max(r1, r2), ToCol: max(c1, c2)}, nil
}

// FormatRange renders a Range as "A1:O7".
func FormatRange(r workbook.Range) (string, error) {
	from, to, err := cellNames(r)
	if err != nil {
		return "", err
	}
	return from + ":" + to, nil
}

func cellNames(r workbook.Range) (string, string, error) {
	from, err := excelize.CoordinatesToCellName(r.FromCol, r.FromRow)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", workbook.ErrInvalidRange, err)
	}
	to, err := excelize.CoordinatesToCellName(r.ToCol, r.ToRow)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", workbook.ErrInvalidRange, err)
	}
	return from, to, nil
}
