package resolver

import (
	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/internal/domain/workbook"
)

// HeaderColumns discovers month and average positions from a table header
// whose first cell sits in column firstCol. Physical order is never assumed.
func HeaderColumns(header []workbook.Value, firstCol int) Columns {
	cols := Columns{Months: make(map[model.Month]int, len(model.Months))}
	for i, v := range header {
		label := workbook.Text(v)
		if model.IsAverage(label) {
			cols.Average = firstCol + i
			continue
		}
		if m, ok := model.ParseMonth(label); ok {
			if _, seen := cols.Months[m]; !seen {
				cols.Months[m] = firstCol + i
			}
		}
	}
	return cols
}

// Bounds returns the leftmost and rightmost data column, average included.
func (c Columns) Bounds() (first, last int, ok bool) {
	for _, col := range c.Months {
		if !ok || col < first {
			first = col
		}
		if !ok || col > last {
			last = col
		}
		ok = true
	}
	if c.Average > 0 {
		if !ok || c.Average < first {
			first = c.Average
		}
		if !ok || c.Average > last {
			last = c.Average
		}
		ok = true
	}
	return first, last, ok
}
