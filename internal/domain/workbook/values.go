package workbook

import (
	"strconv"
	"strings"
)

// Text renders a value as trimmed text. Whole numbers drop the decimal point.
func Text(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	}
	return ""
}

// Number converts a value to a float. Blank and non-numeric text return nil.
func Number(v Value) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		pct := strings.HasSuffix(s, "%")
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return nil
		}
		if pct {
			f /= 100
		}
		return &f
	}
	return nil
}

// IsBlank reports whether a value is nil or whitespace.
func IsBlank(v Value) bool {
	return Text(v) == ""
}

// Grid is a sheet snapshot addressed by 1-based row and column.
type Grid [][]Value

// At returns the value at (row, col), or nil outside the populated area.
func (g Grid) At(row, col int) Value {
	if row < 1 || row > len(g) || col < 1 || col > len(g[row-1]) {
		return nil
	}
	return g[row-1][col-1]
}

// Span returns columns from..to of a row.
func (g Grid) Span(row, from, to int) []Value {
	if to < from {
		return nil
	}
	out := make([]Value, to-from+1)
	for c := from; c <= to; c++ {
		out[c-from] = g.At(row, c)
	}
	return out
}
