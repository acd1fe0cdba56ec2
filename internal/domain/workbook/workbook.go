// Package workbook declares the spreadsheet document operations the sync
// components rely on. Coordinates are 1-based (row, column) pairs.
package workbook

import (
	"github.com/shopspring/decimal"
)

// Value is a cell value: nil, float64, string or bool.
type Value = any

// Range is an inclusive rectangle.
type Range struct {
	FromRow, FromCol int
	ToRow, ToCol     int
}

// Rows returns the number of rows covered.
func (r Range) Rows() int { return r.ToRow - r.FromRow + 1 }

// Cols returns the number of columns covered.
func (r Range) Cols() int { return r.ToCol - r.FromCol + 1 }

// Table is a named table located on a sheet. Range includes the header row.
type Table struct {
	Name  string
	Sheet string
	Range Range
}

// HeaderRow is the row holding column labels.
func (t Table) HeaderRow() int { return t.Range.FromRow }

// DataRows is the number of rows below the header.
func (t Table) DataRows() int { return t.Range.ToRow - t.Range.FromRow }

// Style is a cell style overlay. Empty fields leave the cell's current
// attribute in place.
type Style struct {
	Fill      string
	FontColor string
	Center    bool
	NumFmt    string
}

// IsZero reports whether s changes nothing.
func (s Style) IsZero() bool { return s == Style{} }

// Predicate selects when a fill rule matches.
type Predicate int

// Rule predicates.
const (
	Blank Predicate = iota
	Greater
	GreaterOrEqual
	Less
)

// FillRule pairs a predicate with the colour it paints. Rules are listed
// highest priority first; the first matching rule decides the fill.
type FillRule struct {
	Predicate Predicate
	Value     decimal.Decimal
	Band      string
	Colour    string
}

// Matches evaluates the rule against a cell value. A nil value is blank.
func (r FillRule) Matches(v *float64) bool {
	if r.Predicate == Blank {
		return v == nil
	}
	if v == nil {
		return false
	}
	x := decimal.NewFromFloat(*v)
	switch r.Predicate {
	case Greater:
		return x.GreaterThan(r.Value)
	case GreaterOrEqual:
		return x.GreaterThanOrEqual(r.Value)
	case Less:
		return x.LessThan(r.Value)
	}
	return false
}

// Document is an open workbook.
type Document interface {
	Sheets() []string
	HasSheet(sheet string) bool
	// Table locates a named table on a sheet.
	Table(sheet, name string) (Table, error)
	// Rows returns every populated row of a sheet as raw values.
	Rows(sheet string) ([][]Value, error)
	Cell(sheet string, row, col int) (Value, error)
	// Formula returns the cell's formula without the leading "=", or "".
	Formula(sheet string, row, col int) (string, error)
	// SetCell writes a value, dropping any formula the cell held.
	SetCell(sheet string, row, col int, v Value) error
	SetFormula(sheet string, row, col int, formula string) error
	SetStyle(sheet string, r Range, s Style) error
	// Paint replaces only the fill and font colour of each cell in r. An
	// empty colour restores the default fill or font. Number formats,
	// borders and alignment are kept.
	Paint(sheet string, r Range, fill, font string) error
	// ResizeTable changes the declared range of a table.
	ResizeTable(t Table, to Range) error
	// ClearFillRules drops every conditional format on a sheet.
	ClearFillRules(sheet string) error
	// AddFillRules appends conditional format rules to a range.
	AddFillRules(sheet string, r Range, rules []FillRule) error
	Bytes() ([]byte, error)
	Close() error
}
