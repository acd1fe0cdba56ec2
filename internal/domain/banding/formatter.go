package banding

import (
	"fmt"

	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/internal/domain/resolver"
	"github.com/okian/kpisync/internal/domain/workbook"
)

// Orientation tells which axis carries the months.
type Orientation int

// Orientations.
const (
	// RowMajor series run left to right along one row.
	RowMajor Orientation = iota
	// ColumnMajor series run top to bottom down one column.
	ColumnMajor
)

// Line addresses one KPI series on a sheet.
type Line struct {
	Sheet       string
	Orientation Orientation
	// Index is the row (RowMajor) or column (ColumnMajor) holding the series.
	Index int
}

// Row returns a row-major line.
func Row(sheet string, row int) Line {
	return Line{Sheet: sheet, Orientation: RowMajor, Index: row}
}

// Column returns a column-major line.
func Column(sheet string, col int) Line {
	return Line{Sheet: sheet, Orientation: ColumnMajor, Index: col}
}

// Range covers positions from..to along the line.
func (l Line) Range(from, to int) workbook.Range {
	if l.Orientation == ColumnMajor {
		return workbook.Range{FromRow: from, FromCol: l.Index, ToRow: to, ToCol: l.Index}
	}
	return workbook.Range{FromRow: l.Index, FromCol: from, ToRow: l.Index, ToCol: to}
}

// Formatter writes banding rules into a document.
type Formatter struct {
	doc     workbook.Document
	palette model.Palette
}

// NewFormatter binds a formatter to a document and palette.
func NewFormatter(doc workbook.Document, palette model.Palette) *Formatter {
	if palette == nil {
		palette = model.DefaultPalette()
	}
	return &Formatter{doc: doc, palette: palette}
}

// Reset clears every rule on the sheet. Call once per sheet per pass.
func (f *Formatter) Reset(sheet string) error {
	return f.doc.ClearFillRules(sheet)
}

// Apply writes rules over positions from..to of a line.
func (f *Formatter) Apply(l Line, from, to int, rules []workbook.FillRule) error {
	if from <= 0 || to < from {
		return fmt.Errorf("%w: %d..%d on %s", workbook.ErrInvalidRange, from, to, l.Sheet)
	}
	return f.doc.AddFillRules(l.Sheet, l.Range(from, to), rules)
}

// Billing applies static billing rules, or one rule set per span when the
// regime changed during the year.
func (f *Formatter) Billing(l Line, from, to int, spans []resolver.Span[model.BillingThresholds], static model.BillingThresholds) error {
	if len(spans) == 0 {
		return f.Apply(l, from, to, Billing(static, f.palette))
	}
	for _, s := range spans {
		if err := f.Apply(l, s.StartCol, s.EndCol, Billing(s.Regime, f.palette)); err != nil {
			return err
		}
	}
	return nil
}

// Ceased applies the inverted ceased-services rules.
func (f *Formatter) Ceased(l Line, from, to int, t model.CeasedThresholds) error {
	return f.Apply(l, from, to, Ceased(t, f.palette))
}

// Rating applies the 1..5 rating rules.
func (f *Formatter) Rating(l Line, from, to int, scale model.RatingScale) error {
	return f.Apply(l, from, to, Rating(scale, f.palette))
}

// BillingSpans converts competency spans into threshold spans. A span whose
// competency has no thresholds takes the thresholds of the current
// competency instead and is reported in missing; it is dropped only when the
// current competency has none either.
func BillingSpans(spans []resolver.Span[model.Competency], set model.ThresholdSet, current model.Competency) (out []resolver.Span[model.BillingThresholds], missing []model.Competency) {
	if len(spans) == 0 {
		return nil, nil
	}
	fallback, hasFallback := set.BillingFor(current)
	out = make([]resolver.Span[model.BillingThresholds], 0, len(spans))
	for _, s := range spans {
		t, ok := set.BillingFor(s.Regime)
		if !ok {
			missing = append(missing, s.Regime)
			if !hasFallback {
				continue
			}
			t = fallback
		}
		out = append(out, resolver.Span[model.BillingThresholds]{Regime: t, StartCol: s.StartCol, EndCol: s.EndCol})
	}
	return out, missing
}
