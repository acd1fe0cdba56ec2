// Package individual writes a therapist's KPI values, threshold legend and
// colour banding into their personal dashboard workbook.
package individual

import (
	"context"
	"fmt"

	"github.com/okian/kpisync/internal/domain/banding"
	"github.com/okian/kpisync/internal/domain/layout"
	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/internal/domain/resolver"
	"github.com/okian/kpisync/internal/domain/workbook"
	"github.com/okian/kpisync/pkg/logger"
	"github.com/shopspring/decimal"
)

// Number formats and the ceased average formula.
const (
	AverageFormat = "0.00"
	PercentFormat = "0.0%"
	ceasedAverage = `IFERROR(AVERAGEIF($%s%d:$%s%d,"<>"),"")`
)

// cellStyle is the base style of every KPI cell.
var cellStyle = workbook.Style{Center: true, FontColor: "FF000000"}

// Writer updates individual dashboards.
type Writer struct {
	layout layout.Individual
	log    logger.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// New creates a Writer for the individual part of a layout.
func New(l *layout.Layout, opts ...Option) *Writer {
	w := &Writer{layout: l.Individual, log: logger.Get().Named("individual")}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dashboard returns the first sheet that qualifies as the dashboard.
func (w *Writer) Dashboard(doc workbook.Document) (string, error) {
	for _, s := range doc.Sheets() {
		if w.layout.IsDashboard(s) {
			return s, nil
		}
	}
	return "", ErrNoDashboard
}

// Init stamps a freshly copied template with the therapist's identity.
func (w *Writer) Init(ctx context.Context, doc workbook.Document, t model.Therapist) error {
	sheet, err := w.Dashboard(doc)
	if err != nil {
		return err
	}
	if err := w.identity(doc, sheet, t); err != nil {
		return err
	}
	w.log.Info(ctx, "dashboard initialised", logger.String("name", t.Name), logger.String("sheet", sheet))
	return nil
}

func (w *Writer) identity(doc workbook.Document, sheet string, t model.Therapist) error {
	if err := doc.SetCell(sheet, w.layout.NameCell.Row, w.layout.NameCell.Col, t.Name); err != nil {
		return err
	}
	return doc.SetCell(sheet, w.layout.CompetencyCell.Row, w.layout.CompetencyCell.Col, string(t.Competency))
}

// Update writes records and refreshes formatting for one therapist. Blank
// values never overwrite what is already in the sheet.
func (w *Writer) Update(ctx context.Context, doc workbook.Document, t model.Therapist, records []model.Record, cfg *model.Config, year int) error {
	sheet, err := w.Dashboard(doc)
	if err != nil {
		return err
	}
	rows := w.layout.KPIRows(t.Team.Type())
	if len(rows) == 0 {
		return fmt.Errorf("no dashboard rows for team type %s", t.Team.Type())
	}
	if len(records) == 0 {
		w.log.Warn(ctx, "no kpi data, refreshing thresholds only", logger.String("name", t.Name), logger.String("team", string(t.Team)))
	}

	written, err := w.values(doc, sheet, rows, records)
	if err != nil {
		return fmt.Errorf("write values: %w", err)
	}
	if err := w.styles(doc, sheet, rows); err != nil {
		return fmt.Errorf("style cells: %w", err)
	}
	if err := w.identity(doc, sheet, t); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	set := cfg.ThresholdsFor(t.Team)
	if err := w.legend(doc, sheet, rows, set); err != nil {
		return fmt.Errorf("write threshold legend: %w", err)
	}
	if err := w.band(ctx, doc, sheet, rows, t, cfg, set, year); err != nil {
		return fmt.Errorf("apply banding: %w", err)
	}

	w.log.Info(ctx, "dashboard updated",
		logger.String("name", t.Name),
		logger.Int("records", len(records)),
		logger.Int("values", written))
	return nil
}

func (w *Writer) column(m model.Month) int {
	return w.layout.FirstMonthCol + m.Number() - 1
}

func (w *Writer) values(doc workbook.Document, sheet string, rows []layout.KPIRow, records []model.Record) (int, error) {
	n := 0
	for _, r := range records {
		if r.Month.Number() == 0 {
			continue
		}
		col := w.column(r.Month)
		for _, row := range rows {
			v, ok := r.Value(row.KPI)
			if !ok {
				continue
			}
			if err := doc.SetCell(sheet, row.Row, col, v); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func (w *Writer) styles(doc workbook.Document, sheet string, rows []layout.KPIRow) error {
	first, last := w.layout.FirstMonthCol, w.layout.AverageCol
	avg := cellStyle
	avg.NumFmt = AverageFormat
	pct := cellStyle
	pct.NumFmt = PercentFormat

	for _, row := range rows {
		line := workbook.Range{FromRow: row.Row, FromCol: first, ToRow: row.Row, ToCol: last}
		if row.Kind == banding.KindCeased {
			if err := doc.SetStyle(sheet, line, pct); err != nil {
				return err
			}
			if err := doc.SetFormula(sheet, row.Row, last, w.ceasedFormula(row.Row)); err != nil {
				return err
			}
			continue
		}
		if err := doc.SetStyle(sheet, line, cellStyle); err != nil {
			return err
		}
		cell := workbook.Range{FromRow: row.Row, FromCol: last, ToRow: row.Row, ToCol: last}
		if err := doc.SetStyle(sheet, cell, avg); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) ceasedFormula(row int) string {
	from := columnName(w.layout.FirstMonthCol)
	to := columnName(w.layout.AverageCol - 1)
	return "=" + fmt.Sprintf(ceasedAverage, from, row, to, row)
}

// columnName converts a 1-based column index to letters.
func columnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}

// legend writes the threshold reference table printed under the KPIs.
func (w *Writer) legend(doc workbook.Document, sheet string, rows []layout.KPIRow, set model.ThresholdSet) error {
	col := w.layout.BillingThresholdCol
	for competency, row := range w.layout.BillingThresholdRow {
		b, ok := set.BillingFor(competency)
		if !ok {
			continue
		}
		cells := []string{
			"<" + b.GreenMin.String(),
			b.GreenMin.String() + "-" + b.GreenMax.String(),
			">" + b.BlueAbove.String(),
		}
		for i, v := range cells {
			if err := doc.SetCell(sheet, row, col+i, v); err != nil {
				return err
			}
		}
	}

	if !hasKind(rows, banding.KindCeased) || len(w.layout.CeasedThresholdRows) < 3 {
		return nil
	}
	blue := percent(set.Ceased.BlueBelow)
	red := percent(set.Ceased.RedAbove)
	cells := []string{"<" + blue + "%", blue + "-" + red + "%", ">" + red + "%"}
	for i, v := range cells {
		if err := doc.SetCell(sheet, w.layout.CeasedThresholdRows[i], w.layout.CeasedThresholdCol, v); err != nil {
			return err
		}
	}
	return nil
}

func percent(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).StringFixed(1)
}

func hasKind(rows []layout.KPIRow, k banding.Kind) bool {
	for _, r := range rows {
		if r.Kind == k {
			return true
		}
	}
	return false
}

func (w *Writer) band(ctx context.Context, doc workbook.Document, sheet string, rows []layout.KPIRow, t model.Therapist, cfg *model.Config, set model.ThresholdSet, year int) error {
	f := banding.NewFormatter(doc, cfg.Palette)
	if err := f.Reset(sheet); err != nil {
		return err
	}
	first, last := w.layout.FirstMonthCol, w.layout.AverageCol
	for _, row := range rows {
		line := banding.Row(sheet, row.Row)
		switch row.Kind {
		case banding.KindBilling:
			cols := resolver.IndividualColumns(first)
			spans, missing := banding.BillingSpans(resolver.CompetencyRanges(t.Name, year, cols, cfg.CompetencyHistory), set, t.Competency)
			for _, c := range missing {
				w.log.Warn(ctx, "no billing thresholds for competency range, using current competency",
					logger.String("name", t.Name),
					logger.String("competency", string(c)))
			}
			if len(spans) > 0 {
				w.log.Debug(ctx, "billing competency ranges", logger.String("name", t.Name), logger.Int("ranges", len(spans)))
				if err := f.Billing(line, first, last, spans, model.BillingThresholds{}); err != nil {
					return err
				}
				continue
			}
			static, ok := set.BillingFor(t.Competency)
			if !ok {
				w.log.Warn(ctx, "no billing thresholds", logger.String("name", t.Name), logger.String("competency", string(t.Competency)))
				continue
			}
			if err := f.Billing(line, first, last, nil, static); err != nil {
				return err
			}
		case banding.KindCeased:
			if err := f.Ceased(line, first, last, set.Ceased); err != nil {
				return err
			}
		default:
			if err := f.Rating(line, first, last, set.Rating); err != nil {
				return err
			}
		}
	}
	return nil
}
