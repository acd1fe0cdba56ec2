// Package teamleader applies KPI colour banding to every table of the Team
// Leader workbook.
package teamleader

import (
	"context"

	"github.com/okian/kpisync/internal/domain/banding"
	"github.com/okian/kpisync/internal/domain/layout"
	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/internal/domain/resolver"
	"github.com/okian/kpisync/internal/domain/workbook"
	"github.com/okian/kpisync/pkg/logger"
	"github.com/okian/kpisync/pkg/metrics"
)

// Formatter formats Team Leader dashboards.
type Formatter struct {
	layout *layout.Layout
	log    logger.Logger
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Formatter) {
		if l != nil {
			f.log = l
		}
	}
}

// New creates a Formatter for a workbook layout.
func New(l *layout.Layout, opts ...Option) *Formatter {
	f := &Formatter{layout: l, log: logger.Get().Named("teamleader")}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Stats counts what a formatting pass touched. A table counts only when at
// least one of its rows was formatted.
type Stats struct {
	Sheets int
	Tables int
	Rows   int
}

// pass carries the state of one Format call.
type pass struct {
	ctx   context.Context
	doc   workbook.Document
	cfg   *model.Config
	year  int
	bands *banding.Formatter
	log   logger.Logger
}

// Format clears and re-applies the conditional formats of every layout sheet
// present in doc. year drives history lookups; 0 disables them.
func (f *Formatter) Format(ctx context.Context, doc workbook.Document, cfg *model.Config, year int) Stats {
	p := &pass{ctx: ctx, doc: doc, cfg: cfg, year: year, bands: banding.NewFormatter(doc, cfg.Palette), log: f.log}
	var total Stats
	for _, sheet := range f.layout.TeamLeader.Sheets {
		if !doc.HasSheet(sheet.Name) {
			f.log.Warn(ctx, "team leader sheet not found", logger.String("sheet", sheet.Name))
			continue
		}
		s := p.sheet(sheet)
		if s.Tables > 0 {
			total.Sheets++
			total.Tables += s.Tables
			total.Rows += s.Rows
		}
	}
	metrics.RecordTeamTables("formatted", total.Tables)
	f.log.Info(ctx, "team leader formatted",
		logger.Int("sheets", total.Sheets),
		logger.Int("tables", total.Tables),
		logger.Int("rows", total.Rows),
		logger.Int("year", year))
	return total
}

func (p *pass) sheet(sheet layout.Sheet) Stats {
	var s Stats
	if err := p.bands.Reset(sheet.Name); err != nil {
		p.log.Error(p.ctx, "clear conditional formats failed", logger.String("sheet", sheet.Name), logger.Error(err))
		return s
	}
	rows, err := p.doc.Rows(sheet.Name)
	if err != nil {
		p.log.Error(p.ctx, "read sheet failed", logger.String("sheet", sheet.Name), logger.Error(err))
		return s
	}
	grid := workbook.Grid(rows)

	roster := map[string]model.Competency{}
	if sheet.Team != "" {
		roster = p.cfg.CompetencyMap(sheet.Team)
	}

	for _, def := range sheet.Tables {
		t, err := p.doc.Table(sheet.Name, def.Name)
		if err != nil {
			p.log.Warn(p.ctx, "table not found", logger.String("sheet", sheet.Name), logger.String("table", def.Name))
			continue
		}
		var n int
		if def.IsAverage() {
			n = p.average(grid, t, def, sheet.TeamFor(def))
		} else {
			n = p.regular(grid, t, def, sheet.TeamFor(def), roster)
		}
		if n > 0 {
			s.Tables++
			s.Rows += n
		}
		p.log.Debug(p.ctx, "table formatted", logger.String("table", def.Name), logger.Int("rows", n))
	}
	return s
}

// columns discovers a table's month columns and the data range bounds.
func (p *pass) columns(grid workbook.Grid, t workbook.Table) (resolver.Columns, int, int, bool) {
	cols := resolver.HeaderColumns(grid.Span(t.Range.FromRow, t.Range.FromCol, t.Range.ToCol), t.Range.FromCol)
	first, last, ok := cols.Bounds()
	if !ok {
		p.log.Warn(p.ctx, "table has no month columns", logger.String("table", t.Name))
	}
	return cols, first, last, ok
}

// regular formats a per-therapist table. Rows whose name is not on the
// team roster are left alone.
func (p *pass) regular(grid workbook.Grid, t workbook.Table, def layout.Table, team model.TeamID, roster map[string]model.Competency) int {
	cols, first, last, ok := p.columns(grid, t)
	if !ok {
		return 0
	}
	set := p.cfg.ThresholdsFor(team)
	n := 0
	for row := t.Range.FromRow + 1; row <= t.Range.ToRow; row++ {
		name := workbook.Text(grid.At(row, t.Range.FromCol))
		if name == "" {
			continue
		}
		competency, listed := roster[model.NameKey(name)]
		if !listed {
			continue
		}
		line := banding.Row(t.Sheet, row)
		var err error
		switch def.BandKind() {
		case banding.KindBilling:
			spans, missing := banding.BillingSpans(resolver.CompetencyRanges(name, p.year, cols, p.cfg.CompetencyHistory), set, competency)
			for _, c := range missing {
				p.log.Warn(p.ctx, "no billing thresholds for competency range, using current competency",
					logger.String("name", name),
					logger.String("team", string(team)),
					logger.String("competency", string(c)))
			}
			if len(spans) > 0 {
				err = p.bands.Billing(line, first, last, spans, model.BillingThresholds{})
				break
			}
			static, found := set.BillingFor(competency)
			if !found {
				p.log.Warn(p.ctx, "no billing thresholds for therapist",
					logger.String("name", name),
					logger.String("team", string(team)),
					logger.String("competency", string(competency)))
				continue
			}
			err = p.bands.Billing(line, first, last, nil, static)
		case banding.KindCeased:
			err = p.bands.Ceased(line, first, last, set.Ceased)
		default:
			err = p.bands.Rating(line, first, last, set.Rating)
		}
		if err != nil {
			p.fail(t, row, err)
			continue
		}
		n++
	}
	return n
}

// average formats a team average table where each row carries its own kind.
func (p *pass) average(grid workbook.Grid, t workbook.Table, def layout.Table, team model.TeamID) int {
	cols, first, last, ok := p.columns(grid, t)
	if !ok {
		return 0
	}
	set := p.cfg.ThresholdsFor(team)
	spans := resolver.TeamAverageRanges(team, p.year, cols, p.cfg.TeamAverageHistory)
	n := 0
	for row := t.Range.FromRow + 1; row <= t.Range.ToRow; row++ {
		label := workbook.Text(grid.At(row, t.Range.FromCol))
		if label == "" {
			continue
		}
		line := banding.Row(t.Sheet, row)
		var err error
		switch def.RowKind(label) {
		case banding.KindBilling:
			if len(spans) > 0 {
				err = p.bands.Billing(line, first, last, spans, model.BillingThresholds{})
				break
			}
			static, found := set.TeamAverageBilling()
			if !found {
				p.log.Warn(p.ctx, "no team average or CA thresholds", logger.String("team", string(team)))
				continue
			}
			err = p.bands.Billing(line, first, last, nil, static)
		case banding.KindCeased:
			err = p.bands.Ceased(line, first, last, set.Ceased)
		default:
			err = p.bands.Rating(line, first, last, set.Rating)
		}
		if err != nil {
			p.fail(t, row, err)
			continue
		}
		n++
	}
	return n
}

func (p *pass) fail(t workbook.Table, row int, err error) {
	p.log.Error(p.ctx, "apply banding failed",
		logger.String("table", t.Name),
		logger.Int("row", row),
		logger.Error(err))
	metrics.RecordErrorByComponent("teamleader", "banding")
}
