// Package reconcile rewrites the parallel per-team KPI tables of the Team
// Leader workbook so their rows follow the configured roster.
//
// Declared table ranges are never grown or shrunk for team tables. When the
// roster outgrows a table nothing is written and an "add" pending change is
// returned; when it shrinks, excess rows are blanked and a "delete" pending
// change asks a human to remove them. The FTE table is the one exception and
// is resized in place.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/kpisync/internal/domain/layout"
	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/internal/domain/workbook"
	"github.com/okian/kpisync/pkg/logger"
	"github.com/okian/kpisync/pkg/metrics"
)

// InactiveFont is the font colour of inactive roster rows. Their fill is the
// palette's grey.
const InactiveFont = "FF808080"

// Reconciler syncs team tables against a roster.
type Reconciler struct {
	layout *layout.Layout
	log    logger.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a Reconciler for a workbook layout.
func New(l *layout.Layout, opts ...Option) *Reconciler {
	r := &Reconciler{layout: l, log: logger.Get().Named("reconcile")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TeamStats summarises one team sync.
type TeamStats struct {
	Team    model.TeamID
	Tables  int
	Added   int
	Removed int
	Skipped bool
	Reason  string
	Pending *model.PendingChange
}

// FTEStats summarises the FTE table sync.
type FTEStats struct {
	Rows    int
	Added   int
	Removed int
	Skipped bool
}

// Summary is the outcome of a full reconcile pass.
type Summary struct {
	Teams   int
	Tables  int
	Added   int
	Removed int
	FTE     FTEStats
	Pending []model.PendingChange
}

// SyncAll reconciles every team sheet and the FTE table. Missing sheets and
// tables are logged and skipped.
func (r *Reconciler) SyncAll(ctx context.Context, doc workbook.Document, cfg *model.Config) Summary {
	var sum Summary
	for _, team := range r.layout.Teams() {
		sheet, ok := r.layout.TeamSheet(team)
		if !ok {
			continue
		}
		if !doc.HasSheet(sheet.Name) {
			r.log.Warn(ctx, "team sheet not found", logger.String("team", string(team)), logger.String("sheet", sheet.Name))
			continue
		}
		stats, err := r.SyncTeam(ctx, doc, sheet, cfg)
		if err != nil {
			r.log.Error(ctx, "team sync failed", logger.String("team", string(team)), logger.Error(err))
			metrics.RecordErrorByComponent("reconcile", "team_sync")
			continue
		}
		sum.Teams++
		sum.Tables += stats.Tables
		sum.Added += stats.Added
		sum.Removed += stats.Removed
		if stats.Pending != nil {
			sum.Pending = append(sum.Pending, *stats.Pending)
		}
	}

	fte, err := r.SyncFTE(ctx, doc, cfg)
	if err != nil {
		r.log.Error(ctx, "fte sync failed", logger.Error(err))
		metrics.RecordErrorByComponent("reconcile", "fte_sync")
	}
	sum.FTE = fte
	metrics.RecordTeamTables("synced", sum.Tables)

	r.log.Info(ctx, "team tables reconciled",
		logger.Int("teams", sum.Teams),
		logger.Int("tables", sum.Tables),
		logger.Int("added", sum.Added),
		logger.Int("removed", sum.Removed),
		logger.Int("pending", len(sum.Pending)))
	return sum
}

// SyncTeam reconciles the KPI tables of one team sheet. Only the first table
// is consulted for the current row count.
func (r *Reconciler) SyncTeam(ctx context.Context, doc workbook.Document, sheet layout.Sheet, cfg *model.Config) (TeamStats, error) {
	stats := TeamStats{Team: sheet.Team}
	roster := cfg.Roster(sheet.Team)
	if len(roster) == 0 {
		r.log.Warn(ctx, "no therapists for team", logger.String("team", string(sheet.Team)))
		return stats, nil
	}
	tables := sheet.KPITables()
	if len(tables) == 0 {
		stats.Skipped = true
		stats.Reason = "no tables"
		return stats, nil
	}
	first, err := doc.Table(sheet.Name, tables[0].Name)
	if err != nil {
		r.log.Warn(ctx, "first team table not found", logger.String("table", tables[0].Name), logger.Error(err))
		stats.Skipped = true
		stats.Reason = "first table missing"
		return stats, nil
	}

	delta := len(roster) - first.DataRows()
	r.log.Debug(ctx, "team row delta",
		logger.String("team", string(sheet.Team)),
		logger.Int("current", first.DataRows()),
		logger.Int("expected", len(roster)),
		logger.Int("delta", delta))

	if delta > 0 {
		r.log.Warn(ctx, "team tables need more rows, skipping", logger.String("team", string(sheet.Team)), logger.Int("rows", delta))
		stats.Skipped = true
		stats.Reason = fmt.Sprintf("need %d more rows", delta)
		stats.Pending = &model.PendingChange{Sheet: sheet.Name, Team: sheet.Team, Action: model.ActionAdd, RowCount: delta}
		return stats, nil
	}

	cleared := 0
	for _, def := range tables {
		t, err := doc.Table(sheet.Name, def.Name)
		if err != nil {
			r.log.Warn(ctx, "team table not found", logger.String("table", def.Name), logger.Error(err))
			continue
		}
		added, removed, n, err := r.syncTable(doc, t, roster, cfg.Palette)
		if err != nil {
			return stats, fmt.Errorf("sync table %s: %w", def.Name, err)
		}
		stats.Tables++
		stats.Added += added
		stats.Removed += removed
		if n > 0 {
			cleared = n
		}
	}

	if cleared > 0 {
		r.log.Warn(ctx, "team rows cleared, manual deletion needed", logger.String("team", string(sheet.Team)), logger.Int("rows", cleared))
		stats.Pending = &model.PendingChange{Sheet: sheet.Name, Team: sheet.Team, Action: model.ActionDelete, RowCount: cleared}
	}
	return stats, nil
}

// IsPlaceholder reports whether a row name marks a template placeholder.
func IsPlaceholder(name string) bool {
	return strings.Contains(strings.ToUpper(name), "PLACEHOLDER")
}

// cell is a table cell as read before the rewrite.
type cell struct {
	value   workbook.Value
	formula string
}

func (c cell) write(doc workbook.Document, sheet string, row, col int) error {
	if c.formula != "" {
		return doc.SetFormula(sheet, row, col, c.formula)
	}
	return doc.SetCell(sheet, row, col, c.value)
}

// syncTable rewrites one table. The rightmost column holds the average
// formula and is never written. Formulas move with their row and only fill
// and font are restyled. It returns added and removed name counts and the
// number of trailing rows cleared.
func (r *Reconciler) syncTable(doc workbook.Document, t workbook.Table, roster []model.Therapist, palette model.Palette) (added, removed, cleared int, err error) {
	rows, err := doc.Rows(t.Sheet)
	if err != nil {
		return 0, 0, 0, err
	}
	grid := workbook.Grid(rows)
	rg := t.Range
	lastCol := rg.ToCol - 1

	current := make(map[string][]cell)
	for row := rg.FromRow + 1; row <= rg.ToRow; row++ {
		name := workbook.Text(grid.At(row, rg.FromCol))
		if name == "" {
			continue
		}
		cells := make([]cell, 0, lastCol-rg.FromCol+1)
		for col := rg.FromCol; col <= lastCol; col++ {
			f, err := doc.Formula(t.Sheet, row, col)
			if err != nil {
				return 0, 0, 0, err
			}
			cells = append(cells, cell{value: grid.At(row, col), formula: f})
		}
		current[model.NameKey(name)] = cells
	}

	expected := make(map[string]bool, len(roster))
	for _, th := range roster {
		expected[th.Key()] = true
		if _, ok := current[th.Key()]; !ok {
			added++
		}
	}
	for key := range current {
		if !expected[key] || IsPlaceholder(key) {
			removed++
		}
	}

	grey := palette.Get(model.ColourGrey)
	for i, th := range roster {
		row := rg.FromRow + 1 + i
		data, known := current[th.Key()]
		for col := rg.FromCol; col <= lastCol; col++ {
			var c cell
			switch {
			case col == rg.FromCol:
				c.value = th.Name
			case known:
				c = data[col-rg.FromCol]
			}
			if err := c.write(doc, t.Sheet, row, col); err != nil {
				return 0, 0, 0, err
			}
		}
		if lastCol < rg.FromCol {
			continue
		}
		fill, font := "", ""
		if !th.IsActive {
			fill, font = grey, InactiveFont
		}
		line := workbook.Range{FromRow: row, FromCol: rg.FromCol, ToRow: row, ToCol: lastCol}
		if err := doc.Paint(t.Sheet, line, fill, font); err != nil {
			return 0, 0, 0, err
		}
	}

	for row := rg.FromRow + 1 + len(roster); row <= rg.ToRow; row++ {
		for col := rg.FromCol; col <= lastCol; col++ {
			if err := doc.SetCell(t.Sheet, row, col, nil); err != nil {
				return 0, 0, 0, err
			}
		}
		cleared++
	}
	return added, removed, cleared, nil
}

// fteRoster lists active therapists by team order, then roster order.
func fteRoster(cfg *model.Config) []model.Therapist {
	var out []model.Therapist
	for _, t := range cfg.Therapists {
		if t.IsActive {
			out = append(out, t)
		}
	}
	model.SortRoster(out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Team.Order() < out[j].Team.Order() })
	return out
}

// SyncFTE rewrites the program-owned columns of the FTE table (name, FTE and
// team) for every active therapist and resizes the table to fit.
func (r *Reconciler) SyncFTE(ctx context.Context, doc workbook.Document, cfg *model.Config) (FTEStats, error) {
	def := r.layout.FTE
	if !doc.HasSheet(def.Sheet) {
		r.log.Warn(ctx, "fte sheet not found", logger.String("sheet", def.Sheet))
		return FTEStats{Skipped: true}, nil
	}
	t, err := doc.Table(def.Sheet, def.Table)
	if err != nil {
		r.log.Warn(ctx, "fte table not found", logger.String("table", def.Table), logger.Error(err))
		return FTEStats{Skipped: true}, nil
	}

	therapists := fteRoster(cfg)
	rg := t.Range
	delta := len(therapists) - t.DataRows()
	for i, th := range therapists {
		row := rg.FromRow + 1 + i
		fte, _ := th.FTE.Float64()
		for j, v := range []workbook.Value{th.Name, fte, string(th.Team)} {
			if err := doc.SetCell(def.Sheet, row, rg.FromCol+j, v); err != nil {
				return FTEStats{}, err
			}
		}
	}

	stats := FTEStats{Rows: len(therapists)}
	if delta > 0 {
		stats.Added = delta
	}
	for row := rg.FromRow + 1 + len(therapists); row <= rg.ToRow; row++ {
		for col := rg.FromCol; col < rg.FromCol+3; col++ {
			if err := doc.SetCell(def.Sheet, row, col, nil); err != nil {
				return FTEStats{}, err
			}
		}
		stats.Removed++
	}

	// A table keeps at least one data row.
	rows := len(therapists)
	if rows == 0 {
		rows = 1
	}
	to := workbook.Range{FromRow: rg.FromRow, FromCol: rg.FromCol, ToRow: rg.FromRow + rows, ToCol: rg.ToCol}
	if to != rg {
		if err := doc.ResizeTable(t, to); err != nil {
			return stats, fmt.Errorf("resize fte table: %w", err)
		}
	}
	r.log.Info(ctx, "fte table synced", logger.Int("rows", stats.Rows), logger.Int("added", stats.Added), logger.Int("removed", stats.Removed))
	return stats, nil
}
