// Package kpiload reads the per-team KPI tables of the Team Leader workbook
// and flattens them into one record per therapist and month.
package kpiload

import (
	"context"

	"github.com/okian/kpisync/internal/domain/layout"
	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/internal/domain/resolver"
	"github.com/okian/kpisync/internal/domain/workbook"
	"github.com/okian/kpisync/pkg/logger"
)

// Loader reads KPI tables described by a layout.
type Loader struct {
	layout *layout.Layout
	log    logger.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(k *Loader) {
		if l != nil {
			k.log = l
		}
	}
}

// New creates a Loader for the given layout.
func New(l *layout.Layout, opts ...Option) *Loader {
	k := &Loader{layout: l, log: logger.Get().Named("kpiload")}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Data is the loaded records keyed by team.
type Data map[model.TeamID][]model.Record

// For returns the records of one therapist in a team, matched by name key.
func (d Data) For(team model.TeamID, name string) []model.Record {
	key := model.NameKey(name)
	var out []model.Record
	for t, records := range d {
		if !t.Equal(team) {
			continue
		}
		for _, r := range records {
			if model.NameKey(r.Name) == key {
				out = append(out, r)
			}
		}
	}
	return out
}

// Count returns the total number of records.
func (d Data) Count() int {
	n := 0
	for _, records := range d {
		n += len(records)
	}
	return n
}

// Load reads every team sheet. Missing sheets and tables contribute no
// values; the call never fails.
func (k *Loader) Load(ctx context.Context, doc workbook.Document) Data {
	out := make(Data)
	for _, sheet := range k.layout.TeamLeader.Sheets {
		if sheet.Team == "" {
			continue
		}
		if !doc.HasSheet(sheet.Name) {
			k.log.Warn(ctx, "dashboard sheet not found", logger.String("sheet", sheet.Name))
			out[sheet.Team] = []model.Record{}
			continue
		}
		out[sheet.Team] = k.loadSheet(ctx, doc, sheet)
	}
	k.log.Info(ctx, "kpi records loaded", logger.Int("records", out.Count()))
	return out
}

// values is name -> month -> kpi -> value.
type values map[string]map[model.Month]map[string]*float64

func (k *Loader) loadSheet(ctx context.Context, doc workbook.Document, sheet layout.Sheet) []model.Record {
	rows, err := doc.Rows(sheet.Name)
	if err != nil {
		k.log.Warn(ctx, "read dashboard sheet failed", logger.String("sheet", sheet.Name), logger.Error(err))
		return []model.Record{}
	}
	grid := workbook.Grid(rows)

	tables := sheet.KPITables()
	data := make(values)
	var order []string
	for _, t := range tables {
		found, err := doc.Table(sheet.Name, t.Name)
		if err != nil {
			k.log.Warn(ctx, "kpi table not found", logger.String("sheet", sheet.Name), logger.String("table", t.Name), logger.Error(err))
			continue
		}
		r := found.Range
		cols := resolver.HeaderColumns(grid.Span(r.FromRow, r.FromCol, r.ToCol), r.FromCol)
		names := 0
		for row := r.FromRow + 1; row <= r.ToRow; row++ {
			name := workbook.Text(grid.At(row, r.FromCol))
			if name == "" {
				continue
			}
			if _, ok := data[name]; !ok {
				data[name] = make(map[model.Month]map[string]*float64)
				order = append(order, name)
			}
			for m, col := range cols.Months {
				if data[name][m] == nil {
					data[name][m] = make(map[string]*float64)
				}
				data[name][m][t.KPI] = workbook.Number(grid.At(row, col))
			}
			names++
		}
		k.log.Debug(ctx, "kpi table read", logger.String("table", t.Name), logger.Int("therapists", names))
	}

	records := make([]model.Record, 0, len(order)*len(model.Months))
	for _, name := range order {
		for _, m := range model.Months {
			rec := model.Record{Name: name, Month: m, Values: make(map[string]*float64, len(tables))}
			for _, t := range tables {
				rec.Values[t.KPI] = data[name][m][t.KPI]
			}
			records = append(records, rec)
		}
	}
	return records
}
