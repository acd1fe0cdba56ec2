package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/okian/kpisync/internal/adapters/xlsx"
	"github.com/okian/kpisync/internal/domain/configbook"
	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/internal/domain/resolver"
)

// Errors returned by the ranges command.
var (
	ErrUnknownTherapist = errors.New("therapist not in config")
)

// Range is a resolved run of months judged by one billing regime.
type Range struct {
	From       model.Month
	To         model.Month
	Average    bool // the range also covers the average column
	Regime     string
	Thresholds model.BillingThresholds
	Static     bool // no history applies; the current static regime is shown
}

// rangeColumns places months in columns 1..12 and the average in 13 so span
// columns map straight back to months.
var rangeColumns = resolver.IndividualColumns(1)

// LoadConfig opens a local config workbook.
func LoadConfig(ctx context.Context, path string) (*model.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := xlsx.Open(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return configbook.Load(ctx, doc)
}

// TherapistRanges resolves a therapist's billing ranges for year.
func TherapistRanges(cfg *model.Config, name string, year int) ([]Range, error) {
	t, ok := cfg.Therapist(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTherapist, name)
	}
	set := cfg.ThresholdsFor(t.Team)
	spans := resolver.CompetencyRanges(t.Name, year, rangeColumns, cfg.CompetencyHistory)
	if spans == nil {
		b, _ := set.BillingFor(t.Competency)
		return []Range{{From: model.Jan, To: model.Dec, Average: true, Regime: string(t.Competency), Thresholds: b, Static: true}}, nil
	}
	out := make([]Range, 0, len(spans))
	for _, s := range spans {
		b, _ := set.BillingFor(s.Regime)
		out = append(out, toRange(s.StartCol, s.EndCol, string(model.ParseCompetency(string(s.Regime))), b))
	}
	return out, nil
}

// TeamRanges resolves a team's average billing ranges for year.
func TeamRanges(cfg *model.Config, team model.TeamID, year int) []Range {
	spans := resolver.TeamAverageRanges(team, year, rangeColumns, cfg.TeamAverageHistory)
	if spans == nil {
		b, _ := cfg.ThresholdsFor(team).TeamAverageBilling()
		return []Range{{From: model.Jan, To: model.Dec, Average: true, Regime: string(model.CompetencyTeamAverage), Thresholds: b, Static: true}}
	}
	out := make([]Range, 0, len(spans))
	for _, s := range spans {
		out = append(out, toRange(s.StartCol, s.EndCol, string(model.CompetencyTeamAverage), s.Regime))
	}
	return out
}

func toRange(start, end int, regime string, b model.BillingThresholds) Range {
	r := Range{Regime: regime, Thresholds: b}
	if end == rangeColumns.Average {
		r.Average = true
		end--
	}
	if start == rangeColumns.Average {
		// Only the average column; show it against the last month.
		start = end
	}
	r.From = model.Months[start-1]
	r.To = model.Months[end-1]
	return r
}
