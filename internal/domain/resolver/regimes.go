package resolver

import (
	"github.com/okian/kpisync/internal/domain/model"
)

// CompetencyRanges resolves a therapist's competency spans. Regimes group by
// the full competency label.
func CompetencyRanges(name string, year int, cols Columns, history []model.CompetencyChange) []Span[model.Competency] {
	changes := make([]Change[model.Competency], 0, len(history))
	for _, h := range history {
		changes = append(changes, Change[model.Competency]{Subject: h.Name, Effective: h.Effective, Regime: h.Competency})
	}
	return Resolve(name, year, cols, changes, func(c model.Competency) string {
		return string(model.ParseCompetency(string(c)))
	})
}

// TeamAverageRanges resolves a team's average-billing threshold spans.
// Regimes group by (green_min, blue_above) only.
func TeamAverageRanges(team model.TeamID, year int, cols Columns, history []model.TeamAverageChange) []Span[model.BillingThresholds] {
	changes := make([]Change[model.BillingThresholds], 0, len(history))
	for _, h := range history {
		changes = append(changes, Change[model.BillingThresholds]{Subject: string(h.Team), Effective: h.Effective, Regime: h.Thresholds})
	}
	return Resolve(string(team), year, cols, changes, model.BillingThresholds.GroupKey)
}

// IndividualColumns is the fixed month layout of an individual dashboard:
// months in columns first..first+11 and the average right after.
func IndividualColumns(first int) Columns {
	cols := Columns{Months: make(map[model.Month]int, len(model.Months))}
	for i, m := range model.Months {
		cols.Months[m] = first + i
	}
	cols.Average = first + len(model.Months)
	return cols
}
