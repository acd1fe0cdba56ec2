package model

import (
	"sort"
	"time"
)

// CompetencyChange states that from Effective onward Name's competency is
// Competency.
type CompetencyChange struct {
	Name       string
	Effective  time.Time
	Competency Competency
}

// TeamAverageChange states that from Effective onward Team's average billing
// row is judged by Thresholds.
type TeamAverageChange struct {
	Team       TeamID
	Effective  time.Time
	Thresholds BillingThresholds
}

// MidMonth anchors a month on its 15th so boundary days never decide the regime.
func MidMonth(year int, m Month) time.Time {
	return time.Date(year, time.Month(m.Number()), 15, 0, 0, 0, 0, time.UTC)
}

// ApplicableCompetency returns the competency in effect for name at target,
// or fallback when no change applies yet.
func ApplicableCompetency(name string, target time.Time, history []CompetencyChange, fallback Competency) Competency {
	key := NameKey(name)
	var matched []CompetencyChange
	for _, h := range history {
		if NameKey(h.Name) == key && !h.Effective.IsZero() {
			matched = append(matched, h)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Effective.Before(matched[j].Effective) })
	result := fallback
	for _, h := range matched {
		if h.Effective.After(target) {
			break
		}
		result = h.Competency
	}
	return result
}
