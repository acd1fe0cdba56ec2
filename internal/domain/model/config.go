package model

import (
	"sort"
	"strings"
)

// Config is everything read from the config workbook for one run.
type Config struct {
	Therapists         []Therapist
	Teams              []Team
	Thresholds         map[TeamType]ThresholdSet
	Palette            Palette
	CompetencyHistory  []CompetencyChange
	TeamAverageHistory []TeamAverageChange
}

// NewConfig returns a config populated with defaults only.
func NewConfig() *Config {
	return &Config{
		Thresholds: map[TeamType]ThresholdSet{
			TeamTypePhysio: NewThresholdSet(),
			TeamTypeOT:     NewThresholdSet(),
		},
		Palette: DefaultPalette(),
	}
}

// ThresholdsFor returns the threshold set for a team's type.
func (c *Config) ThresholdsFor(team TeamID) ThresholdSet {
	if s, ok := c.Thresholds[team.Type()]; ok {
		return s
	}
	return NewThresholdSet()
}

// Therapist finds a therapist by case-insensitive name.
func (c *Config) Therapist(name string) (Therapist, bool) {
	key := NameKey(name)
	for _, t := range c.Therapists {
		if t.Key() == key {
			return t, true
		}
	}
	return Therapist{}, false
}

// Active returns active therapists whose name contains filter
// (case-insensitive). An empty filter matches everyone.
func (c *Config) Active(filter string) []Therapist {
	f := strings.ToLower(strings.TrimSpace(filter))
	var out []Therapist
	for _, t := range c.Therapists {
		if !t.IsActive {
			continue
		}
		if f != "" && !strings.Contains(strings.ToLower(t.Name), f) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Roster returns the authoritative table order for a team: leaders first,
// then Senior, CA, Grad, then name. Duplicate names keep their first row.
func (c *Config) Roster(team TeamID) []Therapist {
	seen := make(map[string]bool)
	var out []Therapist
	for _, t := range c.Therapists {
		if !t.Team.Equal(team) || seen[t.Key()] {
			continue
		}
		seen[t.Key()] = true
		out = append(out, t)
	}
	SortRoster(out)
	return out
}

// SortRoster orders therapists by leader flag, competency and name.
func SortRoster(ts []Therapist) {
	sort.SliceStable(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		if a.IsTeamLeader != b.IsTeamLeader {
			return a.IsTeamLeader
		}
		if a.Competency.Order() != b.Competency.Order() {
			return a.Competency.Order() < b.Competency.Order()
		}
		return a.Name < b.Name
	})
}

// CompetencyMap returns name key to current competency for a team.
func (c *Config) CompetencyMap(team TeamID) map[string]Competency {
	out := make(map[string]Competency)
	for _, t := range c.Therapists {
		if t.Team.Equal(team) {
			out[t.Key()] = t.Competency
		}
	}
	return out
}
