package model

import "strings"

// Competency is a therapist's seniority tier.
type Competency string

// Competency tiers. TeamAverage is the pseudo-tier used for team average rows.
const (
	CompetencyGrad        Competency = "Grad"
	CompetencyCA          Competency = "CA"
	CompetencySenior      Competency = "Senior"
	CompetencyTeamAverage Competency = "Team Average"
)

// ParseCompetency canonicalises a label. Unknown labels are returned trimmed.
func ParseCompetency(s string) Competency {
	v := strings.TrimSpace(s)
	switch strings.ToLower(v) {
	case "grad", "graduate":
		return CompetencyGrad
	case "ca":
		return CompetencyCA
	case "senior":
		return CompetencySenior
	case "team average", "team_average", "teamaverage":
		return CompetencyTeamAverage
	}
	return Competency(v)
}

// Order ranks competencies for roster sorting: Senior, CA, Grad, then the rest.
func (c Competency) Order() int {
	switch ParseCompetency(string(c)) {
	case CompetencySenior:
		return 1
	case CompetencyCA:
		return 2
	case CompetencyGrad:
		return 3
	default:
		return unknownOrder
	}
}
