// Package model contains the roster, threshold and KPI records shared by
// every sync component. Values are loaded fresh from the config workbook on
// each run and never mutated afterwards.
package model

import "strings"

// TeamID identifies a clinical team.
type TeamID string

// Known teams.
const (
	TeamPhysioNorth TeamID = "Physio_North"
	TeamPhysioSouth TeamID = "Physio_South"
	TeamOT          TeamID = "OT"
)

// TeamType selects the threshold sheet and the individual workbook template.
type TeamType string

// Team types.
const (
	TeamTypePhysio TeamType = "Physio"
	TeamTypeOT     TeamType = "OT"
)

const unknownOrder = 99

// Type returns the team's threshold family. Anything that is not OT is Physio.
func (t TeamID) Type() TeamType {
	if strings.EqualFold(strings.TrimSpace(string(t)), string(TeamOT)) {
		return TeamTypeOT
	}
	return TeamTypePhysio
}

// Order ranks teams for the FTE table.
func (t TeamID) Order() int {
	switch TeamID(strings.TrimSpace(string(t))) {
	case TeamPhysioNorth:
		return 1
	case TeamPhysioSouth:
		return 2
	case TeamOT:
		return 3
	default:
		return unknownOrder
	}
}

// Equal compares team ids ignoring case and surrounding whitespace.
func (t TeamID) Equal(other TeamID) bool {
	return strings.EqualFold(strings.TrimSpace(string(t)), strings.TrimSpace(string(other)))
}

// Team is a row of Config_Teams. Only the id is interpreted; the remaining
// columns are kept for display.
type Team struct {
	ID     TeamID
	Name   string
	Extras map[string]string
}

// ParseTeamType maps a free-form label to a TeamType.
func ParseTeamType(s string) TeamType {
	if strings.EqualFold(strings.TrimSpace(s), string(TeamTypeOT)) {
		return TeamTypeOT
	}
	return TeamTypePhysio
}
