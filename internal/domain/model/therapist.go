package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Therapist is one row of Config_Therapists.
type Therapist struct {
	Name         string
	Team         TeamID
	Competency   Competency
	IsActive     bool
	IsTeamLeader bool
	FilePath     string
	FTE          decimal.Decimal
}

// NameKey is the case-insensitive matching key for a person's name.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Key returns the therapist's matching key.
func (t Therapist) Key() string { return NameKey(t.Name) }
