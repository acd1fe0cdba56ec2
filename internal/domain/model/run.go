package model

import "time"

// Trigger names what started a run.
type Trigger string

// Run triggers.
const (
	TriggerTimer Trigger = "timer"
	TriggerHTTP  Trigger = "http"
	TriggerCLI   Trigger = "cli"
)

// RunRequest selects which halves of a sync run execute.
type RunRequest struct {
	ProcessIndividual bool
	ProcessTeamLeader bool
	// Therapist narrows individual processing to names containing it.
	Therapist string
	Trigger   Trigger
}

// DefaultRunRequest processes everything.
func DefaultRunRequest(trigger Trigger) RunRequest {
	return RunRequest{ProcessIndividual: true, ProcessTeamLeader: true, Trigger: trigger}
}

// Action is the manual step a pending change asks for.
type Action string

// Pending change actions.
const (
	ActionAdd    Action = "add"
	ActionDelete Action = "delete"
)

// PendingChange records rows a human must add or delete in a team table.
type PendingChange struct {
	Sheet    string `json:"sheet"`
	Team     TeamID `json:"team"`
	Action   Action `json:"action"`
	RowCount int    `json:"row_count"`
}

// Run statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Tally counts individual sheet outcomes.
type Tally struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// TeamLeaderStats counts Team Leader tables touched by a run.
type TeamLeaderStats struct {
	Synced    int `json:"synced"`
	Formatted int `json:"formatted"`
}

// Result is the outcome of one sync run.
type Result struct {
	Status         string          `json:"status"`
	Individual     Tally           `json:"individual"`
	TeamLeader     TeamLeaderStats `json:"team_leader"`
	PendingChanges []PendingChange `json:"pending_changes"`
	Error          string          `json:"error,omitempty"`
}

// RunRecord is a persisted run.
type RunRecord struct {
	ID         string    `json:"id"`
	Trigger    Trigger   `json:"trigger"`
	Year       int       `json:"year"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Result     Result    `json:"result"`
}

// Duration is the wall time of the run.
func (r RunRecord) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
