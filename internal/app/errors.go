package service

import "errors"

// Errors that abort a run or reject a request.
var (
	ErrMissingCredentials    = errors.New("graph credentials missing")
	ErrConfigUnavailable     = errors.New("config workbook unavailable")
	ErrTeamLeaderUnavailable = errors.New("team leader workbook unavailable")
	ErrBusy                  = errors.New("sync queue full")
	ErrNotStarted            = errors.New("service not started")
	// ErrNoFile marks a path the drive has no file at, as opposed to a
	// file whose content could not be fetched.
	ErrNoFile                = errors.New("no file at path")
)
