package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("run not found")
	ErrInvalidLimit = errors.New("invalid run limit")
	ErrInvalidRun   = errors.New("run id is required")
)
