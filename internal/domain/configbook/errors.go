package configbook

import "errors"

var (
	// ErrMissingTherapists is returned when the workbook has no roster sheet.
	ErrMissingTherapists = errors.New("config workbook has no therapist sheet")
)
