package layout

import "errors"

var (
	// ErrInvalidLayout is returned when a layout document cannot be used.
	ErrInvalidLayout = errors.New("invalid workbook layout")
)
