package workbook

import "errors"

// Sentinel kinds for workbook errors.
var (
	ErrSheetNotFound = errors.New("sheet not found")
	ErrTableNotFound = errors.New("table not found")
	ErrInvalidRange  = errors.New("invalid range")
)
