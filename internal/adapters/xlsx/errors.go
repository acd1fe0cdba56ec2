package xlsx

import "errors"

// Sentinel kinds for spreadsheet adapter errors.
var (
	ErrOpen  = errors.New("open workbook failed")
	ErrSave  = errors.New("save workbook failed")
	ErrStyle = errors.New("create style failed")
)
