package individual

import "errors"

var (
	// ErrNoDashboard is returned when a workbook has no dashboard sheet.
	ErrNoDashboard = errors.New("dashboard sheet not found")
)
