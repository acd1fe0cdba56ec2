package model

import (
	"path"
	"regexp"
	"strconv"
)

const (
	minWorkbookYear = 2020
	maxWorkbookYear = 2100
)

var yearPattern = regexp.MustCompile(`\d{4}`)

// YearFromFilename extracts the workbook year from a file name such as
// "Team_Leader_2026.xlsx". Only the first four-digit run is considered.
func YearFromFilename(name string) (int, bool) {
	m := yearPattern.FindString(path.Base(name))
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil || y < minWorkbookYear || y > maxWorkbookYear {
		return 0, false
	}
	return y, true
}
