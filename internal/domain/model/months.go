package model

import "strings"

// Month is one of the twelve canonical month header tokens.
type Month string

// Canonical month tokens as they appear in table headers.
const (
	Jan  Month = "Jan"
	Feb  Month = "Feb"
	Mar  Month = "Mar"
	Apr  Month = "Apr"
	May  Month = "May"
	June Month = "June"
	July Month = "July"
	Aug  Month = "Aug"
	Sept Month = "Sept"
	Oct  Month = "Oct"
	Nov  Month = "Nov"
	Dec  Month = "Dec"
)

// AverageHeader labels the trailing average column of team tables.
const AverageHeader = "Average"

// Months lists the canonical tokens in calendar order.
var Months = [12]Month{Jan, Feb, Mar, Apr, May, June, July, Aug, Sept, Oct, Nov, Dec}

var monthAliases = map[string]Month{
	"january": Jan, "february": Feb, "march": Mar, "april": Apr,
	"june": June, "jun": June, "july": July, "jul": July, "august": Aug,
	"sept": Sept, "sep": Sept, "september": Sept, "october": Oct,
	"november": Nov, "december": Dec,
}

// ParseMonth maps a header cell to a canonical month.
func ParseMonth(s string) (Month, bool) {
	v := strings.TrimSpace(s)
	for _, m := range Months {
		if strings.EqualFold(v, string(m)) {
			return m, true
		}
	}
	m, ok := monthAliases[strings.ToLower(v)]
	return m, ok
}

// Number returns the calendar month 1..12, or 0 for an unknown token.
func (m Month) Number() int {
	for i, v := range Months {
		if v == m {
			return i + 1
		}
	}
	return 0
}

// IsAverage reports whether a header cell is the Average column.
func IsAverage(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), AverageHeader)
}
