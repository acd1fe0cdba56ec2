// Package banding builds the colour-band rules for KPI cells and applies them
// to rows or columns of a workbook.
package banding

import (
	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/internal/domain/workbook"
	"github.com/shopspring/decimal"
)

// Kind is the semantic type of a KPI.
type Kind string

// KPI kinds.
const (
	KindBilling Kind = "billing"
	KindCeased  Kind = "ceased"
	KindRating  Kind = "rating"
)

// ParseKind maps a label to a Kind, defaulting to rating.
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindBilling, KindCeased:
		return Kind(s)
	}
	return KindRating
}

func rule(p workbook.Predicate, v decimal.Decimal, band string, palette model.Palette) workbook.FillRule {
	return workbook.FillRule{Predicate: p, Value: v, Band: band, Colour: palette.Get(band)}
}

func blank(palette model.Palette) workbook.FillRule {
	return workbook.FillRule{Predicate: workbook.Blank, Band: model.ColourWhite, Colour: palette.Get(model.ColourWhite)}
}

// Billing returns higher-is-better rules: blank white, above blue_above
// blue, from green_min green, below green_min red.
func Billing(t model.BillingThresholds, palette model.Palette) []workbook.FillRule {
	return []workbook.FillRule{
		blank(palette),
		rule(workbook.Greater, t.BlueAbove, model.ColourBlue, palette),
		rule(workbook.GreaterOrEqual, t.GreenMin, model.ColourGreen, palette),
		rule(workbook.Less, t.GreenMin, model.ColourRed, palette),
	}
}

// Ceased returns lower-is-better rules: blank white, below blue_below blue,
// below red_above green, from red_above red.
func Ceased(t model.CeasedThresholds, palette model.Palette) []workbook.FillRule {
	return []workbook.FillRule{
		blank(palette),
		rule(workbook.Less, t.BlueBelow, model.ColourBlue, palette),
		rule(workbook.Less, t.RedAbove, model.ColourGreen, palette),
		rule(workbook.GreaterOrEqual, t.RedAbove, model.ColourRed, palette),
	}
}

var ratingColours = map[int]string{
	5: model.ColourBlue,
	4: model.ColourGreen,
	3: model.ColourYellow,
	2: model.ColourAmber,
	1: model.ColourRed,
}

// Rating returns 1..5 scale rules from the highest band down; rating 1 is
// everything below the rating 2 minimum.
func Rating(scale model.RatingScale, palette model.Palette) []workbook.FillRule {
	rules := []workbook.FillRule{blank(palette)}
	for r := 5; r >= 2; r-- {
		rules = append(rules, rule(workbook.GreaterOrEqual, scale.Min(r), ratingColours[r], palette))
	}
	return append(rules, rule(workbook.Less, scale.Min(2), ratingColours[1], palette))
}

// Classify returns the band the first matching rule paints, mirroring how
// the spreadsheet resolves overlapping rules by priority.
func Classify(rules []workbook.FillRule, v *float64) string {
	for _, r := range rules {
		if r.Matches(v) {
			return r.Band
		}
	}
	return ""
}
