package model

import "github.com/shopspring/decimal"

// BillingThresholds bands a higher-is-better value. RedBelow is carried from
// the config sheet but the rendered scale has no band below GreenMin other
// than red.
type BillingThresholds struct {
	RedBelow  decimal.Decimal
	GreenMin  decimal.Decimal
	GreenMax  decimal.Decimal
	BlueAbove decimal.Decimal
}

// GroupKey identifies a billing regime by the two boundaries that drive the
// rendered rules, rounded so float noise from the sheet does not split ranges.
func (b BillingThresholds) GroupKey() string {
	return b.GreenMin.Round(4).String() + "|" + b.BlueAbove.Round(4).String()
}

// CeasedThresholds bands a lower-is-better ratio.
type CeasedThresholds struct {
	BlueBelow decimal.Decimal
	GreenMin  decimal.Decimal
	GreenMax  decimal.Decimal
	RedAbove  decimal.Decimal
}

// RatingBand is one step of the 1..5 rating scale.
type RatingBand struct {
	Rating int
	Min    decimal.Decimal
	Max    decimal.Decimal
	Label  string
}

// RatingScale holds bands keyed by rating.
type RatingScale map[int]RatingBand

// Min returns the lower bound of a rating, falling back to the default scale.
func (s RatingScale) Min(rating int) decimal.Decimal {
	if b, ok := s[rating]; ok {
		return b.Min
	}
	return DefaultRatingScale()[rating].Min
}

// ThresholdSet is the content of one Config_Thresholds_* sheet.
type ThresholdSet struct {
	Billing map[Competency]BillingThresholds
	Ceased  CeasedThresholds
	Rating  RatingScale
}

// BillingFor returns the billing thresholds for a competency.
func (s ThresholdSet) BillingFor(c Competency) (BillingThresholds, bool) {
	b, ok := s.Billing[ParseCompetency(string(c))]
	return b, ok
}

// TeamAverageBilling returns the static team average thresholds, falling
// back to CA when the sheet has no Team Average row.
func (s ThresholdSet) TeamAverageBilling() (BillingThresholds, bool) {
	if b, ok := s.Billing[CompetencyTeamAverage]; ok {
		return b, true
	}
	return s.BillingFor(CompetencyCA)
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// DefaultCeasedThresholds is used when a sheet has no "Ceased %" row.
func DefaultCeasedThresholds() CeasedThresholds {
	return CeasedThresholds{
		BlueBelow: d("0.025"),
		GreenMin:  d("0.025"),
		GreenMax:  d("0.04"),
		RedAbove:  d("0.04"),
	}
}

// DefaultRatingScale places the band boundaries at 1.5, 2.5, 3.5 and 4.5.
func DefaultRatingScale() RatingScale {
	return RatingScale{
		1: {Rating: 1, Min: d("0"), Max: d("1.5"), Label: "Unsatisfactory"},
		2: {Rating: 2, Min: d("1.5"), Max: d("2.5"), Label: "Needs Improvement"},
		3: {Rating: 3, Min: d("2.5"), Max: d("3.5"), Label: "Meets Expectations"},
		4: {Rating: 4, Min: d("3.5"), Max: d("4.5"), Label: "Exceeds Expectations"},
		5: {Rating: 5, Min: d("4.5"), Max: d("5"), Label: "Outstanding"},
	}
}

// NewThresholdSet returns an empty set with default ceased and rating bands.
func NewThresholdSet() ThresholdSet {
	return ThresholdSet{
		Billing: make(map[Competency]BillingThresholds),
		Ceased:  DefaultCeasedThresholds(),
		Rating:  DefaultRatingScale(),
	}
}
