package model

import "time"

// PriceReading is a single observation of the real-time electricity price.
type PriceReading struct {
	// Cents is the price in cents per kWh. Negative values occur when the
	// grid pays consumers to draw load.
	Cents float64
	// ObservedAt is the time the feed reported the price. Falls back to the
	// fetch time when the feed timestamp cannot be parsed.
	ObservedAt time.Time
}

// PriceTier buckets a price into the advisory bands shown in logs and
// diagnostics.
type PriceTier int

const (
	TierExcellent PriceTier = iota
	TierGood
	TierModerate
	TierHigh
	TierVeryHigh
)

// Tier classifies the reading. Band edges are inclusive on the upper bound.
func (p PriceReading) Tier() PriceTier {
	switch {
	case p.Cents <= 3.0:
		return TierExcellent
	case p.Cents <= 5.0:
		return TierGood
	case p.Cents <= 8.0:
		return TierModerate
	case p.Cents <= 12.0:
		return TierHigh
	default:
		return TierVeryHigh
	}
}

func (t PriceTier) String() string {
	switch t {
	case TierExcellent:
		return "EXCELLENT"
	case TierGood:
		return "GOOD"
	case TierModerate:
		return "MODERATE"
	case TierHigh:
		return "HIGH"
	case TierVeryHigh:
		return "VERY HIGH"
	default:
		return "UNKNOWN"
	}
}
