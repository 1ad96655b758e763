// Package decision implements the charging policy. It is a pure function of
// the current price, the current battery level and the configured thresholds,
// which keeps the policy trivially testable.
package decision

import (
	"github.com/smart-ev/chargectl/core/model"
)

// Reason explains a decision for logs, metrics and notifications.
type Reason int

const (
	ReasonBatteryUnknown Reason = iota
	ReasonBatteryLow
	ReasonBatteryFull
	ReasonGoodPrice
	ReasonHighPrice
)

func (r Reason) String() string {
	switch r {
	case ReasonBatteryUnknown:
		return "battery unknown"
	case ReasonBatteryLow:
		return "battery low"
	case ReasonBatteryFull:
		return "battery full"
	case ReasonGoodPrice:
		return "price below threshold"
	case ReasonHighPrice:
		return "price above threshold"
	default:
		return "unknown"
	}
}

// Decide maps the cycle inputs to a charge decision. Rules are evaluated in
// order and the first match wins:
//
//  1. no battery reading yet           -> STOP, never charge blind
//  2. level below MinChargeLevel       -> START at any price
//  3. level at or above MaxChargeLevel -> STOP at any price
//  4. price at or below the threshold  -> START
//  5. otherwise                        -> STOP
//
// The floor check is strict so MinChargeLevel itself is not an emergency;
// the ceiling check is inclusive so the battery never exceeds MaxChargeLevel
// by a full cycle.
func Decide(price model.PriceReading, battery model.BatteryState, batteryKnown bool, th model.Thresholds) (model.ChargeDecision, Reason) {
	if !batteryKnown {
		return model.DecisionStop, ReasonBatteryUnknown
	}
	if battery.Percent < th.MinChargeLevel {
		return model.DecisionStart, ReasonBatteryLow
	}
	if battery.Percent >= th.MaxChargeLevel {
		return model.DecisionStop, ReasonBatteryFull
	}
	if price.Cents <= th.PriceThresholdCents {
		return model.DecisionStart, ReasonGoodPrice
	}
	return model.DecisionStop, ReasonHighPrice
}
