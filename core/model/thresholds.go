package model

import (
	"fmt"
	"time"
)

// Thresholds holds the charging policy knobs. They are loaded once at startup
// and stay immutable for the lifetime of the process.
type Thresholds struct {
	// PriceThresholdCents is the price at or below which charging starts.
	PriceThresholdCents float64 `json:"price_threshold_cents"`
	// MinChargeLevel is the floor below which the vehicle charges at any price.
	MinChargeLevel int `json:"min_charge_level"`
	// MaxChargeLevel is the ceiling at or above which charging always stops.
	MaxChargeLevel int `json:"max_charge_level"`
	// CheckIntervalSeconds is the control cycle period.
	CheckIntervalSeconds int `json:"check_interval_seconds"`
}

// SetDefaults fills omitted knobs with the stock policy.
func (t *Thresholds) SetDefaults() {
	if t.PriceThresholdCents == 0 {
		t.PriceThresholdCents = 3.0
	}
	if t.MinChargeLevel == 0 {
		t.MinChargeLevel = 20
	}
	if t.MaxChargeLevel == 0 {
		t.MaxChargeLevel = 90
	}
	if t.CheckIntervalSeconds == 0 {
		t.CheckIntervalSeconds = 300
	}
}

// Validate checks the policy invariants.
func (t Thresholds) Validate() error {
	if t.PriceThresholdCents <= 0 {
		return fmt.Errorf("price_threshold_cents must be positive, got %.2f", t.PriceThresholdCents)
	}
	if t.MinChargeLevel < 0 {
		return fmt.Errorf("min_charge_level must not be negative, got %d", t.MinChargeLevel)
	}
	if t.MaxChargeLevel > 100 {
		return fmt.Errorf("max_charge_level must not exceed 100, got %d", t.MaxChargeLevel)
	}
	if t.MinChargeLevel >= t.MaxChargeLevel {
		return fmt.Errorf("min_charge_level %d must be below max_charge_level %d", t.MinChargeLevel, t.MaxChargeLevel)
	}
	if t.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("check_interval_seconds must be positive, got %d", t.CheckIntervalSeconds)
	}
	return nil
}

// CheckInterval returns the cycle period as a duration.
func (t Thresholds) CheckInterval() time.Duration {
	return time.Duration(t.CheckIntervalSeconds) * time.Second
}
