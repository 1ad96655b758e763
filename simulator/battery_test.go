package main

import (
	"testing"
	"time"
)

func TestBatteryCharges(t *testing.T) {
	b := &Battery{CapacityKWh: 60, Soc: 0.5, ChargeRateKW: 6, DrainKW: 0.3}
	// 6 kW for one hour into 60 kWh adds 10 points
	if got := b.Tick(true, time.Hour); got != 60 {
		t.Fatalf("percent after charging = %d, want 60", got)
	}
}

func TestBatteryDrains(t *testing.T) {
	b := &Battery{CapacityKWh: 60, Soc: 0.5, ChargeRateKW: 6, DrainKW: 0.6}
	if got := b.Tick(false, time.Hour); got != 49 {
		t.Fatalf("percent after drain = %d, want 49", got)
	}
}

func TestBatteryClamps(t *testing.T) {
	b := &Battery{CapacityKWh: 10, Soc: 0.99, ChargeRateKW: 11, DrainKW: 0.3}
	if got := b.Tick(true, time.Hour); got != 100 {
		t.Fatalf("percent at ceiling = %d, want 100", got)
	}
	b = &Battery{CapacityKWh: 10, Soc: 0.01, ChargeRateKW: 11, DrainKW: 5}
	if got := b.Tick(false, time.Hour); got != 0 {
		t.Fatalf("percent at floor = %d, want 0", got)
	}
}

func TestBatteryZeroDuration(t *testing.T) {
	b := &Battery{CapacityKWh: 60, Soc: 0.42, ChargeRateKW: 6, DrainKW: 0.3}
	if got := b.Tick(true, 0); got != 42 {
		t.Fatalf("percent unchanged = %d, want 42", got)
	}
}
