package main

import (
	"fmt"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	Broker         string
	VIN            string
	InitialPercent int
	CapacityKWh    float64
	ChargeRateKW   float64
	DrainKW        float64
	Interval       time.Duration
	BatteryProfile string
	Verbose        bool
}

// Validate checks the simulation parameters.
func (c Config) Validate() error {
	if c.VIN == "" {
		return fmt.Errorf("vin is required")
	}
	if c.InitialPercent < 0 || c.InitialPercent > 100 {
		return fmt.Errorf("percent must be within 0..100, got %d", c.InitialPercent)
	}
	if c.CapacityKWh <= 0 {
		return fmt.Errorf("capacity must be positive")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	return nil
}
