package model

import "time"

// BatteryState is the most recently observed battery level of the vehicle.
type BatteryState struct {
	// Percent is the charge level, 0 to 100.
	Percent int
	// ObservedAt is the local arrival time of the reading.
	ObservedAt time.Time
}
