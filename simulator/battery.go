package main

import (
	"math"
	"sync"
	"time"
)

// Battery models an EV battery that charges at a fixed rate while the
// charger is on and drains under a passive load while it is off.
type Battery struct {
	CapacityKWh  float64
	Soc          float64 // state of charge [0,1]
	ChargeRateKW float64
	DrainKW      float64

	mu sync.Mutex
}

// Tick advances the battery by dt and returns the new level in percent.
func (b *Battery) Tick(charging bool, dt time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	hours := dt.Hours()
	if hours > 0 {
		if charging {
			b.Soc += b.ChargeRateKW * hours / b.CapacityKWh
		} else {
			b.Soc -= b.DrainKW * hours / b.CapacityKWh
		}
		if b.Soc < 0 {
			b.Soc = 0
		}
		if b.Soc > 1 {
			b.Soc = 1
		}
	}
	return b.percentLocked()
}

// Percent returns the current level without advancing time.
func (b *Battery) Percent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.percentLocked()
}

func (b *Battery) percentLocked() int {
	return int(math.Round(b.Soc * 100))
}
