package scenarios

import (
	"testing"
	"time"

	"github.com/smart-ev/chargectl/core/decision"
	"github.com/smart-ev/chargectl/core/model"
)

// RunScenario feeds the scenario through the decision rules and checks the
// expected outcome.
func RunScenario(t *testing.T, sc *Scenario) {
	now := time.Now()
	price := model.PriceReading{Cents: sc.PriceCents, ObservedAt: now}
	var batt model.BatteryState
	known := sc.BatteryPercent != nil
	if known {
		batt = model.BatteryState{Percent: *sc.BatteryPercent, ObservedAt: now}
	}

	dec, reason := decision.Decide(price, batt, known, sc.Thresholds.ToModel())
	if dec.String() != sc.Expected.Decision {
		t.Fatalf("decision %s, want %s", dec, sc.Expected.Decision)
	}
	if sc.Expected.Reason != "" && reason.String() != sc.Expected.Reason {
		t.Fatalf("reason %q, want %q", reason, sc.Expected.Reason)
	}
}
