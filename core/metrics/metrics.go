package metrics

import (
	"time"

	"github.com/smart-ev/chargectl/core/model"
)

// CycleEvent summarizes one control cycle after the decision was made.
type CycleEvent struct {
	Price        model.PriceReading
	Battery      model.BatteryState
	BatteryKnown bool
	Decision     model.ChargeDecision
	Reason       string
	// Changed reports whether the decision differed from the last one
	// published, i.e. whether a command was attempted this cycle.
	Changed bool
	Time    time.Time
}

// MetricsSink records control loop activity for observability purposes.
type MetricsSink interface {
	RecordCycle(ev CycleEvent) error
}

// CommandEvent captures a charge command publish attempt.
type CommandEvent struct {
	Decision model.ChargeDecision
	Reason   string
	// Error is empty when the broker accepted the publish.
	Error string
	Time  time.Time
}

// CommandRecorder records commands sent to the vehicle.
type CommandRecorder interface {
	RecordCommand(ev CommandEvent) error
}

// BatteryEvent captures an inbound battery reading, valid or dropped.
type BatteryEvent struct {
	Percent int
	Valid   bool
	Time    time.Time
}

// BatteryRecorder records readings arriving on the vehicle state topic.
type BatteryRecorder interface {
	RecordBattery(ev BatteryEvent) error
}

// PriceFetchEvent captures the outcome of one price feed request.
type PriceFetchEvent struct {
	Cents    float64
	Error    string
	Duration time.Duration
	Time     time.Time
}

// PriceFetchRecorder records price feed fetches.
type PriceFetchRecorder interface {
	RecordPriceFetch(ev PriceFetchEvent) error
}

// NopSink implements MetricsSink and every optional recorder with no-ops.
type NopSink struct{}

func (NopSink) RecordCycle(CycleEvent) error           { return nil }
func (NopSink) RecordCommand(CommandEvent) error       { return nil }
func (NopSink) RecordBattery(BatteryEvent) error       { return nil }
func (NopSink) RecordPriceFetch(PriceFetchEvent) error { return nil }
