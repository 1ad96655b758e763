package metrics

import coremetrics "github.com/smart-ev/chargectl/core/metrics"

// MultiSink fans control loop events out to multiple sinks. Optional
// recorder interfaces are forwarded only to the sinks that implement them.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCycle forwards the event to all sinks, returning the first error.
func (m *MultiSink) RecordCycle(ev coremetrics.CycleEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordCycle(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordCommand forwards command events to capable sinks.
func (m *MultiSink) RecordCommand(ev coremetrics.CommandEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.CommandRecorder); ok {
			if err := rec.RecordCommand(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordBattery forwards battery events to capable sinks.
func (m *MultiSink) RecordBattery(ev coremetrics.BatteryEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.BatteryRecorder); ok {
			if err := rec.RecordBattery(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPriceFetch forwards fetch events to capable sinks.
func (m *MultiSink) RecordPriceFetch(ev coremetrics.PriceFetchEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.PriceFetchRecorder); ok {
			if err := rec.RecordPriceFetch(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
