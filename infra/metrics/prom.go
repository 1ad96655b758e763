package metrics

import (
	coremetrics "github.com/smart-ev/chargectl/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records control loop events in Prometheus metrics.
type PromSink struct {
	cycles    *prometheus.CounterVec
	commands  *prometheus.CounterVec
	price     prometheus.Gauge
	battery   prometheus.Gauge
	fetchErrs prometheus.Counter
	dropped   prometheus.Counter
}

// NewPromSink registers the controller metrics on the default Prometheus
// registerer. The exporter server is started separately.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Metrics
// already present on the registerer are reused, so repeated construction is
// safe.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "control_cycles_total",
		Help: "Control cycles by decision and reason",
	}, []string{"decision", "reason"})
	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "charge_commands_total",
		Help: "Charge commands published, by decision and result",
	}, []string{"decision", "result"})
	price := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "electricity_price_cents",
		Help: "Most recently fetched electricity price in cents per kWh",
	})
	battery := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "battery_level_percent",
		Help: "Most recently reported battery level",
	})
	fetchErrs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "price_fetch_failures_total",
		Help: "Price feed requests that failed",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "battery_messages_dropped_total",
		Help: "Battery payloads dropped as malformed or out of range",
	})

	if err := reg.Register(cycles); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cycles = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(commands); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			commands = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(price); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			price = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(battery); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			battery = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(fetchErrs); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			fetchErrs = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(dropped); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			dropped = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		cycles:    cycles,
		commands:  commands,
		price:     price,
		battery:   battery,
		fetchErrs: fetchErrs,
		dropped:   dropped,
	}, nil
}

// RecordCycle counts the cycle and refreshes the price and battery gauges.
func (s *PromSink) RecordCycle(ev coremetrics.CycleEvent) error {
	s.cycles.WithLabelValues(ev.Decision.String(), ev.Reason).Inc()
	s.price.Set(ev.Price.Cents)
	if ev.BatteryKnown {
		s.battery.Set(float64(ev.Battery.Percent))
	}
	return nil
}

// RecordCommand counts a publish attempt with its outcome.
func (s *PromSink) RecordCommand(ev coremetrics.CommandEvent) error {
	result := "sent"
	if ev.Error != "" {
		result = "error"
	}
	s.commands.WithLabelValues(ev.Decision.String(), result).Inc()
	return nil
}

// RecordBattery refreshes the battery gauge or counts a dropped payload.
func (s *PromSink) RecordBattery(ev coremetrics.BatteryEvent) error {
	if !ev.Valid {
		s.dropped.Inc()
		return nil
	}
	s.battery.Set(float64(ev.Percent))
	return nil
}

// RecordPriceFetch refreshes the price gauge or counts a failed fetch.
func (s *PromSink) RecordPriceFetch(ev coremetrics.PriceFetchEvent) error {
	if ev.Error != "" {
		s.fetchErrs.Inc()
		return nil
	}
	s.price.Set(ev.Cents)
	return nil
}
