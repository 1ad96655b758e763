package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smart-ev/chargectl/core/decision"
	"github.com/smart-ev/chargectl/core/logger"
	"github.com/smart-ev/chargectl/core/metrics"
	"github.com/smart-ev/chargectl/core/model"
	coremqtt "github.com/smart-ev/chargectl/core/mqtt"
	"github.com/smart-ev/chargectl/core/notify"
	"github.com/smart-ev/chargectl/core/pricing"
)

// BatterySource exposes the most recent battery reading.
type BatterySource interface {
	Current() (model.BatteryState, bool)
	Age(now time.Time) (time.Duration, bool)
}

// Config holds the loop parameters.
type Config struct {
	Thresholds model.Thresholds
	// StartupGrace bounds how long the loop waits for the first battery
	// reading before starting to cycle anyway.
	StartupGrace time.Duration
}

// Loop drives the periodic control cycle: fetch price, read battery, decide,
// publish on change, notify. Cycles are isolated; any failure inside one is
// logged and the loop waits for the next tick.
type Loop struct {
	cfg      Config
	prices   pricing.Source
	battery  BatterySource
	commands coremqtt.CommandPublisher
	notifier notify.Notifier
	state    *State
	log      logger.Logger
	sink     metrics.MetricsSink
}

// New assembles a Loop. notifier and sink may be nil.
func New(cfg Config, prices pricing.Source, battery BatterySource, commands coremqtt.CommandPublisher, notifier notify.Notifier, log logger.Logger, sink metrics.MetricsSink) *Loop {
	if cfg.StartupGrace <= 0 {
		cfg.StartupGrace = 10 * time.Second
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Loop{
		cfg:      cfg,
		prices:   prices,
		battery:  battery,
		commands: commands,
		notifier: notifier,
		state:    NewState(),
		log:      log,
		sink:     sink,
	}
}

// Snapshot exposes the loop state for diagnostics and tests.
func (l *Loop) Snapshot() Snapshot {
	return l.state.Snapshot()
}

// Run executes the control loop until ctx is canceled, then returns nil.
// Startup has no failure mode: a missing first battery reading only forces
// STOP decisions until one arrives.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Infof("control loop starting, cycle interval %s", l.cfg.Thresholds.CheckInterval())
	l.awaitFirstReading(ctx)
	if ctx.Err() != nil {
		l.shutdown()
		return nil
	}

	l.state.setPhase(PhaseRunning)
	ticker := time.NewTicker(l.cfg.Thresholds.CheckInterval())
	defer ticker.Stop()

	l.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return nil
		case <-ticker.C:
			l.runCycle(ctx)
			// a tick that fired while the cycle ran is dropped, not queued
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

func (l *Loop) shutdown() {
	l.state.setPhase(PhaseShuttingDown)
	l.log.Infof("control loop stopped")
	l.state.setPhase(PhaseStopped)
}

// awaitFirstReading polls the battery source until a reading lands, the grace
// period expires or ctx is canceled.
func (l *Loop) awaitFirstReading(ctx context.Context) {
	if _, ok := l.battery.Current(); ok {
		return
	}
	deadline := time.NewTimer(l.cfg.StartupGrace)
	defer deadline.Stop()
	probe := time.NewTicker(100 * time.Millisecond)
	defer probe.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			l.log.Warnf("no battery reading within %s, starting anyway", l.cfg.StartupGrace)
			return
		case <-probe.C:
			if _, ok := l.battery.Current(); ok {
				return
			}
		}
	}
}

// runCycle performs one full fetch-decide-publish pass.
func (l *Loop) runCycle(ctx context.Context) {
	started := time.Now()
	price, err := l.prices.Fetch(ctx)
	fetchTook := time.Since(started)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.log.Errorf("price fetch failed, skipping cycle: %v", err)
		l.recordPriceFetch(price, fetchTook, err)
		return
	}
	l.recordPriceFetch(price, fetchTook, nil)

	batt, known := l.battery.Current()
	l.state.recordBattery(batt, known)

	dec, reason := decision.Decide(price, batt, known, l.cfg.Thresholds)
	l.logCycle(price, batt, known, dec, reason)

	changed := dec != l.state.LastDecision()
	defer l.recordCycle(price, batt, known, dec, reason, changed)
	if !changed {
		return
	}

	if err := l.commands.PublishChargeCommand(ctx, dec); err != nil {
		if ctx.Err() != nil {
			return
		}
		// the last published decision stays as is, so the next cycle sees
		// the same change and retries
		l.log.Errorf("publish %s failed: %v", dec, err)
		l.recordCommand(dec, reason, err)
		return
	}
	l.recordCommand(dec, reason, nil)
	l.state.recordDecision(dec)
	l.log.Infof("published charge command %s (%s)", dec, reason)
	l.notifier.Notify(notification(dec, reason, price, batt, known))
}

func (l *Loop) logCycle(price model.PriceReading, batt model.BatteryState, known bool, dec model.ChargeDecision, reason decision.Reason) {
	battText := "unknown"
	if known {
		battText = fmt.Sprintf("%d%%", batt.Percent)
	}
	l.log.Infof("price %.2f¢/kWh (%s), battery %s, decision %s (%s)", price.Cents, price.Tier(), battText, dec, reason)

	fields := map[string]any{
		"price_cents": price.Cents,
		"tier":        price.Tier().String(),
		"decision":    dec.String(),
		"reason":      reason.String(),
	}
	if known {
		fields["battery_percent"] = batt.Percent
		if age, ok := l.battery.Age(time.Now()); ok {
			fields["battery_age"] = age.Round(time.Second).String()
		}
	}
	l.log.Debugw("cycle evaluated", fields)
}

func (l *Loop) recordCycle(price model.PriceReading, batt model.BatteryState, known bool, dec model.ChargeDecision, reason decision.Reason, changed bool) {
	if err := l.sink.RecordCycle(metrics.CycleEvent{
		Price:        price,
		Battery:      batt,
		BatteryKnown: known,
		Decision:     dec,
		Reason:       reason.String(),
		Changed:      changed,
		Time:         time.Now(),
	}); err != nil {
		l.log.Warnf("record cycle: %v", err)
	}
}

func (l *Loop) recordCommand(dec model.ChargeDecision, reason decision.Reason, cause error) {
	rec, ok := l.sink.(metrics.CommandRecorder)
	if !ok {
		return
	}
	ev := metrics.CommandEvent{Decision: dec, Reason: reason.String(), Time: time.Now()}
	if cause != nil {
		ev.Error = cause.Error()
	}
	if err := rec.RecordCommand(ev); err != nil {
		l.log.Warnf("record command: %v", err)
	}
}

func (l *Loop) recordPriceFetch(price model.PriceReading, took time.Duration, cause error) {
	rec, ok := l.sink.(metrics.PriceFetchRecorder)
	if !ok {
		return
	}
	ev := metrics.PriceFetchEvent{Cents: price.Cents, Duration: took, Time: time.Now()}
	if cause != nil {
		ev.Error = cause.Error()
	}
	if err := rec.RecordPriceFetch(ev); err != nil {
		l.log.Warnf("record price fetch: %v", err)
	}
}

// notification builds the alert body sent after a successful command.
func notification(dec model.ChargeDecision, reason decision.Reason, price model.PriceReading, batt model.BatteryState, known bool) string {
	var b strings.Builder
	if dec == model.DecisionStart {
		b.WriteString("Charging STARTED")
	} else {
		b.WriteString("Charging STOPPED")
	}
	fmt.Fprintf(&b, " (%s)\nPrice: %.2f¢/kWh (%s)", reason, price.Cents, price.Tier())
	if known {
		fmt.Fprintf(&b, "\nBattery: %d%%", batt.Percent)
	} else {
		b.WriteString("\nBattery: unknown")
	}
	return b.String()
}
