package app

import (
	"context"
	"fmt"
	"time"

	"github.com/smart-ev/chargectl/config"
	"github.com/smart-ev/chargectl/core/battery"
	"github.com/smart-ev/chargectl/core/controller"
	coremetrics "github.com/smart-ev/chargectl/core/metrics"
	coremon "github.com/smart-ev/chargectl/core/monitoring"
	corenotify "github.com/smart-ev/chargectl/core/notify"
	"github.com/smart-ev/chargectl/infra/comed"
	"github.com/smart-ev/chargectl/infra/logger"
	"github.com/smart-ev/chargectl/infra/metrics"
	"github.com/smart-ev/chargectl/infra/monitoring"
	"github.com/smart-ev/chargectl/infra/mqtt"
	"github.com/smart-ev/chargectl/infra/notify"
)

// Service wires the control loop to the price feed, the vehicle topics and
// the configured sinks.
type Service struct {
	loop        *controller.Loop
	client      *mqtt.Client
	log         logger.Logger
	monitor     coremon.Monitor
	promEnabled bool
	promPort    string
}

// New assembles a Service from the configuration. The MQTT connection is
// established here so a bad broker address fails fast.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	monitor, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(monitor)

	sink, err := buildSink(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	var batterySink coremetrics.BatteryRecorder
	if rec, ok := sink.(coremetrics.BatteryRecorder); ok {
		batterySink = rec
	}
	tracker := battery.NewTracker(logger.New("battery"), batterySink)

	client, err := mqtt.Connect(cfg.MQTT, cfg.VehicleVIN, tracker.HandleMessage)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}

	var notifier corenotify.Notifier = corenotify.Nop{}
	if !cfg.Notification.Empty() {
		notifier = notify.NewSMSNotifier(cfg.Notification)
	}

	loop := controller.New(
		controller.Config{Thresholds: cfg.Thresholds, StartupGrace: cfg.StartupGrace()},
		comed.NewClient(cfg.PriceFeed),
		tracker,
		client,
		notifier,
		logger.New("controller"),
		sink,
	)

	logg.Infof("smart charging controller configured: threshold %.2f¢/kWh, battery band %d%%-%d%%, interval %ds, vehicle %s",
		cfg.Thresholds.PriceThresholdCents, cfg.Thresholds.MinChargeLevel, cfg.Thresholds.MaxChargeLevel,
		cfg.Thresholds.CheckIntervalSeconds, cfg.VehicleVIN)

	return &Service{
		loop:        loop,
		client:      client,
		log:         logg,
		monitor:     monitor,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}, nil
}

// buildSink assembles the metrics pipeline for the enabled backends. With
// none enabled the controller records into a NopSink.
func buildSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	var sinks []coremetrics.MetricsSink
	if cfg.PrometheusEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg))
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return metrics.NewMultiSink(sinks...), nil
	}
}

// Run starts the control loop and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	return s.loop.Run(ctx)
}

// Snapshot exposes the loop state for diagnostics.
func (s *Service) Snapshot() controller.Snapshot {
	return s.loop.Snapshot()
}

// Close releases the MQTT connection and drains pending error reports.
func (s *Service) Close() error {
	s.client.Disconnect()
	s.monitor.Flush(2 * time.Second)
	return nil
}
