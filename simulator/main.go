package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg := parseFlags()
	applyBatteryProfile(&cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if !cfg.Verbose {
		log.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := &Battery{
		CapacityKWh:  cfg.CapacityKWh,
		Soc:          float64(cfg.InitialPercent) / 100,
		ChargeRateKW: cfg.ChargeRateKW,
		DrainKW:      cfg.DrainKW,
	}
	v := &SimulatedVehicle{
		VIN:      cfg.VIN,
		Broker:   cfg.Broker,
		Interval: cfg.Interval,
		Battery:  b,
	}
	log.Printf("simulating %s on %s from %d%%", cfg.VIN, cfg.Broker, b.Percent())
	if err := v.Run(ctx); err != nil {
		log.Fatalf("%s: %v", cfg.VIN, err)
	}
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.StringVar(&cfg.VIN, "vin", "SIMEV0001", "vehicle identification number")
	flag.IntVar(&cfg.InitialPercent, "percent", 50, "initial battery level")
	flag.Float64Var(&cfg.CapacityKWh, "capacity", 60, "battery capacity kWh")
	flag.Float64Var(&cfg.ChargeRateKW, "charge-rate", 7, "charge rate kW")
	flag.Float64Var(&cfg.DrainKW, "drain", 0.3, "passive drain kW while not charging")
	flag.DurationVar(&cfg.Interval, "interval", 30*time.Second, "battery publish interval")
	flag.StringVar(&cfg.BatteryProfile, "battery-profile", "", "predefined battery profile (small,medium,large)")
	flag.BoolVar(&cfg.Verbose, "verbose", true, "enable logging")
	flag.Parse()
	return cfg
}

func applyBatteryProfile(cfg *Config) {
	switch cfg.BatteryProfile {
	case "small":
		cfg.CapacityKWh = 30
		cfg.ChargeRateKW = 3.6
	case "medium":
		cfg.CapacityKWh = 60
		cfg.ChargeRateKW = 7
	case "large":
		cfg.CapacityKWh = 100
		cfg.ChargeRateKW = 11
	case "":
	default:
		log.Printf("unknown battery profile %s", cfg.BatteryProfile)
	}
}
