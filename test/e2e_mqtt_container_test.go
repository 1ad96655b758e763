package test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/smart-ev/chargectl/app"
	"github.com/smart-ev/chargectl/config"
	"github.com/smart-ev/chargectl/core/controller"
	"github.com/smart-ev/chargectl/core/model"
	"github.com/smart-ev/chargectl/infra/comed"
	"github.com/smart-ev/chargectl/infra/mqtt"
	"github.com/smart-ev/chargectl/test/util"
)

// TestControlLoopWithMQTTContainer drives the assembled service against a
// real Mosquitto broker: a fake vehicle reports its battery, a stub feed
// serves a cheap price, and the vehicle must see exactly one START until the
// battery fills up and a STOP follows.
func TestControlLoopWithMQTTContainer(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	ctx := context.Background()

	broker, cleanup, err := util.StartMosquitto(ctx)
	if err != nil {
		t.Skipf("mosquitto unavailable: %v", err)
	}
	defer cleanup()

	vehicle, err := util.NewFakeVehicle(broker, "VINTEST1")
	if err != nil {
		t.Fatalf("fake vehicle: %v", err)
	}
	defer vehicle.Close()
	if err := vehicle.PublishBattery(45); err != nil {
		t.Fatalf("publish battery: %v", err)
	}

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"millisUTC":"%d","price":"2.5"}]`, time.Now().UnixMilli())
	}))
	defer feed.Close()

	cfg := &config.Config{
		VehicleVIN:          "VINTEST1",
		StartupGraceSeconds: 5,
		Thresholds: model.Thresholds{
			PriceThresholdCents:  3.0,
			MinChargeLevel:       20,
			MaxChargeLevel:       90,
			CheckIntervalSeconds: 1,
		},
		PriceFeed: comed.Config{FeedURL: feed.URL, TimeoutSeconds: 2},
		MQTT:      mqtt.Config{Broker: broker, ClientID: "chargectl-e2e"},
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	svc, err := app.New(cfg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Run(runCtx) }()

	if !vehicle.WaitForCommands(1, 10*time.Second) {
		t.Fatalf("no charge command received")
	}
	if got := vehicle.Commands()[0]; got != "START" {
		t.Fatalf("first command %q, want START", got)
	}

	// several cycles with an unchanged decision must not republish
	time.Sleep(2500 * time.Millisecond)
	if n := len(vehicle.Commands()); n != 1 {
		t.Fatalf("expected a single START, got %d commands", n)
	}

	if err := vehicle.PublishBattery(95); err != nil {
		t.Fatalf("publish battery: %v", err)
	}
	if !vehicle.WaitForCommands(2, 10*time.Second) {
		t.Fatalf("no STOP command after the battery filled")
	}
	if got := vehicle.Commands()[1]; got != "STOP" {
		t.Fatalf("second command %q, want STOP", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("loop error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("loop did not stop")
	}
	if phase := svc.Snapshot().Phase; phase != controller.PhaseStopped {
		t.Fatalf("phase %s, want STOPPED", phase)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
