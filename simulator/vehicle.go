package main

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/smart-ev/chargectl/infra/mqtt"
)

// SimulatedVehicle reports its battery level on the state topic and obeys
// START/STOP commands arriving on the command topic.
type SimulatedVehicle struct {
	VIN      string
	Broker   string
	Interval time.Duration
	Battery  *Battery

	client   paho.Client
	mu       sync.Mutex
	charging bool
}

// Run connects to the broker and simulates the vehicle until ctx is done.
func (v *SimulatedVehicle) Run(ctx context.Context) error {
	cli, err := newMQTTClient(v.Broker, "sim-"+v.VIN)
	if err != nil {
		return err
	}
	v.client = cli
	if token := cli.Subscribe(mqtt.CommandTopic(v.VIN), 1, v.onCommand); token.Wait() && token.Error() != nil {
		cli.Disconnect(250)
		return token.Error()
	}

	v.report(v.Battery.Percent())
	ticker := time.NewTicker(v.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			v.report(v.Battery.Tick(v.isCharging(), v.Interval))
		case <-ctx.Done():
			cli.Disconnect(250)
			return nil
		}
	}
}

func (v *SimulatedVehicle) onCommand(_ paho.Client, msg paho.Message) {
	cmd := string(msg.Payload())
	switch cmd {
	case "START":
		v.setCharging(true)
	case "STOP":
		v.setCharging(false)
	default:
		log.Printf("%s: unknown command %q", v.VIN, cmd)
		return
	}
	log.Printf("%s: charger %s at %d%%", v.VIN, cmd, v.Battery.Percent())
}

func (v *SimulatedVehicle) isCharging() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.charging
}

func (v *SimulatedVehicle) setCharging(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.charging = on
}

// report publishes the battery level retained so the controller sees the
// last reading even when it connects later.
func (v *SimulatedVehicle) report(percent int) {
	token := v.client.Publish(mqtt.StateTopic(v.VIN), 1, true, strconv.Itoa(percent))
	token.Wait()
	if err := token.Error(); err != nil {
		log.Printf("%s: report: %v", v.VIN, err)
	}
}
