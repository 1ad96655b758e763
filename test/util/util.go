// Package util provides helper functions shared across integration tests.
//
// StartMosquitto launches a disposable Mosquitto broker in a Docker container
// for MQTT-based tests. It returns the broker URL and a cleanup function.
//
// FakeVehicle impersonates the car side of the exchange: it reports battery
// levels on the state topic and records the charge commands it receives.
package util

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/smart-ev/chargectl/infra/mqtt"
)

const (
	MosquittoReadyTimeout = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

// StartMosquitto launches a temporary Mosquitto broker inside a Docker
// container and returns its broker URL along with a cleanup function.
func StartMosquitto(ctx context.Context) (string, func(), error) {
	conf := `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
log_type notice
log_type information
connection_messages true
log_timestamp true
`

	dir, err := os.MkdirTemp("", "mosq")
	if err != nil {
		return "", nil, err
	}
	path := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{
			{
				HostFilePath:      path,
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0644,
			},
		},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}

	cleanup := func() {
		_ = cont.Terminate(context.Background())
		_ = os.RemoveAll(dir)
	}

	host, err := cont.Host(ctx)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	port, err := cont.MappedPort(ctx, "1883")
	if err != nil {
		cleanup()
		return "", nil, err
	}
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())

	waitCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	if err := waitForMQTTReady(waitCtx, broker); err != nil {
		cleanup()
		return "", nil, err
	}

	return broker, cleanup, nil
}

func waitForMQTTReady(ctx context.Context, broker string) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("probe")
	for {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// FakeVehicle connects to the broker, listens on its command topic and
// reports battery levels on its state topic.
type FakeVehicle struct {
	vin string
	cli paho.Client

	mu       sync.Mutex
	commands []string
}

func NewFakeVehicle(broker, vin string) (*FakeVehicle, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("vehicle-" + vin)
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	v := &FakeVehicle{vin: vin, cli: cli}
	if token := cli.Subscribe(mqtt.CommandTopic(vin), 1, func(_ paho.Client, m paho.Message) {
		v.mu.Lock()
		v.commands = append(v.commands, string(m.Payload()))
		v.mu.Unlock()
	}); token.Wait() && token.Error() != nil {
		cli.Disconnect(100)
		return nil, token.Error()
	}
	return v, nil
}

// PublishBattery reports a battery level, retained so a controller that
// connects later still sees it.
func (v *FakeVehicle) PublishBattery(percent int) error {
	token := v.cli.Publish(mqtt.StateTopic(v.vin), 1, true, strconv.Itoa(percent))
	token.Wait()
	return token.Error()
}

// Commands returns a copy of the charge commands received so far.
func (v *FakeVehicle) Commands() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, len(v.commands))
	copy(out, v.commands)
	return out
}

// WaitForCommands blocks until at least n commands arrived or the timeout
// elapsed. It reports whether the count was reached.
func (v *FakeVehicle) WaitForCommands(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(v.Commands()) >= n {
			return true
		}
		time.Sleep(pollInterval)
	}
	return len(v.Commands()) >= n
}

// Close disconnects the vehicle from the broker.
func (v *FakeVehicle) Close() { v.cli.Disconnect(100) }
