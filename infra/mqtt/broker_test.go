package mqtt

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	mqttv2 "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/stretchr/testify/require"

	"github.com/smart-ev/chargectl/core/model"
)

// startBroker runs an in-process MQTT broker on a free localhost port.
func startBroker(t *testing.T) (*mqttv2.Server, string) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	server := mqttv2.New(&mqttv2.Options{InlineClient: true})
	require.NoError(t, server.AddHook(new(auth.AllowHook), nil))
	require.NoError(t, server.AddListener(listeners.NewTCP(listeners.Config{ID: "t1", Address: addr})))
	require.NoError(t, server.Serve())
	t.Cleanup(func() { _ = server.Close() })
	return server, "tcp://" + addr
}

func TestClientBrokerRoundTrip(t *testing.T) {
	server, broker := startBroker(t)

	var mu sync.Mutex
	var payloads []string
	cli, err := Connect(Config{Broker: broker, ClientID: "roundtrip", PublishTimeoutSeconds: 2}, "VIN123", func(p []byte) {
		mu.Lock()
		payloads = append(payloads, string(p))
		mu.Unlock()
	})
	require.NoError(t, err)
	defer cli.Disconnect()

	got := make(chan string, 1)
	require.NoError(t, server.Subscribe(CommandTopic("VIN123"), 1, func(_ *mqttv2.Client, _ packets.Subscription, pk packets.Packet) {
		select {
		case got <- string(pk.Payload):
		default:
		}
	}))

	require.NoError(t, cli.PublishChargeCommand(context.Background(), model.DecisionStart))
	select {
	case payload := <-got:
		require.Equal(t, "START", payload)
	case <-time.After(2 * time.Second):
		t.Fatal("command not delivered to the broker")
	}

	require.NoError(t, server.Publish(StateTopic("VIN123"), []byte("72"), false, 1))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(payloads) == 1 && payloads[0] == "72"
	}, 2*time.Second, 20*time.Millisecond, "state payload not delivered")
}

func TestClientIgnoresOtherVehicles(t *testing.T) {
	server, broker := startBroker(t)

	var mu sync.Mutex
	var payloads []string
	cli, err := Connect(Config{Broker: broker, ClientID: "filter", PublishTimeoutSeconds: 2}, "VIN123", func(p []byte) {
		mu.Lock()
		payloads = append(payloads, string(p))
		mu.Unlock()
	})
	require.NoError(t, err)
	defer cli.Disconnect()

	require.NoError(t, server.Publish(StateTopic("OTHERVIN"), []byte("10"), false, 1))
	require.NoError(t, server.Publish(StateTopic("VIN123"), []byte("72"), false, 1))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(payloads) == 1 && payloads[0] == "72"
	}, 2*time.Second, 20*time.Millisecond, "expected only the subscribed vehicle's payload")
}
