package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremqtt "github.com/smart-ev/chargectl/core/mqtt"
	"github.com/smart-ev/chargectl/core/model"
	"github.com/smart-ev/chargectl/infra/logger"
)

// helper to generate a self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0644); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(caFile, certPEM, 0644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
}

func TestLoadTLSConfigMissingFiles(t *testing.T) {
	cfg := Config{UseTLS: true}
	if _, err := cfg.LoadTLSConfig(); err == nil {
		t.Fatalf("expected error for missing cert paths")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

func withMockClient(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

func TestConnectSubscribesToStateTopic(t *testing.T) {
	mc := newMockClient()
	withMockClient(t, mc)

	cli, err := Connect(Config{Broker: "tcp://localhost:1883", ClientID: "id"}, "VIN123", func([]byte) {})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer cli.Disconnect()

	subs := mc.subs()
	if len(subs) != 1 {
		t.Fatalf("expected one subscription, got %d", len(subs))
	}
	if subs[0].topic != StateTopic("VIN123") {
		t.Fatalf("subscribed to %s", subs[0].topic)
	}
	if subs[0].qos != 1 {
		t.Fatalf("expected default qos 1, got %d", subs[0].qos)
	}
}

func TestConnectWithoutHandlerSkipsSubscription(t *testing.T) {
	mc := newMockClient()
	withMockClient(t, mc)

	cli, err := Connect(Config{Broker: "tcp://localhost:1883", ClientID: "id"}, "VIN123", nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer cli.Disconnect()
	if len(mc.subs()) != 0 {
		t.Fatalf("expected no subscription without a handler")
	}
}

func TestQoSSettings(t *testing.T) {
	mc := newMockClient()
	withMockClient(t, mc)

	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", QoS: map[string]byte{"state": 0, "command": 2}}
	cli, err := Connect(cfg, "VIN123", func([]byte) {})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if subs := mc.subs(); subs[0].qos != 0 {
		t.Fatalf("subscribe qos not applied, got %d", subs[0].qos)
	}

	if err := cli.PublishChargeCommand(context.Background(), model.DecisionStart); err != nil {
		t.Fatalf("publish: %v", err)
	}
	pubs := mc.pubs()
	if len(pubs) != 1 || pubs[0].qos != 2 {
		t.Fatalf("publish qos not applied: %+v", pubs)
	}
}

func TestPublishChargeCommandPayload(t *testing.T) {
	mc := newMockClient()
	withMockClient(t, mc)

	cli, err := Connect(Config{Broker: "tcp://localhost:1883", ClientID: "id"}, "VIN123", func([]byte) {})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx := context.Background()
	if err := cli.PublishChargeCommand(ctx, model.DecisionStart); err != nil {
		t.Fatalf("publish start: %v", err)
	}
	if err := cli.PublishChargeCommand(ctx, model.DecisionStop); err != nil {
		t.Fatalf("publish stop: %v", err)
	}

	pubs := mc.pubs()
	if len(pubs) != 2 {
		t.Fatalf("expected two publishes, got %d", len(pubs))
	}
	for i, want := range []string{"START", "STOP"} {
		if pubs[i].topic != CommandTopic("VIN123") {
			t.Fatalf("published to %s", pubs[i].topic)
		}
		if pubs[i].payload != want {
			t.Fatalf("payload %d = %q, want %q", i, pubs[i].payload, want)
		}
		if pubs[i].retained {
			t.Fatalf("commands must not be retained")
		}
	}
}

func TestPublishRejectsUnknownDecision(t *testing.T) {
	cli := &Client{cli: newMockClient(), commandTopic: CommandTopic("VIN123"), publishTimeout: time.Second, logger: logger.NopLogger{}}
	if err := cli.PublishChargeCommand(context.Background(), model.DecisionUnknown); err == nil {
		t.Fatalf("expected error for UNKNOWN decision")
	}
}

func TestPublishWhenDisconnected(t *testing.T) {
	mc := newMockClient()
	mc.connected = false
	cli := &Client{cli: mc, commandTopic: CommandTopic("VIN123"), publishTimeout: time.Second, logger: logger.NopLogger{}}

	err := cli.PublishChargeCommand(context.Background(), model.DecisionStop)
	if !errors.Is(err, coremqtt.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if len(mc.pubs()) != 0 {
		t.Fatalf("must not publish while disconnected")
	}
}

func TestPublishTimeout(t *testing.T) {
	mc := newMockClient()
	mc.pendingTokens = true
	cli := &Client{cli: mc, commandTopic: CommandTopic("VIN123"), publishTimeout: 20 * time.Millisecond, logger: logger.NopLogger{}}

	err := cli.PublishChargeCommand(context.Background(), model.DecisionStart)
	if !errors.Is(err, coremqtt.ErrPublishTimeout) {
		t.Fatalf("expected ErrPublishTimeout, got %v", err)
	}
}

func TestPublishContextCanceled(t *testing.T) {
	mc := newMockClient()
	mc.pendingTokens = true
	cli := &Client{cli: mc, commandTopic: CommandTopic("VIN123"), publishTimeout: time.Second, logger: logger.NopLogger{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := cli.PublishChargeCommand(ctx, model.DecisionStart)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStateMessageDispatch(t *testing.T) {
	mc := newMockClient()
	withMockClient(t, mc)

	var mu sync.Mutex
	var payloads []string
	cli, err := Connect(Config{Broker: "tcp://localhost:1883", ClientID: "id"}, "VIN123", func(p []byte) {
		mu.Lock()
		payloads = append(payloads, string(p))
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	cli.onStateMessage(nil, mockMessage{[]byte("55")})
	mu.Lock()
	defer mu.Unlock()
	if len(payloads) != 1 || payloads[0] != "55" {
		t.Fatalf("handler got %v", payloads)
	}
}

func TestStateHandlerPanicIsContained(t *testing.T) {
	mc := newMockClient()
	withMockClient(t, mc)

	cli, err := Connect(Config{Broker: "tcp://localhost:1883", ClientID: "id"}, "VIN123", func([]byte) {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	// must not panic through
	cli.onStateMessage(nil, mockMessage{[]byte("55")})
}

func TestLWTConfigured(t *testing.T) {
	mc := newMockClient()
	withMockClient(t, mc)

	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	cli, err := Connect(cfg, "VIN123", nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "lwt" || string(mc.opts.WillPayload) != "bye" {
		t.Fatalf("will options incorrect")
	}
	cli.Disconnect()
	if len(mc.pubs()) != 0 {
		t.Fatalf("unexpected publish on disconnect")
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if cfg.ClientID == "" {
		t.Fatalf("expected a generated client id")
	}
	if cfg.PublishTimeoutSeconds != 5 {
		t.Fatalf("expected publish timeout default 5, got %d", cfg.PublishTimeoutSeconds)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error without a broker")
	}
	cfg.Broker = "tcp://localhost:1883"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

// mockClient implements pahoClient for tests
type mockClient struct {
	mu   sync.Mutex
	opts *paho.ClientOptions

	connected     bool
	pendingTokens bool

	subscribed []subscription
	published  []publication

	publishErrs []error
}

type subscription struct {
	topic   string
	qos     byte
	handler paho.MessageHandler
}

type publication struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

func newMockClient() *mockClient {
	return &mockClient{connected: true}
}

func (m *mockClient) subs() []subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]subscription(nil), m.subscribed...)
}

func (m *mockClient) pubs() []publication {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publication(nil), m.published...)
}

func (m *mockClient) IsConnected() bool { return m.connected }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	var text string
	switch p := payload.(type) {
	case []byte:
		text = string(p)
	case string:
		text = p
	}
	m.published = append(m.published, publication{topic, qos, retained, text})
	if m.pendingTokens {
		return &dummyToken{pending: true}
	}
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed = append(m.subscribed, subscription{topic, qos, callback})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return m.connected }

type dummyToken struct {
	err     error
	pending bool
}

func (d dummyToken) Wait() bool                     { return !d.pending }
func (d dummyToken) WaitTimeout(time.Duration) bool { return !d.pending }
func (d dummyToken) Done() <-chan struct{} {
	if d.pending {
		return make(chan struct{})
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (d dummyToken) Error() error { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
