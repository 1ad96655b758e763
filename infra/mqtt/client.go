package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremon "github.com/smart-ev/chargectl/core/monitoring"
	coremqtt "github.com/smart-ev/chargectl/core/mqtt"
	"github.com/smart-ev/chargectl/core/model"
	"github.com/smart-ev/chargectl/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string          `json:"broker"`
	ClientID   string          `json:"client_id"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	UseTLS     bool            `json:"use_tls"`
	ClientCert string          `json:"client_cert"`
	ClientKey  string          `json:"client_key"`
	CABundle   string          `json:"ca_bundle"`
	// QoS maps the logical topics "state" and "command" to QoS levels.
	QoS        map[string]byte `json:"qos"`
	LWTTopic   string          `json:"lwt_topic"`
	LWTPayload string          `json:"lwt_payload"`
	LWTQoS     byte            `json:"lwt_qos"`
	LWTRetain  bool            `json:"lwt_retain"`
	// PublishTimeoutSeconds bounds how long a charge command waits for the
	// broker before the cycle gives up.
	PublishTimeoutSeconds int         `json:"publish_timeout_seconds"`
	TLSConfig             *tls.Config `json:"-"`
}

// SetDefaults fills a random client identifier and the publish timeout.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "chargectl-" + uuid.NewString()
	}
	if c.PublishTimeoutSeconds == 0 {
		c.PublishTimeoutSeconds = 5
	}
}

// Validate checks the connection parameters.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	if c.PublishTimeoutSeconds < 0 {
		return fmt.Errorf("publish_timeout_seconds must not be negative, got %d", c.PublishTimeoutSeconds)
	}
	return nil
}

// StateHandler consumes raw battery payloads from the vehicle state topic.
type StateHandler func(payload []byte)

// pahoClient is the subset of the Paho API the adapter uses. Tests swap the
// constructor to inject a mock.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Client owns the broker connection. It keeps the vehicle state subscription
// alive across reconnects via the OnConnect hook and publishes charge
// commands with a bounded wait.
type Client struct {
	cli            pahoClient
	stateTopic     string
	commandTopic   string
	qos            map[string]byte
	publishTimeout time.Duration
	onState        StateHandler
	logger         logger.Logger
}

var _ coremqtt.CommandPublisher = (*Client)(nil)

// Connect dials the broker and subscribes to the vehicle's battery state
// topic. Paho re-runs the OnConnect hook after every reconnect, which
// restores the subscription without any bookkeeping here.
func Connect(cfg Config, vin string, onState StateHandler) (*Client, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	timeout := time.Duration(cfg.PublishTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		stateTopic:     StateTopic(vin),
		commandTopic:   CommandTopic(vin),
		qos:            cfg.QoS,
		publishTimeout: timeout,
		onState:        onState,
		logger:         log,
	}

	opts.OnConnect = func(pc paho.Client) {
		log.Infof("MQTT connected")
		if c.onState == nil {
			return
		}
		if token := pc.Subscribe(c.stateTopic, c.qosFor("state"), c.onStateMessage); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe %s: %v", c.stateTopic, token.Error())
		} else {
			log.Infof("subscribed to %s", c.stateTopic)
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, token.Error())
	}
	c.cli = cli
	return c, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (c *Client) qosFor(kind string) byte {
	if q, ok := c.qos[kind]; ok {
		return q
	}
	return 1
}

// onStateMessage forwards the raw payload to the handler. Payload parsing and
// validation live with the handler; a panic there must not kill the Paho
// router goroutine.
func (c *Client) onStateMessage(_ paho.Client, msg paho.Message) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("state handler panic: %v", r)
			c.logger.Errorf("%v", err)
			coremon.CaptureException(err, map[string]string{"module": "mqtt", "topic": c.stateTopic})
		}
	}()
	c.onState(msg.Payload())
}

// PublishChargeCommand sends START or STOP on the vehicle's command topic and
// waits for the broker to accept it, bounded by the publish timeout and ctx.
// There is no retry here: the control loop keeps its state on failure and
// retries the change on its next cycle.
func (c *Client) PublishChargeCommand(ctx context.Context, decision model.ChargeDecision) error {
	if decision != model.DecisionStart && decision != model.DecisionStop {
		return fmt.Errorf("decision %s is not publishable", decision)
	}
	if !c.cli.IsConnected() {
		return fmt.Errorf("%w: dropping %s", coremqtt.ErrNotConnected, decision)
	}

	token := c.cli.Publish(c.commandTopic, c.qosFor("command"), false, []byte(decision.String()))
	timer := time.NewTimer(c.publishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			coremon.CaptureException(err, map[string]string{"module": "mqtt", "topic": c.commandTopic})
			return fmt.Errorf("publish %s: %w", decision, err)
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: %s not confirmed after %s", coremqtt.ErrPublishTimeout, decision, c.publishTimeout)
	}

	c.logger.Infof("published %s to %s", decision, c.commandTopic)
	return nil
}

// Disconnect gracefully closes the MQTT connection.
func (c *Client) Disconnect() {
	if c.cli != nil && c.cli.IsConnected() {
		c.cli.Disconnect(250)
	}
}
