// Package mqttclient wraps the TLS/MQTT session: pinned root CA,
// username/password auth, a fixed client ID, subscribe/publish topics,
// and the 5s reconnect cadence. Built on github.com/eclipse/paho.mqtt.golang.
package mqttclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// ReconnectInterval bounds how often a reconnect is attempted: at most
// once every 5s.
const ReconnectInterval = 5 * time.Second

// QoS policy: telemetry is best-effort, alerts need delivery confirmation
// before rb_happened is cleared.
const (
	telemetryQoS byte = 0
	alertQoS     byte = 1
)

// Config holds the static connection parameters (from daemon.Config).
type Config struct {
	BrokerURL  string // e.g. "tls://broker.example.com:8883"
	CACertPath string // pinned root CA, PEM
	Username   string
	Password   string
	DeviceID   string

	// TimeFunc, when set, is used by the TLS handshake in place of the
	// system clock for certificate-validity checks. infra/timesync
	// supplies an NTP-corrected clock here since a freshly booted device
	// cannot trust its own wall clock yet.
	TimeFunc func() time.Time
}

// Client wraps a paho client with the node's topic layout.
type Client struct {
	cfg    Config
	client mqtt.Client
	log    *logrus.Entry
}

// CommandHandler is invoked with the raw payload of a commands-topic
// message.
type CommandHandler func(payload []byte)

// New builds (but does not connect) an MQTT client configured with a
// pinned root CA and the device's credentials.
func New(cfg Config, onCommand CommandHandler, onConnect func(), onLost func(error), log *logrus.Logger) (*Client, error) {
	tlsConfig, err := buildTLSConfig(cfg.CACertPath)
	if err != nil {
		return nil, fmt.Errorf("build tls config: %w", err)
	}
	if cfg.TimeFunc != nil {
		tlsConfig.Time = cfg.TimeFunc
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.DeviceID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetTLSConfig(tlsConfig)
	opts.SetAutoReconnect(false) // reconnect is driven explicitly by the connectivity task
	opts.SetConnectTimeout(10 * time.Second)

	c := &Client{cfg: cfg, log: log.WithField("task", "mqtt")}

	opts.SetOnConnectHandler(func(cl mqtt.Client) {
		topic := commandsTopic(cfg.DeviceID)
		if token := cl.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			onCommand(msg.Payload())
		}); token.Wait() && token.Error() != nil {
			c.log.WithError(token.Error()).Error("subscribe to commands topic failed")
		}
		if onConnect != nil {
			onConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.WithError(err).Warn("mqtt connection lost")
		if onLost != nil {
			onLost(err)
		}
	})

	c.client = mqtt.NewClient(opts)
	return c, nil
}

func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	pem, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("read pinned ca cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("parse pinned ca cert: invalid PEM")
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// Connect attempts a single, non-blocking-to-other-tasks connection. The
// caller (infra/wifi) is responsible for the 5s reconnect cadence.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return nil
}

// IsConnected reports the current session state.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Disconnect cleanly closes the session.
func (c *Client) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}

// PublishTelemetry publishes to the data topic at QoS 0 (best-effort).
func (c *Client) PublishTelemetry(payload []byte) error {
	return c.publish(dataTopic(c.cfg.DeviceID), telemetryQoS, payload)
}

// PublishAlert publishes to the alerts topic at QoS 1 and blocks until the
// broker acknowledges — the caller uses the returned error to decide
// whether rb_happened may be cleared.
func (c *Client) PublishAlert(payload []byte) error {
	return c.publish(alertsTopic(c.cfg.DeviceID), alertQoS, payload)
}

func (c *Client) publish(topic string, qos byte, payload []byte) error {
	if !c.IsConnected() {
		return fmt.Errorf("publish to %s: not connected", topic)
	}
	token := c.client.Publish(topic, qos, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func commandsTopic(deviceID string) string { return fmt.Sprintf("greenhouse/%s/commands", deviceID) }
func dataTopic(deviceID string) string     { return fmt.Sprintf("greenhouse/%s/data", deviceID) }
func alertsTopic(deviceID string) string   { return fmt.Sprintf("greenhouse/%s/alerts", deviceID) }
