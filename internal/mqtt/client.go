// Package mqtt mirrors station telemetry to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"tempstation/internal/config"
	"tempstation/internal/station"
)

const (
	publishTimeout = 5 * time.Second
	qos            = 1
)

type Client struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool
	stationID int
	topics    Topics

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Presence is the retained document on the status topic. The broker
// publishes the offline variant as the client's will.
type Presence struct {
	StationID  int       `json:"station_id"`
	HardwareID string    `json:"hardware_id"`
	Online     bool      `json:"online"`
	Board      string    `json:"board,omitempty"`
	Since      time.Time `json:"since,omitempty"`
}

const defaultPrefix = "stations"

type Topics struct {
	Telemetry string
	Status    string
}

// TopicsFor lays out <prefix>/<station id>/{telemetry,status}.
func TopicsFor(prefix string, stationID int) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	base := fmt.Sprintf("%s/%d", prefix, stationID)
	return Topics{Telemetry: base + "/telemetry", Status: base + "/status"}
}

// NewClient prepares a client for one station. Nothing is sent until
// Connect.
func NewClient(cfg config.Config, st station.Station, logger *slog.Logger) (*Client, error) {
	c := &Client{
		cfg:       cfg,
		logger:    logger,
		stationID: st.ID,
		topics:    TopicsFor(cfg.MQTTTopicPrefix, st.ID),
		stopCh:    make(chan struct{}),
	}

	will, err := json.Marshal(Presence{StationID: st.ID, HardwareID: st.HardwareID, Online: false})
	if err != nil {
		return nil, fmt.Errorf("marshal will: %w", err)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	opts.SetCleanSession(true)
	opts.SetBinaryWill(c.topics.Status, will, qos, true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect waits for the initial connection. It respects ctx and Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	// With ConnectRetry the token only completes once a connection is up.
	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// PublishTelemetry sends one cycle's document to the station topic.
func (c *Client) PublishTelemetry(t station.Telemetry) error {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	t.StationID = c.stationID
	return c.publish(c.topics.Telemetry, t, false)
}

// PublishPresence updates the retained status document.
func (c *Client) PublishPresence(p Presence) error {
	p.StationID = c.stationID
	if p.Since.IsZero() {
		p.Since = time.Now()
	}
	return c.publish(c.topics.Status, p, true)
}

func (c *Client) publish(topic string, v any, retained bool) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}

	token := c.client.Publish(topic, qos, retained, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		c.logger.Error("mqtt publish failed", "topic", topic, "error", err)
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	c.logger.Debug("mqtt published", "topic", topic, "bytes", len(data))
	return nil
}

func (c *Client) Topics() Topics { return c.topics }

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client. It is idempotent; Connect fails afterwards.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
