package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/vitals.report/internal/monitoring"
	"github.com/banshee-data/vitals.report/internal/session"
)

const mqttPublishTimeout = 2 * time.Second

// ErrPublishTimeout is returned when a broker does not acknowledge a
// publish in time.
var ErrPublishTimeout = errors.New("publish timeout")

// MQTTClient is the subset of mqtt.Client used by the sink.
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTOptions configures the MQTT sink.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// Topic is the prefix; metrics go to <Topic>/<session_id> and status
	// messages to <Topic>/<session_id>/status.
	Topic string
	QoS   byte
}

// MQTT publishes metrics to a broker.
type MQTT struct {
	client MQTTClient
	topic  string
	qos    byte
}

// DialMQTT connects to the broker and returns a sink.
func DialMQTT(opts MQTTOptions) (*MQTT, error) {
	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		co.SetPassword(opts.Password)
	}
	co.SetAutoReconnect(true)
	co.SetCleanSession(true)
	co.SetConnectRetryInterval(2 * time.Second)
	co.SetMaxReconnectInterval(30 * time.Second)
	co.OnConnectionLost = func(_ mqtt.Client, err error) {
		monitoring.Logf("[mqtt] connection to %s lost: %v", opts.Broker, err)
	}

	client := mqtt.NewClient(co)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: %w", opts.Broker, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	monitoring.Logf("[mqtt] connected to %s as %s", opts.Broker, opts.ClientID)
	return NewMQTT(client, opts.Topic, opts.QoS), nil
}

// NewMQTT wraps an existing client.
func NewMQTT(client MQTTClient, topic string, qos byte) *MQTT {
	return &MQTT{client: client, topic: topic, qos: qos}
}

func (s *MQTT) Name() string { return "mqtt" }

func (s *MQTT) PublishMetrics(ctx context.Context, m session.Metrics) error {
	return s.publish(ctx, fmt.Sprintf("%s/%s", s.topic, m.SessionID), m)
}

func (s *MQTT) PublishStatus(ctx context.Context, st session.Status) error {
	return s.publish(ctx, fmt.Sprintf("%s/%s/status", s.topic, st.SessionID), st)
}

func (s *MQTT) publish(ctx context.Context, topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	token := s.client.Publish(topic, s.qos, false, payload)
	timer := time.NewTimer(mqttPublishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-timer.C:
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// Close disconnects with a 250ms grace period.
func (s *MQTT) Close() error {
	s.client.Disconnect(250)
	return nil
}
