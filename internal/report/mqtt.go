package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the broker sink.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Retain   bool
	Format   string
}

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes each report to a single topic. With Retain set, the
// broker keeps the latest facts for late subscribers.
type MQTTSink struct {
	cfg    MQTTConfig
	client publisher
	logger *slog.Logger
}

// DialMQTT connects to the broker with auto-reconnect enabled.
func DialMQTT(cfg MQTTConfig, logger *slog.Logger) (*MQTTSink, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connection established", "broker", cfg.Broker, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", "broker", cfg.Broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	logger.Info("connecting to mqtt broker", "broker", cfg.Broker)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		// connect retry keeps going in the background
		logger.Warn("mqtt connection pending", "broker", cfg.Broker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return newMQTTSink(cfg, client, logger), nil
}

func newMQTTSink(cfg MQTTConfig, client publisher, logger *slog.Logger) *MQTTSink {
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	return &MQTTSink{cfg: cfg, client: client, logger: logger}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Write(ctx context.Context, r Report) error {
	payload, err := Encode(r, s.cfg.Format)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	token := s.client.Publish(s.cfg.Topic, s.cfg.QoS, s.cfg.Retain, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", s.cfg.Topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", s.cfg.Topic, err)
	}
	s.logger.Debug("facts published", "topic", s.cfg.Topic, "qos", s.cfg.QoS, "size", len(payload))
	return nil
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
