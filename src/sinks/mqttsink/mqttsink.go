// Package mqttsink publishes location payloads to an MQTT broker.
package mqttsink

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sandrolain/h02-bridge/src/h02"
	"github.com/sandrolain/h02-bridge/src/owntracks"
	"github.com/sandrolain/h02-bridge/src/sinks/sink"
)

// Config defines the MQTT sink settings.
type Config struct {
	// Address is the broker address (host:port).
	Address string `yaml:"address" validate:"required"`

	// Topic to publish location payloads to.
	Topic string `yaml:"topic" default:"owntracks/car/gps" validate:"required"`

	// ClientID identifies this client to the broker. A secure random
	// ID is generated when empty.
	ClientID string `yaml:"clientId"`

	// Username and Password for broker authentication. Leave empty if
	// the broker does not require authentication.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// QoS is the publish Quality of Service level (0, 1 or 2).
	QoS int `yaml:"qos" default:"0" validate:"min=0,max=2"`

	// Retained marks published messages as retained by the broker.
	Retained bool `yaml:"retained"`

	// KeepAlive is the keep alive interval in seconds.
	KeepAlive int `yaml:"keepAlive" default:"60" validate:"min=0"`
}

type MQTTSink struct {
	cfg    *Config
	tid    string
	slog   *slog.Logger
	client mqtt.Client
}

// New connects to the broker and returns the sink. tid is the
// OwnTracks tracker tag; empty means the device identifier.
func New(cfg *Config, tid string) (sink.Sink, error) {
	copts := mqtt.NewClientOptions().AddBroker("tcp://" + cfg.Address)

	clientID := cfg.ClientID
	if clientID == "" {
		var err error
		clientID, err = generateSecureClientID()
		if err != nil {
			return nil, err
		}
	}
	copts.SetClientID(clientID)

	if cfg.Username != "" {
		copts.SetUsername(cfg.Username)
		copts.SetPassword(cfg.Password)
	}

	copts.SetCleanSession(true)
	copts.SetKeepAlive(time.Duration(cfg.KeepAlive) * time.Second)
	copts.SetAutoReconnect(true)
	copts.SetConnectRetry(true)
	copts.SetConnectRetryInterval(2 * time.Second)

	client := mqtt.NewClient(copts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	l := slog.Default().With("context", "MQTT Sink")
	l.Info("MQTT sink connected",
		"address", cfg.Address,
		"topic", cfg.Topic,
		"qos", cfg.QoS,
		"retained", cfg.Retained,
	)

	return &MQTTSink{
		cfg:    cfg,
		tid:    tid,
		slog:   l,
		client: client,
	}, nil
}

func (s *MQTTSink) Publish(r *h02.Report) error {
	data, err := owntracks.Encode(r, s.tid)
	if err != nil {
		return fmt.Errorf("error encoding payload: %w", err)
	}

	s.slog.Debug("publishing MQTT message", "topic", s.cfg.Topic, "device", r.DeviceID, "bodysize", len(data))

	token := s.client.Publish(s.cfg.Topic, byte(s.cfg.QoS), s.cfg.Retained, data)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("error publishing to MQTT: %w", token.Error())
	}
	return nil
}

func (s *MQTTSink) Close() error {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	return nil
}

// generateSecureClientID creates a cryptographically secure random
// client ID.
func generateSecureClientID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random client ID: %w", err)
	}
	return "h02-bridge-" + hex.EncodeToString(bytes), nil
}
