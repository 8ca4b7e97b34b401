// Package natssink publishes location payloads to a NATS subject.
package natssink

import (
	"fmt"
	"log/slog"

	nats "github.com/nats-io/nats.go"

	"github.com/sandrolain/h02-bridge/src/h02"
	"github.com/sandrolain/h02-bridge/src/owntracks"
	"github.com/sandrolain/h02-bridge/src/sinks/sink"
)

// Config defines the NATS sink settings.
type Config struct {
	// Address is the NATS server address (host:port).
	Address string `yaml:"address" validate:"required"`

	// Subject to publish location payloads to.
	Subject string `yaml:"subject" default:"owntracks.car.gps" validate:"required"`
}

type NATSSink struct {
	cfg  *Config
	tid  string
	slog *slog.Logger
	conn *nats.Conn
}

// New connects to the NATS server and returns the sink.
func New(cfg *Config, tid string) (sink.Sink, error) {
	conn, err := nats.Connect(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS server: %w", err)
	}

	l := slog.Default().With("context", "NATS Sink")
	l.Info("NATS sink connected", "address", cfg.Address, "subject", cfg.Subject)

	return &NATSSink{
		cfg:  cfg,
		tid:  tid,
		slog: l,
		conn: conn,
	}, nil
}

func (s *NATSSink) Publish(r *h02.Report) error {
	data, err := owntracks.Encode(r, s.tid)
	if err != nil {
		return fmt.Errorf("error encoding payload: %w", err)
	}

	s.slog.Debug("publishing NATS message", "subject", s.cfg.Subject, "device", r.DeviceID, "bodysize", len(data))

	if err := s.conn.Publish(s.cfg.Subject, data); err != nil {
		return fmt.Errorf("error publishing to NATS: %w", err)
	}
	return nil
}

func (s *NATSSink) Close() error {
	if s.conn != nil && !s.conn.IsClosed() {
		s.conn.Close()
	}
	return nil
}
