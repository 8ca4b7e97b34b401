package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/sandrolain/h02-bridge/src/h02"
	"github.com/sandrolain/h02-bridge/src/sinks/sink"
)

// session drives one accepted connection. It exclusively owns its
// reassembler and read buffer; nothing is shared between sessions.
type session struct {
	conn        net.Conn
	sink        sink.Sink
	reasm       *h02.Reassembler
	chunkSize   int
	readTimeout time.Duration
	slog        *slog.Logger
}

func newSession(conn net.Conn, cfg *Config, snk sink.Sink, logger *slog.Logger) *session {
	return &session{
		conn:        conn,
		sink:        snk,
		reasm:       h02.NewReassembler(cfg.MaxBuffer, cfg.Framing),
		chunkSize:   cfg.ChunkSize,
		readTimeout: cfg.ReadTimeout,
		slog:        logger.With("remote", conn.RemoteAddr().String()),
	}
}

// run reads chunks until end of stream, idle timeout or a framing
// violation. Decode failures are per-message and never end the
// session. Frames are forwarded in wire order.
func (s *session) run() {
	s.slog.Info("connection opened")
	defer s.slog.Info("connection closed")
	defer s.conn.Close()

	chunk := make([]byte, s.chunkSize)
	for {
		if s.readTimeout > 0 {
			if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
				s.slog.Warn("cannot set read deadline", "error", err)
				return
			}
		}

		n, err := s.conn.Read(chunk)
		if n > 0 {
			frames, ferr := s.reasm.Feed(chunk[:n])
			for _, frame := range frames {
				s.handleFrame(frame)
			}
			if ferr != nil {
				s.slog.Warn("dropping connection", "error", ferr)
				return
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				// Device went away; it reconnects on its own schedule.
			case isTimeout(err):
				s.slog.Debug("idle timeout", "timeout", s.readTimeout)
			default:
				s.slog.Warn("read error", "error", err)
			}
			return
		}
	}
}

func (s *session) handleFrame(frame []byte) {
	report, err := h02.Decode(frame)
	if err != nil {
		s.slog.Warn("discarding invalid frame", "error", err)
		return
	}
	report.ReceivedAt = time.Now().UTC()

	s.slog.Debug("report decoded",
		"device", report.DeviceID,
		"lat", report.Latitude,
		"lon", report.Longitude,
		"vel", report.VelocityKmh,
	)

	if err := s.sink.Publish(report); err != nil {
		// At-most-once: the report is not replayed.
		s.slog.Error("publish failed", "device", report.DeviceID, "error", err)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
