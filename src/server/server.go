// Package server implements the TCP listener and per-connection
// sessions for the H02 tracker protocol.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/sandrolain/h02-bridge/src/h02"
	"github.com/sandrolain/h02-bridge/src/sinks/sink"
)

// Config defines the listener and session settings.
type Config struct {
	// Address is the TCP listen address.
	Address string `yaml:"address" default:":11220" validate:"required"`

	// ChunkSize is the read buffer size per connection.
	ChunkSize int `yaml:"chunkSize" default:"4096" validate:"min=1"`

	// MaxBuffer caps the unconsumed bytes per connection before the
	// connection is dropped as a protocol violation.
	MaxBuffer int `yaml:"maxBuffer" default:"10000" validate:"min=1"`

	// ReadTimeout drops idle connections; zero disables the timeout.
	// Trackers reconnect on their own schedule, so an idle drop is not
	// an error.
	ReadTimeout time.Duration `yaml:"readTimeout" default:"5m" validate:"min=0"`

	// Framing selects the strictness policy for bytes between frames.
	Framing h02.FramingMode `yaml:"framing" default:"strict" validate:"oneof=strict tolerant"`
}

// Server accepts tracker connections and runs one session per
// connection. Sessions share nothing but the sink, which must be
// safe for concurrent use.
type Server struct {
	cfg      *Config
	sink     sink.Sink
	slog     *slog.Logger
	listener *net.TCPListener

	mu       sync.Mutex
	shutdown bool
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// New binds the listen address and returns the server.
func New(cfg *Config, snk sink.Sink) (*Server, error) {
	addr, err := net.ResolveTCPAddr("tcp", cfg.Address)
	if err != nil {
		return nil, err
	}
	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		sink:     snk,
		slog:     slog.Default().With("context", "H02 Server"),
		listener: listener,
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run accepts connections until the context is canceled, then closes
// active connections and waits for their sessions to finish.
func (s *Server) Run(ctx context.Context) error {
	s.slog.Info("server started", "addr", s.listener.Addr())

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		// Unblock the pending Accept.
		_ = s.listener.SetDeadline(time.Now())
	}()

	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			if s.isShutdown() {
				break
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.slog.Error("accept error", "error", err)
			return err
		}

		_ = conn.SetNoDelay(true)
		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			newSession(conn, s.cfg, s.sink, s.slog).run()
		}()
	}

	s.closeConns()
	s.wg.Wait()
	_ = s.listener.Close()
	s.slog.Info("server stopped", "addr", s.listener.Addr())
	return nil
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

// closeConns force-closes active connections so blocked reads return
// and sessions exit.
func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}
