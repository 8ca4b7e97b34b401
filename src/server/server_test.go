package server

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"
)

func startServer(t *testing.T, cfg *Config, snk *recordSink) (*Server, context.CancelFunc, <-chan error) {
	t.Helper()
	srv, err := New(cfg, snk)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()
	return srv, cancel, errCh
}

func stopServer(t *testing.T, cancel context.CancelFunc, errCh <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerAcceptsAndDecodes(t *testing.T) {
	snk := &recordSink{}
	srv, cancel, errCh := startServer(t, testConfig(), snk)

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte(trackerFrame("1234"))); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.Close()

	waitForReports(t, snk, 1)
	stopServer(t, cancel, errCh)

	got := snk.devices()
	if len(got) != 1 || got[0] != "1234" {
		t.Fatalf("unexpected publishes: %v", got)
	}
}

// A faulty connection must not affect other connections, and each
// connection's frames must be published in wire order even under
// concurrent load.
func TestServerConnectionIsolationAndOrdering(t *testing.T) {
	const perConn = 10
	snk := &recordSink{}
	srv, cancel, errCh := startServer(t, testConfig(), snk)

	// One client sends garbage and gets dropped.
	bad, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_, _ = bad.Write([]byte("garbage with no frames"))
	defer bad.Close()

	// Two well-behaved clients interleave their transmissions.
	done := make(chan struct{}, 2)
	for _, dev := range []string{"aaa", "bbb"} {
		go func(dev string) {
			defer func() { done <- struct{}{} }()
			conn, err := net.Dial("tcp", srv.Addr().String())
			if err != nil {
				t.Errorf("dial: %v", err)
				return
			}
			defer conn.Close()
			for i := 0; i < perConn; i++ {
				frame := trackerFrame(fmt.Sprintf("%s%02d", dev, i))
				if _, err := conn.Write([]byte(frame)); err != nil {
					t.Errorf("write: %v", err)
					return
				}
			}
		}(dev)
	}
	<-done
	<-done

	waitForReports(t, snk, 2*perConn)
	stopServer(t, cancel, errCh)

	seq := map[string]int{}
	for _, id := range snk.devices() {
		dev, idx := id[:3], id[3:]
		want := fmt.Sprintf("%02d", seq[dev])
		if idx != want {
			t.Fatalf("connection %s out of order: got %s, want %s", dev, idx, want)
		}
		seq[dev]++
	}
	if seq["aaa"] != perConn || seq["bbb"] != perConn {
		t.Fatalf("missing reports: %v", seq)
	}
}

func TestServerShutdownClosesActiveConnections(t *testing.T) {
	snk := &recordSink{}
	srv, cancel, errCh := startServer(t, testConfig(), snk)

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	// Leave the connection idle mid-buffer.
	if _, err := conn.Write([]byte("*incomplete")); err != nil {
		t.Fatalf("write: %v", err)
	}

	stopServer(t, cancel, errCh)

	if len(snk.devices()) != 0 {
		t.Fatalf("incomplete frame must be discarded, got %v", snk.devices())
	}
}

func TestServerInvalidAddress(t *testing.T) {
	cfg := testConfig()
	cfg.Address = "not-an-address"
	if _, err := New(cfg, &recordSink{}); err == nil {
		t.Fatal("expected error for invalid address")
	}
}

func waitForReports(t *testing.T, snk *recordSink, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(snk.devices()) >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d reports, have %v", n, snk.devices())
}
