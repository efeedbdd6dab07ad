package subscriber

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/c360/sttp/config"
	"github.com/c360/sttp/protocol"
	"github.com/c360/sttp/wire"
)

// newTestEngine builds an Engine wired directly to one end of a
// net.Pipe, bypassing dialCommandChannel: engine tests exercise the
// command-channel state machine, not TCP/TLS dialing.
func newTestEngine(t *testing.T) (*Engine, net.Conn) {
	t.Helper()
	cfg := config.DefaultSubscriberConfig()
	cfg.ConnectionString = "server=127.0.0.1:7165"

	e, err := NewEngine(cfg, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	server, client := net.Pipe()
	e.conn = server
	e.connCloser = func() {}
	e.writer = bufio.NewWriterSize(server, 4096)
	e.modes = protocol.NewOperationalModes(false, false, false, false, false, false)

	e.wg.Add(1)
	go e.readLoop()
	e.wg.Add(1)
	go e.pumpLoop(context.Background())

	t.Cleanup(func() {
		select {
		case <-e.shutdown:
		default:
			close(e.shutdown)
		}
		_ = client.Close()
		e.wg.Wait()
	})
	return e, client
}

func readFrame(t *testing.T, conn net.Conn) (byte, []byte) {
	t.Helper()
	code, payload, err := protocol.ReadFrame(conn, protocol.DefaultMaxPacketSize)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	return code, payload
}

func TestSubscribeAwaitsSucceededResponse(t *testing.T) {
	e, client := newTestEngine(t)

	done := make(chan error, 1)
	go func() {
		done <- e.Subscribe(context.Background(), "ActiveMeasurements", "id", "true")
	}()

	code, payload := readFrame(t, client)
	if code != byte(protocol.CommandSubscribe) {
		t.Fatalf("expected Subscribe command, got %v", code)
	}
	r := wire.NewReader(payload)
	table, err := r.String(wire.UTF8)
	if err != nil || table != "ActiveMeasurements" {
		t.Fatalf("expected table name ActiveMeasurements, got %q err=%v", table, err)
	}

	if err := protocol.WriteFrame(client, byte(protocol.ResponseSucceeded), nil); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Subscribe returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return")
	}

	if !e.subscribed.Load() {
		t.Fatal("expected subscribed flag to be set")
	}
	if sub := e.currentSubscription(); sub == nil || sub.tableName != "ActiveMeasurements" {
		t.Fatalf("expected lastSub to be recorded, got %+v", sub)
	}
}

func TestSubscribeSurfacesFailedResponse(t *testing.T) {
	e, client := newTestEngine(t)

	done := make(chan error, 1)
	go func() {
		done <- e.Subscribe(context.Background(), "ActiveMeasurements", "id", "bogus")
	}()

	readFrame(t, client)
	if err := protocol.WriteFrame(client, byte(protocol.ResponseFailed), []byte("bad filter expression")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected Subscribe to fail")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return")
	}
}

func TestCloseConnLockedSignalsReconnectUnlessShuttingDown(t *testing.T) {
	e, client := newTestEngine(t)
	defer func() { _ = client.Close() }()

	e.closeConnLocked("simulated drop")
	select {
	case <-e.reconnectSignal:
	default:
		t.Fatal("expected closeConnLocked to signal a reconnect attempt")
	}

	// a second close is a no-op: closed is already true.
	e.closeConnLocked("second call")
	select {
	case <-e.reconnectSignal:
		t.Fatal("expected no further reconnect signal from a redundant close")
	default:
	}
}

func TestCloseConnLockedDoesNotSignalReconnectAfterShutdown(t *testing.T) {
	e, client := newTestEngine(t)
	defer func() { _ = client.Close() }()

	close(e.shutdown)
	e.closeConnLocked("closing down")

	select {
	case <-e.reconnectSignal:
		t.Fatal("expected no reconnect signal once shutdown has been requested")
	default:
	}
}

func TestAwaitResponseRejectsConcurrentRequest(t *testing.T) {
	e, client := newTestEngine(t)
	defer func() { _ = client.Close() }()

	e.pending = make(chan pendingResult, 1)

	err := e.Subscribe(context.Background(), "ActiveMeasurements", "id", "true")
	if err == nil {
		t.Fatal("expected an in-flight-request error")
	}
}
