package subscriber

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/sttp/cipher"
	"github.com/c360/sttp/compact"
	"github.com/c360/sttp/config"
	"github.com/c360/sttp/dataset"
	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/health"
	"github.com/c360/sttp/httpapi"
	"github.com/c360/sttp/measurement"
	"github.com/c360/sttp/metric"
	"github.com/c360/sttp/natsbridge"
	"github.com/c360/sttp/pkg/buffer"
	"github.com/c360/sttp/protocol"
	"github.com/c360/sttp/signalindexcache"
	"github.com/c360/sttp/tssc"
	"github.com/c360/sttp/wire"
)

// subscription remembers the last Subscribe request so a reconnect can
// silently resume it without the caller issuing it again.
type subscription struct {
	tableName  string
	idColumn   string
	expression string
}

// Engine is the STTP subscriber: it drives the client side of the
// command-channel handshake, decodes inbound data packets, and exposes
// them on a buffered, backpressured channel (spec.md §4.7).
type Engine struct {
	cfg       config.SubscriberConfig
	callbacks *Callbacks

	registry *metric.MetricsRegistry
	metrics  *metric.Metrics
	monitor  *health.Monitor
	bridge   *natsbridge.Bridge

	connMu     sync.RWMutex
	conn       net.Conn
	connCloser func()
	writer     *bufio.Writer
	writeMu    sync.Mutex

	modes protocol.OperationalModes

	cacheSlots *signalindexcache.Slots
	activeSlot atomic.Int32
	cacheVer   atomic.Uint64

	baseTimesMu sync.Mutex
	baseTimes   compact.BaseTimes
	tsscDecoder *tssc.Decoder

	keys    *cipher.Keys
	udp     *net.UDPConn
	udpPort uint16

	metadataMu sync.RWMutex
	metadata   *dataset.Snapshot

	pendingMu sync.Mutex
	pending   chan pendingResult

	subMu   sync.RWMutex
	lastSub *subscription

	inbound buffer.Buffer[measurement.Measurement]
	notify  chan struct{}
	stream  chan measurement.Measurement

	connected  atomic.Bool
	subscribed atomic.Bool
	closed     atomic.Bool

	totalMeasurements atomic.Int64
	totalBytes        atomic.Int64
	connectedAt       time.Time

	shutdown        chan struct{}
	reconnectSignal chan struct{}
	cancel          context.CancelFunc
	wg              sync.WaitGroup
}

type pendingResult struct {
	payload []byte
	failed  bool
}

// NewEngine builds a subscriber Engine. registry, monitor, and bridge
// may be nil; callbacks may be nil to disable lifecycle notifications.
func NewEngine(cfg config.SubscriberConfig, registry *metric.MetricsRegistry, monitor *health.Monitor, bridge *natsbridge.Bridge, callbacks *Callbacks) (*Engine, error) {
	keys, err := cipher.NewKeys()
	if err != nil {
		return nil, errors.WrapFatal(err, "subscriber", "NewEngine", "generate cipher keys")
	}

	inbound, err := buffer.NewCircularBuffer[measurement.Measurement](cfg.QueueCapacity,
		buffer.WithOverflowPolicy[measurement.Measurement](buffer.Block))
	if err != nil {
		return nil, errors.WrapFatal(err, "subscriber", "NewEngine", "build inbound buffer")
	}

	e := &Engine{
		cfg:             cfg,
		callbacks:       callbacks,
		registry:        registry,
		monitor:         monitor,
		bridge:          bridge,
		cacheSlots:      &signalindexcache.Slots{},
		keys:            keys,
		inbound:         inbound,
		notify:          make(chan struct{}, 1),
		stream:          make(chan measurement.Measurement, cfg.QueueCapacity),
		shutdown:        make(chan struct{}),
		reconnectSignal: make(chan struct{}, 1),
	}
	if registry != nil {
		e.metrics = registry.CoreMetrics()
	}
	return e, nil
}

// Measurements returns the channel measurements are delivered on.
// Closed by Close; a lost connection leaves it open.
func (e *Engine) Measurements() <-chan measurement.Measurement { return e.stream }

// Metadata returns the most recently received metadata snapshot, if any.
func (e *Engine) Metadata() (*dataset.Snapshot, bool) {
	e.metadataMu.RLock()
	defer e.metadataMu.RUnlock()
	return e.metadata, e.metadata != nil
}

// Start dials the publisher, negotiates operational modes, and begins
// streaming. If cfg.AutoReconnect is set, a supervisor goroutine keeps
// the connection alive (and resubscribes) across drops until Close is
// called; otherwise a single disconnect ends the stream.
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	if err := e.connectOnce(ctx); err != nil {
		cancel()
		return err
	}
	e.wg.Add(1)
	go e.pumpLoop(ctx)
	if e.cfg.AutoReconnect {
		e.wg.Add(1)
		go e.supervise(ctx)
	}
	return nil
}

func (e *Engine) connectOnce(ctx context.Context) error {
	addr, err := parseConnectionString(e.cfg.ConnectionString)
	if err != nil {
		return err
	}

	conn, cleanup, err := dialCommandChannel(ctx, addr, e.cfg.TLS)
	if err != nil {
		return err
	}

	e.connMu.Lock()
	e.conn = conn
	e.connCloser = cleanup
	e.writer = bufio.NewWriterSize(conn, 16*1024)
	e.connMu.Unlock()

	e.tsscDecoder = tssc.NewDecoder(0)
	e.connectedAt = time.Now()
	e.closed.Store(false)

	if e.cfg.UDPDataChannel != nil {
		udpConn, port, err := newUDPReceiver(e.cfg.UDPDataChannel.Interface)
		if err != nil {
			_ = conn.Close()
			cleanup()
			return err
		}
		e.udp = udpConn
		e.udpPort = port
		e.wg.Add(1)
		go e.udpReadLoop()
	}

	om := e.cfg.OperationalModes
	e.modes = protocol.NewOperationalModes(om.UseUTF16LE, om.CompressMetadata, om.CompressSignalIndexCache, om.CompressPayloadData, om.UseCommonSerialization, om.ReceiveExternalMetadata)
	if err := e.sendFrame(protocol.CommandDefineOperationalModes, e.modes.Encode()); err != nil {
		_ = conn.Close()
		cleanup()
		return err
	}
	if err := e.sendFrame(protocol.CommandConnect, e.connectPayload()); err != nil {
		_ = conn.Close()
		cleanup()
		return err
	}

	e.wg.Add(1)
	go e.readLoop()

	e.connected.Store(true)
	if e.metrics != nil {
		e.metrics.RecordConnectionEstablished("subscriber")
	}
	if e.monitor != nil {
		e.monitor.UpdateHealthy("subscriber", "connected to "+addr)
	}
	e.callbacks.connect(addr)
	e.bridge.Connected(context.Background(), "subscriber", addr)

	if sub := e.currentSubscription(); sub != nil {
		if err := e.Subscribe(ctx, sub.tableName, sub.idColumn, sub.expression); err != nil {
			e.callbacks.error(err)
		}
	}

	return nil
}

func (e *Engine) connectPayload() []byte {
	if e.udpPort == 0 {
		return nil
	}
	w := wire.NewWriter(2)
	w.WriteUint16(e.udpPort)
	return w.Bytes()
}

func (e *Engine) currentSubscription() *subscription {
	e.subMu.RLock()
	defer e.subMu.RUnlock()
	return e.lastSub
}

// Subscribe requests tableName's rows matching expression (evaluated
// idColumn-keyed), and blocks until the publisher responds with
// Succeeded or Failed.
func (e *Engine) Subscribe(ctx context.Context, tableName, idColumn, expression string) error {
	w := wire.NewWriter(64)
	w.WriteString(tableName, e.modes.StringEncoding())
	w.WriteString(idColumn, e.modes.StringEncoding())
	w.WriteString(expression, e.modes.StringEncoding())

	_, err := e.awaitResponse(ctx, func() error {
		return e.sendFrame(protocol.CommandSubscribe, w.Bytes())
	})
	if err != nil {
		return err
	}

	e.subMu.Lock()
	e.lastSub = &subscription{tableName: tableName, idColumn: idColumn, expression: expression}
	e.subMu.Unlock()
	e.subscribed.Store(true)
	n := 0
	if cache, ok := e.cacheSlots.Get(int(e.activeSlot.Load())); ok {
		n = cache.Len()
	}
	e.callbacks.subscribed(n)
	return nil
}

// RequestMetadata refreshes the cached metadata snapshot from the
// publisher's current dataset.
func (e *Engine) RequestMetadata(ctx context.Context) (*dataset.Snapshot, error) {
	payload, err := e.awaitResponse(ctx, func() error {
		return e.sendFrame(protocol.CommandMetadataRefresh, nil)
	})
	if err != nil {
		return nil, err
	}

	raw := payload
	if e.modes.CompressMetadata() {
		raw, err = gunzipBytes(payload)
		if err != nil {
			return nil, errors.Wrap(err, "subscriber", "RequestMetadata", "gunzip")
		}
	}

	gen := e.cacheVer.Add(1)
	snap, err := dataset.Decode(gen, raw)
	if err != nil {
		return nil, errors.Wrap(err, "subscriber", "RequestMetadata", "decode")
	}

	e.metadataMu.Lock()
	e.metadata = snap
	e.metadataMu.Unlock()
	return snap, nil
}

// awaitResponse sends one command via send and blocks for its
// Succeeded/Failed response. Only one request may be outstanding at a
// time; the command channel is otherwise sequential by protocol design.
func (e *Engine) awaitResponse(ctx context.Context, send func() error) ([]byte, error) {
	e.pendingMu.Lock()
	if e.pending != nil {
		e.pendingMu.Unlock()
		return nil, errors.WrapInvalid(errRequestInFlight(), "subscriber", "awaitResponse", "state check")
	}
	ch := make(chan pendingResult, 1)
	e.pending = ch
	e.pendingMu.Unlock()

	clear := func() {
		e.pendingMu.Lock()
		if e.pending == ch {
			e.pending = nil
		}
		e.pendingMu.Unlock()
	}

	if err := send(); err != nil {
		clear()
		return nil, err
	}

	select {
	case res := <-ch:
		if res.failed {
			return nil, errors.WrapInvalid(errRequestFailed(string(res.payload)), "subscriber", "awaitResponse", "publisher response")
		}
		return res.payload, nil
	case <-ctx.Done():
		clear()
		return nil, ctx.Err()
	case <-e.shutdown:
		clear()
		return nil, errors.WrapTransient(errEngineClosed(), "subscriber", "awaitResponse", "shutdown")
	}
}

func (e *Engine) sendFrame(code protocol.CommandCode, payload []byte) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if err := protocol.WriteFrame(e.writer, byte(code), payload); err != nil {
		return err
	}
	return e.writer.Flush()
}

// Status implements httpapi.StatusProvider.
func (e *Engine) Status() httpapi.StatusSnapshot {
	elapsed := time.Since(e.connectedAt).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}
	count := 0
	if e.connected.Load() {
		count = 1
	}
	return httpapi.StatusSnapshot{
		ConnectedCount: count,
		PerConnection: []httpapi.ConnectionStatus{{
			ConnectionID:       e.cfg.ConnectionString,
			SignalCount:        e.inbound.Size(),
			MeasurementsPerSec: float64(e.totalMeasurements.Load()) / elapsed,
			BytesPerSec:        float64(e.totalBytes.Load()) / elapsed,
		}},
	}
}

// Close tears down the connection and stops any reconnect supervisor.
func (e *Engine) Close() error {
	select {
	case <-e.shutdown:
	default:
		close(e.shutdown)
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.closeConnLocked("closed by caller")
	if e.udp != nil {
		_ = e.udp.Close()
	}
	_ = e.inbound.Close()
	e.wg.Wait()
	close(e.stream)
	return nil
}

func (e *Engine) closeConnLocked(reason string) {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.connected.Store(false)
	e.connMu.Lock()
	conn := e.conn
	cleanup := e.connCloser
	e.connMu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	if cleanup != nil {
		cleanup()
	}
	if e.metrics != nil {
		e.metrics.RecordConnectionClosed("subscriber", time.Since(e.connectedAt))
	}
	e.callbacks.disconnect(reason)
	e.bridge.Disconnected(context.Background(), "subscriber", e.cfg.ConnectionString, reason)

	select {
	case <-e.shutdown:
	default:
		select {
		case e.reconnectSignal <- struct{}{}:
		default:
		}
	}
}

func errRequestInFlight() error { return requestInFlightError{} }

type requestInFlightError struct{}

func (requestInFlightError) Error() string { return "subscriber: a request is already awaiting a response" }

func errRequestFailed(msg string) error { return requestFailedError{msg} }

type requestFailedError struct{ msg string }

func (e requestFailedError) Error() string { return "subscriber: request failed: " + e.msg }

func errEngineClosed() error { return engineClosedError{} }

type engineClosedError struct{}

func (engineClosedError) Error() string { return "subscriber: engine closed" }
