package publisher

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/c360/sttp/cipher"
	"github.com/c360/sttp/compact"
	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/measurement"
	"github.com/c360/sttp/protocol"
	"github.com/c360/sttp/pkg/buffer"
	"github.com/c360/sttp/signalindexcache"
	"github.com/c360/sttp/ticks"
	"github.com/c360/sttp/tssc"
	"github.com/c360/sttp/wire"
)

// connection holds all per-subscriber state the publisher tracks: its
// handshake position, negotiated modes, signal-index cache slots, the
// subset of the current dataset.Snapshot it is subscribed to, and the
// outbound frame queue its writer goroutine drains.
type connection struct {
	id         string
	remoteAddr string
	engine     *Engine
	conn       net.Conn
	writer     *bufio.Writer

	handshake *protocol.Handshake
	modes     protocol.OperationalModes

	cacheSlots *signalindexcache.Slots
	activeSlot atomic.Int32
	cacheVer   atomic.Uint64

	mu        sync.RWMutex
	signalSet map[uuid.UUID]uint32 // signal ID -> runtime index, current subscription

	baseTimes   compact.BaseTimes
	baseTimesMu sync.Mutex
	tsscEncoder *tssc.Encoder

	keys    *cipher.Keys
	rotator *cipher.Rotator
	udpAddr *net.UDPAddr
	udpSeq  atomic.Uint64

	outbound    buffer.Buffer[[]byte]
	flushLimit  *rate.Limiter
	closed      atomic.Bool
	connectedAt time.Time

	measurementsSent atomic.Int64
	bytesSent        atomic.Int64
}

func newConnection(e *Engine, id string, conn net.Conn) (*connection, error) {
	keys, err := cipher.NewKeys()
	if err != nil {
		return nil, errors.WrapFatal(err, "publisher", "newConnection", "generate cipher keys")
	}

	outbound, err := buffer.NewCircularBuffer[[]byte](e.cfg.OutboundQueueSize,
		buffer.WithOverflowPolicy[[]byte](buffer.DropOldest))
	if err != nil {
		return nil, errors.WrapFatal(err, "publisher", "newConnection", "build outbound buffer")
	}

	c := &connection{
		id:          id,
		remoteAddr:  conn.RemoteAddr().String(),
		engine:      e,
		conn:        conn,
		writer:      bufio.NewWriterSize(conn, 16*1024),
		handshake:   protocol.NewHandshake(),
		cacheSlots:  &signalindexcache.Slots{},
		signalSet:   make(map[uuid.UUID]uint32),
		keys:        keys,
		rotator:     cipher.NewRotator(keys, e.cfg.CipherRotationTimeout()),
		outbound:    outbound,
		flushLimit:  rate.NewLimiter(rate.Every(e.cfg.PublishInterval()), 1),
		connectedAt: time.Now(),
	}
	return c, nil
}

// run drives the connection's lifetime: a reader goroutine consumes
// commands until the socket closes or a keepalive timeout fires, while
// the caller's goroutine drains the outbound queue at the configured
// publish cadence. run returns once both stop.
func (c *connection) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		c.readLoop(ctx)
	}()

	c.writeLoop(ctx)
	<-readerDone
}

func (c *connection) readLoop(ctx context.Context) {
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.engine.cfg.KeepaliveTimeout()))
		code, payload, err := protocol.ReadFrame(c.conn, c.engine.cfg.MaxPacketSize)
		if err != nil {
			c.close("read: " + err.Error())
			return
		}
		if err := c.dispatch(ctx, protocol.CommandCode(code), payload); err != nil {
			c.engine.callbacks.error(c.id, err)
			if errors.IsFatal(err) {
				c.close(err.Error())
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (c *connection) writeLoop(ctx context.Context) {
	for {
		if err := c.flushLimit.Wait(ctx); err != nil {
			return
		}
		if c.closed.Load() {
			return
		}
		c.flush()
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// flush drains every frame currently queued and writes them in one
// batched syscall, then flushes the buffered writer.
func (c *connection) flush() {
	frames := c.outbound.ReadBatch(c.engine.cfg.OutboundQueueSize)
	if len(frames) == 0 {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.engine.cfg.StallTimeout()))
	for _, f := range frames {
		if _, err := c.writer.Write(f); err != nil {
			c.close("write: " + err.Error())
			return
		}
		c.bytesSent.Add(int64(len(f)))
	}
	if err := c.writer.Flush(); err != nil {
		c.close("flush: " + err.Error())
	}
}

// enqueue queues one already-framed response for delivery. It never
// blocks: under sustained overload the outbound buffer drops the oldest
// queued frame rather than stall the routing worker pool.
func (c *connection) enqueue(frame []byte) {
	if err := c.outbound.Write(frame); err != nil {
		c.engine.callbacks.error(c.id, errors.WrapTransient(err, "publisher", "connection.enqueue", "outbound write"))
	}
}

func (c *connection) sendResponse(code protocol.ResponseCode, payload []byte) {
	c.enqueue(frameBytes(byte(code), payload))
}

func frameBytes(code byte, payload []byte) []byte {
	w := wire.NewWriter(5 + len(payload))
	w.WriteUint32(uint32(1 + len(payload)))
	_ = w.WriteByte(code)
	_, _ = w.Write(payload)
	return w.Bytes()
}

// resolvedSignals returns a copy of the connection's map from signal ID
// to assigned runtime index.
func (c *connection) resolvedSignals() map[uuid.UUID]uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[uuid.UUID]uint32, len(c.signalSet))
	for k, v := range c.signalSet {
		out[k] = v
	}
	return out
}

// setSubscription installs a new signal set and builds a fresh
// signal-index cache, rotating the inactive slot so in-flight data
// packets referencing the previous cache remain valid until the
// subscriber's next reference point (signalindexcache §9).
func (c *connection) setSubscription(ids []uuid.UUID) (*signalindexcache.Cache, error) {
	entries := make([]signalindexcache.Entry, len(ids))
	signalSet := make(map[uuid.UUID]uint32, len(ids))
	for i, id := range ids {
		entries[i] = signalindexcache.Entry{Index: uint32(i), SignalID: id}
		signalSet[id] = uint32(i)
	}

	version := c.cacheVer.Add(1)
	cache, err := signalindexcache.New(version, entries)
	if err != nil {
		return nil, errors.Wrap(err, "publisher", "connection.setSubscription", "build cache")
	}

	nextSlot := int(1 - c.activeSlot.Load())
	c.cacheSlots.Set(nextSlot, cache)
	c.activeSlot.Store(int32(nextSlot))

	c.mu.Lock()
	c.signalSet = signalSet
	c.mu.Unlock()

	// A new signal-index cache renumbers runtime indices, so any TSSC
	// history keyed by the old numbering is meaningless going forward;
	// both sides must restart from identical empty state.
	c.baseTimesMu.Lock()
	if c.tsscEncoder != nil {
		c.tsscEncoder.Reset()
	}
	c.baseTimesMu.Unlock()

	return cache, nil
}

// encodeBatch renders the subset of batch this connection is subscribed
// to using either the compact codec or TSSC, per its negotiated modes,
// and returns a framed DataPacket payload ready to enqueue. It returns
// false if no measurement in the batch matched this connection's
// subscription.
func (c *connection) encodeBatch(batch measurement.Batch) ([]byte, bool) {
	signals := c.resolvedSignals()
	if len(signals) == 0 {
		return nil, false
	}

	var matched measurement.Batch
	for _, m := range batch {
		if _, ok := signals[m.SignalID]; ok {
			matched = append(matched, m)
		}
	}
	if len(matched) == 0 {
		return nil, false
	}

	c.baseTimesMu.Lock()
	bt := c.ensureBaseTimesLocked(matched)
	c.baseTimesMu.Unlock()

	res := compact.Ticks100ns
	if c.engine.useMillisecondResolution {
		res = compact.Milliseconds
	}

	var body []byte
	if c.modes.CompressPayloadData() {
		if c.tsscEncoder == nil {
			c.tsscEncoder = tssc.NewEncoder(0)
		}
		for _, m := range matched {
			c.tsscEncoder.AddMeasurement(signals[m.SignalID], m)
		}
		body = c.tsscEncoder.Bytes()
	} else {
		w := wire.NewWriter(32 * len(matched))
		w.WriteUint16(uint16(len(matched)))
		for _, m := range matched {
			compact.EncodeMeasurement(w, m, signals[m.SignalID], bt, res, 0, true)
		}
		body = w.Bytes()
	}

	c.measurementsSent.Add(int64(len(matched)))
	if c.engine.metrics != nil {
		c.engine.metrics.RecordMeasurementsSent(c.id, len(matched))
	}
	return frameBytes(byte(protocol.ResponseDataPacket), body), true
}

// ensureBaseTimesLocked refreshes the connection's base times once the
// newest timestamp in a batch reaches the previously issued
// rollover, queueing an UpdateBaseTimes response ahead of the data
// packet that will reference it.
func (c *connection) ensureBaseTimesLocked(batch measurement.Batch) compact.BaseTimes {
	var newest ticks.Tick
	for _, m := range batch {
		if m.Timestamp > newest {
			newest = m.Timestamp
		}
	}

	if c.baseTimes.Base0 == 0 || newest >= c.baseTimes.Rollover {
		c.baseTimes = compact.BaseTimes{
			Base0:    newest,
			Base1:    newest,
			Rollover: newest.Add(1 * time.Hour),
		}
		c.enqueue(frameBytes(byte(protocol.ResponseUpdateBaseTimes), compact.EncodeBaseTimes(c.baseTimes)))
	}
	return c.baseTimes
}

func (c *connection) close(reason string) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.handshake.Close()
	_ = c.conn.Close()
	_ = c.outbound.Close()
	if c.engine.metrics != nil {
		c.engine.metrics.RecordConnectionClosed("publisher", time.Since(c.connectedAt))
	}
	c.engine.removeConnection(c.id)
	c.engine.callbacks.disconnect(c.id, reason)
	c.engine.bridge.Disconnected(context.Background(), "publisher", c.id, reason)
}
