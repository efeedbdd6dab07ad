package publisher

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/sttp/config"
	"github.com/c360/sttp/dataset"
	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/health"
	"github.com/c360/sttp/httpapi"
	"github.com/c360/sttp/measurement"
	"github.com/c360/sttp/metric"
	"github.com/c360/sttp/natsbridge"
	"github.com/c360/sttp/pkg/worker"
)

// Engine is the STTP publisher: it accepts command-channel connections,
// negotiates operational modes, serves metadata, resolves subscriptions
// against the current dataset.Snapshot, and routes published
// measurement batches to every matching connection (spec.md §4.8).
type Engine struct {
	cfg               config.PublisherConfig
	datasetManager    *dataset.Manager
	compressedCache   *dataset.CompressedCache
	predicateResolver PredicateResolver
	callbacks         *Callbacks

	registry *metric.MetricsRegistry
	metrics  *metric.Metrics
	monitor  *health.Monitor
	bridge   *natsbridge.Bridge

	useMillisecondResolution bool

	listener net.Listener
	cleanup  func()
	udp      *udpChannel
	routing  *worker.Pool[routingJob]

	mu          sync.RWMutex
	connections map[string]*connection

	shutdown chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	started  time.Time
}

// NewEngine builds an Engine. monitor and registry may be nil; bridge
// may be nil to disable observability events entirely.
func NewEngine(cfg config.PublisherConfig, registry *metric.MetricsRegistry, monitor *health.Monitor, bridge *natsbridge.Bridge, callbacks *Callbacks) (*Engine, error) {
	cache, err := dataset.NewCompressedCache(256)
	if err != nil {
		return nil, errors.WrapFatal(err, "publisher", "NewEngine", "build compressed cache")
	}

	e := &Engine{
		cfg:             cfg,
		datasetManager:  dataset.NewManager(),
		compressedCache: cache,
		callbacks:       callbacks,
		registry:        registry,
		monitor:         monitor,
		bridge:          bridge,
		connections:     make(map[string]*connection),
		shutdown:        make(chan struct{}),
		done:            make(chan struct{}),
	}
	if registry != nil {
		e.metrics = registry.CoreMetrics()
	}
	return e, nil
}

// SetPredicateResolver installs a custom Subscribe filter resolver.
// Without one, every Subscribe selects every row (§ filter-expression
// evaluation is out of scope).
func (e *Engine) SetPredicateResolver(r PredicateResolver) { e.predicateResolver = r }

// DefineMetadata atomically replaces the metadata offered to new and
// refreshing subscribers, returning the new snapshot.
func (e *Engine) DefineMetadata(tables []dataset.Table) *dataset.Snapshot {
	snap := e.datasetManager.Define(tables)
	if e.bridge != nil {
		e.bridge.MetadataRefreshed(context.Background(), "publisher", snap.Generation)
	}
	return snap
}

// Start binds the command-channel listener (optionally TLS/ACME-wrapped
// per cfg.TLS), the optional UDP data channel, and the routing worker
// pool, then begins accepting connections in the background.
func (e *Engine) Start(ctx context.Context) error {
	e.started = time.Now()

	ln, cleanup, err := bindListener(ctx, e.cfg.ListenAddress, e.cfg.TLS)
	if err != nil {
		return err
	}
	e.listener = ln
	e.cleanup = cleanup

	if e.cfg.UDPDataChannel != nil {
		udp, err := newUDPChannel(udpBindAddress(e.cfg.UDPDataChannel.Interface, e.cfg.UDPDataChannel.Port))
		if err != nil {
			_ = ln.Close()
			cleanup()
			return err
		}
		e.udp = udp
	}

	e.routing = newRoutingPool(e, e.cfg.RoutingWorkers, e.cfg.OutboundQueueSize)
	if err := e.routing.Start(ctx); err != nil {
		return errors.WrapFatal(err, "publisher", "Engine.Start", "start routing pool")
	}

	if e.monitor != nil {
		e.monitor.UpdateHealthy("publisher", "listening on "+e.cfg.ListenAddress)
	}

	e.wg.Add(1)
	go e.acceptLoop(ctx)

	return nil
}

func (e *Engine) acceptLoop(ctx context.Context) {
	defer e.wg.Done()
	defer close(e.done)

	for {
		conn, err := e.listener.Accept()
		if err != nil {
			select {
			case <-e.shutdown:
				return
			default:
			}
			if e.monitor != nil {
				e.monitor.UpdateDegraded("publisher", "accept failed: "+err.Error())
			}
			return
		}

		id := newConnectionID()
		c, err := newConnection(e, id, conn)
		if err != nil {
			_ = conn.Close()
			e.callbacks.error(id, err)
			continue
		}

		e.mu.Lock()
		e.connections[id] = c
		e.mu.Unlock()

		if e.metrics != nil {
			e.metrics.RecordConnectionEstablished("publisher")
		}

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			c.run(ctx)
		}()
	}
}

func (e *Engine) removeConnection(id string) {
	e.mu.Lock()
	delete(e.connections, id)
	e.mu.Unlock()
}

// PublishMeasurements fans batch out to every connection whose
// subscription intersects it, via the bounded routing worker pool. The
// call itself never blocks on a slow subscriber: routing happens
// asynchronously, and a connection whose outbound queue cannot keep up
// is closed by its own stall timeout, not by backpressure here.
func (e *Engine) PublishMeasurements(batch measurement.Batch) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, c := range e.connections {
		job := routingJob{conn: c, batch: batch}
		if err := e.routing.Submit(job); err != nil {
			e.callbacks.error(c.id, errors.WrapTransient(err, "publisher", "Engine.PublishMeasurements", "submit routing job"))
		}
	}
	return nil
}

// Status implements httpapi.StatusProvider.
func (e *Engine) Status() httpapi.StatusSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := httpapi.StatusSnapshot{ConnectedCount: len(e.connections)}
	elapsed := time.Since(e.started).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}
	for id, c := range e.connections {
		c.mu.RLock()
		signalCount := len(c.signalSet)
		c.mu.RUnlock()
		snap.PerConnection = append(snap.PerConnection, httpapi.ConnectionStatus{
			ConnectionID:       id,
			SignalCount:        signalCount,
			MeasurementsPerSec: float64(c.measurementsSent.Load()) / elapsed,
			BytesPerSec:        float64(c.bytesSent.Load()) / elapsed,
		})
	}
	return snap
}

// Stop closes every connection concurrently (bounded by errgroup, not
// by an unbounded goroutine-per-connection fan-out), stops the routing
// pool, and releases the listener and UDP socket.
func (e *Engine) Stop(ctx context.Context) error {
	close(e.shutdown)
	if e.listener != nil {
		_ = e.listener.Close()
	}

	e.mu.RLock()
	conns := make([]*connection, 0, len(e.connections))
	for _, c := range e.connections {
		conns = append(conns, c)
	}
	e.mu.RUnlock()

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(32)
	for _, c := range conns {
		c := c
		g.Go(func() error {
			c.close("engine stop")
			return nil
		})
	}
	_ = g.Wait()

	if e.routing != nil {
		_ = e.routing.Stop(5 * time.Second)
	}
	if e.udp != nil {
		_ = e.udp.Close()
	}
	if e.cleanup != nil {
		e.cleanup()
	}

	e.wg.Wait()

	if e.monitor != nil {
		e.monitor.UpdateUnhealthy("publisher", "stopped")
	}
	return nil
}

func newConnectionID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func udpBindAddress(iface string, port uint16) string {
	if iface == "" {
		iface = "0.0.0.0"
	}
	return net.JoinHostPort(iface, strconv.Itoa(int(port)))
}
