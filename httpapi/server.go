package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/sttp/errors"
	"github.com/c360/sttp/health"
	"github.com/c360/sttp/metric"
)

// StatusSnapshot is the periodic payload pushed to every /ws/status
// subscriber. It never carries measurement values, only aggregate
// connection and rate statistics for a dashboard (SPEC_FULL.md §4.11).
type StatusSnapshot struct {
	Timestamp      time.Time          `json:"timestamp"`
	ConnectedCount int                `json:"connected_count"`
	PerConnection  []ConnectionStatus `json:"per_connection"`
}

// ConnectionStatus is one subscriber's row in a StatusSnapshot.
type ConnectionStatus struct {
	ConnectionID       string  `json:"connection_id"`
	SignalCount        int     `json:"signal_count"`
	MeasurementsPerSec float64 `json:"measurements_per_sec"`
	BytesPerSec        float64 `json:"bytes_per_sec"`
}

// StatusProvider is implemented by whichever engine (publisher or
// subscriber) owns the connection state httpapi reports on.
type StatusProvider interface {
	Status() StatusSnapshot
}

// Server serves /healthz, /metrics and /ws/status. It holds no
// protocol state of its own: every response is derived from the
// health.Monitor, metric.MetricsRegistry and StatusProvider it was
// constructed with.
type Server struct {
	listenAddr string
	monitor    *health.Monitor
	registry   *metric.MetricsRegistry
	provider   StatusProvider
	interval   time.Duration

	upgrader websocket.Upgrader

	httpServer *http.Server

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewServer builds a Server. interval controls how often /ws/status
// pushes a fresh StatusSnapshot; it defaults to one second when zero.
func NewServer(listenAddr string, monitor *health.Monitor, registry *metric.MetricsRegistry, provider StatusProvider, interval time.Duration) *Server {
	if interval <= 0 {
		interval = time.Second
	}
	return &Server{
		listenAddr: listenAddr,
		monitor:    monitor,
		registry:   registry,
		provider:   provider,
		interval:   interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The ops surface is a same-origin operational dashboard, not
			// a public API; a permissive CheckOrigin matches the
			// teacher's internal-tooling websocket endpoints.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Start begins serving in the background and returns once the
// listener is bound. Stop the returned server via Stop.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry.PrometheusRegistry(), promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/ws/status", s.handleWSStatus)

	s.httpServer = &http.Server{
		Addr:    s.listenAddr,
		Handler: mux,
	}

	ln, err := newListener(s.listenAddr)
	if err != nil {
		return errors.WrapFatal(err, "httpapi", "Server.Start", "listen")
	}

	go func() {
		_ = s.httpServer.Serve(ln)
	}()
	go s.broadcastLoop(ctx)

	return nil
}

// Stop gracefully shuts down the HTTP server and closes every
// connected /ws/status client.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.clients {
		_ = c.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "httpapi", "Server.Stop", "shutdown")
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	status := s.monitor.AggregateHealth("sttp")

	w.Header().Set("Content-Type", "application/json")
	if !status.IsHealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (s *Server) handleWSStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Drain and discard inbound frames so the client's close frame and
	// pings are observed; this connection is push-only.
	go func() {
		defer s.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.provider == nil {
				continue
			}
			snap := s.provider.Status()
			snap.Timestamp = time.Now()
			s.broadcast(snap)
		}
	}
}

func (s *Server) broadcast(snap StatusSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.clients {
		if err := conn.WriteJSON(snap); err != nil {
			delete(s.clients, conn)
			_ = conn.Close()
		}
	}
}
