package natsbridge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	sttperrors "github.com/c360/sttp/errors"
	"github.com/c360/sttp/natsclient"
)

// EventType identifies the kind of lifecycle event a Bridge publishes.
type EventType string

const (
	// EventConnected fires when a command-channel connection completes
	// its handshake (publisher side) or a subscriber finishes connecting.
	EventConnected EventType = "connected"
	// EventDisconnected fires when a connection is torn down, gracefully
	// or otherwise.
	EventDisconnected EventType = "disconnected"
	// EventSubscribed fires when a subscriber's filter expression has
	// been resolved and the signal-index cache assigned.
	EventSubscribed EventType = "subscribed"
	// EventMetadataRefreshed fires when a new metadata Snapshot is
	// published or received.
	EventMetadataRefreshed EventType = "metadata_refreshed"
	// EventError fires on any classified error surfaced by an engine.
	EventError EventType = "error"
)

// Event is the JSON payload published to NATS for every bridge event.
// It never carries measurement values or signal IDs in bulk: only
// connection- and subscription-level metadata, matching SPEC_FULL.md
// §4.10's scope.
type Event struct {
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	Component    string    `json:"component"` // "publisher" or "subscriber"
	ConnectionID string    `json:"connection_id,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	ErrorClass   string    `json:"error_class,omitempty"`
}

// Bridge publishes Events to NATS on a best-effort, fire-and-forget
// basis: a publish failure is logged and dropped, never propagated to
// the caller, since the observability bridge must never become a
// reason a measurement delivery stalls (SPEC_FULL.md §4.10).
//
// A nil *Bridge is valid and every method becomes a no-op, so engines
// can hold a *Bridge field unconditionally and call through it without
// checking whether the feature was enabled.
type Bridge struct {
	client        *natsclient.Client
	subjectPrefix string
	logger        *slog.Logger
}

// New connects to the NATS server at url and returns a Bridge that
// publishes under subjectPrefix (e.g. "sttp.events"). The returned
// Bridge owns the underlying connection; call Close to release it.
func New(ctx context.Context, url, subjectPrefix string, logger *slog.Logger) (*Bridge, error) {
	client, err := natsclient.NewClient(url)
	if err != nil {
		return nil, sttperrors.WrapTransient(err, "natsbridge", "New", "construct client")
	}
	if err := client.Connect(ctx); err != nil {
		return nil, sttperrors.WrapTransient(err, "natsbridge", "New", "connect")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{client: client, subjectPrefix: subjectPrefix, logger: logger}, nil
}

// Close releases the underlying NATS connection. Safe to call on a nil
// Bridge.
func (b *Bridge) Close(ctx context.Context) error {
	if b == nil {
		return nil
	}
	return b.client.Close(ctx)
}

// Publish emits ev under "<subjectPrefix>.<component>.<type>". Failures
// are logged, not returned: see Bridge's doc comment.
func (b *Bridge) Publish(ctx context.Context, ev Event) {
	if b == nil {
		return
	}
	ev.Timestamp = time.Now()

	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Warn("natsbridge: marshal event failed", "error", err)
		return
	}

	subject := fmt.Sprintf("%s.%s.%s", b.subjectPrefix, ev.Component, ev.Type)
	if err := b.client.Publish(ctx, subject, payload); err != nil {
		b.logger.Warn("natsbridge: publish failed", "subject", subject, "error", err)
	}
}

// Connected reports a new connection.
func (b *Bridge) Connected(ctx context.Context, component, connectionID string) {
	b.Publish(ctx, Event{Type: EventConnected, Component: component, ConnectionID: connectionID})
}

// Disconnected reports a torn-down connection.
func (b *Bridge) Disconnected(ctx context.Context, component, connectionID, reason string) {
	b.Publish(ctx, Event{Type: EventDisconnected, Component: component, ConnectionID: connectionID, Detail: reason})
}

// Subscribed reports a resolved subscription.
func (b *Bridge) Subscribed(ctx context.Context, component, connectionID string, signalCount int) {
	b.Publish(ctx, Event{
		Type:         EventSubscribed,
		Component:    component,
		ConnectionID: connectionID,
		Detail:       fmt.Sprintf("%d signals", signalCount),
	})
}

// MetadataRefreshed reports a new metadata snapshot generation.
func (b *Bridge) MetadataRefreshed(ctx context.Context, component string, generation uint64) {
	b.Publish(ctx, Event{
		Type:      EventMetadataRefreshed,
		Component: component,
		Detail:    fmt.Sprintf("generation %d", generation),
	})
}

// Error reports a classified error surfaced by an engine.
func (b *Bridge) Error(ctx context.Context, component, connectionID string, err error) {
	class := "unknown"
	var ce *sttperrors.ClassifiedError
	if stderrors.As(err, &ce) {
		class = ce.Class.String()
	}
	b.Publish(ctx, Event{
		Type:         EventError,
		Component:    component,
		ConnectionID: connectionID,
		Detail:       err.Error(),
		ErrorClass:   class,
	})
}
