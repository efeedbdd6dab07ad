package protocol

import (
	"sync"

	"github.com/c360/sttp/errors"
)

// State is a connection's position in the publisher-side handshake.
type State int

const (
	StateNew State = iota
	StateModed
	StateMetadataSent
	StateSubscribed
	StateUnsubscribed
	StateClosed
)

// String names a State for logging.
func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateModed:
		return "MODED"
	case StateMetadataSent:
		return "METADATA_SENT"
	case StateSubscribed:
		return "SUBSCRIBED"
	case StateUnsubscribed:
		return "UNSUBSCRIBED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Handshake tracks one connection's progress through
// NEW → MODED → METADATA_SENT/SUBSCRIBED ↔ UNSUBSCRIBED → CLOSED, and
// rejects any command that arrives out of turn.
type Handshake struct {
	mu    sync.Mutex
	state State
}

// NewHandshake returns a Handshake in StateNew.
func NewHandshake() *Handshake {
	return &Handshake{state: StateNew}
}

// State returns the current state.
func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// OnDefineOperationalModes transitions NEW → MODED. It is a protocol
// violation to send DefineOperationalModes a second time or out of order.
func (h *Handshake) OnDefineOperationalModes() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateNew {
		return h.violation(CommandDefineOperationalModes)
	}
	h.state = StateModed
	return nil
}

// OnMetadataRefresh transitions MODED → METADATA_SENT, or is a no-op
// from METADATA_SENT, SUBSCRIBED or UNSUBSCRIBED (a refresh mid-subscription is legal).
func (h *Handshake) OnMetadataRefresh() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case StateModed:
		h.state = StateMetadataSent
		return nil
	case StateMetadataSent, StateSubscribed, StateUnsubscribed:
		return nil
	default:
		return h.violation(CommandMetadataRefresh)
	}
}

// OnSubscribe transitions MODED/METADATA_SENT/UNSUBSCRIBED/SUBSCRIBED → SUBSCRIBED.
func (h *Handshake) OnSubscribe() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case StateModed, StateMetadataSent, StateSubscribed, StateUnsubscribed:
		h.state = StateSubscribed
		return nil
	default:
		return h.violation(CommandSubscribe)
	}
}

// OnUnsubscribe transitions SUBSCRIBED → UNSUBSCRIBED.
func (h *Handshake) OnUnsubscribe() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateSubscribed {
		return h.violation(CommandUnsubscribe)
	}
	h.state = StateUnsubscribed
	return nil
}

// Close transitions unconditionally to CLOSED: a socket close, protocol
// error, or keepalive timeout ends the handshake from any state.
func (h *Handshake) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateClosed
}

func (h *Handshake) violation(c CommandCode) error {
	return errors.WrapFatal(errOutOfOrder(c, h.state), "protocol", "Handshake", "state check")
}
