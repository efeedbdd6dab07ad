package cipher

import (
	"sync"
	"time"

	"github.com/c360/sttp/errors"
)

// DefaultRotationTimeout is how long a publisher waits for a subscriber
// to acknowledge a cipher-key rotation before treating the connection
// as unrecoverable.
const DefaultRotationTimeout = 5 * time.Second

// Rotator drives the two-phase RotateCipherKeys → UpdateCipherKeys → ack
// sequence on top of a Keys set: Start installs a fresh pair into the
// inactive slot and returns it for the caller to send as
// UpdateCipherKeys; Confirm flips the active selector once the peer
// acknowledges. A rotation left unconfirmed past the timeout is fatal.
type Rotator struct {
	keys    *Keys
	timeout time.Duration

	mu       sync.Mutex
	pending  bool
	selector int
	deadline time.Time
}

// NewRotator wraps keys with rotation bookkeeping using timeout as the
// acknowledgment deadline.
func NewRotator(keys *Keys, timeout time.Duration) *Rotator {
	return &Rotator{keys: keys, timeout: timeout}
}

// Start begins a rotation: it generates a fresh pair for the inactive
// slot and arms the acknowledgment deadline. Calling Start again while a
// rotation is pending is a protocol error in the caller, whether or not
// its deadline has passed; only Confirm clears the pending rotation.
func (r *Rotator) Start(now time.Time) (KeyPair, int, error) {
	r.mu.Lock()
	if r.pending {
		r.mu.Unlock()
		return KeyPair{}, 0, errors.WrapInvalid(errRotationInFlight(), "cipher", "Start", "state check")
	}
	r.mu.Unlock()

	pair, selector, err := r.keys.beginRotation()
	if err != nil {
		return KeyPair{}, 0, err
	}

	r.mu.Lock()
	r.pending = true
	r.selector = selector
	r.deadline = now.Add(r.timeout)
	r.mu.Unlock()

	return pair, selector, nil
}

// Confirm acknowledges the in-flight rotation, flipping the active
// selector. A confirmation for a selector other than the one Start
// returned, or with no rotation pending, is a protocol error.
func (r *Rotator) Confirm(selector int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.pending {
		return errors.WrapInvalid(errNoRotationPending(), "cipher", "Confirm", "state check")
	}
	if selector%2 != r.selector {
		return errors.WrapInvalid(errRotationSelectorMismatch(r.selector, selector), "cipher", "Confirm", "state check")
	}
	r.keys.confirmRotation(r.selector)
	r.pending = false
	return nil
}

// CheckTimeout reports whether a pending rotation's deadline has
// passed as of now. Callers should close the connection when this
// returns true: an unacknowledged rotation is unrecoverable, not retryable.
func (r *Rotator) CheckTimeout(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending && now.After(r.deadline)
}
